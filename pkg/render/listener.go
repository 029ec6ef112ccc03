package render

import (
	"fmt"
	"strings"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	listenerv3 "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	routerv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/router/v3"
	tlsinspectorv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/listener/tls_inspector/v3"
	hcmv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	tcpproxyv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/tcp_proxy/v3"
	"github.com/envoyproxy/go-control-plane/pkg/wellknown"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/cuemby/edgeplane/pkg/ir"
)

const anyAddress = "0.0.0.0"

// httpListeners renders the plain HTTP listener and, when some TLS
// context terminates, the HTTPS listener with one filter chain per
// context selected by SNI
func (r *renderer) httpListeners() ([]*listenerv3.Listener, error) {
	settings := r.graph.Settings

	hcm, err := r.connectionManager("ingress_http")
	if err != nil {
		return nil, err
	}
	out := []*listenerv3.Listener{{
		Name:         HTTPListenerName,
		Address:      socketAddress(anyAddress, settings.ListenPort),
		FilterChains: []*listenerv3.FilterChain{{Filters: []*listenerv3.Filter{hcm}}},
	}}

	var chains []*listenerv3.FilterChain
	for _, t := range r.graph.TLSContexts {
		if !t.Terminates() {
			continue
		}
		chain, err := r.tlsFilterChain(t)
		if err != nil {
			return nil, fmt.Errorf("failed to render TLSContext %s: %w", t.Name, err)
		}
		chains = append(chains, chain)
	}
	if len(chains) == 0 {
		return out, nil
	}

	inspector, err := anypb.New(&tlsinspectorv3.TlsInspector{})
	if err != nil {
		return nil, err
	}
	out = append(out, &listenerv3.Listener{
		Name:    HTTPSListenerName,
		Address: socketAddress(anyAddress, settings.TLSPort),
		ListenerFilters: []*listenerv3.ListenerFilter{{
			Name:       wellknown.TlsInspector,
			ConfigType: &listenerv3.ListenerFilter_TypedConfig{TypedConfig: inspector},
		}},
		FilterChains: chains,
	})
	return out, nil
}

func (r *renderer) tlsFilterChain(t *ir.TLSContext) (*listenerv3.FilterChain, error) {
	ts, err := downstreamTLS(t)
	if err != nil {
		return nil, err
	}
	hcm, err := r.connectionManager("ingress_https")
	if err != nil {
		return nil, err
	}
	return &listenerv3.FilterChain{
		Name:             t.Namespace + "/" + t.Name,
		FilterChainMatch: &listenerv3.FilterChainMatch{ServerNames: append([]string(nil), t.Hosts...)},
		Filters:          []*listenerv3.Filter{hcm},
		TransportSocket:  ts,
	}, nil
}

// connectionManager builds the HTTP connection manager filter. Routes
// are fetched over ADS by name.
func (r *renderer) connectionManager(statPrefix string) (*listenerv3.Filter, error) {
	router, err := anypb.New(&routerv3.Router{})
	if err != nil {
		return nil, err
	}

	manager := &hcmv3.HttpConnectionManager{
		CodecType:  hcmv3.HttpConnectionManager_AUTO,
		StatPrefix: statPrefix,
		ServerName: r.graph.Settings.ServerName,
		StripPortMode: &hcmv3.HttpConnectionManager_StripAnyHostPort{
			StripAnyHostPort: true,
		},
		RouteSpecifier: &hcmv3.HttpConnectionManager_Rds{
			Rds: &hcmv3.Rds{
				ConfigSource:    adsSource(),
				RouteConfigName: RouteConfigName,
			},
		},
		HttpFilters: []*hcmv3.HttpFilter{{
			Name:       wellknown.Router,
			ConfigType: &hcmv3.HttpFilter_TypedConfig{TypedConfig: router},
		}},
	}
	typed, err := anypb.New(manager)
	if err != nil {
		return nil, err
	}
	return &listenerv3.Filter{
		Name:       wellknown.HTTPConnectionManager,
		ConfigType: &listenerv3.Filter_TypedConfig{TypedConfig: typed},
	}, nil
}

func (r *renderer) tcpListener(t *ir.TCPMapping) (*listenerv3.Listener, error) {
	proxy := &tcpproxyv3.TcpProxy{
		StatPrefix:       "tcp_" + sanitizeName(t.Namespace+"_"+t.Name),
		ClusterSpecifier: &tcpproxyv3.TcpProxy_Cluster{Cluster: t.ClusterName},
	}
	if t.IdleTimeoutMS > 0 {
		proxy.IdleTimeout = durationpb.New(time.Duration(t.IdleTimeoutMS) * time.Millisecond)
	}
	typed, err := anypb.New(proxy)
	if err != nil {
		return nil, err
	}

	return &listenerv3.Listener{
		Name:    tcpListenerName(t.Port),
		Address: socketAddress(anyAddress, t.Port),
		FilterChains: []*listenerv3.FilterChain{{
			Filters: []*listenerv3.Filter{{
				Name:       wellknown.TCPProxy,
				ConfigType: &listenerv3.Filter_TypedConfig{TypedConfig: typed},
			}},
		}},
	}, nil
}

func tcpListenerName(port int) string {
	return fmt.Sprintf("tcp_%d", port)
}

func adsSource() *corev3.ConfigSource {
	return &corev3.ConfigSource{
		ResourceApiVersion:    corev3.ApiVersion_V3,
		ConfigSourceSpecifier: &corev3.ConfigSource_Ads{Ads: &corev3.AggregatedConfigSource{}},
	}
}

// sanitizeName replaces everything Envoy stat names do not like
func sanitizeName(s string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			return c
		default:
			return '_'
		}
	}, s)
}
