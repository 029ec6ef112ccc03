package render

import (
	"fmt"
	"net"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	tlsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"
	"github.com/envoyproxy/go-control-plane/pkg/wellknown"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/cuemby/edgeplane/pkg/ir"
)

var tlsVersions = map[string]tlsv3.TlsParameters_TlsProtocol{
	"v1.0": tlsv3.TlsParameters_TLSv1_0,
	"v1.1": tlsv3.TlsParameters_TLSv1_1,
	"v1.2": tlsv3.TlsParameters_TLSv1_2,
	"v1.3": tlsv3.TlsParameters_TLSv1_3,
}

func (r *renderer) upstreamTLS(c *ir.Cluster) (*corev3.TransportSocket, error) {
	ctx := &tlsv3.UpstreamTlsContext{CommonTlsContext: &tlsv3.CommonTlsContext{}}
	if net.ParseIP(c.Host) == nil {
		ctx.Sni = c.Host
	}

	if c.ID.TLS != "" {
		t, ok := r.graph.TLSContext(c.ID.TLS)
		if !ok {
			return nil, fmt.Errorf("cluster %s references missing TLSContext %q", c.Name, c.ID.TLS)
		}
		common, err := commonTLS(t)
		if err != nil {
			return nil, err
		}
		ctx.CommonTlsContext = common
		if t.SNI != "" {
			ctx.Sni = t.SNI
		}
	}
	return transportSocket(ctx)
}

func downstreamTLS(t *ir.TLSContext) (*corev3.TransportSocket, error) {
	common, err := commonTLS(t)
	if err != nil {
		return nil, err
	}
	return transportSocket(&tlsv3.DownstreamTlsContext{CommonTlsContext: common})
}

func commonTLS(t *ir.TLSContext) (*tlsv3.CommonTlsContext, error) {
	common := &tlsv3.CommonTlsContext{
		AlpnProtocols: append([]string(nil), t.ALPNProtocols...),
	}

	if t.CertChainFile != "" {
		common.TlsCertificates = []*tlsv3.TlsCertificate{{
			CertificateChain: fileSource(t.CertChainFile),
			PrivateKey:       fileSource(t.PrivateKeyFile),
		}}
	}
	if t.CACertFile != "" {
		common.ValidationContextType = &tlsv3.CommonTlsContext_ValidationContext{
			ValidationContext: &tlsv3.CertificateValidationContext{
				TrustedCa: fileSource(t.CACertFile),
			},
		}
	}
	if t.MinTLSVersion != "" {
		v, ok := tlsVersions[t.MinTLSVersion]
		if !ok {
			return nil, fmt.Errorf("TLSContext %s: unknown min_tls_version %q", t.Name, t.MinTLSVersion)
		}
		common.TlsParams = &tlsv3.TlsParameters{TlsMinimumProtocolVersion: v}
	}
	return common, nil
}

func fileSource(path string) *corev3.DataSource {
	return &corev3.DataSource{Specifier: &corev3.DataSource_Filename{Filename: path}}
}

func transportSocket(msg proto.Message) (*corev3.TransportSocket, error) {
	typed, err := anypb.New(msg)
	if err != nil {
		return nil, err
	}
	return &corev3.TransportSocket{
		Name:       wellknown.TransportSocketTLS,
		ConfigType: &corev3.TransportSocket_TypedConfig{TypedConfig: typed},
	}, nil
}
