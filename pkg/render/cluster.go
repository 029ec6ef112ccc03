package render

import (
	"fmt"
	"net"
	"time"

	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	endpointv3 "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	httpv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/upstreams/http/v3"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/cuemby/edgeplane/pkg/ir"
)

const httpProtocolOptionsKey = "envoy.extensions.upstreams.http.v3.HttpProtocolOptions"

var lbPolicies = map[string]clusterv3.Cluster_LbPolicy{
	"round_robin":   clusterv3.Cluster_ROUND_ROBIN,
	"least_request": clusterv3.Cluster_LEAST_REQUEST,
	"random":        clusterv3.Cluster_RANDOM,
	"ring_hash":     clusterv3.Cluster_RING_HASH,
}

func (r *renderer) cluster(c *ir.Cluster) (*clusterv3.Cluster, error) {
	policy, ok := lbPolicies[c.LoadBalancer]
	if !ok {
		return nil, fmt.Errorf("unsupported load balancer %q", c.LoadBalancer)
	}

	discovery := clusterv3.Cluster_STRICT_DNS
	if net.ParseIP(c.Host) != nil {
		discovery = clusterv3.Cluster_STATIC
	}

	cl := &clusterv3.Cluster{
		Name:                 c.Name,
		ConnectTimeout:       durationpb.New(time.Duration(c.ConnectTimeoutMS) * time.Millisecond),
		ClusterDiscoveryType: &clusterv3.Cluster_Type{Type: discovery},
		LbPolicy:             policy,
		LoadAssignment:       loadAssignment(c.Name, c.Host, c.Port),
	}

	if c.Originate {
		ts, err := r.upstreamTLS(c)
		if err != nil {
			return nil, err
		}
		cl.TransportSocket = ts
	}
	return cl, nil
}

func loadAssignment(clusterName, host string, port int) *endpointv3.ClusterLoadAssignment {
	return &endpointv3.ClusterLoadAssignment{
		ClusterName: clusterName,
		Endpoints: []*endpointv3.LocalityLbEndpoints{{
			LbEndpoints: []*endpointv3.LbEndpoint{{
				HostIdentifier: &endpointv3.LbEndpoint_Endpoint{
					Endpoint: &endpointv3.Endpoint{Address: socketAddress(host, port)},
				},
			}},
		}},
	}
}

func socketAddress(host string, port int) *corev3.Address {
	return &corev3.Address{
		Address: &corev3.Address_SocketAddress{
			SocketAddress: &corev3.SocketAddress{
				Protocol: corev3.SocketAddress_TCP,
				Address:  host,
				PortSpecifier: &corev3.SocketAddress_PortValue{
					PortValue: uint32(port),
				},
			},
		},
	}
}

// http2Options forces HTTP/2 to the upstream, as gRPC requires
func http2Options() (map[string]*anypb.Any, error) {
	opts, err := anypb.New(&httpv3.HttpProtocolOptions{
		UpstreamProtocolOptions: &httpv3.HttpProtocolOptions_ExplicitHttpConfig_{
			ExplicitHttpConfig: &httpv3.HttpProtocolOptions_ExplicitHttpConfig{
				ProtocolConfig: &httpv3.HttpProtocolOptions_ExplicitHttpConfig_Http2ProtocolOptions{
					Http2ProtocolOptions: &corev3.Http2ProtocolOptions{},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return map[string]*anypb.Any{httpProtocolOptionsKey: opts}, nil
}
