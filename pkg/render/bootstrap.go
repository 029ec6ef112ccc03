package render

import (
	"errors"
	"time"

	bootstrapv3 "github.com/envoyproxy/go-control-plane/envoy/config/bootstrap/v3"
	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	"google.golang.org/protobuf/types/known/durationpb"
)

const xdsConnectTimeout = time.Second

// bootstrap renders the static document the proxy starts from: the admin
// listener, the cluster pointing back at this control plane and ADS for
// everything else
func (r *renderer) bootstrap() (*bootstrapv3.Bootstrap, error) {
	if r.opts.NodeID == "" {
		return nil, errors.New("node id is required")
	}
	protocol, err := http2Options()
	if err != nil {
		return nil, err
	}

	xds := &clusterv3.Cluster{
		Name:                          XDSClusterName,
		ConnectTimeout:                durationpb.New(xdsConnectTimeout),
		ClusterDiscoveryType:          &clusterv3.Cluster_Type{Type: clusterv3.Cluster_STRICT_DNS},
		LbPolicy:                      clusterv3.Cluster_ROUND_ROBIN,
		TypedExtensionProtocolOptions: protocol,
		LoadAssignment:                loadAssignment(XDSClusterName, r.opts.XDSHost, r.opts.XDSPort),
	}

	return &bootstrapv3.Bootstrap{
		Node: &corev3.Node{
			Id:      r.opts.NodeID,
			Cluster: r.opts.NodeCluster,
		},
		Admin: &bootstrapv3.Admin{
			Address: socketAddress("127.0.0.1", r.graph.Settings.AdminPort),
		},
		StaticResources: &bootstrapv3.Bootstrap_StaticResources{
			Clusters: []*clusterv3.Cluster{xds},
		},
		DynamicResources: &bootstrapv3.Bootstrap_DynamicResources{
			AdsConfig: &corev3.ApiConfigSource{
				ApiType:             corev3.ApiConfigSource_GRPC,
				TransportApiVersion: corev3.ApiVersion_V3,
				GrpcServices: []*corev3.GrpcService{{
					TargetSpecifier: &corev3.GrpcService_EnvoyGrpc_{
						EnvoyGrpc: &corev3.GrpcService_EnvoyGrpc{ClusterName: XDSClusterName},
					},
				}},
			},
			CdsConfig: adsSource(),
			LdsConfig: adsSource(),
		},
	}, nil
}
