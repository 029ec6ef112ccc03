package xds

import (
	"google.golang.org/grpc"

	"github.com/cuemby/edgeplane/pkg/metrics"
)

// StreamMetricsInterceptor tracks the number of open gRPC streams
func StreamMetricsInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		metrics.XDSStreamsActive.Inc()
		defer metrics.XDSStreamsActive.Dec()
		return handler(srv, ss)
	}
}
