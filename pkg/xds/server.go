package xds

import (
	"context"
	"fmt"
	"net"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	discoverygrpc "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	serverv3 "github.com/envoyproxy/go-control-plane/pkg/server/v3"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
)

// Server exposes the publisher's snapshots over ADS
type Server struct {
	addr   string
	grpc   *grpc.Server
	logger zerolog.Logger
}

// NewServer creates an ADS server for the publisher's cache
func NewServer(ctx context.Context, addr string, pub *Publisher) *Server {
	logger := log.WithComponent("xds-server")

	callbacks := serverv3.CallbackFuncs{
		StreamOpenFunc: func(_ context.Context, id int64, typeURL string) error {
			logger.Debug().Int64("stream", id).Str("type", typeURL).Msg("xds stream opened")
			return nil
		},
		StreamClosedFunc: func(id int64, node *corev3.Node) {
			logger.Debug().Int64("stream", id).Str("node", node.GetId()).Msg("xds stream closed")
		},
		StreamRequestFunc: func(id int64, req *discoverygrpc.DiscoveryRequest) error {
			if req.GetErrorDetail() != nil {
				logger.Warn().
					Int64("stream", id).
					Str("type", req.GetTypeUrl()).
					Str("version", req.GetVersionInfo()).
					Str("error", req.GetErrorDetail().GetMessage()).
					Msg("proxy rejected configuration")
			}
			return nil
		},
	}

	g := grpc.NewServer(grpc.StreamInterceptor(StreamMetricsInterceptor()))
	discoverygrpc.RegisterAggregatedDiscoveryServiceServer(g, serverv3.NewServer(ctx, pub.Cache(), callbacks))

	return &Server{addr: addr, grpc: g, logger: logger}
}

// Run serves until ctx is done, then stops gracefully
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.grpc.GracefulStop()
	}()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("xds server listening")
	metrics.UpdateComponent(metrics.ComponentXDS, true, "serving")
	defer metrics.UpdateComponent(metrics.ComponentXDS, false, "stopped")

	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("xds server failed: %w", err)
	}
	return nil
}
