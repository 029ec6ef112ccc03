package xds

import (
	"context"
	"fmt"

	cachetypes "github.com/envoyproxy/go-control-plane/pkg/cache/types"
	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	resourcev3 "github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	"github.com/rs/zerolog"

	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
	"github.com/cuemby/edgeplane/pkg/render"
)

// Publisher hands rendered configuration to the xDS snapshot cache
type Publisher struct {
	nodeID string
	cache  cachev3.SnapshotCache
	logger zerolog.Logger
}

// NewPublisher creates a publisher serving nodeID from a fresh ADS
// snapshot cache
func NewPublisher(nodeID string) *Publisher {
	logger := log.WithComponent("xds")
	return &Publisher{
		nodeID: nodeID,
		cache:  cachev3.NewSnapshotCache(true, cachev3.IDHash{}, cacheLogger{logger}),
		logger: logger,
	}
}

// Cache returns the snapshot cache the ADS server reads from
func (p *Publisher) Cache() cachev3.SnapshotCache {
	return p.cache
}

// Version is the snapshot version for a build. The content fingerprint
// keeps versions distinct across restarts that reuse a generation.
func Version(generation uint64, cfg *render.Config) (string, error) {
	fp, err := cfg.Fingerprint()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s", generation, fp), nil
}

// Publish sets cfg as the node's snapshot. An inconsistent snapshot is
// rejected and the previous one keeps being served.
func (p *Publisher) Publish(ctx context.Context, generation uint64, cfg *render.Config) error {
	version, err := Version(generation, cfg)
	if err != nil {
		return fmt.Errorf("failed to compute snapshot version: %w", err)
	}

	snap, err := cachev3.NewSnapshot(version, resources(cfg))
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := snap.Consistent(); err != nil {
		return fmt.Errorf("inconsistent snapshot %s: %w", version, err)
	}
	if err := p.cache.SetSnapshot(ctx, p.nodeID, snap); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	metrics.XDSSnapshotsPublished.Inc()
	p.logger.Info().
		Str("node", p.nodeID).
		Str("version", version).
		Int("clusters", len(cfg.Clusters)).
		Int("listeners", len(cfg.Listeners)).
		Msg("published xds snapshot")
	return nil
}

func resources(cfg *render.Config) map[resourcev3.Type][]cachetypes.Resource {
	out := map[resourcev3.Type][]cachetypes.Resource{
		resourcev3.ClusterType:  make([]cachetypes.Resource, 0, len(cfg.Clusters)),
		resourcev3.ListenerType: make([]cachetypes.Resource, 0, len(cfg.Listeners)),
		resourcev3.RouteType:    make([]cachetypes.Resource, 0, len(cfg.Routes)),
	}
	for _, c := range cfg.Clusters {
		out[resourcev3.ClusterType] = append(out[resourcev3.ClusterType], c)
	}
	for _, l := range cfg.Listeners {
		out[resourcev3.ListenerType] = append(out[resourcev3.ListenerType], l)
	}
	for _, r := range cfg.Routes {
		out[resourcev3.RouteType] = append(out[resourcev3.RouteType], r)
	}
	return out
}

// cacheLogger adapts zerolog to the snapshot cache's logger
type cacheLogger struct {
	logger zerolog.Logger
}

func (l cacheLogger) Debugf(format string, args ...any) { l.logger.Debug().Msgf(format, args...) }
func (l cacheLogger) Infof(format string, args ...any)  { l.logger.Info().Msgf(format, args...) }
func (l cacheLogger) Warnf(format string, args ...any)  { l.logger.Warn().Msgf(format, args...) }
func (l cacheLogger) Errorf(format string, args ...any) { l.logger.Error().Msgf(format, args...) }
