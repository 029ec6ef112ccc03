package render

import (
	"fmt"

	bootstrapv3 "github.com/envoyproxy/go-control-plane/envoy/config/bootstrap/v3"
	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	listenerv3 "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	routev3 "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	"github.com/rs/zerolog"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/ir"
	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
)

// Names of the configuration objects assembled on every render
const (
	RouteConfigName   = "edge_http_routes"
	HTTPListenerName  = "edge_http"
	HTTPSListenerName = "edge_https"
	XDSClusterName    = "xds_cluster"
)

// Fragment kinds, used in cache keys
const (
	fragmentCluster  = "cluster"
	fragmentRoutes   = "routes"
	fragmentListener = "listener"
)

// Options carry the values the graph does not know about
type Options struct {
	NodeID      string
	NodeCluster string
	// XDSHost and XDSPort locate this control plane from the proxy
	XDSHost string
	XDSPort int
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		NodeID:      "edge-proxy",
		NodeCluster: "edge",
		XDSHost:     "127.0.0.1",
		XDSPort:     18000,
	}
}

// Config is the rendered proxy configuration. Bootstrap is the static
// document the proxy starts with; Clusters, Listeners and Routes are
// streamed over ADS.
type Config struct {
	Bootstrap  *bootstrapv3.Bootstrap
	Clusters   []*clusterv3.Cluster
	Listeners  []*listenerv3.Listener
	Routes     []*routev3.RouteConfiguration
	ClusterMap map[string]string
}

// Stats reports fragment reuse for one render
type Stats struct {
	FragmentsReused   int `json:"fragments_reused"`
	FragmentsRendered int `json:"fragments_rendered"`
}

type renderer struct {
	graph  *ir.Graph
	store  *cache.Cache
	opts   Options
	stats  Stats
	logger zerolog.Logger
}

// Render turns a graph into proxy configuration. Clusters, per-group
// route lists and TCP listeners are cached as fragments owned by the
// graph artifact they came from; everything else is assembled fresh. The
// output does not depend on whether fragments came from the cache.
//
// Any error fails the whole render and the caller keeps its previous
// configuration.
func Render(g *ir.Graph, store *cache.Cache, opts Options) (*Config, Stats, error) {
	r := &renderer{
		graph:  g,
		store:  store,
		opts:   opts,
		logger: log.WithComponent("renderer"),
	}

	cfg, err := r.render()
	if err != nil {
		return nil, r.stats, err
	}

	r.logger.Debug().
		Int("clusters", len(cfg.Clusters)).
		Int("listeners", len(cfg.Listeners)).
		Int("reused", r.stats.FragmentsReused).
		Int("rendered", r.stats.FragmentsRendered).
		Msg("rendered config")
	return cfg, r.stats, nil
}

func (r *renderer) render() (*Config, error) {
	cfg := &Config{
		Clusters:   make([]*clusterv3.Cluster, 0, len(r.graph.Clusters)),
		Listeners:  make([]*listenerv3.Listener, 0, 2+len(r.graph.TCPMappings)),
		Routes:     make([]*routev3.RouteConfiguration, 0, 1),
		ClusterMap: r.graph.ClusterMap(),
	}

	for _, c := range r.graph.Clusters {
		cl, err := fragment(r, c.Key, fragmentCluster, func() (*clusterv3.Cluster, error) {
			return r.cluster(c)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render cluster %s: %w", c.Name, err)
		}
		cfg.Clusters = append(cfg.Clusters, cl)
	}

	if len(r.graph.Groups) > 0 {
		rc, err := r.routeConfiguration()
		if err != nil {
			return nil, err
		}
		cfg.Routes = append(cfg.Routes, rc)

		listeners, err := r.httpListeners()
		if err != nil {
			return nil, err
		}
		cfg.Listeners = append(cfg.Listeners, listeners...)
	}

	for _, t := range r.graph.TCPMappings {
		l, err := fragment(r, t.Key, fragmentListener, func() (*listenerv3.Listener, error) {
			return r.tcpListener(t)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render tcp listener for %s: %w", t.Key, err)
		}
		cfg.Listeners = append(cfg.Listeners, l)
	}

	bootstrap, err := r.bootstrap()
	if err != nil {
		return nil, fmt.Errorf("failed to render bootstrap: %w", err)
	}
	cfg.Bootstrap = bootstrap
	return cfg, nil
}

// fragment returns the cached fragment rendered from owner, or renders,
// caches and links a fresh one. Cached fragments are shared between
// builds and never modified.
func fragment[T any](r *renderer, owner cache.Key, kind string, build func() (T, error)) (T, error) {
	key := cache.FragmentKey(kind, owner)

	if v, ok := cache.Fetch[T](r.store, key); ok {
		metrics.CacheLookups.WithLabelValues("fragment", metrics.ResultHit).Inc()
		r.stats.FragmentsReused++
		return v, nil
	}
	if r.store != nil {
		metrics.CacheLookups.WithLabelValues("fragment", metrics.ResultMiss).Inc()
	}

	v, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	r.stats.FragmentsRendered++

	if r.store != nil {
		if err := r.store.Put(key, v); err != nil {
			var zero T
			return zero, err
		}
		if err := r.store.Link(owner, key); err != nil {
			var zero T
			return zero, err
		}
	}
	return v, nil
}
