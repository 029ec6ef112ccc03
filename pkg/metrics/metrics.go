package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Build metrics
	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeplane_builds_total",
			Help: "Total number of configuration builds by kind and result",
		},
		[]string{"kind", "result"},
	)

	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeplane_build_duration_seconds",
			Help:    "Configuration build duration in seconds by phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	BuildGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeplane_build_generation",
			Help: "Generation of the last successful build",
		},
	)

	CompileErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeplane_compile_errors",
			Help: "Number of resource errors reported by the last build",
		},
	)

	// Cache metrics
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeplane_cache_lookups_total",
			Help: "Total number of cache lookups by artifact and result",
		},
		[]string{"artifact", "result"},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeplane_cache_entries",
			Help: "Number of valid entries in the compilation cache",
		},
	)

	CacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeplane_cache_invalidations_total",
			Help: "Total number of cache entries removed by invalidation",
		},
	)

	CacheResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeplane_cache_resets_total",
			Help: "Total number of full cache resets by reason",
		},
		[]string{"reason"},
	)

	// Snapshot metrics
	ResourcesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgeplane_resources_total",
			Help: "Number of resources in the current snapshot by kind",
		},
		[]string{"kind"},
	)

	ManifestErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeplane_manifest_errors",
			Help: "Number of manifest files or documents skipped by the last directory load",
		},
	)

	XDSSnapshotsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeplane_xds_snapshots_published_total",
			Help: "Total number of xDS snapshots handed to the snapshot cache",
		},
	)

	XDSStreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeplane_xds_streams_active",
			Help: "Number of open xDS streams",
		},
	)
)

// Lookup results
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

func init() {
	prometheus.MustRegister(BuildsTotal)
	prometheus.MustRegister(BuildDuration)
	prometheus.MustRegister(BuildGeneration)
	prometheus.MustRegister(CompileErrors)
	prometheus.MustRegister(CacheLookups)
	prometheus.MustRegister(CacheEntries)
	prometheus.MustRegister(CacheInvalidations)
	prometheus.MustRegister(CacheResets)
	prometheus.MustRegister(ResourcesTotal)
	prometheus.MustRegister(ManifestErrors)
	prometheus.MustRegister(XDSSnapshotsPublished)
	prometheus.MustRegister(XDSStreamsActive)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
