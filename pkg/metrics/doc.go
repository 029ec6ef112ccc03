/*
Package metrics exposes Prometheus metrics and health endpoints for the
edgeplane control plane.

All metrics are package level collectors registered with the default
registry in init, so any package can record into them without wiring.
Handler serves them in the Prometheus text format on /metrics of the
diagnostics server.

# Architecture

	┌──────────────────────── METRICS ────────────────────────┐
	│                                                           │
	│  inline, at the call site                                 │
	│    reconciler ─▶ builds, durations, generation, resets    │
	│    ir, render ─▶ cache lookups                            │
	│    ingest     ─▶ manifest errors                          │
	│    xds        ─▶ published snapshots, open streams        │
	│                                                           │
	│  sampled by the Collector (every 15s by default)          │
	│    Pipeline.CacheLen        ─▶ edgeplane_cache_entries    │
	│    Pipeline.CurrentSnapshot ─▶ edgeplane_resources_total  │
	│                                                           │
	│  health registry                                          │
	│    UpdateComponent(name, healthy, message)                │
	│    /health  /ready  /live                                 │
	└───────────────────────────────────────────────────────────┘

# Metrics

Build metrics:

  - edgeplane_builds_total{kind,result}: builds by kind (incremental,
    complete) and result (success, failure)
  - edgeplane_build_duration_seconds{phase}: time spent in compile,
    render, and the whole build as total
  - edgeplane_build_generation: generation of the last successful build
  - edgeplane_compile_errors: resource errors in the last build

Cache metrics:

  - edgeplane_cache_lookups_total{artifact,result}: hit and miss per
    artifact kind (mapping, cluster, group, tcpmapping, fragment)
  - edgeplane_cache_entries: valid entries, sampled by the Collector
  - edgeplane_cache_invalidations_total: entries removed by invalidation
  - edgeplane_cache_resets_total{reason}: complete before a complete
    build, failure after a failed one

Ingest metrics:

  - edgeplane_resources_total{kind}: resources in the current snapshot,
    zero for kinds that are absent
  - edgeplane_manifest_errors: files and documents skipped by the last
    directory load

xDS metrics:

  - edgeplane_xds_snapshots_published_total
  - edgeplane_xds_streams_active

A cache hit rate per artifact:

	sum by (artifact) (rate(edgeplane_cache_lookups_total{result="hit"}[5m]))
	  /
	sum by (artifact) (rate(edgeplane_cache_lookups_total[5m]))

# Timing

	timer := metrics.NewTimer()
	graph, stats, err := ir.Compile(snap, store, invalidate)
	timer.ObserveDurationVec(metrics.BuildDuration, "compile")

# Health

Components report themselves with UpdateComponent:

	pipeline   healthy after a successful build; stays healthy after a
	           failure while a previous build is still served
	watcher    healthy while the manifest directory loads
	xds        healthy while the ADS server is serving
	storage    healthy while build records persist

GetHealth covers every registered component and GetReadiness only the
critical ones, pipeline and xds by default (SetCriticalComponents changes
them). A component that never reported counts as "not registered", so a
proxy pointed at a fresh control plane waits for the first good build.
Unhealthy components are listed with their last message:

	{
	  "status": "not_ready",
	  "timestamp": "2026-10-14T09:12:44Z",
	  "message": "waiting for pipeline",
	  "components": {
	    "pipeline": "not ready: build failed, nothing to serve",
	    "xds": "ready"
	  },
	  "version": "v0.3.0",
	  "uptime": "2m3s"
	}

HealthHandler and ReadyHandler answer 503 unless every component they
cover is healthy. LivenessHandler always answers 200 while the process
runs.
*/
package metrics
