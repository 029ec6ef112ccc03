/*
Package reconciler drives the compile and render pipeline and hands each
successful build to storage, the xDS publisher and the event broker.

The package has two layers. A Pipeline owns the compilation cache and
turns one snapshot plus its deltas into a Build. A Reconciler feeds the
pipeline from a stream of snapshots, coalescing bursts and making sure no
change is lost or applied out of order.

# Architecture

	┌────────────────────────── RECONCILER ──────────────────────────┐
	│                                                                  │
	│  watcher ──Request(snap)──▶ pending (newest wins)                │
	│                                 │                                │
	│                          notify (1 slot)                         │
	│                                 │                                │
	│                          ┌──────▼───────┐                        │
	│                          │   Run loop   │  single goroutine      │
	│                          └──────┬───────┘                        │
	│              ingest.Diff(built, pending)                         │
	│                                 │                                │
	│  ┌──────────────────────────────▼─────────────────────────────┐  │
	│  │                        PIPELINE                             │  │
	│  │  classify ─▶ reset if complete ─▶ compile ─▶ render         │  │
	│  │      │                                          │           │  │
	│  │      └──── coherency error: reset, retry once as complete   │  │
	│  │                                                 ▼           │  │
	│  │                                  Latest (atomic.Pointer)    │  │
	│  └──────────────────────────────┬─────────────────────────────┘  │
	│                                 │                                │
	│           ┌─────────────────────┼─────────────────────┐          │
	│           ▼                     ▼                     ▼          │
	│   storage.SaveBuild      Publisher.Publish      events.Broker    │
	└──────────────────────────────────────────────────────────────────┘

# Core Components

Pipeline:
  - Owns one cache.Cache for its lifetime
  - Build(snap, deltas) runs classify, compile and render under a mutex
  - Latest returns the last successful Build without taking the mutex
  - Invalidate drops one key and its dependents; CacheDump serves
    /debug/cache
  - CacheLen and CurrentSnapshot feed the metrics collector

Build:
  - Generation: incremented on every successful build, starting at 1
  - Kind and Reason: the classifier's decision
  - Retried: set when a coherency error forced a complete retry
  - Snapshot, Graph, Config: the inputs and outputs, never modified
  - Compile and Render: cache reuse statistics

Reconciler:
  - Request(snap) stores the newest snapshot and wakes the loop
  - Run(ctx) builds until the context is cancelled
  - Status reports the requested and processed counters and the last error

# Build Kinds

A complete build resets the cache before compiling and rebuilds every
artifact. It is chosen when:

  - the cache is disabled
  - a delta touches a TLSContext, a Module or an unknown kind
  - a delta is malformed (unknown delta type, no name)
  - an incremental attempt hit a cache coherency error

An incremental build keeps the cache, invalidates the resources that were
updated or deleted, and lets the compiler and renderer reuse everything
else. Its output is identical to a complete build of the same snapshot.

With the cache disabled the pipeline compiles against a nil store, so
nothing is cached and nothing is reused.

# Failure Handling

Coherency errors:
  - Put over a still-valid key or Link from a missing owner
  - The cache is reset and the build retried once as complete
  - A second coherency error fails the build

Other errors:
  - A render failure, for example a bootstrap without a node id
  - The cache is reset with reason "failure" so the next build
    starts clean
  - Latest keeps returning the previous build, which stays published

A resource error (a malformed Mapping, a port conflict) is not a build
failure. It is reported in Graph.Errors and the resource is left out.

# Ordering Guarantees

Requests are coalesced through a one-slot wakeup channel: while a build
runs, any number of Request calls collapse into one pending snapshot.
Deltas are always computed against the last snapshot that built
successfully, never against the last one requested. Therefore:

  - a skipped intermediate snapshot loses no change, since its changes are
    part of the diff between the last built and the newest snapshot
  - a failed build does not advance the baseline, so the next attempt
    diffs against the last good snapshot again
  - the requested and processed counters only grow; Processed catches
    up with Requested once the newest request has been handled

# Usage Examples

## One-shot build

	p := reconciler.NewPipeline(reconciler.PipelineConfig{
		CacheEnabled: true,
		Render:       render.DefaultOptions(),
	})

	b, err := p.Build(snap, ingest.Diff(nil, snap))
	if err != nil {
		return err
	}
	fmt.Println(b.Generation, b.Kind, len(b.Graph.Errors))

## Driven by a watcher

	rec := reconciler.NewReconciler(p, reconciler.Options{
		Store:     store,
		Broker:    broker,
		Publisher: publisher,
	})
	go rec.Run(ctx)

	watcher := ingest.NewWatcher(dir, 0, func(snap *types.Snapshot, err error) {
		if err == nil {
			rec.Request(snap)
		}
	})

# Monitoring Metrics

  - edgeplane_builds_total{kind,result}
  - edgeplane_build_duration_seconds{phase}: total, compile, render
  - edgeplane_build_generation
  - edgeplane_compile_errors
  - edgeplane_cache_resets_total{reason}: complete, failure
  - edgeplane_cache_invalidations_total

The pipeline health component turns healthy after the first successful
build, which gates /ready.

# Troubleshooting

## Every build is complete

Check the Reason of /debug/build. "caching disabled" means cache_enabled
is off; "has global effect" names the TLSContext or Module delta that
forced it. Frequent "retry after cache coherency error" points at a
compiler bug and is logged at warn with the offending key.

## Configuration does not change after an edit

/debug/status shows Requested ahead of Processed while a build runs. A
LastError means the build failed and the previous configuration is still
served; /debug/errors lists resource errors of the last good build.

# See Also

  - pkg/classifier for the complete versus incremental decision
  - pkg/ir and pkg/render for the compile and render phases
  - pkg/xds for the Publisher implementation
*/
package reconciler
