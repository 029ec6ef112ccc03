/*
Package log provides structured logging for edgeplane using zerolog.

The package owns a single global zerolog.Logger that every other package
derives component loggers from. Until Init is called the logger discards
everything, which keeps library use and tests quiet.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Level filters messages below the threshold (debug, info, warn, error); an
unknown level falls back to info, and config validation rejects it first.
JSONOutput selects newline-delimited JSON, otherwise a human readable
console writer is used. Output defaults to stderr so that commands which
print configuration to stdout stay pipe friendly.

JSON output:

	{"level":"info","component":"pipeline","generation":4,"kind":"incremental","time":"2026-10-14T09:12:44Z","message":"build completed"}

Console output:

	09:12:44 INF build completed component=pipeline generation=4 kind=incremental

# Context Loggers

Each long-lived component takes a child logger once at construction:

	logger := log.WithComponent("compiler")
	logger = log.WithGeneration(logger, build.Generation)
	logger.Debug().Str("cluster", name).Msg("cluster reused")

Helpers return a value, and zerolog event methods take a pointer, so bind
the result before logging:

	logger := log.WithResource(c.logger, id.String())
	logger.Warn().Msg("invalid mapping")

Common fields:

  - component: api, cache, compiler, events, ingest, pipeline,
    reconciler, renderer, serve, watcher, xds
  - generation: monotonically increasing build number
  - resource: canonical resource key (kind/namespace/name@apiVersion)

# Levels

Per-entry cache decisions (reuse, miss, invalidation) log at debug.
Build summaries log at info. Resource compile errors and coherency
violations that force a complete retry log at warn; the build goes on.
Skipped manifests and failed builds log at error.
*/
package log
