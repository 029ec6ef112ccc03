package reconciler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/classifier"
	"github.com/cuemby/edgeplane/pkg/ir"
	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
	"github.com/cuemby/edgeplane/pkg/render"
	"github.com/cuemby/edgeplane/pkg/types"
)

// Build is the immutable result of one successful compile and render
type Build struct {
	Generation  uint64          `json:"generation"`
	Kind        classifier.Kind `json:"kind"`
	Reason      string          `json:"reason,omitempty"`
	Retried     bool            `json:"retried,omitempty"`
	Snapshot    *types.Snapshot `json:"-"`
	Graph       *ir.Graph       `json:"-"`
	Config      *render.Config  `json:"-"`
	Compile     ir.Stats        `json:"compile"`
	Render      render.Stats    `json:"render"`
	Duration    time.Duration   `json:"duration"`
	CompletedAt time.Time       `json:"completed_at"`
}

// PipelineConfig configures a Pipeline
type PipelineConfig struct {
	// CacheEnabled turns incremental builds on. Without it every build
	// is complete and nothing is cached.
	CacheEnabled bool
	Render       render.Options
}

// Pipeline runs classify, compile and render against one cache. Builds
// are serialized; Latest may be read at any time and always returns a
// fully formed Build.
type Pipeline struct {
	mu         sync.Mutex
	store      *cache.Cache
	cfg        PipelineConfig
	generation uint64
	latest     atomic.Pointer[Build]
	logger     zerolog.Logger
}

// NewPipeline creates a pipeline with an empty cache
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		store:  cache.New(),
		cfg:    cfg,
		logger: log.WithComponent("pipeline"),
	}
}

// Build compiles and renders snap. deltas describe how snap differs from
// the snapshot of the previous successful build. On failure the cache is
// reset and Latest keeps returning the previous build.
func (p *Pipeline) Build(snap *types.Snapshot, deltas []types.Delta) (*Build, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	timer := metrics.NewTimer()
	plan := classifier.Classify(deltas, p.cfg.CacheEnabled)
	logger := log.WithGeneration(p.logger, p.generation+1)

	b, err := p.run(snap, plan)
	if err != nil && cache.IsCoherencyError(err) && !plan.IsComplete() {
		logger.Warn().Err(err).Msg("cache coherency violated, retrying as complete build")
		plan = classifier.Plan{Kind: classifier.Complete, Reason: "retry after cache coherency error"}
		b, err = p.run(snap, plan)
		if b != nil {
			b.Retried = true
		}
	}

	if err != nil {
		p.reset("failure")
		metrics.BuildsTotal.WithLabelValues(string(plan.Kind), "failure").Inc()
		logger.Error().Err(err).Str("kind", string(plan.Kind)).Msg("build failed")
		return nil, err
	}

	p.generation++
	b.Generation = p.generation
	b.Duration = timer.Duration()
	b.CompletedAt = time.Now()
	p.latest.Store(b)

	timer.ObserveDurationVec(metrics.BuildDuration, "total")
	metrics.BuildsTotal.WithLabelValues(string(b.Kind), "success").Inc()
	metrics.BuildGeneration.Set(float64(b.Generation))
	metrics.CompileErrors.Set(float64(len(b.Graph.Errors)))
	metrics.CacheEntries.Set(float64(p.store.Len()))

	logger.Info().
		Str("kind", string(b.Kind)).
		Str("reason", b.Reason).
		Int("invalidated", b.Compile.Invalidated).
		Int("errors", len(b.Graph.Errors)).
		Int("fragments_reused", b.Render.FragmentsReused).
		Dur("duration", b.Duration).
		Msg("build completed")
	return b, nil
}

func (p *Pipeline) run(snap *types.Snapshot, plan classifier.Plan) (*Build, error) {
	var store *cache.Cache
	if p.cfg.CacheEnabled {
		store = p.store
		if plan.IsComplete() {
			p.reset("complete")
		}
	}

	compileTimer := metrics.NewTimer()
	graph, cstats, err := ir.Compile(snap, store, plan.Invalidate)
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}
	compileTimer.ObserveDurationVec(metrics.BuildDuration, "compile")
	metrics.CacheInvalidations.Add(float64(cstats.Invalidated + cstats.Swept))

	renderTimer := metrics.NewTimer()
	cfg, rstats, err := render.Render(graph, store, p.cfg.Render)
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}
	renderTimer.ObserveDurationVec(metrics.BuildDuration, "render")

	return &Build{
		Kind:     plan.Kind,
		Reason:   plan.Reason,
		Snapshot: snap,
		Graph:    graph,
		Config:   cfg,
		Compile:  cstats,
		Render:   rstats,
	}, nil
}

func (p *Pipeline) reset(reason string) {
	if p.store.Len() == 0 {
		return
	}
	p.store.Reset()
	metrics.CacheResets.WithLabelValues(reason).Inc()
	p.logger.Debug().Str("reason", reason).Msg("cache reset")
}

// Latest returns the last successful build, or nil before the first one
func (p *Pipeline) Latest() *Build {
	return p.latest.Load()
}

// Invalidate drops key and everything it owns from the cache. The next
// build recompiles the affected artifacts.
func (p *Pipeline) Invalidate(key cache.Key) []cache.Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := p.store.Invalidate(key)
	metrics.CacheInvalidations.Add(float64(len(removed)))
	return removed
}

// CacheDump returns the current cache link graph
func (p *Pipeline) CacheDump() []cache.DumpEntry {
	return p.store.Dump()
}

// CacheLen returns the number of cached artifacts
func (p *Pipeline) CacheLen() int {
	return p.store.Len()
}

// CurrentSnapshot returns the snapshot of the last successful build
func (p *Pipeline) CurrentSnapshot() *types.Snapshot {
	if b := p.latest.Load(); b != nil {
		return b.Snapshot
	}
	return nil
}
