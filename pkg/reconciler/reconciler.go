package reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/cuemby/edgeplane/pkg/classifier"
	"github.com/cuemby/edgeplane/pkg/events"
	"github.com/cuemby/edgeplane/pkg/ingest"
	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
	"github.com/cuemby/edgeplane/pkg/render"
	"github.com/cuemby/edgeplane/pkg/storage"
	"github.com/cuemby/edgeplane/pkg/types"
	"github.com/cuemby/edgeplane/pkg/xds"
)

// Publisher receives every successful build
type Publisher interface {
	Publish(ctx context.Context, generation uint64, cfg *render.Config) error
}

// Options wires the optional collaborators of a Reconciler
type Options struct {
	Store     storage.Store
	Broker    *events.Broker
	Publisher Publisher
}

// Status reports how far the reconciler has got
type Status struct {
	Requested uint64 `json:"requested"`
	Processed uint64 `json:"processed"`
	LastError string `json:"last_error,omitempty"`
}

// Reconciler drives the pipeline from a stream of snapshots. Requests
// are coalesced: while a build runs only the newest requested snapshot
// is kept, and it is diffed against the last snapshot that built, so no
// change is lost or applied out of order.
type Reconciler struct {
	pipeline *Pipeline
	opts     Options

	mu      sync.Mutex
	pending *types.Snapshot
	built   *types.Snapshot
	lastErr string

	requested atomic.Uint64
	processed atomic.Uint64
	notify    chan struct{}
	logger    zerolog.Logger
}

// NewReconciler creates a reconciler for p
func NewReconciler(p *Pipeline, opts Options) *Reconciler {
	return &Reconciler{
		pipeline: p,
		opts:     opts,
		notify:   make(chan struct{}, 1),
		logger:   log.WithComponent("reconciler"),
	}
}

// Request asks for snap to be built and returns the request generation
func (r *Reconciler) Request(snap *types.Snapshot) uint64 {
	r.mu.Lock()
	r.pending = snap
	gen := r.requested.Add(1)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
		// A wakeup is already queued and will pick up the newest snapshot.
	}
	return gen
}

// Run builds requested snapshots one at a time until ctx is done
func (r *Reconciler) Run(ctx context.Context) error {
	metrics.UpdateComponent(metrics.ComponentPipeline, r.pipeline.Latest() != nil, "waiting for first snapshot")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.notify:
			r.reconcile(ctx)
		}
	}
}

// Status returns the request counters and the last build error
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Requested: r.requested.Load(),
		Processed: r.processed.Load(),
		LastError: r.lastErr,
	}
}

// reconcile performs one build of the newest requested snapshot
func (r *Reconciler) reconcile(ctx context.Context) {
	r.mu.Lock()
	snap, built := r.pending, r.built
	r.pending = nil
	gen := r.requested.Load()
	r.mu.Unlock()

	if snap == nil {
		return
	}
	defer r.processed.Store(gen)

	deltas := ingest.Diff(built, snap)
	b, err := r.pipeline.Build(snap, deltas)
	if err != nil {
		r.failed(err)
		return
	}

	r.mu.Lock()
	r.built = snap
	r.lastErr = ""
	r.mu.Unlock()
	metrics.UpdateComponent(metrics.ComponentPipeline, true, fmt.Sprintf("generation %d", b.Generation))

	if b.Kind == classifier.Complete && r.pipeline.cfg.CacheEnabled {
		r.publishEvent(events.EventCacheReset, b.Generation, b.Reason)
	}
	r.persist(b)

	if r.opts.Publisher != nil {
		if err := r.opts.Publisher.Publish(ctx, b.Generation, b.Config); err != nil {
			r.logger.Error().Err(err).Uint64("generation", b.Generation).Msg("failed to publish build")
		}
	}

	ev := events.NewEvent(events.EventBuildCompleted, fmt.Sprintf("%s build with %d errors", b.Kind, len(b.Graph.Errors)))
	ev.Generation = b.Generation
	ev.Metadata = map[string]string{
		"kind":    string(b.Kind),
		"retried": fmt.Sprint(b.Retried),
	}
	r.emit(ev)
}

func (r *Reconciler) failed(err error) {
	r.mu.Lock()
	r.lastErr = err.Error()
	r.mu.Unlock()

	msg := "build failed, serving previous configuration"
	if r.pipeline.Latest() == nil {
		msg = "build failed, nothing to serve"
	}
	metrics.UpdateComponent(metrics.ComponentPipeline, r.pipeline.Latest() != nil, msg)

	r.publishEvent(events.EventBuildFailed, 0, err.Error())
	if r.pipeline.cfg.CacheEnabled {
		r.publishEvent(events.EventCacheReset, 0, "build failure")
	}
}

func (r *Reconciler) persist(b *Build) {
	if r.opts.Store == nil {
		return
	}
	rec, err := Record(b, r.pipeline.CacheLen())
	if err == nil {
		err = r.opts.Store.SaveBuild(rec)
	}
	if err != nil {
		r.logger.Error().Err(err).Uint64("generation", b.Generation).Msg("failed to persist build")
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		return
	}
	metrics.UpdateComponent(metrics.ComponentStorage, true, "ok")
}

func (r *Reconciler) publishEvent(t events.EventType, generation uint64, message string) {
	ev := events.NewEvent(t, message)
	ev.Generation = generation
	r.emit(ev)
}

func (r *Reconciler) emit(ev *events.Event) {
	if r.opts.Broker != nil {
		r.opts.Broker.Publish(ev)
	}
}

// Record converts a build into its persisted form
func Record(b *Build, cacheLen int) (*storage.BuildRecord, error) {
	version, err := xds.Version(b.Generation, b.Config)
	if err != nil {
		return nil, err
	}
	bootstrap, err := b.Config.BootstrapJSON()
	if err != nil {
		return nil, err
	}
	dynamic, err := b.Config.DynamicJSON()
	if err != nil {
		return nil, err
	}
	return &storage.BuildRecord{
		Generation:  b.Generation,
		Kind:        string(b.Kind),
		Reason:      b.Reason,
		Retried:     b.Retried,
		Version:     version,
		Resources:   b.Snapshot.Len(),
		CacheLen:    cacheLen,
		Errors:      b.Graph.Errors,
		DurationMS:  b.Duration.Milliseconds(),
		CompletedAt: b.CompletedAt,
		Bootstrap:   bootstrap,
		Dynamic:     dynamic,
	}, nil
}
