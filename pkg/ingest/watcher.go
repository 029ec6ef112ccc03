package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/types"
)

// DefaultDebounce is the quiet period before a burst of changes is loaded
const DefaultDebounce = 250 * time.Millisecond

// Handler receives each reloaded snapshot. A load error is passed on so
// the caller can keep serving its previous snapshot.
type Handler func(snap *types.Snapshot, err error)

// Watcher reloads a manifest directory whenever a manifest in it changes
type Watcher struct {
	dir     string
	window  time.Duration
	handler Handler
	logger  zerolog.Logger
}

// NewWatcher creates a watcher for dir. A non-positive window uses
// DefaultDebounce.
func NewWatcher(dir string, window time.Duration, handler Handler) *Watcher {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Watcher{
		dir:     dir,
		window:  window,
		handler: handler,
		logger:  log.WithComponent("watcher"),
	}
}

// Run watches until ctx is done. The directory is loaded once before
// the first event. Every reload runs on the calling goroutine, so the
// handler sees snapshots strictly in load order.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	// A queued reload reads the directory when it runs, so one pending
	// signal covers any number of bursts.
	reloads := make(chan struct{}, 1)
	debouncer := NewDebouncer(w.window, func(paths []string) {
		w.logger.Debug().Strs("paths", paths).Msg("manifests changed")
		select {
		case reloads <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	w.reload()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reloads:
			w.reload()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if relevant(event) {
				debouncer.Add(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("file system watch error")
		}
	}
}

func (w *Watcher) reload() {
	snap, err := LoadDir(w.dir)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to load manifests")
	}
	w.handler(snap, err)
}

// relevant filters out chmod-only events and non-manifest files
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return IsManifest(filepath.Base(event.Name))
}
