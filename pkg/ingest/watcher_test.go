package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/edgeplane/pkg/types"
)

func TestDebouncerCoalesces(t *testing.T) {
	var (
		mu    sync.Mutex
		calls [][]string
	)
	d := NewDebouncer(30*time.Millisecond, func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, paths)
	})

	d.Add("a.yaml")
	d.Add("b.yaml")
	d.Add("a.yaml")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a.yaml", "b.yaml"}, calls[0])
}

func TestDebouncerFlushAndStop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour, func([]string) { calls.Add(1) })

	d.Add("a.yaml")
	d.Flush()
	assert.Equal(t, int32(1), calls.Load())

	d.Add("b.yaml")
	d.Stop()
	d.Flush()
	assert.Equal(t, int32(1), calls.Load(), "stopped debouncer drops pending paths")
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kind: Mapping\nmetadata: {name: a}\nspec: {prefix: /a/, service: a}\n"), 0o644))

	snaps := make(chan *types.Snapshot, 10)
	w := NewWatcher(dir, 20*time.Millisecond, func(snap *types.Snapshot, err error) {
		if err == nil {
			snaps <- snap
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	first := <-snaps
	assert.Equal(t, 1, first.Len())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "more.yaml"), []byte("kind: Mapping\nmetadata: {name: b}\nspec: {prefix: /b/, service: b}\n"), 0o644))

	select {
	case snap := <-snaps:
		assert.Equal(t, 2, snap.Len())
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcherReloadsInOrder(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		t.Helper()
		doc := "kind: Mapping\nmetadata: {name: " + name + "}\nspec: {prefix: /" + name + "/, service: " + name + "}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(doc), 0o644))
	}
	write("a")

	var (
		active  atomic.Int32
		overlap atomic.Bool
		slowed  atomic.Bool
	)
	started := make(chan struct{})
	snaps := make(chan int, 32)

	w := NewWatcher(dir, 20*time.Millisecond, func(snap *types.Snapshot, err error) {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)
		if err != nil {
			return
		}
		if snap.Len() == 2 && slowed.CompareAndSwap(false, true) {
			close(started)
			time.Sleep(150 * time.Millisecond)
		}
		snaps <- snap.Len()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Equal(t, 1, <-snaps)

	write("b")
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after first write")
	}
	// Lands while the previous reload is still being handled.
	write("c")

	deadline := time.After(5 * time.Second)
	last := 0
	for last != 3 {
		select {
		case n := <-snaps:
			assert.GreaterOrEqual(t, n, last, "snapshots must not go back in time")
			last = n
		case <-deadline:
			t.Fatalf("newest snapshot never delivered, last had %d resources", last)
		}
	}

	// Nothing older may follow the newest snapshot.
	settle := time.After(100 * time.Millisecond)
	for waiting := true; waiting; {
		select {
		case n := <-snaps:
			assert.Equal(t, 3, n)
		case <-settle:
			waiting = false
		}
	}

	cancel()
	assert.NoError(t, <-done)
	assert.False(t, overlap.Load(), "handler calls overlapped")
}
