package reconciler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/classifier"
	"github.com/cuemby/edgeplane/pkg/ingest"
	"github.com/cuemby/edgeplane/pkg/ir"
	"github.com/cuemby/edgeplane/pkg/render"
	"github.com/cuemby/edgeplane/pkg/testutil"
	"github.com/cuemby/edgeplane/pkg/types"
)

func newPipeline(cacheEnabled bool) *Pipeline {
	return NewPipeline(PipelineConfig{CacheEnabled: cacheEnabled, Render: render.DefaultOptions()})
}

// buildAll runs each snapshot through p, diffing against the previous one
func buildAll(t *testing.T, p *Pipeline, snaps ...*types.Snapshot) *Build {
	t.Helper()
	var (
		prev *types.Snapshot
		b    *Build
		err  error
	)
	for _, s := range snaps {
		b, err = p.Build(s, ingest.Diff(prev, s))
		require.NoError(t, err)
		prev = s
	}
	return b
}

func history() []*types.Snapshot {
	base := types.NewSnapshot(
		testutil.Mapping("a", "/w/", "svc-a", testutil.WithWeight(25)),
		testutil.Mapping("b", "/w/", "svc-b"),
		testutil.Mapping("c", "/c/", "svc-c", testutil.WithHost("c.example.com")),
		testutil.TCPMapping("db", 5432, "postgres"),
	)

	s2 := base.Clone()
	s2.Upsert(testutil.Mapping("b", "/w/", "svc-b", testutil.WithWeight(50)))

	s3 := s2.Clone()
	s3.Upsert(testutil.Module("edge", types.ModuleSpec{RouteTimeoutMS: 1000}))

	s4 := s3.Clone()
	s4.Delete(testutil.Mapping("c", "", "").Identity())
	s4.Upsert(testutil.Mapping("d", "/d/", "svc-a"))

	s5 := s4.Clone()
	s5.Upsert(testutil.Mapping("bad", "/x/", "svc", testutil.WithWeight(200)))
	return []*types.Snapshot{base, s2, s3, s4, s5}
}

func TestIncrementalMatchesComplete(t *testing.T) {
	cached := newPipeline(true)
	var prev *types.Snapshot

	for i, snap := range history() {
		b, err := cached.Build(snap, ingest.Diff(prev, snap))
		require.NoError(t, err)

		fresh, err := newPipeline(false).Build(snap, nil)
		require.NoError(t, err)

		assert.True(t, b.Config.Equal(fresh.Config), "step %d", i)
		assert.Equal(t, fresh.Graph.Errors, b.Graph.Errors, "step %d", i)
		prev = snap
	}
}

func TestBuildKinds(t *testing.T) {
	p := newPipeline(true)
	snaps := history()

	b := buildAll(t, p, snaps[0])
	assert.Equal(t, classifier.Incremental, b.Kind)
	assert.Equal(t, uint64(1), b.Generation)

	b = buildAll(t, p, snaps[0], snaps[1])
	assert.Equal(t, classifier.Incremental, b.Kind)
	assert.Positive(t, b.Compile.MappingsReused)

	b, err := p.Build(snaps[2], ingest.Diff(snaps[1], snaps[2]))
	require.NoError(t, err)
	assert.Equal(t, classifier.Complete, b.Kind)
	assert.Contains(t, b.Reason, "Module")
	assert.Zero(t, b.Compile.MappingsReused)

	assert.Same(t, b, p.Latest())
	assert.Same(t, snaps[2], p.CurrentSnapshot())
}

func TestCacheDisabledAlwaysComplete(t *testing.T) {
	p := newPipeline(false)
	b := buildAll(t, p, history()[:2]...)

	assert.Equal(t, classifier.Complete, b.Kind)
	assert.Equal(t, "caching disabled", b.Reason)
	assert.Zero(t, p.CacheLen())
}

func TestCoherencyErrorRetriesComplete(t *testing.T) {
	p := newPipeline(true)
	snap := types.NewSnapshot(testutil.Mapping("a", "/a/", "svc-a"))
	first := buildAll(t, p, snap)

	next := snap.Clone()
	next.Upsert(testutil.Mapping("a", "/a/", "svc-b"))

	// A stale fragment under the key the new cluster renders to.
	clusterKey := ir.ClusterID{Service: "svc-b", Namespace: types.DefaultNamespace}.Key()
	require.NoError(t, p.store.Put(cache.FragmentKey("cluster", clusterKey), "stale"))

	b, err := p.Build(next, ingest.Diff(snap, next))
	require.NoError(t, err)
	assert.True(t, b.Retried)
	assert.Equal(t, classifier.Complete, b.Kind)
	assert.Equal(t, first.Generation+1, b.Generation)

	fresh, err := newPipeline(false).Build(next, nil)
	require.NoError(t, err)
	assert.True(t, b.Config.Equal(fresh.Config))
}

func TestFailureKeepsLatest(t *testing.T) {
	p := newPipeline(true)
	snaps := history()
	good := buildAll(t, p, snaps[0])
	require.NotZero(t, p.CacheLen())

	p.cfg.Render.NodeID = ""
	_, err := p.Build(snaps[1], ingest.Diff(snaps[0], snaps[1]))
	require.Error(t, err)

	assert.Same(t, good, p.Latest())
	assert.Zero(t, p.CacheLen(), "failed build resets the cache")

	p.cfg.Render.NodeID = "edge-proxy"
	b, err := p.Build(snaps[1], ingest.Diff(snaps[0], snaps[1]))
	require.NoError(t, err)
	assert.Equal(t, good.Generation+1, b.Generation)
}

func TestPipelineInvalidate(t *testing.T) {
	p := newPipeline(true)
	snap := types.NewSnapshot(testutil.Mapping("a", "/a/", "svc-a"))
	buildAll(t, p, snap)

	clusterKey := ir.ClusterID{Service: "svc-a", Namespace: types.DefaultNamespace}.Key()
	removed := p.Invalidate(clusterKey)
	assert.Equal(t, []cache.Key{clusterKey, cache.FragmentKey("cluster", clusterKey)}, removed)

	b, err := p.Build(snap, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Compile.ClustersCompiled)
	assert.Equal(t, 1, b.Compile.MappingsReused)

	var keys []cache.Key
	for _, e := range p.CacheDump() {
		keys = append(keys, e.Key)
	}
	assert.Contains(t, keys, clusterKey)
}

func TestLatestDuringBuild(t *testing.T) {
	p := newPipeline(true)
	snaps := history()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if b := p.Latest(); b != nil {
				_ = b.Config.Clusters
				_ = p.CacheDump()
			}
		}
	}()

	buildAll(t, p, snaps...)
	close(stop)
	wg.Wait()
	assert.Equal(t, uint64(len(snaps)), p.Latest().Generation)
}
