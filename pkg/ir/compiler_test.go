package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/testutil"
	"github.com/cuemby/edgeplane/pkg/types"
)

// changed returns the identities updated or deleted between two snapshots
func changed(prev, next *types.Snapshot) []types.ResourceIdentity {
	var out []types.ResourceIdentity
	for _, id := range prev.Identities() {
		old, _ := prev.Get(id)
		cur, ok := next.Get(id)
		if !ok || cur != old {
			out = append(out, id)
		}
	}
	return out
}

func compileFresh(t *testing.T, snap *types.Snapshot) *Graph {
	t.Helper()
	g, _, err := Compile(snap, nil, nil)
	require.NoError(t, err)
	return g
}

// compileSequence compiles each snapshot in turn against one store
func compileSequence(t *testing.T, store *cache.Cache, snaps ...*types.Snapshot) (*Graph, Stats) {
	t.Helper()
	var (
		prev  *types.Snapshot
		graph *Graph
		stats Stats
		err   error
	)
	for _, s := range snaps {
		graph, stats, err = Compile(s, store, changed(prev, s))
		require.NoError(t, err)
		prev = s
	}
	return graph, stats
}

func TestCompileSingleMapping(t *testing.T) {
	snap := types.NewSnapshot(testutil.Mapping("mapping-a", "/foo/", "svcX"))

	g := compileFresh(t, snap)

	require.Len(t, g.Mappings, 1)
	require.Len(t, g.Clusters, 1)
	require.Len(t, g.Groups, 1)
	assert.Empty(t, g.Errors)

	m := g.Mappings[0]
	assert.Equal(t, cache.Key("resource:Mapping/default/mapping-a@getambassador.io/v3alpha1"), m.Key)
	assert.Equal(t, DefaultRouteTimeoutMS, m.TimeoutMS)
	assert.Equal(t, "cluster_svcX_default", g.Clusters[0].Name)
	assert.Equal(t, "svcx", g.Clusters[0].Host)
	assert.Equal(t, 80, g.Clusters[0].Port)
	assert.Equal(t, 100, g.Groups[0].Members[0].Threshold)
	assert.Equal(t, map[string]string{"svcX|default|": "cluster_svcX_default"}, g.ClusterMap())
}

func TestCompileReusesCache(t *testing.T) {
	snap := types.NewSnapshot(
		testutil.Mapping("a", "/a/", "svc-a"),
		testutil.Mapping("b", "/b/", "svc-b"),
		testutil.TCPMapping("db", 5432, "postgres:5432"),
	)
	store := cache.New()

	first, stats, err := Compile(snap, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MappingsCompiled)
	assert.Equal(t, 1, stats.TCPMappingsCompiled)
	assert.Equal(t, 3, stats.ClustersCompiled)
	assert.Equal(t, 2, stats.GroupsCompiled)

	second, stats, err := Compile(snap, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MappingsReused)
	assert.Equal(t, 1, stats.TCPMappingsReused)
	assert.Equal(t, 3, stats.ClustersReused)
	assert.Equal(t, 2, stats.GroupsReused)
	assert.Zero(t, stats.MappingsCompiled+stats.ClustersCompiled+stats.GroupsCompiled)

	assert.Equal(t, first, second)
	assert.Equal(t, compileFresh(t, snap), second)
}

func TestCompileEndToEndUpdate(t *testing.T) {
	s1 := types.NewSnapshot(testutil.Mapping("mapping-a", "/foo/", "svcX"))
	s2 := types.NewSnapshot(testutil.Mapping("mapping-a", "/foo/", "svcY"))
	store := cache.New()

	cached, _ := compileSequence(t, store, s1)
	assert.Equal(t, compileFresh(t, s1), cached)

	updated, _ := compileSequence(t, store, s1, s2)
	assert.Equal(t, compileFresh(t, s2), updated)
	assert.Equal(t, "svcY", updated.Mappings[0].Service)
	assert.Equal(t, "cluster_svcY_default", updated.Clusters[0].Name)

	_, stillCached := store.Get(ClusterID{Service: "svcX", Namespace: "default"}.Key())
	assert.False(t, stillCached, "cluster of the old service is invalidated with its only owner")

	// Invalidating the mapping directly recompiles it to the same result.
	removed := store.Invalidate(updated.Mappings[0].Key)
	assert.Contains(t, removed, updated.Mappings[0].Key)

	direct, stats, err := Compile(s2, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MappingsCompiled)
	assert.Equal(t, 1, stats.GroupsCompiled, "fresh member recompiles its group")
	assert.Equal(t, updated, direct)
}

func TestCompileSharedCluster(t *testing.T) {
	a := testutil.Mapping("a", "/a/", "shared")
	b := testutil.Mapping("b", "/b/", "shared")
	s1 := types.NewSnapshot(a, b)
	store := cache.New()

	_, stats := compileSequence(t, store, s1)
	assert.Equal(t, 1, stats.ClustersCompiled)

	clusterKey := ClusterID{Service: "shared", Namespace: "default"}.Key()
	assert.ElementsMatch(t, []cache.Key{cache.ResourceKey(a.Identity()), cache.ResourceKey(b.Identity())}, store.Owners(clusterKey))

	a2 := testutil.Mapping("a", "/a2/", "shared")
	s2 := types.NewSnapshot(a2, b)
	g, stats := compileSequence(t, store, s1, s2)
	assert.Equal(t, 1, stats.ClustersReused, "cluster still owned by b survives a's invalidation")
	assert.Zero(t, stats.ClustersCompiled)
	assert.Equal(t, compileFresh(t, s2), g)

	// Dropping a2 leaves b as the only owner.
	_, _ = compileSequence(t, store, s2, types.NewSnapshot(b))
	_, ok := store.Get(clusterKey)
	assert.True(t, ok)
	assert.Equal(t, []cache.Key{cache.ResourceKey(b.Identity())}, store.Owners(clusterKey))
}

func TestCompileClusterInvalidatedAlone(t *testing.T) {
	m := testutil.Mapping("a", "/a/", "svc")
	snap := types.NewSnapshot(m)
	store := cache.New()

	before, _ := compileSequence(t, store, snap)

	clusterKey := ClusterID{Service: "svc", Namespace: "default"}.Key()
	assert.Equal(t, []cache.Key{clusterKey}, store.Invalidate(clusterKey))

	after, stats, err := Compile(snap, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MappingsReused)
	assert.Equal(t, 1, stats.ClustersCompiled)
	assert.Equal(t, before, after)
	assert.Equal(t, []cache.Key{cache.ResourceKey(m.Identity())}, store.Owners(clusterKey))
}

func TestCompilePartialFailure(t *testing.T) {
	snap := types.NewSnapshot(
		testutil.Mapping("good-1", "/one/", "svc-1"),
		testutil.Mapping("bad", "/bad/", "svc:notaport"),
		testutil.Mapping("good-2", "/two/", "svc-2"),
		testutil.Mapping("good-3", "/three/", "svc-3"),
	)

	for _, store := range []*cache.Cache{nil, cache.New()} {
		g, _, err := Compile(snap, store, nil)
		require.NoError(t, err)

		require.Len(t, g.Errors, 1)
		assert.Equal(t, GlobalScope, g.Errors[0].Scope)
		assert.Equal(t, "Mapping/default/bad@getambassador.io/v3alpha1", g.Errors[0].Resource)
		assert.Contains(t, g.Errors[0].Message, "invalid port")
		assert.Len(t, g.Mappings, 3)
		assert.Len(t, g.Clusters, 3)
	}
}

func TestCompileMalformedMappings(t *testing.T) {
	tests := []struct {
		name    string
		mapping *types.Mapping
		message string
	}{
		{"missing prefix", testutil.Mapping("m", "", "svc"), "prefix is required"},
		{"relative prefix", testutil.Mapping("m", "api/", "svc"), "must start with /"},
		{"missing service", testutil.Mapping("m", "/", ""), "service is empty"},
		{"weight too high", testutil.Mapping("m", "/", "svc", testutil.WithWeight(101)), "out of range"},
		{"negative weight", testutil.Mapping("m", "/", "svc", testutil.WithWeight(-1)), "out of range"},
		{"negative timeout", testutil.Mapping("m", "/", "svc", testutil.WithTimeout(-5)), "timeout_ms"},
		{"unknown tls", testutil.Mapping("m", "/", "svc", testutil.WithTLS("nope")), "unknown TLSContext"},
		{"bad method", testutil.Mapping("m", "/", "svc", testutil.WithMethod("GET1")), "invalid method"},
		{"empty header", testutil.Mapping("m", "/", "svc", testutil.WithHeader(" ", "x")), "header name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := cache.New()
			g, _, err := Compile(types.NewSnapshot(tt.mapping), store, nil)
			require.NoError(t, err)

			require.Len(t, g.Errors, 1)
			assert.Contains(t, g.Errors[0].Message, tt.message)
			assert.Empty(t, g.Mappings)
			assert.Empty(t, store.KeysWithPrefix(cache.ResourcePrefix), "malformed resources are never cached")
		})
	}
}

func TestGroupWeights(t *testing.T) {
	tests := []struct {
		name       string
		members    []*types.Mapping
		thresholds []int
		errMsg     string
	}{
		{
			name:       "single member closes at 100",
			members:    []*types.Mapping{testutil.Mapping("a", "/w/", "svc-a", testutil.WithWeight(10))},
			thresholds: []int{100},
		},
		{
			name: "even split",
			members: []*types.Mapping{
				testutil.Mapping("c", "/w/", "svc-c"),
				testutil.Mapping("a", "/w/", "svc-a"),
				testutil.Mapping("b", "/w/", "svc-b"),
			},
			thresholds: []int{33, 66, 100},
		},
		{
			name: "explicit and remainder",
			members: []*types.Mapping{
				testutil.Mapping("a", "/w/", "svc-a", testutil.WithWeight(30)),
				testutil.Mapping("b", "/w/", "svc-b"),
				testutil.Mapping("c", "/w/", "svc-c"),
			},
			thresholds: []int{30, 65, 100},
		},
		{
			name: "explicit under 100",
			members: []*types.Mapping{
				testutil.Mapping("a", "/w/", "svc-a", testutil.WithWeight(20)),
				testutil.Mapping("b", "/w/", "svc-b", testutil.WithWeight(20)),
			},
			thresholds: []int{20, 100},
		},
		{
			name: "zero weight member",
			members: []*types.Mapping{
				testutil.Mapping("a", "/w/", "svc-a", testutil.WithWeight(0)),
				testutil.Mapping("b", "/w/", "svc-b"),
			},
			thresholds: []int{0, 100},
		},
		{
			name: "explicit over 100",
			members: []*types.Mapping{
				testutil.Mapping("a", "/w/", "svc-a", testutil.WithWeight(60)),
				testutil.Mapping("b", "/w/", "svc-b", testutil.WithWeight(50)),
			},
			errMsg: "sum to 110",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resources := make([]types.Resource, len(tt.members))
			for i, m := range tt.members {
				resources[i] = m
			}
			g := compileFresh(t, types.NewSnapshot(resources...))

			if tt.errMsg != "" {
				require.Len(t, g.Errors, 1)
				assert.Contains(t, g.Errors[0].Message, tt.errMsg)
				assert.True(t, strings.HasPrefix(g.Errors[0].Resource, cache.GroupPrefix))
				assert.Empty(t, g.Groups)
				assert.Empty(t, g.Mappings)
				return
			}

			require.Len(t, g.Groups, 1)
			var got []int
			var services []string
			for _, m := range g.Groups[0].Members {
				got = append(got, m.Threshold)
				services = append(services, m.Service)
			}
			assert.Equal(t, tt.thresholds, got)
			assert.IsIncreasing(t, services)
		})
	}
}

func TestGroupAtomicity(t *testing.T) {
	a := testutil.Mapping("a", "/w/", "svc-a", testutil.WithWeight(50))
	b := testutil.Mapping("b", "/w/", "svc-b")
	c := testutil.Mapping("c", "/w/", "svc-c")
	other := testutil.Mapping("other", "/other/", "svc-o")
	s1 := types.NewSnapshot(a, b, c, other)

	store := cache.New()
	g1, _ := compileSequence(t, store, s1)
	require.Len(t, g1.Groups, 2)

	// Changing an unrelated mapping leaves the weighted group cached.
	other2 := testutil.Mapping("other", "/other/", "svc-o2")
	s2 := types.NewSnapshot(a, b, c, other2)
	_, stats := compileSequence(t, store, s1, s2)
	assert.Equal(t, 1, stats.GroupsReused)
	assert.Equal(t, 1, stats.GroupsCompiled)

	// Changing one member's weight recomputes every threshold.
	a2 := testutil.Mapping("a", "/w/", "svc-a", testutil.WithWeight(10))
	s3 := types.NewSnapshot(a2, b, c, other2)
	g3, stats := compileSequence(t, store, s2, s3)
	assert.Equal(t, 1, stats.GroupsCompiled)
	assert.Equal(t, 1, stats.GroupsReused)
	assert.Equal(t, compileFresh(t, s3), g3)

	weighted := findGroup(t, g3, "/w/")
	assert.Equal(t, []int{10, 55, 100}, thresholds(weighted))

	// Removing a member changes the member list.
	s4 := types.NewSnapshot(a2, c, other2)
	g4, stats := compileSequence(t, store, s3, s4)
	assert.Equal(t, 1, stats.GroupsCompiled)
	assert.Equal(t, []int{10, 100}, thresholds(findGroup(t, g4, "/w/")))
	assert.Equal(t, compileFresh(t, s4), g4)
}

func TestGroupReplacedWhenMemberListChanges(t *testing.T) {
	a := testutil.Mapping("a", "/w/", "svc-a")
	b := testutil.Mapping("b", "/w/", "svc-b")
	store := cache.New()

	_, _ = compileSequence(t, store, types.NewSnapshot(a, b))
	groupKey := store.KeysWithPrefix(cache.GroupPrefix)
	require.Len(t, groupKey, 1)

	// Deleting b without a delta still yields a new member list.
	g, stats, err := Compile(types.NewSnapshot(a), store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GroupsCompiled)
	assert.Equal(t, 2, stats.Swept, "b and its cluster are swept")
	assert.Equal(t, compileFresh(t, types.NewSnapshot(a)), g)
}

func TestOrderIndependence(t *testing.T) {
	a := testutil.Mapping("a", "/a/", "svc-a")
	a2 := testutil.Mapping("a", "/a/", "svc-a2", testutil.WithWeight(40))
	b := testutil.Mapping("b", "/a/", "svc-b")
	c := testutil.Mapping("c", "/c/", "svc-c")
	d := testutil.TCPMapping("d", 9000, "redis:6379")

	final := types.NewSnapshot(a2, b, d)
	want := compileFresh(t, final)

	sequences := map[string][]*types.Snapshot{
		"direct": {final},
		"grow": {
			types.NewSnapshot(a),
			types.NewSnapshot(a, b),
			types.NewSnapshot(a, b, c),
			types.NewSnapshot(a2, b, c, d),
			final,
		},
		"reverse": {
			types.NewSnapshot(d, c),
			types.NewSnapshot(d, c, b),
			types.NewSnapshot(d, b, a2),
			final,
		},
		"churn": {
			types.NewSnapshot(b),
			types.NewSnapshot(a, c),
			types.NewSnapshot(a2, c, d),
			types.NewSnapshot(a2, b, c, d),
			final,
		},
	}

	for name, snaps := range sequences {
		t.Run(name, func(t *testing.T) {
			got, _ := compileSequence(t, cache.New(), snaps...)
			assert.Equal(t, want, got)
		})
	}
}

func TestLongServiceNameStable(t *testing.T) {
	service := strings.Repeat("very-long-service-name.", 4) + "svc.cluster.local"
	snap := types.NewSnapshot(testutil.Mapping("long", "/long/", service))
	store := cache.New()

	fromScratch := compileFresh(t, snap)
	first, _ := compileSequence(t, store, snap)
	fromCache, stats, err := Compile(snap, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ClustersReused)

	name := fromScratch.Clusters[0].Name
	assert.Len(t, name, MaxClusterNameLength)
	assert.Equal(t, name, first.Clusters[0].Name)
	assert.Equal(t, name, fromCache.Clusters[0].Name)
	assert.Equal(t, name, fromCache.Groups[0].Members[0].ClusterName)
}

func TestClusterNameCollision(t *testing.T) {
	snap := types.NewSnapshot(
		testutil.Mapping("dotted", "/dot/", "a.b"),
		testutil.Mapping("dashed", "/dash/", "a-b"),
	)

	for _, store := range []*cache.Cache{nil, cache.New()} {
		g, _, err := Compile(snap, store, nil)
		require.NoError(t, err)

		require.Len(t, g.Errors, 1)
		assert.Equal(t, "Mapping/default/dotted@getambassador.io/v3alpha1", g.Errors[0].Resource)
		require.Len(t, g.Mappings, 1)
		assert.Equal(t, "dashed", g.Mappings[0].Name)
		require.Len(t, g.Clusters, 1)
		assert.Equal(t, "cluster_a_b_default", g.Clusters[0].Name)
	}
}

func TestClusterNameIgnoresExcludedOwners(t *testing.T) {
	// The TCPMapping loses its port to the HTTP listener, so its cluster
	// is never rendered and must not claim the shared name.
	snap := types.NewSnapshot(
		testutil.TCPMapping("t", 8080, "svc-2"),
		testutil.Mapping("m", "/m/", "svc.2"),
	)

	for _, store := range []*cache.Cache{nil, cache.New()} {
		g, _, err := Compile(snap, store, nil)
		require.NoError(t, err)

		require.Len(t, g.Errors, 1)
		assert.Contains(t, g.Errors[0].Message, "8080")
		assert.Empty(t, g.TCPMappings)
		require.Len(t, g.Mappings, 1)
		assert.Equal(t, "m", g.Mappings[0].Name)
		require.Len(t, g.Clusters, 1)
		assert.Equal(t, "cluster_svc_2_default", g.Clusters[0].Name)
	}
}

func TestCompileSettings(t *testing.T) {
	tests := []struct {
		name    string
		modules []types.Resource
		want    Settings
		errors  int
	}{
		{
			name: "defaults",
			want: DefaultSettings(),
		},
		{
			name: "overrides",
			modules: []types.Resource{testutil.Module("ambassador", types.ModuleSpec{
				ListenPort: 80, TLSPort: 443, ConnectTimeoutMS: 1000, LoadBalancer: "least_request", ServerName: "edge",
			})},
			want: Settings{
				Source:           "Module/default/ambassador@getambassador.io/v3alpha1",
				ListenPort:       80,
				TLSPort:          443,
				AdminPort:        DefaultAdminPort,
				ConnectTimeoutMS: 1000,
				RouteTimeoutMS:   DefaultRouteTimeoutMS,
				ServerName:       "edge",
				LoadBalancer:     "least_request",
			},
		},
		{
			name:    "invalid load balancer keeps defaults",
			modules: []types.Resource{testutil.Module("ambassador", types.ModuleSpec{LoadBalancer: "sticky"})},
			want:    DefaultSettings(),
			errors:  1,
		},
		{
			name:    "clashing ports",
			modules: []types.Resource{testutil.Module("ambassador", types.ModuleSpec{ListenPort: 8443})},
			want:    DefaultSettings(),
			errors:  1,
		},
		{
			name: "second module rejected",
			modules: []types.Resource{
				testutil.Module("a", types.ModuleSpec{RouteTimeoutMS: 100}),
				testutil.Module("b", types.ModuleSpec{RouteTimeoutMS: 200}),
			},
			want: func() Settings {
				s := DefaultSettings()
				s.RouteTimeoutMS = 100
				s.Source = "Module/default/a@getambassador.io/v3alpha1"
				return s
			}(),
			errors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := compileFresh(t, types.NewSnapshot(tt.modules...))
			assert.Equal(t, tt.want, g.Settings)
			assert.Len(t, g.Errors, tt.errors)
		})
	}
}

func TestCompileTLSContexts(t *testing.T) {
	dup := testutil.TLSContext("edge", "other.example.com")
	dup.Meta.Namespace = "other"

	keyless := testutil.TLSContext("keyless")
	keyless.Spec.PrivateKeyFile = ""

	oldTLS := testutil.TLSContext("old")
	oldTLS.Spec.MinTLSVersion = "v0.9"

	overlap := testutil.TLSContext("overlap", "Example.com")

	snap := types.NewSnapshot(
		testutil.TLSContext("edge", "example.com", "www.example.com"),
		dup, keyless, oldTLS, overlap,
		testutil.Mapping("secure", "/s/", "api", testutil.WithTLS("edge")),
	)

	g := compileFresh(t, snap)

	require.Len(t, g.TLSContexts, 1)
	assert.Equal(t, "edge", g.TLSContexts[0].Name)
	assert.Equal(t, []string{"example.com", "www.example.com"}, g.TLSContexts[0].Hosts)
	assert.Len(t, g.Errors, 4)

	require.Len(t, g.Clusters, 1)
	assert.True(t, g.Clusters[0].Originate)
	assert.Equal(t, "cluster_api_edge_default", g.Clusters[0].Name)
}

func TestTCPMappingPorts(t *testing.T) {
	snap := types.NewSnapshot(
		testutil.TCPMapping("a-redis", 9000, "redis:6379"),
		testutil.TCPMapping("b-redis", 9000, "redis-2:6379"),
		testutil.TCPMapping("c-http", DefaultListenPort, "web"),
		testutil.TCPMapping("d-bad", 0, "web"),
		testutil.TCPMapping("e-ok", 9001, "redis:6379"),
	)

	for _, store := range []*cache.Cache{nil, cache.New()} {
		g, _, err := Compile(snap, store, nil)
		require.NoError(t, err)

		require.Len(t, g.TCPMappings, 2)
		assert.Equal(t, 9000, g.TCPMappings[0].Port)
		assert.Equal(t, "a-redis", g.TCPMappings[0].Name)
		assert.Equal(t, 9001, g.TCPMappings[1].Port)
		assert.Len(t, g.Errors, 3)
		assert.Len(t, g.Clusters, 1, "both kept mappings share the redis cluster")
	}
}

func TestCompileErrorsAreStable(t *testing.T) {
	snap := types.NewSnapshot(
		testutil.Mapping("z", "/z/", "bad host"),
		testutil.Mapping("a", "nope", "svc"),
		testutil.TCPMapping("t", 70000, "svc"),
	)
	store := cache.New()

	first, _ := compileSequence(t, store, snap)
	second, _ := compileSequence(t, store, snap)

	assert.Equal(t, first.Errors, second.Errors)
	assert.Equal(t, compileFresh(t, snap).Errors, first.Errors)
	require.Len(t, first.Errors, 3)
	assert.Contains(t, first.Errors[0].Resource, "Mapping/default/a")
	assert.Contains(t, first.Errors[1].Resource, "Mapping/default/z")
	assert.Contains(t, first.Errors[2].Resource, "TCPMapping/default/t")
}

func findGroup(t *testing.T, g *Graph, prefix string) *Group {
	t.Helper()
	for _, group := range g.Groups {
		if group.Prefix == prefix {
			return group
		}
	}
	t.Fatalf("no group with prefix %s", prefix)
	return nil
}

func thresholds(g *Group) []int {
	out := make([]int, len(g.Members))
	for i, m := range g.Members {
		out[i] = m.Threshold
	}
	return out
}
