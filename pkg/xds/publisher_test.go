package xds

import (
	"context"
	"testing"

	resourcev3 "github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/edgeplane/pkg/ir"
	"github.com/cuemby/edgeplane/pkg/render"
	"github.com/cuemby/edgeplane/pkg/testutil"
	"github.com/cuemby/edgeplane/pkg/types"
)

func rendered(t *testing.T, resources ...types.Resource) *render.Config {
	t.Helper()
	g, _, err := ir.Compile(types.NewSnapshot(resources...), nil, nil)
	require.NoError(t, err)
	cfg, _, err := render.Render(g, nil, render.DefaultOptions())
	require.NoError(t, err)
	return cfg
}

func TestPublish(t *testing.T) {
	pub := NewPublisher("edge-proxy")
	cfg := rendered(t,
		testutil.Mapping("a", "/a/", "svc-a"),
		testutil.TCPMapping("db", 5432, "postgres"),
	)

	require.NoError(t, pub.Publish(context.Background(), 3, cfg))

	snap, err := pub.Cache().GetSnapshot("edge-proxy")
	require.NoError(t, err)

	want, err := Version(3, cfg)
	require.NoError(t, err)
	assert.Equal(t, want, snap.GetVersion(resourcev3.ClusterType))
	assert.Len(t, snap.GetResources(resourcev3.ClusterType), 2)
	assert.Len(t, snap.GetResources(resourcev3.ListenerType), 2)
	assert.Contains(t, snap.GetResources(resourcev3.RouteType), render.RouteConfigName)
}

func TestPublishRejectsInconsistent(t *testing.T) {
	pub := NewPublisher("edge-proxy")
	cfg := rendered(t, testutil.Mapping("a", "/a/", "svc-a"))
	broken := &render.Config{Clusters: cfg.Clusters, Listeners: cfg.Listeners}

	err := pub.Publish(context.Background(), 1, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inconsistent")

	_, err = pub.Cache().GetSnapshot("edge-proxy")
	assert.Error(t, err, "nothing published")
}

func TestVersion(t *testing.T) {
	a := rendered(t, testutil.Mapping("a", "/a/", "svc-a"))
	b := rendered(t, testutil.Mapping("a", "/a/", "svc-b"))

	va, err := Version(1, a)
	require.NoError(t, err)
	vb, err := Version(1, b)
	require.NoError(t, err)
	assert.NotEqual(t, va, vb, "same generation, different content")
	assert.Regexp(t, `^1-[0-9a-f]{16}$`, va)
}
