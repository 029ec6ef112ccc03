package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/edgeplane/pkg/types"
)

func TestPutGet(t *testing.T) {
	c := New()

	require.NoError(t, c.Put("a", "value-a"))

	e, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "value-a", e.Value)
	assert.Empty(t, e.Owned)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestPutDuplicateKey(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("a", 1))

	err := c.Put("a", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.True(t, IsCoherencyError(err))

	v, ok := Fetch[int](c, "a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestPutAfterInvalidate(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("a", 1))
	c.Invalidate("a")

	assert.NoError(t, c.Put("a", 2))
}

func TestLinkUnknownOwner(t *testing.T) {
	c := New()

	err := c.Link("ghost", "child")
	assert.ErrorIs(t, err, ErrUnknownOwner)
	assert.True(t, IsCoherencyError(err))
}

func TestFetch(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("a", "text"))

	s, ok := Fetch[string](c, "a")
	assert.True(t, ok)
	assert.Equal(t, "text", s)

	_, ok = Fetch[int](c, "a")
	assert.False(t, ok, "wrong type is a miss")

	_, ok = Fetch[string](nil, "a")
	assert.False(t, ok, "nil cache is always a miss")
}

func TestInvalidate(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, c *Cache)
		invalidate Key
		removed    []Key
		remaining  []Key
	}{
		{
			name: "missing key is a no-op",
			setup: func(t *testing.T, c *Cache) {
				require.NoError(t, c.Put("a", nil))
			},
			invalidate: "nope",
			removed:    []Key{},
			remaining:  []Key{"a"},
		},
		{
			name: "chain cascades",
			setup: func(t *testing.T, c *Cache) {
				require.NoError(t, c.Put("c", nil))
				require.NoError(t, c.Put("b", nil, "c"))
				require.NoError(t, c.Put("a", nil, "b"))
			},
			invalidate: "a",
			removed:    []Key{"a", "b", "c"},
			remaining:  []Key{},
		},
		{
			name: "owner survives child invalidation",
			setup: func(t *testing.T, c *Cache) {
				require.NoError(t, c.Put("b", nil))
				require.NoError(t, c.Put("a", nil, "b"))
			},
			invalidate: "b",
			removed:    []Key{"b"},
			remaining:  []Key{"a"},
		},
		{
			name: "shared child kept while another owner is present",
			setup: func(t *testing.T, c *Cache) {
				require.NoError(t, c.Put("shared", nil))
				require.NoError(t, c.Put("a", nil, "shared"))
				require.NoError(t, c.Put("b", nil, "shared"))
			},
			invalidate: "a",
			removed:    []Key{"a"},
			remaining:  []Key{"b", "shared"},
		},
		{
			name: "shared child removed once every owner is gone",
			setup: func(t *testing.T, c *Cache) {
				require.NoError(t, c.Put("shared", nil))
				require.NoError(t, c.Put("a", nil, "shared"))
				require.NoError(t, c.Put("b", nil, "shared"))
				require.NoError(t, c.Put("root", nil, "a", "b"))
			},
			invalidate: "root",
			removed:    []Key{"a", "b", "root", "shared"},
			remaining:  []Key{},
		},
		{
			name: "cycle terminates",
			setup: func(t *testing.T, c *Cache) {
				require.NoError(t, c.Put("a", nil))
				require.NoError(t, c.Put("b", nil, "a"))
				require.NoError(t, c.Link("a", "b"))
			},
			invalidate: "a",
			removed:    []Key{"a", "b"},
			remaining:  []Key{},
		},
		{
			name: "self link terminates",
			setup: func(t *testing.T, c *Cache) {
				require.NoError(t, c.Put("a", nil))
				require.NoError(t, c.Link("a", "a"))
			},
			invalidate: "a",
			removed:    []Key{"a"},
			remaining:  []Key{},
		},
		{
			name: "link to absent child is ignored",
			setup: func(t *testing.T, c *Cache) {
				require.NoError(t, c.Put("a", nil, "later"))
			},
			invalidate: "a",
			removed:    []Key{"a"},
			remaining:  []Key{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			tt.setup(t, c)

			removed := c.Invalidate(tt.invalidate)
			assert.ElementsMatch(t, tt.removed, removed)
			assert.ElementsMatch(t, tt.remaining, c.Keys())
		})
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("b", nil))
	require.NoError(t, c.Put("a", nil, "b"))

	first := c.Invalidate("a")
	keys := c.Keys()
	second := c.Invalidate("a")

	assert.Len(t, first, 2)
	assert.Empty(t, second)
	assert.Equal(t, keys, c.Keys())
}

func TestInvalidateDropsOwnerRecord(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("shared", nil))
	require.NoError(t, c.Put("a", nil, "shared"))
	require.NoError(t, c.Put("b", nil, "shared"))

	c.Invalidate("a")
	assert.Equal(t, []Key{"b"}, c.Owners("shared"))

	c.Invalidate("b")
	_, ok := c.Get("shared")
	assert.False(t, ok, "last owner gone")
}

func TestExplicitInvalidateOfSharedChild(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("shared", nil))
	require.NoError(t, c.Put("a", nil, "shared"))

	removed := c.Invalidate("shared")
	assert.Equal(t, []Key{"shared"}, removed)

	_, ok := c.Get("a")
	assert.True(t, ok)
}

func TestReset(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("b", nil))
	require.NoError(t, c.Put("a", nil, "b"))

	c.Reset()

	assert.Zero(t, c.Len())
	assert.Empty(t, c.Owners("b"))
	assert.NoError(t, c.Put("a", nil), "keys are free again after reset")
	assert.Equal(t, int64(1), c.Stats().Resets)
}

func TestKeysWithPrefix(t *testing.T) {
	c := New()
	id := types.ResourceIdentity{Kind: types.KindMapping, APIVersion: "v1", Name: "m", Namespace: "ns"}

	require.NoError(t, c.Put(ResourceKey(id), nil))
	require.NoError(t, c.Put(ClusterKey("svc"), nil))
	require.NoError(t, c.Put(GroupKey("g2"), nil))
	require.NoError(t, c.Put(GroupKey("g1"), nil))
	require.NoError(t, c.Put(FragmentKey("cluster", ClusterKey("svc")), nil))

	assert.Equal(t, []Key{"group:g1", "group:g2"}, c.KeysWithPrefix(GroupPrefix))
	assert.Equal(t, []Key{"resource:Mapping/ns/m@v1"}, c.KeysWithPrefix(ResourcePrefix))
	assert.Len(t, c.Keys(), 5)

	assert.True(t, GroupKey("x").IsGroup())
	assert.True(t, FragmentKey("route", GroupKey("x")).IsFragment())
	assert.False(t, ClusterKey("x").IsGroup())
}

func TestDump(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("child", nil))
	require.NoError(t, c.Put("parent", nil, "child"))

	dump := c.Dump()
	require.Len(t, dump, 2)
	assert.Equal(t, Key("child"), dump[0].Key)
	assert.Equal(t, []Key{"parent"}, dump[0].Owner)
	assert.Equal(t, []Key{"child"}, dump[1].Owns)
}

func TestConcurrentReaders(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			k := Key(rune('a' + i%26))
			c.Invalidate(k)
			_ = c.Put(k, i)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = c.Dump()
				_, _ = c.Get("a")
			}
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 26)
}
