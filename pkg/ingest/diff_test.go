package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/edgeplane/pkg/testutil"
	"github.com/cuemby/edgeplane/pkg/types"
)

func TestDiff(t *testing.T) {
	keep := testutil.Mapping("keep", "/k/", "svc")
	prev := types.NewSnapshot(
		keep,
		testutil.Mapping("gone", "/g/", "svc"),
		testutil.Mapping("edit", "/e/", "svc"),
		testutil.Mapping("same", "/s/", "svc"),
	)
	next := types.NewSnapshot(
		keep,
		testutil.Mapping("edit", "/e/", "svc-2"),
		// Equal content in a new value is not a change.
		testutil.Mapping("same", "/s/", "svc"),
		testutil.Mapping("new", "/n/", "svc"),
		testutil.TCPMapping("db", 5432, "postgres"),
	)

	deltas := Diff(prev, next)

	type summary struct {
		name string
		typ  types.DeltaType
	}
	var got []summary
	for _, d := range deltas {
		got = append(got, summary{d.Metadata.Name, d.DeltaType})
	}
	assert.Equal(t, []summary{
		{"gone", types.DeltaDelete},
		{"edit", types.DeltaUpdate},
		{"new", types.DeltaAdd},
		{"db", types.DeltaAdd},
	}, got)
}

func TestDiffFromNothing(t *testing.T) {
	next := types.NewSnapshot(testutil.Mapping("a", "/", "svc"))

	deltas := Diff(nil, next)
	assert.Len(t, deltas, 1)
	assert.Equal(t, types.DeltaAdd, deltas[0].DeltaType)
	assert.Empty(t, Diff(next, next))
}

func TestFingerprint(t *testing.T) {
	a := testutil.Mapping("a", "/", "svc", testutil.WithHeader("x-a", "1"), testutil.WithHeader("x-b", "2"))
	b := testutil.Mapping("a", "/", "svc", testutil.WithHeader("x-b", "2"), testutil.WithHeader("x-a", "1"))
	c := testutil.Mapping("a", "/", "svc", testutil.WithHeader("x-a", "1"))

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	fc, err := Fingerprint(c)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}

func TestDiffUnencodableCountsAsChanged(t *testing.T) {
	orig := encode
	encode = func(any) ([]byte, error) { return nil, errors.New("boom") }
	defer func() { encode = orig }()

	prev := types.NewSnapshot(testutil.Mapping("a", "/", "svc"))
	next := types.NewSnapshot(testutil.Mapping("a", "/", "svc"))

	_, err := Fingerprint(testutil.Mapping("a", "/", "svc"))
	assert.Error(t, err)

	deltas := Diff(prev, next)
	require.Len(t, deltas, 1)
	assert.Equal(t, types.DeltaUpdate, deltas[0].DeltaType)

	assert.Empty(t, Diff(prev, prev), "identical declarations are never re-encoded")
}
