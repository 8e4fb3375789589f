package hnsw

import (
	"testing"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/neighbors"
	"github.com/hupe1980/umapgo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecall(t *testing.T) {
	rng := testutil.NewRNG(4711)

	m, err := neighbors.NewMatrix(500, 16, rng.ClusteredMatrix(500, 16, 5, 0.2))
	require.NoError(t, err)

	h, err := New(m, func(o *Options) {
		o.EfSearch = 64
	})
	require.NoError(t, err)

	s := h.Initialize()

	var total float64
	queries := 0

	for i := 0; i < m.Count; i += 5 {
		want := testutil.BruteForce(m, m.Row(i), 10, i)
		got := s.Search(i, 10)

		total += testutil.ComputeRecall(want, got)
		queries++
	}

	assert.Greater(t, total/float64(queries), 0.9)
}

func TestSearchExcludesSelf(t *testing.T) {
	rng := testutil.NewRNG(4711)

	m, err := neighbors.NewMatrix(100, 8, rng.UniformMatrix(100, 8))
	require.NoError(t, err)

	h, err := New(m)
	require.NoError(t, err)

	s := h.Initialize()

	for i := range m.Count {
		got := s.Search(i, 5)
		require.Len(t, got, 5)

		for _, n := range got {
			assert.NotEqual(t, i, n.Index)
		}

		for j := 1; j < len(got); j++ {
			assert.LessOrEqual(t, got[j-1].Distance, got[j].Distance)
		}
	}

	got := s.SearchVector(m.Row(42), 1)
	require.Len(t, got, 1)
	assert.Equal(t, 42, got[0].Index)
	assert.Equal(t, float32(0), got[0].Distance)
}

func TestDeterministicBuild(t *testing.T) {
	rng := testutil.NewRNG(1)

	m, err := neighbors.NewMatrix(200, 4, rng.GaussianMatrix(200, 4))
	require.NoError(t, err)

	h1, err := New(m)
	require.NoError(t, err)

	h2, err := New(m)
	require.NoError(t, err)

	assert.Equal(t, h1.Stats(), h2.Stats())
	assert.Equal(t, h1.Initialize().Search(3, 7), h2.Initialize().Search(3, 7))
}

func TestKernel(t *testing.T) {
	m, err := neighbors.NewMatrix(2, 2, []float32{0, 0, 3, 4})
	require.NoError(t, err)

	idx, err := NewBuilder(func(o *Options) {
		o.Kernel = distance.KernelHalfSquaredEuclidean
	}).Build(m)
	require.NoError(t, err)

	got := idx.Initialize().Search(0, 1)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Index)
	assert.InDelta(t, 12.5, got[0].Distance, 1e-6)

	idx, err = NewBuilder().Build(m)
	require.NoError(t, err)

	got = idx.Initialize().Search(0, 1)
	assert.InDelta(t, 5, got[0].Distance, 1e-6)
}

func TestSingleNode(t *testing.T) {
	m, err := neighbors.NewMatrix(1, 3, []float32{1, 2, 3})
	require.NoError(t, err)

	h, err := New(m)
	require.NoError(t, err)

	s := h.Initialize()
	assert.Empty(t, s.Search(0, 3))
	assert.Len(t, s.SearchVector([]float32{0, 0, 0}, 3), 1)
}

func TestStats(t *testing.T) {
	rng := testutil.NewRNG(4711)

	m, err := neighbors.NewMatrix(300, 8, rng.UniformMatrix(300, 8))
	require.NoError(t, err)

	h, err := New(m, func(o *Options) { o.M = 4 })
	require.NoError(t, err)

	st := h.Stats()
	assert.Equal(t, 300, st.Nodes)
	assert.Equal(t, 300, st.Levels[0].Nodes)
	assert.LessOrEqual(t, st.AvgConnections(0), float64(st.MMax0))
	assert.Greater(t, st.AvgConnections(0), 0.0)
}

func TestInvalidOptions(t *testing.T) {
	m, err := neighbors.NewMatrix(1, 1, []float32{1})
	require.NoError(t, err)

	_, err = New(m, func(o *Options) { o.EfSearch = 0 })
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
