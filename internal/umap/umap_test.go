package umap

import (
	"math"
	"slices"
	"testing"

	"github.com/hupe1980/umapgo/neighbors"
	"github.com/hupe1980/umapgo/testutil"
	"github.com/hupe1980/umapgo/vptree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, count, dim int, data []float32) neighbors.Index {
	t.Helper()

	m, err := neighbors.NewMatrix(count, dim, data)
	require.NoError(t, err)

	idx, err := vptree.New(m)
	require.NoError(t, err)

	return idx
}

func TestFitAB(t *testing.T) {
	a, b, err := FitAB(1, 0.1)
	require.NoError(t, err)

	assert.InDelta(t, 1.577, a, 0.02)
	assert.InDelta(t, 0.895, b, 0.02)

	_, _, err = FitAB(0, 0.1)
	assert.Error(t, err)
}

func TestSmoothKNN(t *testing.T) {
	dists := []float64{0.5, 0.7, 1.0, 1.3, 2.0, 2.2, 3.1, 4.0}

	rho, sigma := smoothKNN(dists, 1, 1, 1)
	assert.InDelta(t, 0.5, rho, 1e-12)
	assert.Greater(t, sigma, 0.0)

	var sum float64
	for _, d := range dists {
		sum += math.Exp(-max(d-rho, 0) / sigma)
	}

	assert.InDelta(t, math.Log2(float64(len(dists))), sum, 1e-3)
}

func TestSmoothKNNLocalConnectivityInterpolates(t *testing.T) {
	rho, _ := smoothKNN([]float64{1, 2, 4}, 1.5, 1, 1)
	assert.InDelta(t, 1.5, rho, 1e-12)

	rho, _ = smoothKNN([]float64{0, 0, 3}, 2, 1, 1)
	assert.InDelta(t, 3, rho, 1e-12)
}

func TestSymmetrize(t *testing.T) {
	directed := []edge{
		{head: 0, tail: 1, weight: 0.5},
		{head: 1, tail: 0, weight: 0.5},
		{head: 0, tail: 2, weight: 0.4},
		{head: 2, tail: 2, weight: 1},
	}

	union := symmetrize(slices.Clone(directed), 1)
	require.Len(t, union, 4)
	assert.Equal(t, edge{head: 0, tail: 1, weight: 0.75}, union[0])
	assert.Equal(t, edge{head: 0, tail: 2, weight: 0.4}, union[1])
	assert.Equal(t, edge{head: 1, tail: 0, weight: 0.75}, union[2])
	assert.Equal(t, edge{head: 2, tail: 0, weight: 0.4}, union[3])

	intersection := symmetrize(slices.Clone(directed), 0)
	require.Len(t, intersection, 2)
	assert.InDelta(t, 0.25, intersection[0].weight, 1e-12)
}

func TestRunSlicingIsTransparent(t *testing.T) {
	rng := testutil.NewRNG(4711)
	data := rng.ClusteredMatrix(120, 6, 3, 0.2)

	for _, method := range []InitializeMethod{InitializeNone, InitializeSpectral} {
		t.Run(method.String(), func(t *testing.T) {
			idx := buildIndex(t, 120, 6, data)

			opts := DefaultOptions()
			opts.Initialize = method
			opts.NEpochs = 50

			start := startLayout(120*2, 99)

			sliced := slices.Clone(start)
			s1, err := Initialize(idx, 2, sliced, opts)
			require.NoError(t, err)

			assert.Equal(t, 5, s1.Run(5))
			assert.Equal(t, 7, s1.Run(12))
			assert.Equal(t, 18, s1.Run(30))
			assert.Equal(t, 30, s1.Epoch())

			whole := slices.Clone(start)
			s2, err := Initialize(idx, 2, whole, opts)
			require.NoError(t, err)

			s2.Run(30)

			assert.InDeltaSlice(t, toFloat64(whole), toFloat64(sliced), 1e-6)
		})
	}
}

func TestRunBoundsAndNoOpWhenFinished(t *testing.T) {
	rng := testutil.NewRNG(1)
	data := rng.UniformMatrix(60, 4)

	idx := buildIndex(t, 60, 4, data)

	opts := DefaultOptions()
	opts.NEpochs = 20
	opts.NNeighbors = 8

	emb := make([]float32, 60*2)
	s, err := Initialize(idx, 2, emb, opts)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Epoch())
	assert.Equal(t, 20, s.NEpochs())

	s.Run(1000)
	assert.Equal(t, 20, s.Epoch())

	snapshot := slices.Clone(emb)

	assert.Equal(t, 0, s.Run(25))
	assert.Equal(t, 0, s.Run(0))
	assert.Equal(t, 20, s.Epoch())
	assert.Equal(t, snapshot, emb)
	assert.True(t, testutil.AllFinite(emb))
}

func TestRunZeroLimitRunsToCompletion(t *testing.T) {
	rng := testutil.NewRNG(2)
	data := rng.UniformMatrix(40, 3)

	opts := DefaultOptions()
	opts.NEpochs = 15
	opts.Initialize = InitializeRandom

	s, err := Initialize(buildIndex(t, 40, 3, data), 2, make([]float32, 80), opts)
	require.NoError(t, err)

	assert.Equal(t, 15, s.Run(0))
	assert.Equal(t, s.NEpochs(), s.Epoch())
}

func TestDefaultEpochs(t *testing.T) {
	assert.Equal(t, 500, EpochsFor(10000))
	assert.Equal(t, 200, EpochsFor(10001))

	rng := testutil.NewRNG(3)
	data := rng.UniformMatrix(30, 3)

	s, err := Initialize(buildIndex(t, 30, 3, data), 2, make([]float32, 60), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 500, s.NEpochs())
}

func TestSpectralFallsBackOnDisconnectedGraph(t *testing.T) {
	data := make([]float32, 0, 40*2)
	for i := range 20 {
		data = append(data, float32(i)*0.01, 0)
	}

	for i := range 20 {
		data = append(data, 1000+float32(i)*0.01, 0)
	}

	opts := DefaultOptions()
	opts.NNeighbors = 5

	emb := make([]float32, 40*2)
	s, err := Initialize(buildIndex(t, 40, 2, data), 2, emb, opts)
	require.NoError(t, err)

	assert.ErrorIs(t, s.InitFallback(), errDisconnected)

	for _, v := range emb {
		assert.LessOrEqual(t, math.Abs(float64(v)), 10.0)
	}
}

func TestSpectralLayoutScaled(t *testing.T) {
	rng := testutil.NewRNG(5)
	data := rng.GaussianMatrix(150, 8)

	opts := DefaultOptions()

	emb := make([]float32, 150*2)
	s, err := Initialize(buildIndex(t, 150, 8, data), 2, emb, opts)
	require.NoError(t, err)
	require.NoError(t, s.InitFallback())

	var maxAbs float64
	for _, v := range emb {
		maxAbs = max(maxAbs, math.Abs(float64(v)))
	}

	assert.InDelta(t, 10, maxAbs, 1e-2)
}

func TestInitializeValidatesBuffer(t *testing.T) {
	rng := testutil.NewRNG(6)
	idx := buildIndex(t, 10, 2, rng.UniformMatrix(10, 2))

	_, err := Initialize(idx, 2, make([]float32, 19), DefaultOptions())
	assert.ErrorIs(t, err, ErrEmbeddingSize)

	_, err = Initialize(idx, 0, nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidOutputDim)
}

func TestConfiguredCurveParamsSkipFit(t *testing.T) {
	rng := testutil.NewRNG(7)
	idx := buildIndex(t, 10, 2, rng.UniformMatrix(10, 2))

	opts := DefaultOptions()
	opts.A = 2
	opts.B = 0.5
	opts.Initialize = InitializeRandom

	s, err := Initialize(idx, 2, make([]float32, 20), opts)
	require.NoError(t, err)

	a, b := s.Params()
	assert.Equal(t, 2.0, a)
	assert.Equal(t, 0.5, b)
	assert.Positive(t, s.Edges())
}

func TestParseInitializeMethod(t *testing.T) {
	for _, name := range []string{"spectral", "random", "none"} {
		m, err := ParseInitializeMethod(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.String())
	}

	_, err := ParseInitializeMethod("pca")
	assert.Error(t, err)
}

// startLayout returns a deterministic starting layout in [-10, 10].
func startLayout(n int, seed int64) []float32 {
	out := testutil.NewRNG(seed).UniformMatrix(n, 1)
	for i := range out {
		out[i] = out[i]*20 - 10
	}

	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}

	return out
}
