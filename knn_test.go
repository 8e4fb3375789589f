package umapgo

import (
	"fmt"
	"slices"
	"sort"
	"testing"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allMethods = []Method{MethodVPTree, MethodHNSW, MethodNNDescent}

func knnOptions(t *testing.T, method Method, metric distance.Metric) *KNNOptions {
	t.Helper()

	opts := NewKNNOptions()
	require.NoError(t, opts.SetString("method", method.String()))
	require.NoError(t, opts.SetString("metric", metric.String()))

	return opts
}

func TestKNNCosineMatchesDirectCosine(t *testing.T) {
	const (
		count = 60
		dim   = 6
	)

	rng := testutil.NewRNG(7)
	data := rng.GaussianMatrix(count, dim)

	// Row 1 is row 0 reversed and stretched.
	for j := 0; j < dim; j++ {
		data[dim+j] = -3 * data[j]
	}

	original := slices.Clone(data)
	query := slices.Clone(original[:dim])
	for j := range query {
		query[j] *= 5
	}

	type scored struct {
		index int
		dist  float32
	}

	want := make([]scored, count)
	for i := range want {
		want[i] = scored{i, distance.CosineDistance(query, original[i*dim:(i+1)*dim])}
	}

	sort.SliceStable(want, func(a, b int) bool { return want[a].dist < want[b].dist })

	knn, err := NewKNN(count, dim, data, knnOptions(t, MethodVPTree, distance.MetricCosine))
	require.NoError(t, err)

	indices, distances, err := knn.QueryVector(query, count)
	require.NoError(t, err)
	require.Len(t, indices, count)

	for r, w := range want {
		assert.Equal(t, int32(w.index), indices[r], "rank %d", r)
		assert.InDelta(t, w.dist, distances[r], 1e-4, "rank %d", r)
	}

	assert.Equal(t, int32(0), indices[0])
	assert.Equal(t, int32(1), indices[count-1])
	assert.InDelta(t, 2, distances[count-1], 1e-4)
}

func TestKNNCosineAntiparallel(t *testing.T) {
	for _, method := range allMethods {
		t.Run(method.String(), func(t *testing.T) {
			data := []float32{
				2, 0,
				-4, 0,
				0, 3,
				1, 1,
			}

			knn, err := NewKNN(4, 2, data, knnOptions(t, method, distance.MetricCosine))
			require.NoError(t, err)

			indices, distances, err := knn.QueryVector([]float32{10, 0}, 4)
			require.NoError(t, err)
			require.Len(t, indices, 4)

			assert.Equal(t, []int32{0, 3, 2, 1}, indices)
			assert.InDelta(t, 0, distances[0], 1e-5)
			assert.InDelta(t, 2, distances[3], 1e-5)

			indices, _, err = knn.Query(0, 3)
			require.NoError(t, err)
			assert.Equal(t, []int32{3, 2, 1}, indices)
		})
	}
}

func TestKNNQueryByIndexExcludesSelf(t *testing.T) {
	const (
		count = 100
		dim   = 8
		k     = 10
	)

	for _, method := range allMethods {
		t.Run(method.String(), func(t *testing.T) {
			rng := testutil.NewRNG(3)
			data := rng.UniformMatrix(count, dim)

			// The last row duplicates row dup.
			const dup = 5
			copy(data[(count-1)*dim:], data[dup*dim:(dup+1)*dim])

			knn, err := NewKNN(count, dim, data, knnOptions(t, method, distance.MetricEuclidean))
			require.NoError(t, err)

			indices := make([]int32, k)
			distances := make([]float32, k)

			for i := 0; i < count; i++ {
				n, err := knn.QueryByIndex(i, k, indices, distances)
				require.NoError(t, err)
				require.Equal(t, k, n)
				assert.NotContains(t, indices[:n], int32(i))
				assert.True(t, slices.IsSorted(distances[:n]))
			}

			for _, pair := range [][2]int{{dup, count - 1}, {count - 1, dup}} {
				n, err := knn.QueryByIndex(pair[0], k, indices, distances)
				require.NoError(t, err)
				require.Equal(t, k, n)
				assert.Equal(t, int32(pair[1]), indices[0])
				assert.Zero(t, distances[0])
			}

			for i := 0; i < count; i += 10 {
				n, err := knn.QueryByVector(data[i*dim:(i+1)*dim], k, indices, distances)
				require.NoError(t, err)
				require.Equal(t, k, n)
				assert.Equal(t, int32(i), indices[0])
				assert.InDelta(t, 0, distances[0], 1e-6)
			}
		})
	}
}

func TestKNNNilOutputSkipsWrite(t *testing.T) {
	rng := testutil.NewRNG(11)
	data := rng.UniformMatrix(20, 3)

	knn, err := NewKNN(20, 3, data, nil)
	require.NoError(t, err)

	distances := make([]float32, 5)

	n, err := knn.QueryByIndex(4, 5, nil, distances)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Greater(t, distances[0], float32(0))

	n, err = knn.QueryByIndex(4, 5, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestKNNErrors(t *testing.T) {
	rng := testutil.NewRNG(5)
	data := rng.UniformMatrix(10, 4)

	_, err := NewKNN(10, 5, data, nil)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewKNN(0, 4, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidShape)

	knn, err := NewKNN(10, 4, data, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"negative k", func() error { _, err := knn.QueryByIndex(0, -1, nil, nil); return err }, ErrInvalidK},
		{"short buffer", func() error { _, err := knn.QueryByIndex(0, 3, make([]int32, 2), nil); return err }, ErrBufferTooSmall},
		{"short distances", func() error { _, err := knn.QueryByVector(data[:4], 3, nil, make([]float32, 1)); return err }, ErrBufferTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}

	_, err = knn.QueryByIndex(10, 1, nil, nil)
	var oor *ErrIndexOutOfRange
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 10, oor.Index)

	_, err = knn.QueryByVector([]float32{1, 2}, 1, nil, nil)
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 2, dm.Actual)

	n, err := knn.QueryByIndex(0, 0, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKNNClose(t *testing.T) {
	rng := testutil.NewRNG(5)
	data := rng.UniformMatrix(10, 4)

	knn, err := NewKNN(10, 4, data, nil)
	require.NoError(t, err)
	require.NoError(t, knn.Close())

	_, err = knn.QueryByIndex(0, 1, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = knn.QueryByVector(data[:4], 1, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, knn.Close(), ErrClosed)
}

func TestKNNCosineQueryNotModified(t *testing.T) {
	rng := testutil.NewRNG(9)
	data := rng.GaussianMatrix(30, 4)

	knn, err := NewKNN(30, 4, data, knnOptions(t, MethodHNSW, distance.MetricCosine))
	require.NoError(t, err)

	q := []float32{3, 4, 0, 0}

	_, _, err = knn.QueryVector(q, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4, 0, 0}, q)

	for i := 0; i < 30; i++ {
		var norm float32
		for _, v := range data[i*4 : (i+1)*4] {
			norm += v * v
		}

		assert.InDelta(t, 1, norm, 1e-5, fmt.Sprintf("row %d", i))
	}
}

func TestKNNMetrics(t *testing.T) {
	rng := testutil.NewRNG(2)
	data := rng.UniformMatrix(25, 3)

	metrics := &BasicMetricsCollector{}

	knn, err := NewKNN(25, 3, data, nil, WithMetricsCollector(metrics), WithLogger(nil))
	require.NoError(t, err)

	_, _, err = knn.Query(0, 4)
	require.NoError(t, err)
	_, _, err = knn.QueryVector(data[:3], 2)
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BuildCount)
	assert.Equal(t, int64(25), stats.BuildPoints)
	assert.Equal(t, int64(2), stats.QueryCount)
	assert.Equal(t, int64(6), stats.QueryResults)
}
