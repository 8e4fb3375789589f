package umapgo

import (
	"math"
	"testing"

	"github.com/hupe1980/umapgo/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKNNOptionsDefaults(t *testing.T) {
	opts := NewKNNOptions()

	assert.Equal(t, MethodHNSW, opts.Method)
	assert.Equal(t, distance.MetricEuclidean, opts.Metric)
	assert.Equal(t, uint64(42), opts.Backend.NNDescentSeed)

	v, err := opts.GetNumber("hnsw_n_links")
	require.NoError(t, err)
	assert.Equal(t, 16.0, v)
}

func TestKNNOptionsSetters(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   float64
		want    float64
		wantErr error
	}{
		{"links", "hnsw_n_links", 24, 24, nil},
		{"camel case", "hnswEfSearch", 64, 64, nil},
		{"truncates", "nndescent_n_iters", 7.9, 7, nil},
		{"seed", "nndescent_seed", 99, 99, nil},
		{"unknown", "n_epochs", 1, 0, ErrUnknownOption},
		{"zero links", "hnsw_n_links", 0, 0, ErrInvalidOptionValue},
		{"nan", "hnsw_ef_search", math.NaN(), 0, ErrInvalidOptionValue},
		{"inf", "nndescent_n_trees", math.Inf(1), 0, ErrInvalidOptionValue},
		{"negative seed", "nndescent_seed", -1, 0, ErrInvalidOptionValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewKNNOptions()

			err := opts.SetNumber(tt.key, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, NewKNNOptions(), opts)

				return
			}

			require.NoError(t, err)

			got, err := opts.GetNumber(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKNNOptionsStrings(t *testing.T) {
	opts := NewKNNOptions()

	require.NoError(t, opts.SetString("metric", "cosine"))
	require.NoError(t, opts.SetString("method", "vptree"))

	assert.ErrorIs(t, opts.SetString("method", "annoy"), ErrInvalidOptionValue)
	assert.ErrorIs(t, opts.SetString("metric", "manhattan"), ErrInvalidOptionValue)
	assert.ErrorIs(t, opts.SetString("knn_method", "hnsw"), ErrUnknownOption)

	metric, err := opts.GetString("metric")
	require.NoError(t, err)
	assert.Equal(t, "cosine", metric)

	method, err := opts.GetString("method")
	require.NoError(t, err)
	assert.Equal(t, "vptree", method)

	_, err = opts.GetString("seed")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestUMAPOptionsSetters(t *testing.T) {
	opts := NewUMAPOptions()

	require.NoError(t, opts.SetNumber("n_neighbors", 10))
	require.NoError(t, opts.SetNumber("minDist", 0.25))
	require.NoError(t, opts.SetNumber("nndescent_n_neighbors", 5))
	require.NoError(t, opts.SetString("initializeMethod", "random"))
	require.NoError(t, opts.SetString("knn_method", "nndescent"))

	assert.Equal(t, 10, opts.NNeighbors)
	assert.Equal(t, 0.25, opts.MinDist)
	assert.Equal(t, 5, opts.Backend.NNDescentNeighbors)
	assert.Equal(t, InitializeRandom, opts.InitializeMethod)
	assert.Equal(t, MethodNNDescent, opts.KNNMethod)

	assert.ErrorIs(t, opts.SetNumber("n_neighbors", 0), ErrInvalidOptionValue)
	assert.ErrorIs(t, opts.SetNumber("mix_ratio", 1.5), ErrInvalidOptionValue)
	assert.ErrorIs(t, opts.SetNumber("learning_rate", math.NaN()), ErrInvalidOptionValue)
	assert.ErrorIs(t, opts.SetNumber("perplexity", 30), ErrUnknownOption)
	assert.ErrorIs(t, opts.SetString("initialize_method", "pca"), ErrInvalidOptionValue)
	assert.ErrorIs(t, opts.SetString("method", "hnsw"), ErrUnknownOption)

	v, err := opts.GetNumber("nNeighbors")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	s, err := opts.GetString("initialize_method")
	require.NoError(t, err)
	assert.Equal(t, "random", s)

	s, err = opts.GetString("knn_method")
	require.NoError(t, err)
	assert.Equal(t, "nndescent", s)
}

func TestRejectedSetKeepsPreviousBehavior(t *testing.T) {
	opts := NewKNNOptions()
	require.NoError(t, opts.SetString("metric", "cosine"))
	require.NoError(t, opts.SetString("method", "vptree"))

	assert.Error(t, opts.SetString("metric", "hamming"))
	assert.Error(t, opts.SetString("method", "kdtree"))
	assert.Error(t, opts.SetString("colour", "red"))

	data := []float32{
		1, 0,
		-0.5, 0,
		4, 0.5,
	}

	knn, err := NewKNN(3, 2, data, opts)
	require.NoError(t, err)

	indices, distances, err := knn.Query(0, 2)
	require.NoError(t, err)

	// Euclidean distance would rank row 1 first.
	assert.Equal(t, []int32{2, 1}, indices)
	assert.InDelta(t, 2, distances[1], 1e-5)
}

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "n_neighbors", CanonicalKey("nNeighbors"))
	assert.Equal(t, "hnsw_ef_construction", CanonicalKey("hnswEfConstruction"))
	assert.Equal(t, "min_dist", CanonicalKey("min_dist"))
	assert.Equal(t, "a", CanonicalKey("a"))
}

func TestParseMethod(t *testing.T) {
	for _, m := range allMethods {
		got, err := ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseMethod("brute")
	assert.Error(t, err)
	assert.Equal(t, 0, int(MethodVPTree))
	assert.Equal(t, 2, int(MethodHNSW))
	assert.Equal(t, 3, int(MethodNNDescent))
}
