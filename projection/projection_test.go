package projection

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/hupe1980/umapgo"
	"github.com/hupe1980/umapgo/blobstore"
	"github.com/hupe1980/umapgo/matio"
	"github.com/hupe1980/umapgo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallArgs() Args {
	return Args{
		Numbers: map[string]float64{"n_neighbors": 6, "n_epochs": 20},
		Strings: map[string]string{"knn_method": "vptree"},
	}
}

func TestArgsOptions(t *testing.T) {
	opts, err := Args{}.Options()
	require.NoError(t, err)
	assert.Equal(t, 15, opts.NNeighbors)

	metric, err := opts.GetString("metric")
	require.NoError(t, err)
	assert.Equal(t, "cosine", metric)

	opts, err = Args{Strings: map[string]string{"metric": "euclidean"}, Numbers: map[string]float64{"minDist": 0.3}}.Options()
	require.NoError(t, err)
	assert.Equal(t, 0.3, opts.MinDist)

	_, err = Args{Numbers: map[string]float64{"perplexity": 30}}.Options()
	assert.ErrorIs(t, err, umapgo.ErrUnknownOption)
}

func TestCompute(t *testing.T) {
	const (
		count = 50
		dim   = 5
	)

	data := testutil.NewRNG(12).GaussianMatrix(count, dim)
	original := slices.Clone(data)

	r, err := Compute(data, count, dim, smallArgs())
	require.NoError(t, err)

	assert.Equal(t, original, data)
	assert.Equal(t, count, r.Count)
	assert.Equal(t, 2, r.OutputDim)
	assert.Equal(t, 6, r.NNeighbors)
	assert.Len(t, r.Embedding, count*2)
	assert.Len(t, r.KNNIndices, count*6)
	assert.True(t, testutil.AllFinite(r.Embedding))

	for i := range count {
		row := r.KNNIndices[i*6 : (i+1)*6]
		assert.Equal(t, int32(i), row[0])
		assert.Zero(t, r.KNNDistances[i*6])
		assert.NotContains(t, row[1:], int32(i))
		assert.True(t, slices.IsSorted(r.KNNDistances[i*6:(i+1)*6]))
	}
}

func TestComputeShapeError(t *testing.T) {
	_, err := Compute(make([]float32, 10), 3, 3, Args{})
	assert.ErrorIs(t, err, umapgo.ErrInvalidShape)
}

func TestKeyIsContentAddressed(t *testing.T) {
	data := testutil.NewRNG(1).UniformMatrix(10, 3)

	k1, err := Key(data, 10, 3, smallArgs())
	require.NoError(t, err)

	k2, err := Key(slices.Clone(data), 10, 3, smallArgs())
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	args := smallArgs()
	args.Numbers["n_epochs"] = 21

	k3, err := Key(data, 10, 3, args)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	data[0]++

	k4, err := Key(data, 10, 3, smallArgs())
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4)
}

func TestCacheCompute(t *testing.T) {
	for _, c := range []matio.Compression{matio.CompressionNone, matio.CompressionLZ4, matio.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()
			cache := NewCache(store, func(o *CacheOptions) { o.Compression = c })

			data := testutil.NewRNG(4).ClusteredMatrix(40, 4, 2, 0.3)

			first, hit, err := cache.Compute(ctx, data, 40, 4, smallArgs())
			require.NoError(t, err)
			assert.False(t, hit)

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, names, 4)

			second, hit, err := cache.Compute(ctx, data, 40, 4, smallArgs())
			require.NoError(t, err)
			assert.True(t, hit)
			assert.Equal(t, first, second)
		})
	}
}

func TestCacheGetMissing(t *testing.T) {
	cache := NewCache(blobstore.NewMemoryStore())

	_, err := cache.Get(context.Background(), "absent")
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))
}

func TestCacheLocalStore(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(blobstore.NewLocalStore(t.TempDir()))

	r := &Result{
		Embedding:    []float32{0, 1, 2, 3},
		OutputDim:    2,
		KNNIndices:   []int32{0, 1, 1, 0},
		KNNDistances: []float32{0, 0.5, 0, 0.5},
		NNeighbors:   2,
		Count:        2,
	}

	require.NoError(t, cache.Put(ctx, "k", Args{}, r))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestCacheReadsWithWrittenCompression(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	r := &Result{
		Embedding:    []float32{0, 1, 2, 3},
		OutputDim:    2,
		KNNIndices:   []int32{0, 1, 1, 0},
		KNNDistances: []float32{0, 0.5, 0, 0.5},
		NNeighbors:   2,
		Count:        2,
	}

	writer := NewCache(store, func(o *CacheOptions) { o.Compression = matio.CompressionLZ4 })
	require.NoError(t, writer.Put(ctx, "k", Args{}, r))

	reader := NewCache(store, func(o *CacheOptions) { o.Compression = matio.CompressionZSTD })
	got, err := reader.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestCacheRejectsUnknownCodec(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	require.NoError(t, store.Put(ctx, "k/manifest.json", []byte(`{"version":1,"codec":"msgpack","compression":"none"}`)))

	_, err := NewCache(store).Get(ctx, "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, blobstore.ErrNotFound))
}
