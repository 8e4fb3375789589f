package projection

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"path"

	"github.com/hupe1980/umapgo"
	"github.com/hupe1980/umapgo/blobstore"
	"github.com/hupe1980/umapgo/codec"
	"github.com/hupe1980/umapgo/matio"
)

// cacheVersion is mixed into every key; bump it when Compute changes its
// output for the same input.
const cacheVersion = 1

const (
	manifestName     = "manifest.json"
	embeddingName    = "projection.npy"
	knnIndicesName   = "knn_indices.npy"
	knnDistancesName = "knn_distances.npy"
)

type manifest struct {
	Version     int    `json:"version"`
	Codec       string `json:"codec"`
	Compression string `json:"compression"`
	Count       int    `json:"count"`
	OutputDim   int    `json:"output_dim"`
	NNeighbors  int    `json:"n_neighbors"`
	Args        Args   `json:"args"`
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	// Codec encodes the manifest. Defaults to codec.Default.
	Codec codec.Codec
	// Compression is applied to the matrix blobs.
	Compression matio.Compression
	// Logger receives hit and miss records. Defaults to a no-op logger.
	Logger *umapgo.Logger
}

// Cache stores projections in a blob store. Each projection lives under its
// key as three .npy blobs and a manifest, which is written last.
type Cache struct {
	store blobstore.Store
	opts  CacheOptions
}

// NewCache creates a cache over store.
func NewCache(store blobstore.Store, optFns ...func(o *CacheOptions)) *Cache {
	opts := CacheOptions{
		Codec:       codec.Default,
		Compression: matio.CompressionZSTD,
		Logger:      umapgo.NoopLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Cache{store: store, opts: opts}
}

// Key returns the content hash identifying the projection of data under args.
func Key(data []float32, count, dim int, args Args) (string, error) {
	h := sha256.New()

	header, err := codec.GoJSON{}.Marshal(struct {
		Version int  `json:"version"`
		Count   int  `json:"count"`
		Dim     int  `json:"dim"`
		Args    Args `json:"args"`
	}{cacheVersion, count, dim, args})
	if err != nil {
		return "", err
	}

	h.Write(header)

	buf := make([]byte, 0, 4096)
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		if len(buf) == cap(buf) {
			h.Write(buf)
			buf = buf[:0]
		}
	}

	h.Write(buf)

	return hex.EncodeToString(h.Sum(nil)), nil
}

func blobName(key, name string, compression matio.Compression) string {
	switch compression {
	case matio.CompressionZSTD:
		name += ".zst"
	case matio.CompressionLZ4:
		name += ".lz4"
	}

	return path.Join(key, name)
}

// Get loads a cached projection. It returns an error satisfying
// errors.Is(err, blobstore.ErrNotFound) when key is not cached.
func (c *Cache) Get(ctx context.Context, key string) (*Result, error) {
	raw, err := c.store.Get(ctx, path.Join(key, manifestName))
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := c.opts.Codec.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("projection: manifest %s: %w", key, err)
	}

	if m.Version != cacheVersion {
		return nil, fmt.Errorf("projection: manifest %s has version %d: %w", key, m.Version, blobstore.ErrNotFound)
	}

	if _, ok := codec.ByName(m.Codec); !ok {
		return nil, fmt.Errorf("projection: manifest %s written by unknown codec %q", key, m.Codec)
	}

	// Blobs are read with the compression they were written with.
	compression, err := matio.ParseCompression(m.Compression)
	if err != nil {
		return nil, fmt.Errorf("projection: manifest %s: %w", key, err)
	}

	embedding, err := c.loadFloat32(ctx, key, embeddingName, compression)
	if err != nil {
		return nil, err
	}

	distances, err := c.loadFloat32(ctx, key, knnDistancesName, compression)
	if err != nil {
		return nil, err
	}

	indices, err := c.loadInt32(ctx, key, knnIndicesName, compression)
	if err != nil {
		return nil, err
	}

	if len(embedding) != m.Count*m.OutputDim || len(indices) != m.Count*m.NNeighbors || len(distances) != len(indices) {
		return nil, fmt.Errorf("projection: cached blobs of %s do not match the manifest", key)
	}

	return &Result{
		Embedding:    embedding,
		OutputDim:    m.OutputDim,
		KNNIndices:   indices,
		KNNDistances: distances,
		NNeighbors:   m.NNeighbors,
		Count:        m.Count,
	}, nil
}

func (c *Cache) load(ctx context.Context, key, name string, compression matio.Compression) (*matio.Array, error) {
	raw, err := c.store.Get(ctx, blobName(key, name, compression))
	if err != nil {
		return nil, err
	}

	raw, err = matio.Decompress(raw, compression)
	if err != nil {
		return nil, err
	}

	return matio.Unmarshal(raw)
}

func (c *Cache) loadFloat32(ctx context.Context, key, name string, compression matio.Compression) ([]float32, error) {
	a, err := c.load(ctx, key, name, compression)
	if err != nil {
		return nil, err
	}

	return a.Float32()
}

func (c *Cache) loadInt32(ctx context.Context, key, name string, compression matio.Compression) ([]int32, error) {
	a, err := c.load(ctx, key, name, compression)
	if err != nil {
		return nil, err
	}

	return a.Int32()
}

// Put stores a projection under key.
func (c *Cache) Put(ctx context.Context, key string, args Args, r *Result) error {
	embedding, err := matio.MarshalFloat32(r.Embedding, r.Count, r.OutputDim)
	if err != nil {
		return err
	}

	indices, err := matio.MarshalInt32(r.KNNIndices, r.Count, r.NNeighbors)
	if err != nil {
		return err
	}

	distances, err := matio.MarshalFloat32(r.KNNDistances, r.Count, r.NNeighbors)
	if err != nil {
		return err
	}

	for name, doc := range map[string][]byte{
		embeddingName:    embedding,
		knnIndicesName:   indices,
		knnDistancesName: distances,
	} {
		packed, err := matio.Compress(doc, c.opts.Compression)
		if err != nil {
			return err
		}

		if err := c.store.Put(ctx, blobName(key, name, c.opts.Compression), packed); err != nil {
			return err
		}
	}

	raw, err := c.opts.Codec.Marshal(manifest{
		Version:     cacheVersion,
		Codec:       c.opts.Codec.Name(),
		Compression: c.opts.Compression.String(),
		Count:       r.Count,
		OutputDim:   r.OutputDim,
		NNeighbors:  r.NNeighbors,
		Args:        args,
	})
	if err != nil {
		return err
	}

	return c.store.Put(ctx, path.Join(key, manifestName), raw)
}

// Compute returns the cached projection of data under args, computing and
// storing it on a miss. The boolean reports a cache hit.
func (c *Cache) Compute(ctx context.Context, data []float32, count, dim int, args Args, optFns ...umapgo.Option) (*Result, bool, error) {
	key, err := Key(data, count, dim, args)
	if err != nil {
		return nil, false, err
	}

	logger := c.opts.Logger.With("key", key)

	r, err := c.Get(ctx, key)
	if err == nil {
		logger.InfoContext(ctx, "using cached projection")
		return r, true, nil
	}

	if !errors.Is(err, blobstore.ErrNotFound) {
		return nil, false, err
	}

	logger.InfoContext(ctx, "computing projection", "count", count, "dimension", dim)

	r, err = Compute(data, count, dim, args, optFns...)
	if err != nil {
		return nil, false, err
	}

	if err := c.Put(ctx, key, args, r); err != nil {
		return nil, false, err
	}

	return r, false, nil
}
