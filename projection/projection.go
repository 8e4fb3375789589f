// Package projection computes a complete 2-D projection of a point set: a
// UMAP embedding together with the k-nearest-neighbor graph it was built
// from. Results can be cached in any blobstore.Store, keyed by a content
// hash of the input and the arguments.
package projection

import (
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/umapgo"
)

// Default argument values, applied before the caller's arguments.
const (
	DefaultMetric     = "cosine"
	DefaultNNeighbors = 15
	DefaultOutputDim  = 2
)

// Args holds string-keyed embedding options, using the keys accepted by
// umapgo.UMAPOptions. OutputDim selects the embedding dimensionality.
type Args struct {
	Numbers   map[string]float64 `json:"numbers,omitempty"`
	Strings   map[string]string  `json:"strings,omitempty"`
	OutputDim int                `json:"output_dim,omitempty"`
}

// Options returns the embedding options described by a.
func (a Args) Options() (*umapgo.UMAPOptions, error) {
	opts := umapgo.NewUMAPOptions()

	if err := opts.SetString("metric", DefaultMetric); err != nil {
		return nil, err
	}

	if err := opts.SetNumber("n_neighbors", DefaultNNeighbors); err != nil {
		return nil, err
	}

	for _, k := range sortedKeys(a.Strings) {
		if err := opts.SetString(k, a.Strings[k]); err != nil {
			return nil, err
		}
	}

	for _, k := range sortedKeys(a.Numbers) {
		if err := opts.SetNumber(k, a.Numbers[k]); err != nil {
			return nil, err
		}
	}

	return opts, nil
}

func (a Args) outputDim() int {
	if a.OutputDim > 0 {
		return a.OutputDim
	}

	return DefaultOutputDim
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

// Result is a computed projection.
type Result struct {
	// Embedding is the Count × OutputDim layout, row-major.
	Embedding []float32
	OutputDim int

	// KNNIndices and KNNDistances are Count × NNeighbors, row-major. Column 0
	// is the point itself at distance 0; missing neighbors are -1 with an
	// infinite distance.
	KNNIndices   []int32
	KNNDistances []float32
	NNeighbors   int

	Count int
}

// Compute builds the neighbor graph and runs the embedding of count rows of
// dim values to completion. data is not modified.
func Compute(data []float32, count, dim int, args Args, optFns ...umapgo.Option) (*Result, error) {
	opts, err := args.Options()
	if err != nil {
		return nil, err
	}

	if len(data) != count*dim {
		return nil, fmt.Errorf("%w: data holds %d values, want %d×%d", umapgo.ErrInvalidShape, len(data), count, dim)
	}

	k := opts.NNeighbors

	indices, distances, err := neighborGraph(slices.Clone(data), count, dim, k, opts, optFns)
	if err != nil {
		return nil, err
	}

	outDim := args.outputDim()
	embedding := make([]float32, count*outDim)

	u, err := umapgo.NewUMAP(count, dim, outDim, slices.Clone(data), embedding, opts, optFns...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = u.Close() }()

	if err := u.Run(0); err != nil {
		return nil, err
	}

	return &Result{
		Embedding:    embedding,
		OutputDim:    outDim,
		KNNIndices:   indices,
		KNNDistances: distances,
		NNeighbors:   k,
		Count:        count,
	}, nil
}

func neighborGraph(data []float32, count, dim, k int, opts *umapgo.UMAPOptions, optFns []umapgo.Option) ([]int32, []float32, error) {
	knnOpts := umapgo.NewKNNOptions()
	knnOpts.Method = opts.KNNMethod
	knnOpts.Metric = opts.Metric
	knnOpts.Backend = opts.Backend

	knn, err := umapgo.NewKNN(count, dim, data, knnOpts, optFns...)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = knn.Close() }()

	indices := make([]int32, count*k)
	distances := make([]float32, count*k)

	for i := range count {
		row := indices[i*k : (i+1)*k]
		drow := distances[i*k : (i+1)*k]

		row[0], drow[0] = int32(i), 0 // nolint gosec

		n, err := knn.QueryByIndex(i, k-1, row[1:], drow[1:])
		if err != nil {
			return nil, nil, err
		}

		for j := 1 + n; j < k; j++ {
			row[j], drow[j] = -1, float32(math.Inf(1))
		}
	}

	return indices, distances, nil
}
