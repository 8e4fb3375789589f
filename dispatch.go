package umapgo

import (
	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/hnsw"
	"github.com/hupe1980/umapgo/neighbors"
	"github.com/hupe1980/umapgo/nndescent"
	"github.com/hupe1980/umapgo/vptree"
)

// NewBuilder returns the neighbor index builder for method and metric.
//
// For MetricCosine the caller must pass unit-length rows (see NormalizeRows).
// The VP-tree and HNSW then rank by squared Euclidean distance and report half
// of it, which equals the cosine distance of unit vectors. Neighbor descent
// computes the cosine distance natively. An unrecognized method selects the
// VP-tree with plain Euclidean distances.
func NewBuilder(method Method, metric distance.Metric, backend BackendOptions) neighbors.Builder {
	kernel := distance.KernelFor(metric)

	switch method {
	case MethodHNSW:
		return hnsw.NewBuilder(func(o *hnsw.Options) {
			o.M = backend.HNSWLinks
			o.EfConstruction = backend.HNSWEfConstruction
			o.EfSearch = backend.HNSWEfSearch
			o.Kernel = kernel
		})
	case MethodNNDescent:
		return nndescent.NewBuilder(func(o *nndescent.Options) {
			if backend.NNDescentNeighbors > 0 {
				o.NNeighbors = backend.NNDescentNeighbors
			}
			o.NTrees = backend.NNDescentTrees
			o.NIters = backend.NNDescentIters
			o.Seed = backend.NNDescentSeed
			if metric == distance.MetricCosine {
				o.Metric = nndescent.MetricCosine
			} else {
				o.Metric = nndescent.MetricEuclidean
			}
		})
	case MethodVPTree:
		return vptree.NewBuilder(func(o *vptree.Options) {
			o.Kernel = kernel
		})
	default:
		return vptree.NewBuilder()
	}
}

// indexAttrs returns log attributes describing the structure of index.
func indexAttrs(index neighbors.Index) []any {
	h, ok := index.(*hnsw.HNSW)
	if !ok || h == nil {
		return nil
	}

	st := h.Stats()

	return []any{
		"hnsw_levels", st.MaxLevel + 1,
		"hnsw_avg_degree", st.AvgConnections(0),
	}
}

// embeddingBackend returns backend with the neighbor descent graph wide
// enough to hold nNeighbors neighbors besides the point itself.
func embeddingBackend(backend BackendOptions, nNeighbors int) BackendOptions {
	if backend.NNDescentNeighbors < nNeighbors+1 {
		backend.NNDescentNeighbors = nNeighbors + 1
	}

	return backend
}
