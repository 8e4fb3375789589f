package umapgo

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/neighbors"
)

// KNN answers k-nearest-neighbor queries over a fixed point set.
type KNN struct {
	index   neighbors.Index
	method  Method
	metric  distance.Metric
	count   int
	dim     int
	closed  bool
	ctx     context.Context
	logger  *Logger
	metrics MetricsCollector
}

// NewKNN indexes count rows of dim values stored row-major in data.
//
// A nil opts uses NewKNNOptions. With the cosine metric every row of data is
// L2-normalized in place. data must stay valid and unmodified until Close.
func NewKNN(count, dim int, data []float32, opts *KNNOptions, optFns ...Option) (*KNN, error) {
	if opts == nil {
		opts = NewKNNOptions()
	}

	o := applyOptions(optFns)

	m, err := newMatrix(count, dim, data)
	if err != nil {
		return nil, err
	}

	if opts.Metric == distance.MetricCosine {
		NormalizeRows(m)
	}

	logger := o.logger.WithMethod(opts.Method).WithCount(count).WithDimension(dim)

	start := time.Now()
	index, err := NewBuilder(opts.Method, opts.Metric, opts.Backend).Build(m)
	elapsed := time.Since(start)

	o.metricsCollector.RecordBuild(opts.Method, count, elapsed, err)
	logger.LogBuild(o.ctx, elapsed, err, indexAttrs(index)...)

	if err != nil {
		return nil, err
	}

	return &KNN{
		index:   index,
		method:  opts.Method,
		metric:  opts.Metric,
		count:   count,
		dim:     dim,
		ctx:     o.ctx,
		logger:  logger,
		metrics: o.metricsCollector,
	}, nil
}

func newMatrix(count, dim int, data []float32) (neighbors.Matrix, error) {
	m, err := neighbors.NewMatrix(count, dim, data)
	if err != nil {
		return neighbors.Matrix{}, fmt.Errorf("%w: %w", ErrInvalidShape, err)
	}

	return m, nil
}

// QueryByIndex writes up to k neighbors of observation i, never including i
// itself, into outIndices and outDistances and returns their number.
//
// A nil output slice is not written. A non-nil one must hold at least k
// entries. k == 0 returns 0.
func (x *KNN) QueryByIndex(i, k int, outIndices []int32, outDistances []float32) (int, error) {
	if err := x.checkQuery(k, outIndices, outDistances); err != nil {
		return 0, err
	}

	if i < 0 || i >= x.count {
		return 0, &ErrIndexOutOfRange{Index: i, Count: x.count}
	}

	return x.query(k, outIndices, outDistances, func(s neighbors.Searcher) []neighbors.Neighbor {
		return s.Search(i, k)
	})
}

// QueryByVector writes up to k neighbors of q into outIndices and
// outDistances and returns their number. An indexed point equal to q may be
// returned.
//
// With the cosine metric a normalized copy of q is searched; q itself is
// not modified.
func (x *KNN) QueryByVector(q []float32, k int, outIndices []int32, outDistances []float32) (int, error) {
	if err := x.checkQuery(k, outIndices, outDistances); err != nil {
		return 0, err
	}

	if len(q) != x.dim {
		return 0, &ErrDimensionMismatch{Expected: x.dim, Actual: len(q)}
	}

	if x.metric == distance.MetricCosine {
		q = append([]float32(nil), q...)
		distance.NormalizeL2InPlace(q)
	}

	return x.query(k, outIndices, outDistances, func(s neighbors.Searcher) []neighbors.Neighbor {
		return s.SearchVector(q, k)
	})
}

// Query returns the neighbors of observation i in freshly allocated slices.
func (x *KNN) Query(i, k int) ([]int32, []float32, error) {
	indices, distances := make([]int32, max(k, 0)), make([]float32, max(k, 0))

	n, err := x.QueryByIndex(i, k, indices, distances)
	if err != nil {
		return nil, nil, err
	}

	return indices[:n], distances[:n], nil
}

// QueryVector returns the neighbors of q in freshly allocated slices.
func (x *KNN) QueryVector(q []float32, k int) ([]int32, []float32, error) {
	indices, distances := make([]int32, max(k, 0)), make([]float32, max(k, 0))

	n, err := x.QueryByVector(q, k, indices, distances)
	if err != nil {
		return nil, nil, err
	}

	return indices[:n], distances[:n], nil
}

func (x *KNN) checkQuery(k int, outIndices []int32, outDistances []float32) error {
	if x.closed {
		return ErrClosed
	}

	if k < 0 {
		return ErrInvalidK
	}

	if (outIndices != nil && len(outIndices) < k) || (outDistances != nil && len(outDistances) < k) {
		return ErrBufferTooSmall
	}

	return nil
}

func (x *KNN) query(k int, outIndices []int32, outDistances []float32, search func(s neighbors.Searcher) []neighbors.Neighbor) (int, error) {
	if k == 0 {
		return 0, nil
	}

	start := time.Now()

	res := search(x.index.Initialize())

	for j, n := range res {
		if outIndices != nil {
			outIndices[j] = int32(n.Index) // nolint gosec
		}

		if outDistances != nil {
			outDistances[j] = n.Distance
		}
	}

	x.metrics.RecordQuery(k, len(res), time.Since(start), nil)
	x.logger.LogQuery(x.ctx, k, len(res), nil)

	return len(res), nil
}

// Method returns the backend the context was built with.
func (x *KNN) Method() Method { return x.method }

// Metric returns the metric the context was built with.
func (x *KNN) Metric() distance.Metric { return x.metric }

// Count returns the number of indexed points.
func (x *KNN) Count() int { return x.count }

// Dim returns the dimensionality of the indexed points.
func (x *KNN) Dim() int { return x.dim }

// Close releases the index. Every later call returns ErrClosed.
func (x *KNN) Close() error {
	if x.closed {
		return ErrClosed
	}

	x.closed = true
	x.index = nil

	return nil
}
