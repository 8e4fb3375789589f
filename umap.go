package umapgo

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/internal/umap"
	"github.com/hupe1980/umapgo/neighbors"
)

// UMAP is a resumable embedding computation.
//
// The constructor builds the neighbor graph, the fuzzy simplicial set, the
// initial layout and the epoch schedule. Run then advances the layout
// optimizer in caller-chosen slices, writing into the embedding buffer.
type UMAP struct {
	status    *umap.Status
	index     neighbors.Index
	count     int
	inputDim  int
	outputDim int
	fallback  error
	closed    bool
	ctx       context.Context
	logger    *Logger
	metrics   MetricsCollector
}

// NewUMAP prepares the embedding of count rows of inputDim values into
// outputDim dimensions. embedding must hold exactly count*outputDim values;
// it is used as the initial layout when the initialize method is "none".
//
// A nil opts uses NewUMAPOptions. Non-finite values of data are replaced
// with 0 and, with the cosine metric, every row is L2-normalized in place.
func NewUMAP(count, inputDim, outputDim int, data, embedding []float32, opts *UMAPOptions, optFns ...Option) (*UMAP, error) {
	if opts == nil {
		opts = NewUMAPOptions()
	}

	o := applyOptions(optFns)

	m, err := newMatrix(count, inputDim, data)
	if err != nil {
		return nil, err
	}

	if outputDim <= 0 || len(embedding) != count*outputDim {
		return nil, fmt.Errorf("%w: embedding holds %d values, want %d×%d", ErrInvalidShape, len(embedding), count, outputDim)
	}

	FillNonFinite(m.Data)

	if opts.Metric == distance.MetricCosine {
		NormalizeRows(m)
	}

	logger := o.logger.WithMethod(opts.KNNMethod).WithCount(count).WithDimension(inputDim)

	builder := NewBuilder(opts.KNNMethod, opts.Metric, embeddingBackend(opts.Backend, opts.NNeighbors))

	start := time.Now()
	index, err := builder.Build(m)
	elapsed := time.Since(start)

	o.metricsCollector.RecordBuild(opts.KNNMethod, count, elapsed, err)
	logger.LogBuild(o.ctx, elapsed, err, indexAttrs(index)...)

	if err != nil {
		return nil, err
	}

	status, err := umap.Initialize(index, outputDim, embedding, opts.layout())
	if err != nil {
		return nil, err
	}

	if reason := status.InitFallback(); reason != nil {
		logger.LogInitFallback(o.ctx, reason)
	}

	return &UMAP{
		status:    status,
		index:     index,
		count:     count,
		inputDim:  inputDim,
		outputDim: outputDim,
		fallback:  status.InitFallback(),
		ctx:       o.ctx,
		logger:    logger,
		metrics:   o.metricsCollector,
	}, nil
}

// Run advances the optimizer until Epoch reaches min(epochLimit, NEpochs).
// An epochLimit of zero or less runs to completion. Once all epochs are done
// Run does nothing.
func (u *UMAP) Run(epochLimit int) error {
	if u.closed {
		return ErrClosed
	}

	start := time.Now()
	ran := u.status.Run(epochLimit)
	elapsed := time.Since(start)

	if ran > 0 {
		u.metrics.RecordRun(ran, elapsed)
	}

	u.logger.LogRun(u.ctx, u.status.Epoch(), u.status.NEpochs(), ran, elapsed)

	return nil
}

// NEpochs returns the total number of epochs.
func (u *UMAP) NEpochs() (int, error) {
	if u.closed {
		return 0, ErrClosed
	}

	return u.status.NEpochs(), nil
}

// Epoch returns the number of completed epochs.
func (u *UMAP) Epoch() (int, error) {
	if u.closed {
		return 0, ErrClosed
	}

	return u.status.Epoch(), nil
}

// Embedding returns the embedding buffer passed to NewUMAP.
func (u *UMAP) Embedding() ([]float32, error) {
	if u.closed {
		return nil, ErrClosed
	}

	return u.status.Embedding(), nil
}

// Count returns the number of embedded points.
func (u *UMAP) Count() int { return u.count }

// InputDim returns the dimensionality of the input points.
func (u *UMAP) InputDim() int { return u.inputDim }

// OutputDim returns the dimensionality of the embedding.
func (u *UMAP) OutputDim() int { return u.outputDim }

// InitFallback reports why a requested spectral layout was replaced by a
// random one, or nil.
func (u *UMAP) InitFallback() error { return u.fallback }

// Close releases the neighbor index and optimizer state. Every later call
// to Run, Epoch, NEpochs or Embedding returns ErrClosed.
func (u *UMAP) Close() error {
	if u.closed {
		return ErrClosed
	}

	u.closed = true
	u.status = nil
	u.index = nil

	return nil
}
