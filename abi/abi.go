// Package abi exposes umapgo through a flat, handle-based surface suited to
// foreign-function hosts.
//
// Objects live in handle tables owned by a Runtime and are referenced by
// non-zero integer handles; handle 0 is the null handle. Setters and
// commands return 0 on success and -1 on failure, queries return a count or
// -1. The error behind the most recent failure is available from LastError.
//
// A Runtime is not safe for concurrent use.
package abi

import (
	"errors"
	"fmt"

	"github.com/hupe1980/umapgo"
)

// Handle references an object owned by a Runtime. Zero is the null handle.
type Handle uint32

// ErrInvalidHandle is recorded when a handle is null, unknown or refers to
// an object of another kind.
var ErrInvalidHandle = errors.New("abi: invalid handle")

// Runtime owns the handle tables.
type Runtime struct {
	next        Handle
	knnOptions  map[Handle]*umapgo.KNNOptions
	knnContexts map[Handle]*umapgo.KNN
	umapOptions map[Handle]*umapgo.UMAPOptions
	umapContext map[Handle]*umapgo.UMAP
	optFns      []umapgo.Option
	lastErr     error
}

// NewRuntime returns an empty runtime. optFns are passed to every context
// the runtime creates.
func NewRuntime(optFns ...umapgo.Option) *Runtime {
	return &Runtime{
		knnOptions:  make(map[Handle]*umapgo.KNNOptions),
		knnContexts: make(map[Handle]*umapgo.KNN),
		umapOptions: make(map[Handle]*umapgo.UMAPOptions),
		umapContext: make(map[Handle]*umapgo.UMAP),
		optFns:      optFns,
	}
}

// LastError returns the error of the most recent failed call, or nil.
func (r *Runtime) LastError() error { return r.lastErr }

// Live returns the number of objects currently held by the runtime.
func (r *Runtime) Live() int {
	return len(r.knnOptions) + len(r.knnContexts) + len(r.umapOptions) + len(r.umapContext)
}

func (r *Runtime) alloc() Handle {
	r.next++
	return r.next
}

func (r *Runtime) fail(err error) int {
	r.lastErr = err
	return -1
}

func lookup[T any](r *Runtime, table map[Handle]T, h Handle) (T, bool) {
	v, ok := table[h]
	if !ok {
		r.lastErr = fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}

	return v, ok
}

func status(r *Runtime, err error) int {
	if err != nil {
		return r.fail(err)
	}

	return 0
}

// KNNOptionsCreate allocates KNN options with their defaults.
func (r *Runtime) KNNOptionsCreate() Handle {
	h := r.alloc()
	r.knnOptions[h] = umapgo.NewKNNOptions()

	return h
}

// KNNOptionsDestroy frees KNN options. Destroying the null handle is a no-op.
func (r *Runtime) KNNOptionsDestroy(h Handle) {
	delete(r.knnOptions, h)
}

// KNNOptionsNumber sets a numeric KNN option.
func (r *Runtime) KNNOptionsNumber(h Handle, name string, value float64) int {
	o, ok := lookup(r, r.knnOptions, h)
	if !ok {
		return -1
	}

	return status(r, o.SetNumber(name, value))
}

// KNNOptionsString sets an enumerated KNN option.
func (r *Runtime) KNNOptionsString(h Handle, name, value string) int {
	o, ok := lookup(r, r.knnOptions, h)
	if !ok {
		return -1
	}

	return status(r, o.SetString(name, value))
}

// KNNContextCreateF32 indexes count rows of inputDim values. A null options
// handle selects the defaults. It returns the null handle on failure.
func (r *Runtime) KNNContextCreateF32(count, inputDim int, data []float32, options Handle) Handle {
	var opts *umapgo.KNNOptions

	if options != 0 {
		o, ok := lookup(r, r.knnOptions, options)
		if !ok {
			return 0
		}

		opts = o
	}

	knn, err := umapgo.NewKNN(count, inputDim, data, opts, r.optFns...)
	if err != nil {
		r.lastErr = err
		return 0
	}

	h := r.alloc()
	r.knnContexts[h] = knn

	return h
}

// KNNContextDestroy frees a KNN context.
func (r *Runtime) KNNContextDestroy(h Handle) {
	if knn, ok := r.knnContexts[h]; ok {
		_ = knn.Close()
		delete(r.knnContexts, h)
	}
}

// KNNContextQueryByIndex writes the neighbors of observation index and
// returns their number, or -1. Nil output slices are not written.
func (r *Runtime) KNNContextQueryByIndex(h Handle, index, k int, outIndices []int32, outDistances []float32) int {
	knn, ok := lookup(r, r.knnContexts, h)
	if !ok {
		return -1
	}

	n, err := knn.QueryByIndex(index, k, outIndices, outDistances)
	if err != nil {
		return r.fail(err)
	}

	return n
}

// KNNContextQueryByVector writes the neighbors of q and returns their
// number, or -1. Nil output slices are not written.
func (r *Runtime) KNNContextQueryByVector(h Handle, q []float32, k int, outIndices []int32, outDistances []float32) int {
	knn, ok := lookup(r, r.knnContexts, h)
	if !ok {
		return -1
	}

	n, err := knn.QueryByVector(q, k, outIndices, outDistances)
	if err != nil {
		return r.fail(err)
	}

	return n
}

// UMAPOptionsCreate allocates embedding options with their defaults.
func (r *Runtime) UMAPOptionsCreate() Handle {
	h := r.alloc()
	r.umapOptions[h] = umapgo.NewUMAPOptions()

	return h
}

// UMAPOptionsDestroy frees embedding options.
func (r *Runtime) UMAPOptionsDestroy(h Handle) {
	delete(r.umapOptions, h)
}

// UMAPOptionsNumber sets a numeric embedding option.
func (r *Runtime) UMAPOptionsNumber(h Handle, name string, value float64) int {
	o, ok := lookup(r, r.umapOptions, h)
	if !ok {
		return -1
	}

	return status(r, o.SetNumber(name, value))
}

// UMAPOptionsString sets an enumerated embedding option.
func (r *Runtime) UMAPOptionsString(h Handle, name, value string) int {
	o, ok := lookup(r, r.umapOptions, h)
	if !ok {
		return -1
	}

	return status(r, o.SetString(name, value))
}

// UMAPContextCreateF32 prepares an embedding of count rows into outputDim
// dimensions written to embedding. It returns the null handle on failure.
func (r *Runtime) UMAPContextCreateF32(count, inputDim, outputDim int, data, embedding []float32, options Handle) Handle {
	var opts *umapgo.UMAPOptions

	if options != 0 {
		o, ok := lookup(r, r.umapOptions, options)
		if !ok {
			return 0
		}

		opts = o
	}

	u, err := umapgo.NewUMAP(count, inputDim, outputDim, data, embedding, opts, r.optFns...)
	if err != nil {
		r.lastErr = err
		return 0
	}

	h := r.alloc()
	r.umapContext[h] = u

	return h
}

// UMAPContextDestroy frees an embedding context.
func (r *Runtime) UMAPContextDestroy(h Handle) {
	if u, ok := r.umapContext[h]; ok {
		_ = u.Close()
		delete(r.umapContext, h)
	}
}

// UMAPContextRun advances the optimizer up to epochLimit epochs; zero or
// less runs to completion.
func (r *Runtime) UMAPContextRun(h Handle, epochLimit int) int {
	u, ok := lookup(r, r.umapContext, h)
	if !ok {
		return -1
	}

	return status(r, u.Run(epochLimit))
}

// UMAPContextNEpochs returns the total number of epochs, or -1.
func (r *Runtime) UMAPContextNEpochs(h Handle) int {
	u, ok := lookup(r, r.umapContext, h)
	if !ok {
		return -1
	}

	n, err := u.NEpochs()
	if err != nil {
		return r.fail(err)
	}

	return n
}

// UMAPContextEpoch returns the number of completed epochs, or -1.
func (r *Runtime) UMAPContextEpoch(h Handle) int {
	u, ok := lookup(r, r.umapContext, h)
	if !ok {
		return -1
	}

	n, err := u.Epoch()
	if err != nil {
		return r.fail(err)
	}

	return n
}
