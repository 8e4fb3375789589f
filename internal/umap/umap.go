// Package umap computes UMAP layouts from a neighbor index.
//
// Initialize builds the fuzzy graph, computes the initial layout and the
// sampling schedule. The returned Status is a resumable state machine: every
// call to Run advances the optimizer by whole epochs and may be interleaved
// with arbitrary other work.
package umap

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/umapgo/neighbors"
)

const gradClip = 4

var (
	// ErrEmbeddingSize is returned when the embedding buffer does not hold
	// exactly count × outDim values.
	ErrEmbeddingSize = errors.New("umap: embedding buffer size mismatch")

	// ErrInvalidOutputDim is returned for an output dimension below one.
	ErrInvalidOutputDim = errors.New("umap: output dimension must be positive")
)

// Status is the state of an embedding being optimized.
type Status struct {
	n      int
	outDim int

	// embedding aliases the caller's buffer and is never reallocated.
	embedding []float32

	head   []int32
	tail   []int32
	weight []float64

	epochsPerSample    []float64
	nextSample         []float64
	epochsPerNegSample []float64
	nextNegSample      []float64

	a, b         float64
	gamma        float64
	learningRate float64

	nEpochs int
	epoch   int

	// initFallback is set when a spectral layout was requested but a random
	// one was used.
	initFallback error

	rng *rand.Rand
}

// Initialize builds the fuzzy graph of idx, writes the initial layout into
// embedding and prepares the epoch schedule.
func Initialize(idx neighbors.Index, outDim int, embedding []float32, opts Options) (*Status, error) {
	n := idx.Count()

	if outDim <= 0 {
		return nil, ErrInvalidOutputDim
	}

	if len(embedding) != n*outDim {
		return nil, fmt.Errorf("%w: got %d values, want %d×%d", ErrEmbeddingSize, len(embedding), n, outDim)
	}

	a, b := opts.A, opts.B
	if a <= 0 || b <= 0 {
		var err error

		a, b, err = FitAB(opts.Spread, opts.MinDist)
		if err != nil {
			return nil, err
		}
	}

	nEpochs := opts.NEpochs
	if nEpochs <= 0 {
		nEpochs = EpochsFor(n)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, 0x853c49e6748fea9b)) // nolint gosec

	edges := fuzzySimplicialSet(collectNeighbors(idx, opts.NNeighbors), opts)

	s := &Status{
		n:            n,
		outDim:       outDim,
		embedding:    embedding,
		a:            a,
		b:            b,
		gamma:        opts.RepulsionStrength,
		learningRate: opts.LearningRate,
		nEpochs:      nEpochs,
		rng:          rng,
	}

	switch opts.Initialize {
	case InitializeSpectral:
		if err := spectralLayout(newCSR(n, edges), outDim, embedding, rng); err != nil {
			s.initFallback = err
			randomLayout(embedding, rng)
		}
	case InitializeRandom:
		randomLayout(embedding, rng)
	case InitializeNone:
	}

	s.schedule(edges, opts.NegativeSampleRate)

	return s, nil
}

// schedule keeps the edges strong enough to be sampled at least once and
// computes their sampling periods.
func (s *Status) schedule(edges []edge, negativeSampleRate float64) {
	var maxWeight float64
	for _, e := range edges {
		maxWeight = max(maxWeight, e.weight)
	}

	cutoff := maxWeight / float64(s.nEpochs)

	for _, e := range edges {
		if e.weight < cutoff {
			continue
		}

		eps := maxWeight / e.weight

		s.head = append(s.head, e.head)
		s.tail = append(s.tail, e.tail)
		s.weight = append(s.weight, e.weight)
		s.epochsPerSample = append(s.epochsPerSample, eps)
		s.nextSample = append(s.nextSample, eps)

		neg := math.Inf(1)
		if negativeSampleRate > 0 {
			neg = eps / negativeSampleRate
		}

		s.epochsPerNegSample = append(s.epochsPerNegSample, neg)
		s.nextNegSample = append(s.nextNegSample, neg)
	}
}

// Run advances the optimizer up to epochLimit, clamped to NEpochs. A limit
// of zero or less runs to completion. Run is a no-op once Epoch equals
// NEpochs and returns the number of epochs it performed.
func (s *Status) Run(epochLimit int) int {
	if epochLimit <= 0 || epochLimit > s.nEpochs {
		epochLimit = s.nEpochs
	}

	ran := 0
	for s.epoch < epochLimit {
		s.step()
		s.epoch++
		ran++
	}

	return ran
}

// step performs one epoch of stochastic gradient descent.
func (s *Status) step() {
	epoch := float64(s.epoch)
	alpha := s.learningRate * (1 - epoch/float64(s.nEpochs))

	dim := s.outDim
	emb := s.embedding
	a, b := s.a, s.b

	for e := range s.head {
		if s.nextSample[e] > epoch {
			continue
		}

		j := int(s.head[e])
		k := int(s.tail[e])

		current := emb[j*dim : j*dim+dim]
		other := emb[k*dim : k*dim+dim]

		dist2 := squaredDist(current, other)

		var coeff float64
		if dist2 > 0 {
			pb := math.Pow(dist2, b)
			coeff = -2 * a * b * pb / dist2 / (a*pb + 1)
		}

		for d := range dim {
			g := clip(coeff * float64(current[d]-other[d]))
			current[d] += float32(g * alpha)
			other[d] -= float32(g * alpha)
		}

		s.nextSample[e] += s.epochsPerSample[e]

		nNeg := 0
		if !math.IsInf(s.epochsPerNegSample[e], 1) {
			nNeg = max(int((epoch-s.nextNegSample[e])/s.epochsPerNegSample[e]), 0)
		}

		for range nNeg {
			neg := s.rng.IntN(s.n)
			if neg == j {
				continue
			}

			other := emb[neg*dim : neg*dim+dim]

			dist2 := squaredDist(current, other)
			if dist2 == 0 {
				continue
			}

			coeff := 2 * s.gamma * b / ((0.001 + dist2) * (a*math.Pow(dist2, b) + 1))

			for d := range dim {
				g := clip(coeff * float64(current[d]-other[d]))
				current[d] += float32(g * alpha)
			}
		}

		if nNeg > 0 {
			s.nextNegSample[e] += float64(nNeg) * s.epochsPerNegSample[e]
		}
	}
}

func squaredDist(x, y []float32) float64 {
	var s float64

	for i := range x {
		d := float64(x[i] - y[i])
		s += d * d
	}

	return s
}

func clip(v float64) float64 {
	switch {
	case v > gradClip:
		return gradClip
	case v < -gradClip:
		return -gradClip
	default:
		return v
	}
}

// Epoch returns the number of completed epochs.
func (s *Status) Epoch() int { return s.epoch }

// NEpochs returns the total number of epochs.
func (s *Status) NEpochs() int { return s.nEpochs }

// Embedding returns the layout buffer.
func (s *Status) Embedding() []float32 { return s.embedding }

// Count returns the number of points.
func (s *Status) Count() int { return s.n }

// OutputDim returns the dimensionality of the layout.
func (s *Status) OutputDim() int { return s.outDim }

// Edges returns the number of edges kept in the sampling schedule.
func (s *Status) Edges() int { return len(s.head) }

// Params returns the fitted or configured curve parameters.
func (s *Status) Params() (a, b float64) { return s.a, s.b }

// InitFallback returns the reason a requested spectral layout was replaced
// by a random one, or nil.
func (s *Status) InitFallback() error { return s.initFallback }
