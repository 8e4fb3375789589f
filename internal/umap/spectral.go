package umap

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	spectralMaxIters   = 1000
	spectralCheckEvery = 10
	spectralTolerance  = 1e-7
	spectralOversample = 6
	spectralMaxCoord   = 10
	spectralJitter     = 1e-4
)

var (
	errDisconnected  = errors.New("umap: fuzzy graph is not connected")
	errTooFewPoints  = errors.New("umap: too few points for a spectral layout")
	errZeroDegree    = errors.New("umap: fuzzy graph has an isolated point")
	errEigenSolve    = errors.New("umap: eigen decomposition failed")
	errRankDeficient = errors.New("umap: spectral subspace lost rank")
)

// csr is a compressed sparse row view of the symmetric fuzzy graph.
type csr struct {
	n      int
	offset []int
	col    []int32
	val    []float64
}

// newCSR builds a CSR matrix from edges ordered by (head, tail).
func newCSR(n int, edges []edge) *csr {
	g := &csr{
		n:      n,
		offset: make([]int, n+1),
		col:    make([]int32, len(edges)),
		val:    make([]float64, len(edges)),
	}

	for _, e := range edges {
		g.offset[e.head+1]++
	}

	for i := range n {
		g.offset[i+1] += g.offset[i]
	}

	for i, e := range edges {
		g.col[i] = e.tail
		g.val[i] = e.weight
	}

	return g
}

// connected reports whether the graph has a single component.
func (g *csr) connected() bool {
	parent := make([]int32, g.n)
	for i := range parent {
		parent[i] = int32(i)
	}

	find := func(x int32) int32 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}

		return x
	}

	components := g.n

	for i := range g.n {
		for p := g.offset[i]; p < g.offset[i+1]; p++ {
			a, b := find(int32(i)), find(g.col[p])
			if a != b {
				parent[a] = b
				components--
			}
		}
	}

	return components == 1
}

// spectralLayout writes the coordinates of the outDim leading non-trivial
// eigenvectors of D^-1/2 W D^-1/2 into embedding, scaled so that the largest
// absolute coordinate is 10, plus a small Gaussian jitter.
func spectralLayout(g *csr, outDim int, embedding []float32, rng *rand.Rand) error {
	n := g.n

	if n <= outDim+1 {
		return errTooFewPoints
	}

	if !g.connected() {
		return errDisconnected
	}

	invSqrtDeg := make([]float64, n)
	trivial := make([]float64, n)

	for i := range n {
		d := floats.Sum(g.val[g.offset[i]:g.offset[i+1]])
		if !(d > 0) {
			return errZeroDegree
		}

		invSqrtDeg[i] = 1 / math.Sqrt(d)
		trivial[i] = math.Sqrt(d)
	}

	floats.Scale(1/floats.Norm(trivial, 2), trivial)

	p := min(outDim+spectralOversample, n-1)

	// apply computes y = (I + A)/2 x, whose spectrum lies in [0, 1] and
	// shares its eigenvectors with A.
	apply := func(x, y []float64) {
		for i := range n {
			var s float64
			for q := g.offset[i]; q < g.offset[i+1]; q++ {
				j := g.col[q]
				s += g.val[q] * invSqrtDeg[j] * x[j]
			}

			y[i] = 0.5 * (x[i] + invSqrtDeg[i]*s)
		}
	}

	basis := make([][]float64, p)
	work := make([][]float64, p)

	for c := range basis {
		basis[c] = make([]float64, n)
		work[c] = make([]float64, n)

		for i := range basis[c] {
			basis[c][i] = rng.NormFloat64()
		}
	}

	if err := orthonormalize(basis, trivial); err != nil {
		return err
	}

	var prev []float64

	for iter := 1; iter <= spectralMaxIters; iter++ {
		for c := range basis {
			apply(basis[c], work[c])
		}

		basis, work = work, basis

		if err := orthonormalize(basis, trivial); err != nil {
			return err
		}

		if iter%spectralCheckEvery != 0 && iter != spectralMaxIters {
			continue
		}

		values, _, err := rayleighRitz(basis, work, apply, false)
		if err != nil {
			return err
		}

		if prev != nil && converged(prev, values, outDim) {
			break
		}

		prev = values
	}

	_, vectors, err := rayleighRitz(basis, work, apply, true)
	if err != nil {
		return err
	}

	// EigenSym orders values ascending; the leading vectors are the last ones.
	coords := make([]float64, n*outDim)
	maxAbs := 0.0

	for d := range outDim {
		col := p - 1 - d

		for i := range n {
			var v float64
			for c := range p {
				v += basis[c][i] * vectors.At(c, col)
			}

			coords[i*outDim+d] = v
			maxAbs = max(maxAbs, math.Abs(v))
		}
	}

	if !(maxAbs > 0) || math.IsInf(maxAbs, 0) {
		return errEigenSolve
	}

	expansion := spectralMaxCoord / maxAbs
	for i, v := range coords {
		embedding[i] = float32(v*expansion + rng.NormFloat64()*spectralJitter)
	}

	return nil
}

// orthonormalize runs modified Gram-Schmidt over basis after projecting out
// the trivial eigenvector.
func orthonormalize(basis [][]float64, trivial []float64) error {
	for c := range basis {
		floats.AddScaled(basis[c], -floats.Dot(trivial, basis[c]), trivial)

		for prev := range c {
			floats.AddScaled(basis[c], -floats.Dot(basis[prev], basis[c]), basis[prev])
		}

		norm := floats.Norm(basis[c], 2)
		if !(norm > 1e-12) {
			return errRankDeficient
		}

		floats.Scale(1/norm, basis[c])
	}

	return nil
}

// rayleighRitz projects the operator onto the span of basis and solves the
// small symmetric eigenproblem. work is used as scratch space.
func rayleighRitz(basis, work [][]float64, apply func(x, y []float64), wantVectors bool) ([]float64, *mat.Dense, error) {
	p := len(basis)

	for c := range basis {
		apply(basis[c], work[c])
	}

	h := mat.NewSymDense(p, nil)
	for r := range p {
		for c := r; c < p; c++ {
			h.SetSym(r, c, floats.Dot(basis[r], work[c]))
		}
	}

	var es mat.EigenSym
	if !es.Factorize(h, wantVectors) {
		return nil, nil, errEigenSolve
	}

	values := es.Values(nil)

	if !wantVectors {
		return values, nil, nil
	}

	var vectors mat.Dense
	es.VectorsTo(&vectors)

	return values, &vectors, nil
}

// converged compares the top k Ritz values of two checks.
func converged(prev, curr []float64, k int) bool {
	p := len(curr)

	for d := range k {
		if math.Abs(prev[p-1-d]-curr[p-1-d]) > spectralTolerance {
			return false
		}
	}

	return true
}

// randomLayout draws every coordinate uniformly from [-10, 10].
func randomLayout(embedding []float32, rng *rand.Rand) {
	for i := range embedding {
		embedding[i] = float32(rng.Float64()*20 - 10)
	}
}
