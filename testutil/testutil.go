package testutil

import (
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/neighbors"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// UniformMatrix returns a row-major count × dim matrix with values in [0, 1).
func (r *RNG) UniformMatrix(count, dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, count*dim)
	for i := range data {
		data[i] = r.rand.Float32()
	}

	return data
}

// GaussianMatrix returns a row-major count × dim matrix drawn from a standard
// normal distribution.
func (r *RNG) GaussianMatrix(count, dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, count*dim)
	for i := range data {
		data[i] = float32(r.rand.NormFloat64())
	}

	return data
}

// UnitMatrix returns count L2-normalized rows of dimension dim.
func (r *RNG) UnitMatrix(count, dim int) []float32 {
	data := r.GaussianMatrix(count, dim)

	for i := range count {
		distance.NormalizeL2InPlace(data[i*dim : (i+1)*dim])
	}

	return data
}

// ClusteredMatrix returns count rows scattered around clusters unit-vector
// centroids with Gaussian noise of the given spread. Row i belongs to
// cluster i % clusters.
func (r *RNG) ClusteredMatrix(count, dim, clusters int, spread float32) []float32 {
	centroids := r.UnitMatrix(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, count*dim)

	for i := range count {
		c := centroids[(i%clusters)*dim : (i%clusters+1)*dim]
		row := data[i*dim : (i+1)*dim]

		for j := range row {
			row[j] = c[j] + float32(r.rand.NormFloat64())*spread
		}
	}

	return data
}

// BruteForce returns the exact k nearest rows of m to q by Euclidean distance.
// When skip is a valid row index that row is excluded.
func BruteForce(m neighbors.Matrix, q []float32, k, skip int) []neighbors.Neighbor {
	res := make([]neighbors.Neighbor, 0, m.Count)

	for i := range m.Count {
		if i == skip {
			continue
		}

		res = append(res, neighbors.Neighbor{Index: i, Distance: distance.L2(q, m.Row(i))})
	}

	slices.SortStableFunc(res, func(a, b neighbors.Neighbor) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	if len(res) > k {
		res = res[:k]
	}

	return res
}

// ComputeRecall computes recall@k by comparing approximate results against ground truth.
func ComputeRecall(groundTruth, approximate []neighbors.Neighbor) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[int]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].Index] = struct{}{}
	}

	hits := 0
	for _, n := range approximate[:k] {
		if _, ok := truthSet[n.Index]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}

// AllFinite reports whether every value of data is finite.
func AllFinite(data []float32) bool {
	for _, v := range data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}

	return true
}
