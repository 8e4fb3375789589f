// Package distance provides the vector distance kernels used by the neighbor
// backends and the metric normalizer.
package distance

import (
	"fmt"

	"github.com/hupe1980/umapgo/internal/math32"
	"github.com/viant/vec/search"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return math32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return math32.SquaredL2(a, b)
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float32) float32 {
	return math32.Sqrt(math32.SquaredL2(a, b))
}

// HalfSquaredL2 calculates half of the squared Euclidean distance.
//
// On L2-normalized inputs this equals the cosine distance 1 - cos(a, b), which
// is the scale the layout optimizer expects for the cosine metric.
func HalfSquaredL2(a, b []float32) float32 {
	return math32.SquaredL2(a, b) / 2
}

// CosineDistance calculates 1 - cos(a, b) on unnormalized inputs.
// A zero-magnitude input yields a distance of 1.
func CosineDistance(a, b []float32) float32 {
	va := search.Float32s(a)
	vb := search.Float32s(b)

	if va.Magnitude() == 0 || vb.Magnitude() == 0 {
		return 1
	}

	return va.CosineDistance(b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false, leaving v untouched, if the sum of squares of v is not
// positive.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}

	norm2 := math32.Dot(v, v)
	if !(norm2 > 0) {
		return false
	}

	inv := 1 / math32.Sqrt(norm2)
	math32.ScaleInPlace(v, inv)

	return true
}

// Metric represents the distance metric requested by the caller.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricCosine:
		return "cosine"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// ParseMetric parses the configuration name of a metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "euclidean":
		return MetricEuclidean, nil
	case "cosine":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unsupported metric %q", s)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Kernel identifies the distance reported by the exact and HNSW backends.
//
// Both kernels rank neighbors identically; they differ only in the scale of
// the reported distance.
type Kernel int

const (
	// KernelEuclidean reports the Euclidean distance.
	KernelEuclidean Kernel = iota
	// KernelHalfSquaredEuclidean reports half of the squared Euclidean distance.
	KernelHalfSquaredEuclidean
)

func (k Kernel) String() string {
	switch k {
	case KernelEuclidean:
		return "euclidean"
	case KernelHalfSquaredEuclidean:
		return "half-squared-euclidean"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Func returns the distance function reported by the kernel.
func (k Kernel) Func() Func {
	if k == KernelHalfSquaredEuclidean {
		return HalfSquaredL2
	}

	return L2
}

// FromSquaredL2 converts a squared Euclidean distance into the kernel's scale.
func (k Kernel) FromSquaredL2(sq float32) float32 {
	if k == KernelHalfSquaredEuclidean {
		return sq / 2
	}

	return math32.Sqrt(sq)
}

// KernelFor returns the kernel substituted for the given metric once the input
// rows have been normalized.
func KernelFor(m Metric) Kernel {
	if m == MetricCosine {
		return KernelHalfSquaredEuclidean
	}

	return KernelEuclidean
}
