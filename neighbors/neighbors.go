// Package neighbors defines the build-then-search contract shared by the
// nearest-neighbor backends.
//
// A Builder turns a row-major Matrix into an immutable Index. An Index hands
// out lightweight Searchers; a Searcher is meant for one query call and is
// never cached by the callers in this module.
package neighbors

import (
	"errors"
	"fmt"
)

// ErrEmptyMatrix is returned when a matrix has no rows or no columns.
var ErrEmptyMatrix = errors.New("neighbors: matrix must have at least one row and one column")

// Matrix is a row-major count × dim view over a caller-owned buffer.
type Matrix struct {
	Count int
	Dim   int
	Data  []float32
}

// NewMatrix validates the shape of data and returns a view over it.
func NewMatrix(count, dim int, data []float32) (Matrix, error) {
	if count <= 0 || dim <= 0 {
		return Matrix{}, ErrEmptyMatrix
	}

	if len(data) != count*dim {
		return Matrix{}, fmt.Errorf("neighbors: matrix buffer holds %d values, want %d×%d=%d", len(data), count, dim, count*dim)
	}

	return Matrix{Count: count, Dim: dim, Data: data}, nil
}

// Row returns the i-th row. The slice aliases the underlying buffer.
func (m Matrix) Row(i int) []float32 {
	off := i * m.Dim
	return m.Data[off : off+m.Dim : off+m.Dim]
}

// Neighbor is one search result.
type Neighbor struct {
	Index    int
	Distance float32
}

// Builder builds a neighbor index over a matrix.
type Builder interface {
	// Build indexes every row of m. Implementations may keep a reference to
	// m.Data; the caller must not mutate it for the lifetime of the index.
	Build(m Matrix) (Index, error)
}

// Index is an immutable neighbor structure.
type Index interface {
	// Dimension returns the dimensionality of the indexed points.
	Dimension() int
	// Count returns the number of indexed points.
	Count() int
	// Initialize returns a fresh searcher.
	Initialize() Searcher
}

// Searcher answers k-nearest-neighbor queries against an Index.
// Results are ordered by ascending distance.
type Searcher interface {
	// Search returns up to k neighbors of the indexed observation i,
	// excluding i itself.
	Search(i, k int) []Neighbor
	// SearchVector returns up to k neighbors of an arbitrary query vector.
	SearchVector(q []float32, k int) []Neighbor
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(m Matrix) (Index, error)

// Build calls f(m).
func (f BuilderFunc) Build(m Matrix) (Index, error) {
	return f(m)
}

// ExcludeSelf drops i from a result list and truncates it to k entries.
// It is used by backends that answer observation queries with k+1 vector
// queries.
func ExcludeSelf(res []Neighbor, i, k int) []Neighbor {
	out := res[:0]

	for _, n := range res {
		if n.Index == i {
			continue
		}

		out = append(out, n)
		if len(out) == k {
			break
		}
	}

	return out
}
