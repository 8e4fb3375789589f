package umapgo

import (
	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/internal/math32"
	"github.com/hupe1980/umapgo/neighbors"
)

// NormalizeRows scales every row of m to unit L2 norm in place and returns
// the number of rows changed. Rows whose sum of squares is not positive are
// left untouched.
func NormalizeRows(m neighbors.Matrix) int {
	changed := 0

	for i := 0; i < m.Count; i++ {
		if distance.NormalizeL2InPlace(m.Row(i)) {
			changed++
		}
	}

	return changed
}

// FillNonFinite replaces NaN and infinite entries of data with zero and
// returns how many were replaced.
func FillNonFinite(data []float32) int {
	return math32.ReplaceNonFinite(data, 0)
}
