package umap

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"
)

const curveSamples = 300

// errCurveFit is returned when the curve parameters cannot be fitted.
var errCurveFit = errors.New("umap: cannot fit curve parameters from spread and min_dist")

// FitAB fits a and b of 1 / (1 + a·x^(2b)) to the offset exponential
// defined by spread and minDist by least squares.
func FitAB(spread, minDist float64) (a, b float64, err error) {
	if !(spread > 0) || minDist < 0 {
		return 0, 0, errCurveFit
	}

	xs := make([]float64, curveSamples)
	ys := make([]float64, curveSamples)

	step := 3 * spread / (curveSamples - 1)
	for i := range xs {
		x := float64(i) * step
		xs[i] = x

		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			if p[0] <= 0 || p[1] <= 0 {
				return math.Inf(1)
			}

			var sse float64
			for i, x := range xs {
				r := 1/(1+p[0]*math.Pow(x, 2*p[1])) - ys[i]
				sse += r * r
			}

			return sse
		},
	}

	settings := &optimize.Settings{
		MajorIterations: 2000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Iterations: 200,
		},
	}

	res, err := optimize.Minimize(problem, []float64{1, 1}, settings, &optimize.NelderMead{})
	if res == nil {
		return 0, 0, errors.Join(errCurveFit, err)
	}

	a, b = res.X[0], res.X[1]
	if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0, 0, errCurveFit
	}

	return a, b, nil
}
