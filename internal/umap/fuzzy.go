package umap

import (
	"cmp"
	"math"
	"slices"

	"github.com/hupe1980/umapgo/neighbors"
)

const (
	smoothKNNTolerance = 1e-5
	smoothKNNIters     = 64
	minKDistScale      = 1e-3
)

// edge is one weighted link of the fuzzy graph.
type edge struct {
	head, tail int32
	weight     float64
}

// collectNeighbors queries every observation of idx for k neighbors.
func collectNeighbors(idx neighbors.Index, k int) [][]neighbors.Neighbor {
	s := idx.Initialize()

	out := make([][]neighbors.Neighbor, idx.Count())
	for i := range out {
		out[i] = s.Search(i, k)
	}

	return out
}

// smoothKNN computes the per-point distance offset rho and kernel width
// sigma so that the memberships of every point sum to log2(k)*bandwidth.
func smoothKNN(dists []float64, localConnectivity, bandwidth, meanAll float64) (rho, sigma float64) {
	k := len(dists)
	if k == 0 {
		return 0, 1
	}

	target := math.Log2(float64(k)) * bandwidth

	nonZero := make([]float64, 0, k)
	for _, d := range dists {
		if d > 0 {
			nonZero = append(nonZero, d)
		}
	}

	if float64(len(nonZero)) >= localConnectivity {
		index := int(math.Floor(localConnectivity))
		interpolation := localConnectivity - float64(index)

		if index > 0 {
			rho = nonZero[index-1]
			if interpolation > smoothKNNTolerance && index < len(nonZero) {
				rho += interpolation * (nonZero[index] - nonZero[index-1])
			}
		} else {
			rho = interpolation * nonZero[0]
		}
	} else if len(nonZero) > 0 {
		rho = slices.Max(nonZero)
	}

	lo, hi, mid := 0.0, math.Inf(1), 1.0

	for range smoothKNNIters {
		var psum float64

		for _, d := range dists {
			if gap := d - rho; gap > 0 {
				psum += math.Exp(-gap / mid)
			} else {
				psum++
			}
		}

		if math.Abs(psum-target) < smoothKNNTolerance {
			break
		}

		if psum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}

	sigma = mid

	var mean float64
	for _, d := range dists {
		mean += d
	}

	mean /= float64(k)

	if rho > 0 {
		sigma = max(sigma, minKDistScale*mean)
	} else {
		sigma = max(sigma, minKDistScale*meanAll)
	}

	return rho, sigma
}

// fuzzySimplicialSet turns neighbor lists into the symmetric fuzzy graph.
// The result holds both directions of every link, ordered by (head, tail).
func fuzzySimplicialSet(nn [][]neighbors.Neighbor, opts Options) []edge {
	var (
		total float64
		count int
	)

	for _, row := range nn {
		for _, n := range row {
			total += float64(n.Distance)
			count++
		}
	}

	meanAll := 0.0
	if count > 0 {
		meanAll = total / float64(count)
	}

	directed := make([]edge, 0, count)
	dists := make([]float64, 0, opts.NNeighbors)

	for i, row := range nn {
		dists = dists[:0]
		for _, n := range row {
			dists = append(dists, float64(n.Distance))
		}

		rho, sigma := smoothKNN(dists, opts.LocalConnectivity, opts.Bandwidth, meanAll)

		for j, n := range row {
			w := 1.0
			if gap := dists[j] - rho; gap > 0 && sigma > 0 {
				w = math.Exp(-gap / sigma)
			}

			directed = append(directed, edge{head: int32(i), tail: int32(n.Index), weight: w})
		}
	}

	return symmetrize(directed, opts.MixRatio)
}

func compareEdges(a, b edge) int {
	if c := cmp.Compare(a.head, b.head); c != 0 {
		return c
	}

	return cmp.Compare(a.tail, b.tail)
}

// symmetrize combines w(i→j) and w(j→i) with the fuzzy union/intersection
// mix for every pair that has at least one direction.
func symmetrize(directed []edge, mix float64) []edge {
	slices.SortFunc(directed, compareEdges)
	directed = slices.CompactFunc(directed, func(a, b edge) bool { return compareEdges(a, b) == 0 })

	transposed := make([]edge, len(directed))
	for i, e := range directed {
		transposed[i] = edge{head: e.tail, tail: e.head, weight: e.weight}
	}

	slices.SortFunc(transposed, compareEdges)

	out := make([]edge, 0, len(directed)+len(transposed))

	combine := func(head, tail int32, a, b float64) {
		if head == tail {
			return
		}

		w := mix*(a+b-a*b) + (1-mix)*a*b
		if w > 0 {
			out = append(out, edge{head: head, tail: tail, weight: w})
		}
	}

	i, j := 0, 0
	for i < len(directed) || j < len(transposed) {
		switch {
		case j >= len(transposed) || (i < len(directed) && compareEdges(directed[i], transposed[j]) < 0):
			combine(directed[i].head, directed[i].tail, directed[i].weight, 0)
			i++
		case i >= len(directed) || compareEdges(directed[i], transposed[j]) > 0:
			combine(transposed[j].head, transposed[j].tail, 0, transposed[j].weight)
			j++
		default:
			combine(directed[i].head, directed[i].tail, directed[i].weight, transposed[j].weight)
			i++
			j++
		}
	}

	return out
}
