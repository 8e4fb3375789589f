package nndescent

import (
	"math"
)

// graph stores, for every point, a bounded max-heap of its current
// neighbor candidates in flat row-major arrays.
type graph struct {
	n, k    int
	indices []int32
	dists   []float32
	isNew   []bool
}

func newGraph(n, k int) *graph {
	g := &graph{
		n:       n,
		k:       k,
		indices: make([]int32, n*k),
		dists:   make([]float32, n*k),
		isNew:   make([]bool, n*k),
	}

	inf := float32(math.Inf(1))
	for i := range g.indices {
		g.indices[i] = -1
		g.dists[i] = inf
	}

	return g
}

func (g *graph) row(i int) (idx []int32, dist []float32, flags []bool) {
	off := i * g.k
	return g.indices[off : off+g.k], g.dists[off : off+g.k], g.isNew[off : off+g.k]
}

// push offers j at distance d to the heap of point i. It reports whether
// the heap changed.
func (g *graph) push(i int, j int32, d float32, flag bool) bool {
	idx, dist, flags := g.row(i)

	if !(d < dist[0]) {
		return false
	}

	for _, x := range idx {
		if x == j {
			return false
		}
	}

	idx[0], dist[0], flags[0] = j, d, flag
	siftDown(idx, dist, flags, 0, len(idx))

	return true
}

func siftDown(idx []int32, dist []float32, flags []bool, pos, n int) {
	for {
		left := 2*pos + 1
		if left >= n {
			return
		}

		largest := left
		if right := left + 1; right < n && dist[right] > dist[left] {
			largest = right
		}

		if !(dist[largest] > dist[pos]) {
			return
		}

		idx[pos], idx[largest] = idx[largest], idx[pos]
		dist[pos], dist[largest] = dist[largest], dist[pos]
		flags[pos], flags[largest] = flags[largest], flags[pos]
		pos = largest
	}
}

// sortRows turns every heap into a list ordered by ascending distance.
// Ties are broken by index.
func (g *graph) sortRows() {
	for i := range g.n {
		idx, dist, flags := g.row(i)

		for end := len(idx) - 1; end > 0; end-- {
			idx[0], idx[end] = idx[end], idx[0]
			dist[0], dist[end] = dist[end], dist[0]
			flags[0], flags[end] = flags[end], flags[0]
			siftDown(idx, dist, flags, 0, end)
		}

		for j := 1; j < len(idx); j++ {
			for m := j; m > 0 && dist[m] == dist[m-1] && idx[m] < idx[m-1]; m-- {
				idx[m], idx[m-1] = idx[m-1], idx[m]
			}
		}
	}
}

// degree returns the number of filled slots of point i.
func (g *graph) degree(i int) int {
	idx, _, _ := g.row(i)

	d := 0
	for _, x := range idx {
		if x >= 0 {
			d++
		}
	}

	return d
}
