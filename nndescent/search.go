package nndescent

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/umapgo/neighbors"
	"github.com/hupe1980/umapgo/queue"
)

// Initialize returns a fresh searcher.
func (x *Index) Initialize() neighbors.Searcher {
	return &searcher{
		x:        x,
		visited:  roaring.New(),
		top:      queue.NewMax(16),
		frontier: queue.NewMin(64),
	}
}

type searcher struct {
	x        *Index
	visited  *roaring.Bitmap
	top      *queue.PriorityQueue
	frontier *queue.PriorityQueue
}

// Search returns up to k neighbors of observation i read from the graph,
// excluding i.
func (s *searcher) Search(i, k int) []neighbors.Neighbor {
	if i < 0 || i >= s.x.data.Count || k <= 0 {
		return nil
	}

	idx, dist := s.x.Neighbors(i)

	res := make([]neighbors.Neighbor, 0, min(k, len(idx)))
	for j := range idx {
		res = append(res, neighbors.Neighbor{Index: int(idx[j]), Distance: dist[j]})
	}

	return neighbors.ExcludeSelf(res, i, k)
}

// SearchVector returns up to k neighbors of q found by a best-first search
// over the graph.
func (s *searcher) SearchVector(q []float32, k int) []neighbors.Neighbor {
	x := s.x
	if len(q) != x.data.Dim || k <= 0 {
		return nil
	}

	s.visited.Clear()
	s.top.Reset()
	s.frontier.Reset()

	bound := float32(math.Inf(1))
	scale := float32(1 + x.opts.Epsilon)

	offer := func(j int32) {
		s.visited.Add(uint32(j))

		d := x.dist(q, x.data.Row(int(j)))
		if !(d < bound*scale) && s.top.Len() >= k {
			return
		}

		if s.top.PushBounded(uint32(j), d, k) && s.top.Len() == k {
			bound = s.top.Top().Distance
		}

		s.frontier.PushItem(uint32(j), d)
	}

	// Seed from the leaf of the first tree, then from the graph entry.
	for _, j := range x.tree.leaf(q) {
		if !s.visited.Contains(uint32(j)) {
			offer(j)
		}
	}

	if s.visited.IsEmpty() {
		offer(0)
	}

	for s.frontier.Len() > 0 {
		c := s.frontier.PopItem()
		if s.top.Len() >= k && c.Distance >= bound*scale {
			break
		}

		for _, j := range x.search[c.ID] {
			if s.visited.Contains(uint32(j)) {
				continue
			}

			offer(j)
		}
	}

	items := s.top.Sorted()

	res := make([]neighbors.Neighbor, len(items))
	for i, it := range items {
		d := it.Distance
		if x.opts.Metric == MetricEuclidean {
			d = sqrt32(d)
		}

		res[i] = neighbors.Neighbor{Index: int(it.ID), Distance: d}
	}

	return res
}
