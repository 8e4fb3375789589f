// Package hnsw implements a Hierarchical Navigable Small World graph over the
// rows of a neighbors.Matrix.
//
// The graph ranks candidates by squared Euclidean distance and reports
// distances through a distance.Kernel. Node identifiers are the row indices of
// the indexed matrix.
package hnsw

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/neighbors"
	"github.com/hupe1980/umapgo/queue"
)

// ErrInvalidOptions is returned when M, EfConstruction or EfSearch is not positive.
var ErrInvalidOptions = errors.New("hnsw: M, EfConstruction and EfSearch must be positive")

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new element during construction.
	// Reasonable range for M is 2-100. Layer 0 keeps up to 2*M connections.
	M int

	// EfConstruction specifies the size of the dynamic candidate list during construction.
	EfConstruction int

	// EfSearch specifies the size of the dynamic candidate list during search.
	// Searches use max(EfSearch, k).
	EfSearch int

	// Heuristic indicates whether to use the diversity heuristic (true) or the naive K-NN selection (false)
	// when linking neighbours.
	Heuristic bool

	// Kernel selects the distance reported in search results.
	Kernel distance.Kernel

	// Seed drives the level assignment of inserted nodes.
	Seed uint64
}

// DefaultOptions contains the default options for HNSW.
var DefaultOptions = Options{
	M:              16,
	EfConstruction: 200,
	EfSearch:       10,
	Heuristic:      true,
	Kernel:         distance.KernelEuclidean,
	Seed:           100,
}

// node represents a node in the HNSW graph.
type node struct {
	connections [][]uint32 // Links to other nodes, per layer
	layer       int        // Top layer the node exists in
}

// HNSW represents the Hierarchical Navigable Small World graph.
type HNSW struct {
	data     neighbors.Matrix
	mmax     int     // Max number of connections per element/per layer
	mmax0    int     // Max for the 0 layer
	ml       float64 // Normalization factor for level generation
	ep       uint32  // Entry point on the top layer
	maxLevel int     // Track the current max level used

	nodes []node
	opts  Options

	visited *bitset.BitSet
}

// Compile time check to ensure HNSW satisfies the index interface.
var _ neighbors.Index = (*HNSW)(nil)

// Builder builds HNSW graphs.
type Builder struct {
	Options Options
}

// NewBuilder returns a builder configured by optFns.
func NewBuilder(optFns ...func(o *Options)) *Builder {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Builder{Options: opts}
}

// Build implements neighbors.Builder.
func (b *Builder) Build(m neighbors.Matrix) (neighbors.Index, error) {
	return New(m, func(o *Options) { *o = b.Options })
}

// New builds a graph over every row of m, inserting rows in order.
func New(m neighbors.Matrix, optFns ...func(o *Options)) (*HNSW, error) {
	if m.Count <= 0 || m.Dim <= 0 {
		return nil, neighbors.ErrEmptyMatrix
	}

	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M <= 0 || opts.EfConstruction <= 0 || opts.EfSearch <= 0 {
		return nil, ErrInvalidOptions
	}

	if opts.M == 1 {
		// M == 1 would result in division by zero
		// 1 / log(1.0 * M) = 1 / 0
		opts.M = 2
	}

	h := &HNSW{
		data:    m,
		mmax:    opts.M,
		mmax0:   2 * opts.M,
		ml:      1 / math.Log(float64(opts.M)),
		nodes:   make([]node, 0, m.Count),
		opts:    opts,
		visited: bitset.New(uint(m.Count)),
	}

	rng := rand.New(rand.NewPCG(opts.Seed, uint64(m.Count))) // nolint gosec

	for i := range m.Count {
		h.insert(uint32(i), rng)
	}

	h.visited = nil

	return h, nil
}

func (h *HNSW) dist(q []float32, id uint32) float32 {
	return distance.SquaredL2(q, h.data.Row(int(id)))
}

func (h *HNSW) randomLevel(rng *rand.Rand) int {
	// 1 - Float64() lies in (0, 1], keeping the logarithm finite.
	return int(math.Floor(-math.Log(1-rng.Float64()) * h.ml))
}

// insert links row id into the graph.
func (h *HNSW) insert(id uint32, rng *rand.Rand) {
	level := h.randomLevel(rng)

	h.nodes = append(h.nodes, node{
		layer:       level,
		connections: make([][]uint32, level+1),
	})

	if id == 0 {
		h.ep = 0
		h.maxLevel = level

		return
	}

	q := h.data.Row(int(id))

	// Find single shortest path from top layers above our current node, which will be our new starting-point
	curr, currDist := h.greedy(q, h.ep, h.dist(q, h.ep), h.maxLevel, level)

	top := queue.NewMax(h.opts.EfConstruction + 1)
	frontier := queue.NewMin(h.opts.EfConstruction + 1)

	// For all levels equal and below our current node, find the top (closest) candidates and create a link
	for lvl := min(level, h.maxLevel); lvl >= 0; lvl-- {
		h.visited.ClearAll()
		h.searchLayer(q, queue.Item{ID: curr, Distance: currDist}, h.opts.EfConstruction, lvl, h.visited, top, frontier)

		candidates := top.Sorted()

		// The closest candidate is the entry point for the next layer.
		curr, currDist = candidates[0].ID, candidates[0].Distance

		selected := h.selectNeighbours(candidates, h.opts.M)

		conns := make([]uint32, len(selected))
		for i, c := range selected {
			conns[i] = c.ID
		}

		h.nodes[id].connections[lvl] = conns

		// Next link the neighbour nodes to our new node, making it visible
		for _, n := range conns {
			h.link(n, id, lvl)
		}
	}

	if level > h.maxLevel {
		h.ep = id
		h.maxLevel = level
	}
}

// greedy descends from layer from to layer to+1 following the closest link.
func (h *HNSW) greedy(q []float32, curr uint32, currDist float32, from, to int) (uint32, float32) {
	for level := from; level > to; level-- {
		changed := true
		for changed {
			changed = false

			conns := h.nodes[curr].connections
			if level >= len(conns) {
				break
			}

			for _, n := range conns[level] {
				if d := h.dist(q, n); d < currDist {
					// Update the starting point to our new node
					curr, currDist = n, d
					changed = true
				}
			}
		}
	}

	return curr, currDist
}

// link adds a connection from first to second, pruning first's list when it
// exceeds the layer's capacity.
func (h *HNSW) link(first, second uint32, level int) {
	maxConnections := h.mmax
	// HNSW allows double the connections for the bottom level (0)
	if level == 0 {
		maxConnections = h.mmax0
	}

	n := &h.nodes[first]
	n.connections[level] = append(n.connections[level], second)

	if len(n.connections[level]) <= maxConnections {
		return
	}

	q := h.data.Row(int(first))

	pq := queue.NewMax(len(n.connections[level]))
	for _, id := range n.connections[level] {
		pq.PushItem(id, h.dist(q, id))
	}

	selected := h.selectNeighbours(pq.Sorted(), maxConnections)

	// Reorder our connected nodes, best match first
	conns := n.connections[level][:0]
	for _, c := range selected {
		conns = append(conns, c.ID)
	}

	n.connections[level] = conns
}

// searchLayer performs a best-first search on one layer. On return top holds
// the ef closest candidates as a max-heap.
func (h *HNSW) searchLayer(q []float32, ep queue.Item, ef, level int, visited *bitset.BitSet, top, frontier *queue.PriorityQueue) {
	top.Reset()
	frontier.Reset()

	visited.Set(uint(ep.ID))
	top.PushItem(ep.ID, ep.Distance)
	frontier.PushItem(ep.ID, ep.Distance)

	for frontier.Len() > 0 {
		candidate := frontier.PopItem()
		if candidate.Distance > top.Top().Distance {
			break
		}

		conns := h.nodes[candidate.ID].connections
		if level >= len(conns) {
			continue
		}

		for _, n := range conns[level] {
			if visited.Test(uint(n)) {
				continue
			}

			visited.Set(uint(n))

			d := h.dist(q, n)

			// Add the element to top if size < ef or it beats the current worst
			if top.PushBounded(n, d, ef) {
				frontier.PushItem(n, d)
			}
		}
	}
}

// selectNeighbours picks up to m links from candidates sorted by ascending
// distance.
func (h *HNSW) selectNeighbours(candidates []queue.Item, m int) []queue.Item {
	if len(candidates) <= m {
		return candidates
	}

	if !h.opts.Heuristic {
		return candidates[:m]
	}

	items := make([]queue.Item, 0, m)
	pruned := make([]queue.Item, 0, len(candidates))

	// Keep a candidate only if it is closer to the base than to every kept item
	for _, c := range candidates {
		if len(items) >= m {
			break
		}

		hit := true

		for _, kept := range items {
			if h.dist(h.data.Row(int(kept.ID)), c.ID) < c.Distance {
				hit = false
				break
			}
		}

		if hit {
			items = append(items, c)
		} else {
			pruned = append(pruned, c)
		}
	}

	// Add any additional items from pruned if current items < m
	for i := 0; len(items) < m && i < len(pruned); i++ {
		items = append(items, pruned[i])
	}

	return items
}

// Dimension returns the dimensionality of the indexed points.
func (h *HNSW) Dimension() int { return h.data.Dim }

// Count returns the number of indexed points.
func (h *HNSW) Count() int { return h.data.Count }

// Initialize returns a fresh searcher.
func (h *HNSW) Initialize() neighbors.Searcher {
	return &searcher{
		h:        h,
		visited:  bitset.New(uint(h.data.Count)),
		top:      queue.NewMax(h.opts.EfSearch + 1),
		frontier: queue.NewMin(h.opts.EfSearch + 1),
	}
}

type searcher struct {
	h        *HNSW
	visited  *bitset.BitSet
	top      *queue.PriorityQueue
	frontier *queue.PriorityQueue
}

// Search returns up to k neighbors of observation i, excluding i.
func (s *searcher) Search(i, k int) []neighbors.Neighbor {
	if i < 0 || i >= s.h.data.Count || k <= 0 {
		return nil
	}

	// Ask for one extra result so that dropping i still leaves k.
	res := s.knn(s.h.data.Row(i), k+1)

	return neighbors.ExcludeSelf(res, i, k)
}

// SearchVector returns up to k neighbors of q.
func (s *searcher) SearchVector(q []float32, k int) []neighbors.Neighbor {
	if len(q) != s.h.data.Dim || k <= 0 {
		return nil
	}

	return s.knn(q, k)
}

func (s *searcher) knn(q []float32, k int) []neighbors.Neighbor {
	h := s.h

	curr, currDist := h.greedy(q, h.ep, h.dist(q, h.ep), h.maxLevel, 0)

	s.visited.ClearAll()
	h.searchLayer(q, queue.Item{ID: curr, Distance: currDist}, max(h.opts.EfSearch, k), 0, s.visited, s.top, s.frontier)

	for s.top.Len() > k {
		s.top.PopItem()
	}

	items := s.top.Sorted()

	res := make([]neighbors.Neighbor, len(items))
	for i, it := range items {
		res[i] = neighbors.Neighbor{
			Index:    int(it.ID),
			Distance: h.opts.Kernel.FromSquaredL2(it.Distance),
		}
	}

	return res
}
