// Package vptree implements an exact vantage-point tree over Euclidean space.
//
// The tree always prunes on the true Euclidean distance. The distance reported
// to callers is chosen by a distance.Kernel, which lets the cosine metric be
// served on L2-normalized rows with the half-squared Euclidean scale.
package vptree

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/neighbors"
	"github.com/hupe1980/umapgo/queue"
)

// Options represents the options for configuring the tree.
type Options struct {
	// Kernel selects the distance reported in search results.
	Kernel distance.Kernel

	// Seed drives the choice of vantage points.
	Seed uint64
}

// DefaultOptions contains the default options for the tree.
var DefaultOptions = Options{
	Kernel: distance.KernelEuclidean,
	Seed:   1234567890,
}

type node struct {
	point     int32
	threshold float32
	left      int32
	right     int32
}

// Tree is an immutable vantage-point tree.
type Tree struct {
	data  neighbors.Matrix
	nodes []node
	root  int32
	opts  Options
}

// Compile time check to ensure Tree satisfies the index interface.
var _ neighbors.Index = (*Tree)(nil)

// Builder builds vantage-point trees.
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

type item struct {
	point int32
	dist  float32
}

// New builds a tree over every row of m.
func New(m neighbors.Matrix, optFns ...func(o *Options)) (*Tree, error) {
	if m.Count <= 0 || m.Dim <= 0 {
		return nil, neighbors.ErrEmptyMatrix
	}

	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	t := &Tree{
		data:  m,
		nodes: make([]node, 0, m.Count),
		opts:  opts,
	}

	items := make([]item, m.Count)
	for i := range items {
		items[i].point = int32(i)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)) // nolint gosec
	t.root = t.build(items, rng)

	return t, nil
}

func (t *Tree) build(items []item, rng *rand.Rand) int32 {
	if len(items) == 0 {
		return -1
	}

	pick := rng.IntN(len(items))
	items[0], items[pick] = items[pick], items[0]

	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{point: items[0].point, left: -1, right: -1})

	rest := items[1:]
	if len(rest) == 0 {
		return id
	}

	vantage := t.data.Row(int(items[0].point))
	for i := range rest {
		rest[i].dist = distance.L2(vantage, t.data.Row(int(rest[i].point)))
	}

	slices.SortFunc(rest, func(a, b item) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		default:
			return int(a.point - b.point)
		}
	})

	median := len(rest) / 2
	t.nodes[id].threshold = rest[median].dist

	left := t.build(rest[:median], rng)
	right := t.build(rest[median:], rng)

	t.nodes[id].left = left
	t.nodes[id].right = right

	return id
}

// Dimension returns the dimensionality of the indexed points.
func (t *Tree) Dimension() int { return t.data.Dim }

// Count returns the number of indexed points.
func (t *Tree) Count() int { return t.data.Count }

// Initialize returns a fresh searcher.
func (t *Tree) Initialize() neighbors.Searcher {
	return &searcher{tree: t, top: queue.NewMax(16)}
}

type searcher struct {
	tree *Tree
	top  *queue.PriorityQueue
	tau  float32
	k    int
	skip int32
	q    []float32
}

// Search returns the k nearest neighbors of observation i, excluding i.
func (s *searcher) Search(i, k int) []neighbors.Neighbor {
	if i < 0 || i >= s.tree.data.Count {
		return nil
	}

	return s.run(s.tree.data.Row(i), k, int32(i))
}

// SearchVector returns the k nearest neighbors of q.
func (s *searcher) SearchVector(q []float32, k int) []neighbors.Neighbor {
	if len(q) != s.tree.data.Dim {
		return nil
	}

	return s.run(q, k, -1)
}

func (s *searcher) run(q []float32, k int, skip int32) []neighbors.Neighbor {
	if k <= 0 {
		return nil
	}

	s.top.Reset()
	s.tau = float32(math.Inf(1))
	s.k = k
	s.skip = skip
	s.q = q

	s.visit(s.tree.root)

	items := s.top.Sorted()
	kernel := s.tree.opts.Kernel.Func()

	res := make([]neighbors.Neighbor, len(items))
	for i, it := range items {
		res[i] = neighbors.Neighbor{
			Index:    int(it.ID),
			Distance: kernel(q, s.tree.data.Row(int(it.ID))),
		}
	}

	return res
}

func (s *searcher) visit(id int32) {
	if id < 0 {
		return
	}

	n := &s.tree.nodes[id]
	d := distance.L2(s.q, s.tree.data.Row(int(n.point)))

	if n.point != s.skip && s.top.PushBounded(uint32(n.point), d, s.k) && s.top.Len() == s.k {
		s.tau = s.top.Top().Distance
	}

	if n.left < 0 && n.right < 0 {
		return
	}

	if d < n.threshold {
		if d-s.tau <= n.threshold {
			s.visit(n.left)
		}

		if d+s.tau >= n.threshold {
			s.visit(n.right)
		}
	} else {
		if d+s.tau >= n.threshold {
			s.visit(n.right)
		}

		if d-s.tau <= n.threshold {
			s.visit(n.left)
		}
	}
}
