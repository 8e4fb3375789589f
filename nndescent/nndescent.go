// Package nndescent builds approximate k-nearest-neighbor graphs with the
// nearest neighbor descent heuristic, seeded from a random projection forest.
//
// The graph of every point includes the point itself at distance zero, so a
// graph built with NNeighbors = k holds k-1 proper neighbors per point.
// Observation queries read the graph directly; vector queries run a
// best-first search over it.
package nndescent

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/neighbors"
	"github.com/hupe1980/umapgo/queue"
)

// Metric names accepted by Options.Metric.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// Options represents the options for configuring the graph construction.
// Zero or negative values select the automatic setting.
type Options struct {
	// NNeighbors is the number of graph slots per point, self included.
	NNeighbors int

	// NTrees is the number of random projection trees used for initialization.
	// Auto: min(64, 5 + round(N^0.25)).
	NTrees int

	// LeafSize is the maximum number of points in a tree leaf.
	// Auto: max(10, NNeighbors).
	LeafSize int

	// NIters is the maximum number of descent iterations.
	// Auto: max(5, round(log2 N)).
	NIters int

	// MaxCandidates bounds the candidate lists of the local join.
	// Auto: min(60, NNeighbors).
	MaxCandidates int

	// Delta stops the descent when fewer than Delta*N*NNeighbors updates
	// happen in one iteration. Auto: 0.001.
	Delta float64

	// Seed drives every random choice of the construction.
	Seed uint64

	// Metric is either "euclidean" or "cosine" (1 - cos).
	Metric string

	// Epsilon widens the bound of the vector query search. Auto: 0.1.
	Epsilon float64
}

// DefaultOptions contains the default options.
var DefaultOptions = Options{
	NNeighbors: 30,
	Seed:       42,
	Metric:     MetricEuclidean,
}

// Index is an immutable neighbor descent graph.
type Index struct {
	data   neighbors.Matrix
	opts   Options
	g      *graph
	search [][]int32 // undirected adjacency used by vector queries
	tree   *rpTree
	dist   func(a, b []float32) float32
	iters  int
}

// Compile time check to ensure Index satisfies the index interface.
var _ neighbors.Index = (*Index)(nil)

// Builder builds neighbor descent graphs.
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

// resolve fills automatic settings for a data set of n points.
func (o Options) resolve(n int) Options {
	if o.NNeighbors <= 0 {
		o.NNeighbors = DefaultOptions.NNeighbors
	}

	o.NNeighbors = min(o.NNeighbors, n)

	if o.NTrees <= 0 {
		o.NTrees = min(64, 5+int(math.Round(math.Pow(float64(n), 0.25))))
	}

	if o.LeafSize <= 0 {
		o.LeafSize = max(10, o.NNeighbors)
	}

	if o.NIters <= 0 {
		o.NIters = max(5, int(math.Round(math.Log2(float64(n)))))
	}

	if o.MaxCandidates <= 0 {
		o.MaxCandidates = min(60, o.NNeighbors)
	}

	if o.Delta <= 0 {
		o.Delta = 0.001
	}

	if o.Epsilon <= 0 {
		o.Epsilon = 0.1
	}

	return o
}

// New builds a graph over every row of m.
func New(m neighbors.Matrix, optFns ...func(o *Options)) (*Index, error) {
	if m.Count <= 0 || m.Dim <= 0 {
		return nil, neighbors.ErrEmptyMatrix
	}

	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	var (
		dist    func(a, b []float32) float32
		angular bool
	)

	switch opts.Metric {
	case MetricEuclidean, "":
		opts.Metric = MetricEuclidean
		dist = distance.SquaredL2
	case MetricCosine:
		dist = distance.CosineDistance
		angular = true
	default:
		return nil, fmt.Errorf("nndescent: unsupported metric %q", opts.Metric)
	}

	opts = opts.resolve(m.Count)

	idx := &Index{
		data: m,
		opts: opts,
		g:    newGraph(m.Count, opts.NNeighbors),
		dist: dist,
	}

	rng := rand.New(rand.NewPCG(opts.Seed, 0xda3e39cb94b95bdb)) // nolint gosec

	idx.initialize(angular, rng)
	idx.descend(rng)
	idx.finish()

	return idx, nil
}

// initialize seeds every heap with the point itself, the members of its
// leaves in the forest and random points for any slot left empty.
func (x *Index) initialize(angular bool, rng *rand.Rand) {
	n := x.data.Count

	for i := range n {
		x.g.push(i, int32(i), 0, true)
	}

	for t := range x.opts.NTrees {
		tree := buildTree(x.data, angular, x.opts.LeafSize, rng)
		if t == 0 {
			x.tree = tree
		}

		tree.leaves(func(pts []int32) {
			for a := range pts {
				for b := a + 1; b < len(pts); b++ {
					d := x.dist(x.data.Row(int(pts[a])), x.data.Row(int(pts[b])))
					x.g.push(int(pts[a]), pts[b], d, true)
					x.g.push(int(pts[b]), pts[a], d, true)
				}
			}
		})
	}

	for i := range n {
		for tries := 0; x.g.degree(i) < x.opts.NNeighbors && tries < 2*x.opts.NNeighbors; tries++ {
			j := rng.IntN(n)
			x.g.push(i, int32(j), x.dist(x.data.Row(i), x.data.Row(j)), true)
		}

		// Sweep for the slots random sampling missed.
		for j := 0; x.g.degree(i) < x.opts.NNeighbors && j < n; j++ {
			x.g.push(i, int32(j), x.dist(x.data.Row(i), x.data.Row(j)), true)
		}
	}
}

// descend runs the local join until convergence or NIters iterations.
func (x *Index) descend(rng *rand.Rand) {
	n := x.data.Count
	maxCand := x.opts.MaxCandidates

	newCand := make([]*queue.PriorityQueue, n)
	oldCand := make([]*queue.PriorityQueue, n)

	for i := range n {
		newCand[i] = queue.NewMax(maxCand)
		oldCand[i] = queue.NewMax(maxCand)
	}

	threshold := x.opts.Delta * float64(n) * float64(x.opts.NNeighbors)

	for iter := range x.opts.NIters {
		for i := range n {
			newCand[i].Reset()
			oldCand[i].Reset()
		}

		// Sample candidates with random priorities, forward and reverse.
		for i := range n {
			idx, _, flags := x.g.row(i)

			for s, j := range idx {
				if j < 0 || int(j) == i {
					continue
				}

				target := oldCand
				if flags[s] {
					target = newCand
				}

				p := rng.Float32()
				offerCandidate(target[i], uint32(j), p, maxCand)
				offerCandidate(target[j], uint32(i), p, maxCand)
			}
		}

		// Sampled new entries take part in this join and become old.
		for i := range n {
			idx, _, flags := x.g.row(i)

			for s, j := range idx {
				if j >= 0 && flags[s] && containsCandidate(newCand[i], uint32(j)) {
					flags[s] = false
				}
			}
		}

		updates := 0

		for i := range n {
			nc := newCand[i].Items
			oc := oldCand[i].Items

			for a := range nc {
				p := int(nc[a].ID)
				rp := x.data.Row(p)

				for b := a + 1; b < len(nc); b++ {
					updates += x.join(p, int(nc[b].ID), rp)
				}

				for b := range oc {
					updates += x.join(p, int(oc[b].ID), rp)
				}
			}
		}

		x.iters = iter + 1

		if float64(updates) <= threshold {
			break
		}
	}
}

func (x *Index) join(p, q int, rp []float32) int {
	if p == q {
		return 0
	}

	d := x.dist(rp, x.data.Row(q))

	c := 0
	if x.g.push(p, int32(q), d, true) {
		c++
	}

	if x.g.push(q, int32(p), d, true) {
		c++
	}

	return c
}

func offerCandidate(pq *queue.PriorityQueue, id uint32, priority float32, k int) {
	if containsCandidate(pq, id) {
		return
	}

	pq.PushBounded(id, priority, k)
}

func containsCandidate(pq *queue.PriorityQueue, id uint32) bool {
	for _, it := range pq.Items {
		if it.ID == id {
			return true
		}
	}

	return false
}

// finish sorts the heaps, converts squared Euclidean distances and derives
// the search graph.
func (x *Index) finish() {
	x.g.sortRows()

	if x.opts.Metric == MetricEuclidean {
		for i, d := range x.g.dists {
			if x.g.indices[i] >= 0 {
				x.g.dists[i] = sqrt32(d)
			}
		}
	}

	n := x.data.Count
	k := x.opts.NNeighbors

	x.search = make([][]int32, n)

	for i := range n {
		idx, _, _ := x.g.row(i)

		for _, j := range idx {
			if j < 0 || int(j) == i {
				continue
			}

			x.search[i] = appendUnique(x.search[i], j)

			if len(x.search[j]) < 2*k {
				x.search[j] = appendUnique(x.search[j], int32(i))
			}
		}
	}
}

func appendUnique(s []int32, v int32) []int32 {
	for _, x := range s {
		if x == v {
			return s
		}
	}

	return append(s, v)
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// Dimension returns the dimensionality of the indexed points.
func (x *Index) Dimension() int { return x.data.Dim }

// Count returns the number of indexed points.
func (x *Index) Count() int { return x.data.Count }

// Options returns the resolved construction options.
func (x *Index) Options() Options { return x.opts }

// Iterations returns the number of descent iterations that ran.
func (x *Index) Iterations() int { return x.iters }

// Neighbors returns the graph row of point i, self included, ordered by
// ascending distance. The slices alias the index and must not be modified.
func (x *Index) Neighbors(i int) ([]int32, []float32) {
	idx, dist, _ := x.g.row(i)

	n := 0
	for n < len(idx) && idx[n] >= 0 {
		n++
	}

	return idx[:n], dist[:n]
}

// MinDegree returns the smallest number of filled graph slots over all
// points, self included.
func (x *Index) MinDegree() int {
	m := x.g.k

	for i := range x.data.Count {
		m = min(m, x.g.degree(i))
	}

	return m
}
