package nndescent

import (
	"math/rand/v2"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/neighbors"
)

// rpTree is a random projection tree stored in flat arrays. Internal nodes
// carry a hyperplane; leaves carry a range of points.
type rpTree struct {
	dim     int
	normals []float32 // dim floats per node
	offsets []float32
	left    []int32 // child ids, -1 for leaves
	right   []int32
	start   []int32 // leaf ranges into points
	end     []int32
	points  []int32
}

func (t *rpTree) addNode() int32 {
	id := int32(len(t.offsets))

	t.normals = append(t.normals, make([]float32, t.dim)...)
	t.offsets = append(t.offsets, 0)
	t.left = append(t.left, -1)
	t.right = append(t.right, -1)
	t.start = append(t.start, 0)
	t.end = append(t.end, 0)

	return id
}

func (t *rpTree) normal(id int32) []float32 {
	off := int(id) * t.dim
	return t.normals[off : off+t.dim]
}

// buildTree splits the rows of m recursively until every leaf holds at most
// leafSize points.
func buildTree(m neighbors.Matrix, angular bool, leafSize int, rng *rand.Rand) *rpTree {
	t := &rpTree{
		dim:    m.Dim,
		points: make([]int32, m.Count),
	}

	for i := range t.points {
		t.points[i] = int32(i)
	}

	t.split(m, angular, leafSize, 0, len(t.points), rng)

	return t
}

func (t *rpTree) split(m neighbors.Matrix, angular bool, leafSize, lo, hi int, rng *rand.Rand) int32 {
	id := t.addNode()

	if hi-lo <= leafSize {
		t.start[id], t.end[id] = int32(lo), int32(hi)
		return id
	}

	pts := t.points[lo:hi]

	a := int(pts[rng.IntN(len(pts))])
	b := int(pts[rng.IntN(len(pts))])

	for tries := 0; a == b && tries < 8; tries++ {
		b = int(pts[rng.IntN(len(pts))])
	}

	normal := t.normal(id)
	offset := hyperplane(m.Row(a), m.Row(b), angular, normal)
	t.offsets[id] = offset

	// Partition: points with positive margin go left.
	mid := 0
	for i := range pts {
		margin := distance.Dot(normal, m.Row(int(pts[i]))) + offset

		goLeft := margin > 0
		if margin == 0 {
			goLeft = rng.IntN(2) == 0
		}

		if goLeft {
			pts[i], pts[mid] = pts[mid], pts[i]
			mid++
		}
	}

	// Degenerate split: fall back to a random halving.
	if mid == 0 || mid == len(pts) {
		rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })
		mid = len(pts) / 2

		// A zero normal routes every query to the right child.
		clear(normal)
		t.offsets[id] = 0
	}

	left := t.split(m, angular, leafSize, lo, lo+mid, rng)
	right := t.split(m, angular, leafSize, lo+mid, hi, rng)

	t.left[id], t.right[id] = left, right

	return id
}

// hyperplane writes the normal of the hyperplane separating a and b into
// normal and returns its offset.
func hyperplane(a, b []float32, angular bool, normal []float32) float32 {
	if angular {
		na := distance.Dot(a, a)
		nb := distance.Dot(b, b)

		ia, ib := float32(1), float32(1)
		if na > 0 {
			ia = 1 / sqrt32(na)
		}

		if nb > 0 {
			ib = 1 / sqrt32(nb)
		}

		for i := range normal {
			normal[i] = a[i]*ia - b[i]*ib
		}

		return 0
	}

	var offset float32

	for i := range normal {
		normal[i] = a[i] - b[i]
		offset -= normal[i] * (a[i] + b[i]) / 2
	}

	return offset
}

// leaf returns the points of the leaf q falls into.
func (t *rpTree) leaf(q []float32) []int32 {
	id := int32(0)

	for t.left[id] >= 0 {
		if distance.Dot(t.normal(id), q)+t.offsets[id] > 0 {
			id = t.left[id]
		} else {
			id = t.right[id]
		}
	}

	return t.points[t.start[id]:t.end[id]]
}

// leaves calls fn for every leaf of the tree.
func (t *rpTree) leaves(fn func(pts []int32)) {
	for id := range t.offsets {
		if t.left[id] < 0 {
			fn(t.points[t.start[id]:t.end[id]])
		}
	}
}
