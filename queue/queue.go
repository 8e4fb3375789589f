// Package queue provides the bounded candidate heaps shared by the neighbor
// backends.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is a candidate point and its distance to the query.
type Item struct {
	ID       uint32  // ID is the observation index of the candidate.
	Distance float32 // Distance is the priority of the candidate.
}

// PriorityQueue is a binary heap of candidates.
//
// With Max set the largest distance sits on top, which is the form used to
// keep the k best candidates seen so far; otherwise the smallest distance
// sits on top, which is the form used for the expansion frontier.
type PriorityQueue struct {
	Max   bool
	Items []Item
}

// NewMin returns an empty min-heap with capacity c.
func NewMin(c int) *PriorityQueue {
	return &PriorityQueue{Items: make([]Item, 0, c)}
}

// NewMax returns an empty max-heap with capacity c.
func NewMax(c int) *PriorityQueue {
	return &PriorityQueue{Max: true, Items: make([]Item, 0, c)}
}

// Len returns the number of candidates in the queue.
func (pq *PriorityQueue) Len() int { return len(pq.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	a, b := pq.Items[i], pq.Items[j]
	if a.Distance == b.Distance {
		// Stable order for ties keeps results deterministic.
		if pq.Max {
			return a.ID > b.ID
		}

		return a.ID < b.ID
	}

	if pq.Max {
		return a.Distance > b.Distance
	}

	return a.Distance < b.Distance
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.Items[i], pq.Items[j] = pq.Items[j], pq.Items[i]
}

// Push implements heap.Interface. Use PushItem.
func (pq *PriorityQueue) Push(x any) {
	item, _ := x.(Item)
	pq.Items = append(pq.Items, item)
}

// Pop implements heap.Interface. Use PopItem.
func (pq *PriorityQueue) Pop() any {
	old := pq.Items
	n := len(old)
	item := old[n-1]
	pq.Items = old[:n-1]

	return item
}

// PushItem adds a candidate.
func (pq *PriorityQueue) PushItem(id uint32, dist float32) {
	heap.Push(pq, Item{ID: id, Distance: dist})
}

// PopItem removes and returns the top candidate.
func (pq *PriorityQueue) PopItem() Item {
	item, _ := heap.Pop(pq).(Item)
	return item
}

// Top returns the top candidate without removing it.
// The queue must not be empty.
func (pq *PriorityQueue) Top() Item {
	return pq.Items[0]
}

// PushBounded adds a candidate to a max-heap holding at most k items,
// evicting the current worst when full. It reports whether the candidate
// was kept.
func (pq *PriorityQueue) PushBounded(id uint32, dist float32, k int) bool {
	if pq.Len() < k {
		pq.PushItem(id, dist)
		return true
	}

	if k == 0 || !(dist < pq.Items[0].Distance) {
		return false
	}

	pq.Items[0] = Item{ID: id, Distance: dist}
	heap.Fix(pq, 0)

	return true
}

// Reset empties the queue, keeping its storage.
func (pq *PriorityQueue) Reset() {
	pq.Items = pq.Items[:0]
}

// Sorted drains a max-heap and returns its candidates ordered by ascending
// distance.
func (pq *PriorityQueue) Sorted() []Item {
	out := make([]Item, pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = pq.PopItem()
	}

	return out
}
