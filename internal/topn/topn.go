// Package topn implements a bounded N-best selector: a capacity-n
// selector over a totally-ordered key, stable on ties by insertion
// order.
//
// A container/heap candidate max-heap keeps the worst-of-the-best at
// the root for O(log n) eviction, carrying a monotonic sequence number
// so equal-key items keep their push order through Push and
// IntoSorted.
package topn

import "container/heap"

// Candidate is one item held by a Selector.
type Candidate struct {
	Key   float32
	Value any
	seq   uint64
}

// Selector keeps the n smallest-by-Key candidates pushed into it,
// breaking ties by earliest push. Push is O(log n); IntoSorted is
// O(n log n).
type Selector struct {
	cap    int
	h      maxHeap
	nextSeq uint64
}

// New creates a Selector with the given capacity. A capacity of 0
// yields a Selector that keeps nothing.
func New(capacity int) *Selector {
	return &Selector{cap: capacity}
}

// Len returns the number of candidates currently held.
func (s *Selector) Len() int { return len(s.h) }

// Push offers a candidate. If the selector is below capacity, it is
// kept. Once at capacity, it replaces the current worst (max) held
// candidate only if strictly better (lower key) — on a tie the
// earlier-pushed candidate (by insertion order) wins and the new one
// is dropped, preserving stability.
func (s *Selector) Push(key float32, value any) {
	c := &Candidate{Key: key, Value: value, seq: s.nextSeq}
	s.nextSeq++

	if len(s.h) < s.cap {
		heap.Push(&s.h, c)
		return
	}
	if s.cap == 0 {
		return
	}
	worst := s.h[0]
	if key < worst.Key || (key == worst.Key && c.seq < worst.seq) {
		s.h[0] = c
		heap.Fix(&s.h, 0)
	}
}

// IntoSorted drains the selector, returning its held candidates in
// ascending key order with ties broken by insertion order.
func (s *Selector) IntoSorted() []Candidate {
	out := make([]Candidate, len(s.h))
	items := append(maxHeap(nil), s.h...)
	for i := len(items) - 1; i >= 0; i-- {
		top := heap.Pop(&items).(*Candidate)
		out[i] = *top
	}
	s.h = nil
	return out
}

// maxHeap is a container/heap max-heap ordered by (Key desc, seq desc)
// so the root is always the current worst-ranked candidate — the one
// evicted first when a better candidate arrives, and the one popped
// first when draining back-to-front into ascending order.
type maxHeap []*Candidate

func (h maxHeap) Len() int { return len(h) }

func (h maxHeap) Less(i, j int) bool {
	if h[i].Key != h[j].Key {
		return h[i].Key > h[j].Key
	}
	return h[i].seq > h[j].seq
}

func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x any) { *h = append(*h, x.(*Candidate)) }

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
