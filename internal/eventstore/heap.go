package eventstore

import (
	"container/heap"

	"github.com/me/edaq/pkg/model"
)

// entry is one pending event plus its bookkeeping.
type entry struct {
	event model.Event
	seq   uint64 // insertion order, the final tiebreak
	pos   int    // position in the heap, maintained by Swap
}

// eventHeap implements container/heap.Interface over entries,
// earliest first under the store's comparison rule.
type eventHeap struct {
	items []*entry
	less  func(a, b *entry) bool
}

func (h *eventHeap) Len() int           { return len(h.items) }
func (h *eventHeap) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }

func (h *eventHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].pos = i
	h.items[j].pos = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*entry)
	e.pos = len(h.items)
	h.items = append(h.items, e)
}

func (h *eventHeap) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	e.pos = -1
	return e
}

// heapPush adds an entry, maintaining the heap invariant.
func heapPush(h *eventHeap, e *entry) {
	heap.Push(h, e)
}

// heapPop removes and returns the earliest entry.
// Panics if the heap is empty.
func heapPop(h *eventHeap) *entry {
	return heap.Pop(h).(*entry)
}

// heapRemove removes e from wherever it sits in the heap.
func heapRemove(h *eventHeap, e *entry) {
	if e.pos < 0 || e.pos >= len(h.items) || h.items[e.pos] != e {
		return
	}
	heap.Remove(h, e.pos)
}

// heapPeek returns the earliest entry without removing it, or nil.
func heapPeek(h *eventHeap) *entry {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}
