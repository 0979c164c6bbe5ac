package sequence

import "container/heap"

// HeapItem is a queued value. The index is owned by the queue.
type HeapItem[T any] struct {
	Value T
	index int
}

type innerHeap[T any] struct {
	items []*HeapItem[T]
	less  func(a, b T) bool
}

func (h *innerHeap[T]) Len() int {
	return len(h.items)
}

func (h *innerHeap[T]) Less(i, j int) bool {
	return h.less(h.items[i].Value, h.items[j].Value)
}

func (h *innerHeap[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *innerHeap[T]) Push(x any) {
	item := x.(*HeapItem[T])
	item.index = len(h.items)
	h.items = append(h.items, item)
}

func (h *innerHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	h.items = old[0 : n-1]
	return item
}

// Heap is a binary heap ordered by a caller supplied less function; the
// smallest element is dequeued first. It is not safe for concurrent use.
type Heap[T any] struct {
	h innerHeap[T]
}

func NewHeap[T any](less func(a, b T) bool) *Heap[T] {
	q := &Heap[T]{h: innerHeap[T]{less: less}}
	heap.Init(&q.h)
	return q
}

func (q *Heap[T]) Push(value T) *HeapItem[T] {
	item := &HeapItem[T]{Value: value}
	heap.Push(&q.h, item)
	return item
}

func (q *Heap[T]) Pop() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	item := heap.Pop(&q.h).(*HeapItem[T])
	return item.Value, true
}

func (q *Heap[T]) Peek() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.h.items[0].Value, true
}

func (q *Heap[T]) Len() int {
	return q.h.Len()
}

func (q *Heap[T]) IsEmpty() bool {
	return q.h.Len() == 0
}
