package httpqueue

import "container/heap"

// requestHeap orders pending requests by descending Priority, then
// ascending sequence number (FIFO within a priority band), per spec.md §4.2.
type requestHeap []*Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].sequence < h[j].sequence
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) {
	*h = append(*h, x.(*Request))
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// priorityQueue is a concurrency-unsafe min-heap wrapper; callers (the
// dispatchers) hold their own mutex around Push/Pop.
type priorityQueue struct {
	h requestHeap
}

func newPriorityQueue() *priorityQueue {
	pq := &priorityQueue{}
	heap.Init(&pq.h)
	return pq
}

func (q *priorityQueue) push(r *Request) {
	heap.Push(&q.h, r)
}

// pop removes and returns the highest-priority, earliest-sequence request,
// or nil if the queue is empty.
func (q *priorityQueue) pop() *Request {
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Request)
}

func (q *priorityQueue) len() int {
	return q.h.Len()
}
