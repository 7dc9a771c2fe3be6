// Package taskheap implements the per-subtree task priority queue
// (spec §4.2, component C2): a max-heap over task.Task ordered by
// Priority descending, ties broken by insertion order. Grounded on
// pkg/kv/kvserver/replica_rankings.go's rrPriorityQueue — the same
// container/heap.Interface shape over a slice field.
package taskheap

import (
	"container/heap"

	"github.com/xuanhan863/dtqueue/pkg/task"
)

// Heap is a max-heap of task.Task. The zero value is an empty, usable
// heap.
type Heap struct {
	entries []task.Task
	nextSeq uint64
}

var _ heap.Interface = (*Heap)(nil)

func (h Heap) Len() int { return len(h.entries) }

func (h Heap) Less(i, j int) bool {
	if h.entries[i].Priority != h.entries[j].Priority {
		return h.entries[i].Priority > h.entries[j].Priority
	}
	// Stable tie-break: earlier insertion (lower Seq) dequeues first.
	return h.entries[i].Seq < h.entries[j].Seq
}

func (h Heap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

// Push implements heap.Interface. Use (*Heap).PushTask, not this
// method directly, so Seq gets assigned.
func (h *Heap) Push(x interface{}) {
	h.entries = append(h.entries, x.(task.Task))
}

// Pop implements heap.Interface. Use (*Heap).PopTask, not this method
// directly.
func (h *Heap) Pop() interface{} {
	old := h.entries
	n := len(old)
	item := old[n-1]
	h.entries = old[:n-1]
	return item
}

// PushTask inserts t, stamping it with the next insertion sequence so
// that equal-priority tasks dequeue in FIFO order.
func (h *Heap) PushTask(t task.Task) {
	t.Seq = h.nextSeq
	h.nextSeq++
	heap.Push(h, t)
}

// PopTask removes and returns the highest-priority task. Panics if the
// heap is empty; callers must check Size first (mirrors the C++
// pop()/top() split in spec §4.2, which is likewise unchecked).
func (h *Heap) PopTask() task.Task {
	return heap.Pop(h).(task.Task)
}

// Top returns the highest-priority task without removing it. Panics
// if the heap is empty.
func (h *Heap) Top() task.Task {
	return h.entries[0]
}

// Size returns the number of tasks currently queued.
func (h *Heap) Size() int { return len(h.entries) }
