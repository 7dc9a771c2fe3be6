// Package task defines the plain data shapes the task queue schedules:
// query-subtree handles, cache-slot ids, and the (query, reference,
// slot) task tuple itself.
package task

import "fmt"

// SubtreeID names a node of the local query tree by (rank, begin,
// count) rather than by its position in the queue's internal forest.
// Forest indices are invalidated by compaction and split, so every
// external caller must address subtrees this way.
type SubtreeID struct {
	Rank  int32
	Begin int64
	Count int64
}

func (id SubtreeID) String() string {
	return fmt.Sprintf("(rank=%d, begin=%d, count=%d)", id.Rank, id.Begin, id.Count)
}

// CacheSlotID names a reference subtable pinned in the transport's
// receive cache. The queue never inspects the contents behind a slot,
// only balances Lock/Release calls against it.
type CacheSlotID int64

// TableHandle is an opaque reference to the table a reference node
// belongs to, threaded through tasks so the kernel can resolve points
// without the queue needing to understand table internals.
type TableHandle interface{}

// Node is the minimal shape of a reference/query tree node that a Task
// needs to carry. It intentionally mirrors pkg/spatial.Node rather
// than importing it, so pkg/task stays free of a dependency on the
// concrete bound/metric machinery.
type Node interface {
	IsLeaf() bool
	Begin() int64
	Count() int64
}

// Task is one (query subtree, reference node, cache slot) unit of
// work. Priority is -mid(range_distance_sq(query.bound, ref.bound));
// higher priority dequeues first because nearer pairs prune more.
type Task struct {
	Subtree        SubtreeID
	ReferenceTable TableHandle
	ReferenceNode  Node
	Slot           CacheSlotID
	Priority       float64

	// Seq is the monotonically increasing insertion sequence used to
	// break priority ties in FIFO order. Set by taskheap.Heap.PushTask;
	// callers constructing a Task directly need not set it.
	Seq uint64
}
