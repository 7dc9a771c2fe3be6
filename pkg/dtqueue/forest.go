package dtqueue

import (
	"github.com/xuanhan863/dtqueue/pkg/interval"
	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/taskheap"
)

// forest is the dense, index-addressed slice-of-structs-of-arrays
// state described in spec §3 "Forest state". Entries are appended
// only by the splitter and removed only by compaction inside
// DequeueAny, which is why external callers must never address
// a subtree by index — only by task.SubtreeID (rank, begin, count).
type forest struct {
	rank      int32
	subtree   []spatial.Node
	locked    []bool
	tasks     []*taskheap.Heap
	assigned  []*interval.Set
	remaining []uint64
}

func newForest(rank int32) *forest {
	return &forest{rank: rank}
}

func (f *forest) len() int { return len(f.subtree) }

// append adds a new slot to the end of the forest and returns its
// index. Used both by Init (seeding the initial frontier) and by the
// splitter (appending the right half of a split).
func (f *forest) append(node spatial.Node, locked bool, assigned *interval.Set, remaining uint64) int {
	f.subtree = append(f.subtree, node)
	f.locked = append(f.locked, locked)
	f.tasks = append(f.tasks, &taskheap.Heap{})
	f.assigned = append(f.assigned, assigned)
	f.remaining = append(f.remaining, remaining)
	return len(f.subtree) - 1
}

// compact removes slot i via swap-with-last-and-pop (spec §3
// "Lifecycle"), invalidating whatever index used to belong to the
// last slot.
func (f *forest) compact(i int) {
	last := f.len() - 1
	f.subtree[i] = f.subtree[last]
	f.locked[i] = f.locked[last]
	f.tasks[i] = f.tasks[last]
	f.assigned[i] = f.assigned[last]
	f.remaining[i] = f.remaining[last]

	f.subtree = f.subtree[:last]
	f.locked = f.locked[:last]
	f.tasks = f.tasks[:last]
	f.assigned = f.assigned[:last]
	f.remaining = f.remaining[:last]
}

// findIndex locates the forest slot whose node matches (begin, count),
// the external handle for a query subtree. Returns -1 if not found,
// e.g. because the subtree was already compacted away.
func (f *forest) findIndex(begin, count int64) int {
	for i, n := range f.subtree {
		if n.Begin() == begin && n.Count() == count {
			return i
		}
	}
	return -1
}
