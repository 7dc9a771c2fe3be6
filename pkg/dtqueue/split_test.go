package dtqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/task"
	"github.com/xuanhan863/dtqueue/pkg/transport"
)

func splitTestQueryTree() *spatial.TreeNode {
	return spatial.NewInternal(
		spatial.NewLeaf(0, 4, box(0, 1)),
		spatial.NewLeaf(4, 4, box(4, 5)),
	)
}

// TestSplitNormalCase exercises S3: a subtree with three pending tasks
// whose reference nodes are unrelated to the query node splits into
// its two children, each inheriting all three tasks, for six tasks
// total and one LockCache(s, 1) per original task.
func TestSplitNormalCase(t *testing.T) {
	ctx := context.Background()
	q, mt := newTestQueue(t, 1)
	root := splitTestQueryTree()
	require.NoError(t, q.Init(ctx, 0, root, "q", "r", 1, 100, 1))
	require.Equal(t, 1, q.f.len())

	refLeaf := spatial.NewLeaf(20, 5, box(20, 21))
	var slots []task.CacheSlotID
	for i := 0; i < 3; i++ {
		slot := transport.NewSlotID()
		slots = append(slots, slot)
		require.NoError(t, mt.LockCache(slot, 1))
		q.f.tasks[0].PushTask(task.Task{
			ReferenceTable: "r",
			ReferenceNode:  refLeaf,
			Slot:           slot,
			Priority:       float64(i),
		})
	}
	q.numRemainingTasks = 3
	q.SetSplitRequested()

	require.NoError(t, q.RedistributeAmongCores(ctx, spatial.EuclideanMetric{}))

	require.Equal(t, 2, q.f.len())
	require.Equal(t, root.Left().Begin(), q.f.subtree[0].Begin())
	require.Equal(t, root.Right().Begin(), q.f.subtree[1].Begin())
	require.Equal(t, uint64(6), q.NumRemainingTasks())
	require.Equal(t, 3, q.f.tasks[0].Size())
	require.Equal(t, 3, q.f.tasks[1].Size())
	for _, s := range slots {
		require.EqualValues(t, 2, mt.Refcount(s))
	}
	require.False(t, q.splitRequested)
}

// TestSplitMirrorCase exercises S4: a subtree whose pending task's
// reference node is the pre-split query node itself yields four tasks
// (crossing both new query halves against both reference halves) and
// a single LockCache(s, 3).
func TestSplitMirrorCase(t *testing.T) {
	ctx := context.Background()
	q, mt := newTestQueue(t, 1)
	root := splitTestQueryTree()
	require.NoError(t, q.Init(ctx, 0, root, "q", "r", 1, 100, 1))

	slot := transport.NewSlotID()
	require.NoError(t, mt.LockCache(slot, 1))
	q.f.tasks[0].PushTask(task.Task{
		ReferenceTable: "r",
		ReferenceNode:  root,
		Slot:           slot,
		Priority:       1,
	})
	q.numRemainingTasks = 1
	q.SetSplitRequested()

	require.NoError(t, q.RedistributeAmongCores(ctx, spatial.EuclideanMetric{}))

	require.Equal(t, 2, q.f.len())
	require.Equal(t, uint64(4), q.NumRemainingTasks())
	require.Equal(t, 2, q.f.tasks[0].Size())
	require.Equal(t, 2, q.f.tasks[1].Size())
	require.EqualValues(t, 4, mt.Refcount(slot))
}

// TestSplitDoesNotMisfireOnCoincidentalBeginCount guards against a
// structural (begin, count) mirror check: a reference node from an
// entirely different tree that happens to span the same (begin,
// count) as the pre-split query node must NOT be treated as the
// query's own node. Query and reference trees are ordinarily distinct
// (spec §1); only true node identity (the dual-tree self-pairing case)
// should trigger the mirror split.
func TestSplitDoesNotMisfireOnCoincidentalBeginCount(t *testing.T) {
	ctx := context.Background()
	q, mt := newTestQueue(t, 1)
	root := splitTestQueryTree()
	require.NoError(t, q.Init(ctx, 0, root, "q", "r", 1, 100, 1))

	// A distinct, independently-built reference tree that coincidentally
	// covers the same (begin, count) range as root, and is non-leaf like
	// root — exactly the shape that would false-positive under a
	// structural-only check.
	coincidentalRef := spatial.NewInternal(
		spatial.NewLeaf(0, 4, box(50, 51)),
		spatial.NewLeaf(4, 4, box(51, 52)),
	)
	require.Equal(t, root.Begin(), coincidentalRef.Begin())
	require.Equal(t, root.Count(), coincidentalRef.Count())

	slot := transport.NewSlotID()
	require.NoError(t, mt.LockCache(slot, 1))
	q.f.tasks[0].PushTask(task.Task{
		ReferenceTable: "other-reference-table",
		ReferenceNode:  coincidentalRef,
		Slot:           slot,
		Priority:       1,
	})
	q.numRemainingTasks = 1
	q.SetSplitRequested()

	require.NoError(t, q.RedistributeAmongCores(ctx, spatial.EuclideanMetric{}))

	require.Equal(t, 2, q.f.len())
	require.Equal(t, uint64(2), q.NumRemainingTasks(), "coincidental (begin,count) match must take the normal, not mirror, path")
	require.Equal(t, 1, q.f.tasks[0].Size())
	require.Equal(t, 1, q.f.tasks[1].Size())
	require.EqualValues(t, 2, mt.Refcount(slot), "normal case locks the slot once more, not three times")
}

func TestRedistributeAmongCoresNoopWithoutFlag(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)
	require.NoError(t, q.Init(ctx, 0, splitTestQueryTree(), "q", "r", 1, 100, 1))
	require.NoError(t, q.RedistributeAmongCores(ctx, spatial.EuclideanMetric{}))
	require.Equal(t, 1, q.f.len())
}
