package dtqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/task"
)

// TestDequeueAnyCompactsDrainedSubtree exercises scenario S5: a
// subtree with remaining == 0 and an empty queue at index 0 is
// compacted out of the forest the moment DequeueAny passes over it,
// and the task actually dequeued comes from what used to be index 1.
func TestDequeueAnyCompactsDrainedSubtree(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 2)

	root := spatial.NewInternal(
		spatial.NewLeaf(0, 4, box(0, 1)),
		spatial.NewLeaf(4, 4, box(4, 5)),
	)
	require.NoError(t, q.Init(ctx, 0, root, "q", "r", 1, 50, 1))
	require.Equal(t, 2, q.f.len())

	// Drive index 0 to the drained state directly: no pending tasks,
	// no remaining reference work.
	q.f.remaining[0] = 0

	wantBegin := q.f.subtree[1].Begin()
	q.f.tasks[1].PushTask(task.Task{
		Subtree:  task.SubtreeID{Rank: 0, Begin: wantBegin, Count: q.f.subtree[1].Count()},
		Priority: 5,
	})
	q.numRemainingTasks = 1

	res := q.DequeueAny(false)
	require.True(t, res.Found)
	require.Equal(t, wantBegin, res.Task.Subtree.Begin)
	require.Equal(t, 1, q.f.len(), "the drained subtree should have been compacted away")
}

func TestDequeueAnySkipsLockedSubtrees(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)
	require.NoError(t, q.Init(ctx, 0, singleLeafQuery(4), "q", "r", 1, 50, 1))

	q.f.tasks[0].PushTask(task.Task{Priority: 1})
	q.numRemainingTasks = 1
	q.f.locked[0] = true

	res := q.DequeueAny(false)
	require.False(t, res.Found)
}

func TestUnlockQuerySubtreeUnknownHandle(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)
	require.NoError(t, q.Init(ctx, 0, singleLeafQuery(4), "q", "r", 1, 50, 1))

	err := q.UnlockQuerySubtree(task.SubtreeID{Rank: 0, Begin: 99, Count: 1})
	require.ErrorIs(t, err, ErrUnknownSubtree)
}
