package dtqueue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xuanhan863/dtqueue/pkg/interval"
	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/task"
)

func TestForestCompactSwapsLastIntoHole(t *testing.T) {
	f := newForest(0)
	i0 := f.append(spatial.NewLeaf(0, 4, box(0, 1)), false, interval.New(), 0)
	i1 := f.append(spatial.NewLeaf(4, 4, box(1, 2)), false, interval.New(), 7)
	require.Equal(t, 0, i0)
	require.Equal(t, 1, i1)

	f.tasks[1].PushTask(task.Task{Priority: 1})
	require.Equal(t, 2, f.len())

	f.compact(0)

	require.Equal(t, 1, f.len())
	require.Equal(t, int64(4), f.subtree[0].Begin())
	require.Equal(t, 1, f.tasks[0].Size())
}

func TestForestFindIndex(t *testing.T) {
	f := newForest(0)
	f.append(spatial.NewLeaf(0, 4, box(0, 1)), false, interval.New(), 0)
	f.append(spatial.NewLeaf(4, 6, box(1, 2)), false, interval.New(), 0)

	require.Equal(t, 1, f.findIndex(4, 6))
	require.Equal(t, -1, f.findIndex(99, 1))
}
