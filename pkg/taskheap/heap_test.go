package taskheap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuanhan863/dtqueue/pkg/task"
)

func TestOrderByPriorityDescending(t *testing.T) {
	var h Heap
	h.PushTask(task.Task{Priority: 1})
	h.PushTask(task.Task{Priority: 5})
	h.PushTask(task.Task{Priority: 3})

	require.Equal(t, 3, h.Size())
	require.Equal(t, 5.0, h.Top().Priority)
	require.Equal(t, 5.0, h.PopTask().Priority)
	require.Equal(t, 3.0, h.PopTask().Priority)
	require.Equal(t, 1.0, h.PopTask().Priority)
	require.Equal(t, 0, h.Size())
}

func TestTiesBreakFIFO(t *testing.T) {
	var h Heap
	h.PushTask(task.Task{Priority: 1, Slot: 1})
	h.PushTask(task.Task{Priority: 1, Slot: 2})
	h.PushTask(task.Task{Priority: 1, Slot: 3})

	require.Equal(t, task.CacheSlotID(1), h.PopTask().Slot)
	require.Equal(t, task.CacheSlotID(2), h.PopTask().Slot)
	require.Equal(t, task.CacheSlotID(3), h.PopTask().Slot)
}
