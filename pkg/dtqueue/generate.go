package dtqueue

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/xuanhan863/dtqueue/pkg/dtlog"
	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/task"
	"github.com/xuanhan863/dtqueue/pkg/transport"
)

// GenerateTasks cross-joins each arrival against every current query
// subtree (spec §4.3): for each (arrival, subtree) pair, the
// subtree's DisjointIntervalSet decides whether this reference
// interval has already been scheduled for it; on a fresh interval a
// Task is pushed and the transport's cache slot is locked once.
//
// This is the queue's one re-entry point: it may be invoked directly
// by a caller, or synchronously by the transport from inside
// SendReceive (spec §5), on the same goroutine — hence l must be
// re-entrant.
func (q *Queue) GenerateTasks(ctx context.Context, metric spatial.Metric, arrivals []transport.Arrival) error {
	q.l.Lock()
	defer q.l.Unlock()

	for _, a := range arrivals {
		refTable, refNode, err := q.resolveArrival(a)
		if err != nil {
			return err
		}

		for i := 0; i < q.f.len(); i++ {
			inserted, err := q.f.assigned[i].Insert(a.Rank, a.RefBegin, a.RefBegin+a.RefCount)
			if err != nil {
				dtlog.Fatal(ctx, errors.Wrap(err, "dtqueue: assigned-work insert"))
			}
			if !inserted {
				continue
			}
			q.pushTaskLocked(i, metric, refTable, refNode, a.Slot)
			if err := q.transport.LockCache(a.Slot, 1); err != nil {
				return errors.Wrap(err, "dtqueue: lock cache")
			}
			if q.metrics != nil {
				q.metrics.CacheLocks.Inc()
			}
		}
	}
	return nil
}

// resolveArrival finds the reference node an arrival denotes: from
// the remote subtable pinned in its cache slot if one exists, else
// from the local table via a (begin, count) lookup — the arrival then
// denotes locally-owned data the transport routed back to us (spec
// §4.3 GenerateTasks).
func (q *Queue) resolveArrival(a transport.Arrival) (task.TableHandle, task.Node, error) {
	if st, ok := q.transport.FindSubTable(a.Slot); ok {
		return st.Table, st.Root, nil
	}
	node, ok := q.transport.FindByBeginCount(a.RefBegin, a.RefCount)
	if !ok {
		return nil, nil, errors.Newf(
			"dtqueue: arrival (rank=%d, begin=%d, count=%d, slot=%d) resolves to no subtable and no local node",
			a.Rank, a.RefBegin, a.RefCount, a.Slot)
	}
	return q.transport.LocalTable(), node, nil
}

// pushTaskLocked computes priority (-mid(range_distance_sq)) and
// pushes a Task into subtree i's heap. Callers must already hold l.
func (q *Queue) pushTaskLocked(i int, metric spatial.Metric, refTable task.TableHandle, refNode task.Node, slot task.CacheSlotID) {
	priority := 0.0
	if metric != nil && refNode != nil {
		if bounded, ok := refNode.(interface{ Bound() spatial.Bound }); ok {
			lo, hi := metric.RangeDistanceSq(q.f.subtree[i].Bound(), bounded.Bound())
			priority = -spatial.Mid(lo, hi)
		}
	}
	q.f.tasks[i].PushTask(task.Task{
		Subtree:        subtreeIDFor(q.f, i),
		ReferenceTable: refTable,
		ReferenceNode:  refNode,
		Slot:           slot,
		Priority:       priority,
	})
	q.numRemainingTasks++
	if q.metrics != nil {
		q.metrics.TasksGenerated.Inc()
	}
}

func subtreeIDFor(f *forest, i int) task.SubtreeID {
	n := f.subtree[i]
	return task.SubtreeID{Rank: f.rank, Begin: n.Begin(), Count: n.Count()}
}
