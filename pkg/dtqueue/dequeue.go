package dtqueue

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/xuanhan863/dtqueue/pkg/task"
)

// DequeueResult is what DequeueAny/DequeueFrom hand back to a worker.
// Found is false when no task could be taken — the sentinel described
// in spec §4.3 ("out.second = -1 or equivalent"). A worker that
// receives Found == false and knows every non-empty queue is locked
// is expected to call SetSplitRequested.
type DequeueResult struct {
	Task  task.Task
	Found bool
}

// DequeueAny scans every subtree for a runnable task (spec §4.3,
// any-subtree form): the first unlocked, non-empty queue yields its
// top task; any subtree found empty with no remaining work is
// compacted out of the forest in the same pass. DequeueAny never
// blocks waiting for work — workers poll.
func (q *Queue) DequeueAny(lockSubtree bool) DequeueResult {
	q.l.Lock()
	defer q.l.Unlock()

	for i := 0; i < q.f.len(); i++ {
		if q.f.tasks[i].Size() > 0 {
			if q.f.locked[i] {
				continue
			}
			t := q.f.tasks[i].PopTask()
			q.f.locked[i] = lockSubtree
			q.numRemainingTasks--
			if q.metrics != nil {
				q.metrics.TasksDequeued.Inc()
			}
			return DequeueResult{Task: t, Found: true}
		}
		if q.f.remaining[i] == 0 {
			q.f.compact(i)
			if q.metrics != nil {
				q.metrics.SubtreesCompacted.Inc()
			}
			i-- // re-probe this index; the loop bound (q.f.len()) is re-read each iteration
			continue
		}
	}
	return DequeueResult{}
}

// DequeueFrom is the targeted form of DequeueTask (spec §4.3): it only
// considers subtree i and performs no compaction.
func (q *Queue) DequeueFrom(i int, lockSubtree bool) DequeueResult {
	q.l.Lock()
	defer q.l.Unlock()
	return q.dequeueFromLocked(i, lockSubtree)
}

func (q *Queue) dequeueFromLocked(i int, lockSubtree bool) DequeueResult {
	if i < 0 || i >= q.f.len() {
		return DequeueResult{}
	}
	if q.f.tasks[i].Size() == 0 || q.f.locked[i] {
		return DequeueResult{}
	}
	t := q.f.tasks[i].PopTask()
	q.f.locked[i] = lockSubtree
	q.numRemainingTasks--
	if q.metrics != nil {
		q.metrics.TasksDequeued.Inc()
	}
	return DequeueResult{Task: t, Found: true}
}

// UnlockQuerySubtree clears the worker-exclusive lock on the subtree
// named by id, identified by (begin, count) rather than by (now
// possibly stale) forest index.
func (q *Queue) UnlockQuerySubtree(id task.SubtreeID) error {
	q.l.Lock()
	defer q.l.Unlock()
	i := q.f.findIndex(id.Begin, id.Count)
	if i < 0 {
		return errors.Wrapf(ErrUnknownSubtree, "dtqueue: %s not found", id)
	}
	q.f.locked[i] = false
	return nil
}

// PushCompletedComputation retires quantity units of work for the
// subtree named by id: decrements the global and local remaining
// counters, forwards quantity to the transport for distributed
// termination accounting, and decrements that subtree's remaining
// reference-point count by refCount.
//
// remainingLocalComputation is decremented by quantity unconditionally
// regardless of whether the completed work originated locally or
// remotely, matching the original C++'s unconditional subtraction —
// see SPEC_FULL.md's Open Question decisions.
func (q *Queue) PushCompletedComputation(ctx context.Context, id task.SubtreeID, refCount, quantity uint64) error {
	q.l.Lock()
	defer q.l.Unlock()

	q.retireGlobalAndLocalLocked(ctx, quantity)

	i := q.f.findIndex(id.Begin, id.Count)
	if i < 0 {
		return errors.Wrapf(ErrUnknownSubtree, "dtqueue: %s not found", id)
	}
	q.f.remaining[i] = saturatingSub(q.f.remaining[i], refCount)
	return q.forwardCompletionLocked(ctx, quantity)
}

// PushCompletedComputationGlobal is the overload without a subtree id
// (spec §4.3): used when the completion pertains to a globally pruned
// region and so applies to every live subtree's remaining count, not
// just one.
func (q *Queue) PushCompletedComputationGlobal(ctx context.Context, refCount, quantity uint64) error {
	q.l.Lock()
	defer q.l.Unlock()

	q.retireGlobalAndLocalLocked(ctx, quantity)
	for i := range q.f.remaining {
		q.f.remaining[i] = saturatingSub(q.f.remaining[i], refCount)
	}
	return q.forwardCompletionLocked(ctx, quantity)
}

func (q *Queue) retireGlobalAndLocalLocked(ctx context.Context, quantity uint64) {
	q.remainingGlobalComputation = saturatingSub(q.remainingGlobalComputation, quantity)
	q.remainingLocalComputation = saturatingSub(q.remainingLocalComputation, quantity)
	if q.metrics != nil {
		q.metrics.TasksCompleted.Inc()
		q.metrics.RemainingGlobal.Set(float64(q.remainingGlobalComputation))
	}
	_ = ctx
}

func (q *Queue) forwardCompletionLocked(ctx context.Context, quantity uint64) error {
	if err := q.transport.PushCompletedComputation(ctx, quantity); err != nil {
		return errors.Wrap(err, "dtqueue: forward completed computation")
	}
	return nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
