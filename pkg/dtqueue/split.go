package dtqueue

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/xuanhan863/dtqueue/pkg/dtlog"
	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/task"
)

// RedistributeAmongCores runs the dynamic splitter (component C5, spec
// §4.5) if splitRequested is set: it selects the most overloaded
// unlocked, non-leaf subtree with pending tasks and splits it into its
// two children, redistributing its drained tasks across both halves.
// A no-op, returning nil, when splitRequested is false or no subtree
// qualifies.
func (q *Queue) RedistributeAmongCores(ctx context.Context, metric spatial.Metric) error {
	q.l.Lock()
	defer q.l.Unlock()

	if !q.splitRequested {
		return nil
	}
	defer func() { q.splitRequested = false }()

	i := q.selectSplitCandidateLocked()
	if i < 0 {
		return nil
	}
	return q.splitLocked(ctx, i, metric)
}

// selectSplitCandidateLocked implements the selection heuristic from
// spec §4.5: among unlocked, non-leaf subtrees with at least one
// pending task, the one with the largest Count(); ties go to the
// lowest index. Callers must already hold l.
func (q *Queue) selectSplitCandidateLocked() int {
	best, bestCount := -1, int64(-1)
	for i := 0; i < q.f.len(); i++ {
		if q.f.locked[i] || q.f.subtree[i].IsLeaf() || q.f.tasks[i].Size() == 0 {
			continue
		}
		if n := q.f.subtree[i].Count(); n > bestCount {
			best, bestCount = i, n
		}
	}
	return best
}

// splitLocked performs the split procedure from spec §4.5 for the
// chosen slot i. Callers must already hold l.
func (q *Queue) splitLocked(ctx context.Context, i int, metric spatial.Metric) error {
	queryNode := q.f.subtree[i]
	left, right := queryNode.Left(), queryNode.Right()
	if left == nil || right == nil {
		return errors.AssertionFailedf("dtqueue: split candidate %v has no children", subtreeIDFor(q.f, i))
	}

	// Step 1: replace subtree[i] with L, append a new slot N for R.
	q.f.subtree[i] = left
	n := q.f.append(right, false, q.f.assigned[i].Clone(), q.f.remaining[i])

	// Step 2: drain tasks[i] into a temporary list, preserving counters
	// (targeted dequeue with lockSubtree = false).
	var drained []task.Task
	for {
		r := q.dequeueFromLocked(i, false)
		if !r.Found {
			break
		}
		drained = append(drained, r.Task)
	}

	// Step 3: redistribute each drained task across L and R.
	for _, t := range drained {
		if sameNode(t.ReferenceNode, queryNode) && !t.ReferenceNode.IsLeaf() {
			if err := q.pushMirrorSplitLocked(i, n, metric, queryNode, t); err != nil {
				return err
			}
			continue
		}
		if err := q.pushNormalSplitLocked(i, n, metric, t); err != nil {
			return err
		}
	}

	if q.metrics != nil {
		q.metrics.SubtreesSplit.Inc()
	}
	dtlog.Event(ctx, "split subtree")
	return nil
}

// pushMirrorSplitLocked handles the "dual-tree self-pairing" case
// (spec §4.5): splitting the query also forces its reference — which
// is the very same node — to split, so four tasks result instead of
// two, and the cache slot gains three additional references.
func (q *Queue) pushMirrorSplitLocked(i, n int, metric spatial.Metric, refRoot spatial.Node, t task.Task) error {
	refLeft, refRight := refRoot.Left(), refRoot.Right()
	q.pushTaskLocked(i, metric, t.ReferenceTable, refLeft, t.Slot)
	q.pushTaskLocked(i, metric, t.ReferenceTable, refRight, t.Slot)
	q.pushTaskLocked(n, metric, t.ReferenceTable, refLeft, t.Slot)
	q.pushTaskLocked(n, metric, t.ReferenceTable, refRight, t.Slot)
	if err := q.transport.LockCache(t.Slot, 3); err != nil {
		return errors.Wrap(err, "dtqueue: split lock cache (mirror)")
	}
	if q.metrics != nil {
		q.metrics.CacheLocks.Inc()
	}
	return nil
}

// pushNormalSplitLocked handles the ordinary case: the reference node
// is unrelated to the query split, so it is simply re-pushed against
// both halves.
func (q *Queue) pushNormalSplitLocked(i, n int, metric spatial.Metric, t task.Task) error {
	q.pushTaskLocked(i, metric, t.ReferenceTable, t.ReferenceNode, t.Slot)
	q.pushTaskLocked(n, metric, t.ReferenceTable, t.ReferenceNode, t.Slot)
	if err := q.transport.LockCache(t.Slot, 1); err != nil {
		return errors.Wrap(err, "dtqueue: split lock cache (normal)")
	}
	if q.metrics != nil {
		q.metrics.CacheLocks.Inc()
	}
	return nil
}

// sameNode reports whether a task.Node handle and a spatial.Node are
// the very same node object, matching the C++ original's pointer
// equality (prev_qnode == prev_tasks[i].reference_start_node() in
// distributed_dualtree_task_queue.h). Query and reference trees are
// ordinarily distinct (spec §1), so two nodes from different trees can
// coincidentally share (begin, count) without being the same node —
// comparing those alone would misfire into the mirror case and
// triple-lock a cache slot that only wanted one extra reference.
// Interface equality on the boxed value catches this correctly: it
// only holds when both sides carry the identical dynamic type and
// value, i.e. the identical underlying node.
func sameNode(a task.Node, b spatial.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return interface{}(a) == interface{}(b)
}
