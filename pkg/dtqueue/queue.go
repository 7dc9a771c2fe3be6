// Package dtqueue implements the per-process task queue at the heart
// of a distributed, shared-memory-parallel dual-tree scheduler: the
// forest of query subtrees, their per-subtree priority queues and
// disjoint-interval bookkeeping, the reference-count protocol with
// the transport's cache, the dynamic splitter, and the termination
// detector (spec.md components C1-C6, as expanded in SPEC_FULL.md).
//
// Grounded on pkg/storage/concurrency/concurrency_manager.go and
// pkg/kv/kvserver/concurrency/concurrency_manager.go's managerImpl
// shape (collaborators behind a lock, Config/initDefaults
// construction) and on the original C++ this spec was distilled from,
// core/parallel/distributed_dualtree_task_queue.h.
package dtqueue

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/xuanhan863/dtqueue/pkg/dtlog"
	"github.com/xuanhan863/dtqueue/pkg/dtqueue/config"
	"github.com/xuanhan863/dtqueue/pkg/interval"
	"github.com/xuanhan863/dtqueue/pkg/rlock"
	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/task"
	"github.com/xuanhan863/dtqueue/pkg/transport"
)

// Queue is the task queue core (component C3). All exported methods
// acquire the re-entrant lock l on entry and release it on every exit
// path (spec §4.3); l being re-entrant is what lets GenerateTasks call
// back into the transport, which may synchronously call GenerateTasks
// again on the same goroutine (spec §5, §9).
type Queue struct {
	l rlock.Mutex

	cfg       config.Config
	transport transport.Transport
	metrics   *Metrics

	f *forest

	numRemainingTasks          uint64
	remainingGlobalComputation uint64
	remainingLocalComputation  uint64
	splitRequested             bool
}

// New constructs a Queue with the given config, transport, and
// metrics. Call Init before any other method. A nil metrics disables
// instrumentation (every update becomes a no-op check).
func New(cfg config.Config, t transport.Transport, metrics *Metrics) *Queue {
	cfg = config.WithDefaults(cfg)
	return &Queue{
		cfg:       cfg,
		transport: t,
		metrics:   metrics,
	}
}

// Init builds the initial frontier of at most numThreads query
// subtrees from the local query tree's root, and initializes the
// transport with self as its back-reference (spec §4.3 Init).
//
// totalQueryPoints and totalReferencePoints are the world-wide point
// counts (summed across every rank); localQueryPoints is this rank's
// share, used to seed remainingLocalComputation.
func (q *Queue) Init(
	ctx context.Context,
	rank int32,
	queryRoot spatial.Node,
	queryTable, referenceTable task.TableHandle,
	totalQueryPoints, totalReferencePoints, localQueryPoints uint64,
) error {
	q.l.Lock()
	defer q.l.Unlock()

	q.f = newForest(rank)
	frontier := frontierBoundedByCount(queryRoot, q.cfg.NumThreads)
	for _, node := range frontier {
		assigned := interval.NewWithDegree(q.cfg.IntervalBTreeDegree)
		q.f.append(node, false, assigned, totalReferencePoints)
	}

	q.remainingGlobalComputation = totalQueryPoints * totalReferencePoints
	q.remainingLocalComputation = localQueryPoints * totalReferencePoints

	if err := q.transport.Init(ctx, queryTable, referenceTable, q); err != nil {
		return errors.Wrap(err, "dtqueue: transport init")
	}
	dtlog.Event(ctx, "task queue initialized")
	if q.metrics != nil {
		q.metrics.RemainingGlobal.Set(float64(q.remainingGlobalComputation))
	}
	return nil
}

// frontierBoundedByCount cuts the tree rooted at root into at most
// maxSubtrees pieces by repeatedly splitting the largest current
// piece, matching the shape (if not the exact tie-breaking) of the
// original get_frontier_nodes_bounded_by_number the C++ tree module
// performs during Init. A nil root yields an empty frontier; a leaf
// root yields a single-node frontier.
func frontierBoundedByCount(root spatial.Node, maxSubtrees int) []spatial.Node {
	if root == nil {
		return nil
	}
	frontier := []spatial.Node{root}
	for len(frontier) < maxSubtrees {
		splitIdx, splitCount := -1, int64(-1)
		for i, n := range frontier {
			if !n.IsLeaf() && n.Count() > splitCount {
				splitIdx, splitCount = i, n.Count()
			}
		}
		if splitIdx < 0 {
			break // every remaining node is a leaf; can't grow further
		}
		n := frontier[splitIdx]
		frontier[splitIdx] = n.Left()
		frontier = append(frontier, n.Right())
	}
	return frontier
}

// NumRemainingTasks returns the sum of |tasks[i]| across the forest
// (spec invariant 1).
func (q *Queue) NumRemainingTasks() uint64 {
	q.l.Lock()
	defer q.l.Unlock()
	return q.numRemainingTasks
}

// RemainingGlobalComputation returns remainingGlobalComputation.
func (q *Queue) RemainingGlobalComputation() uint64 {
	q.l.Lock()
	defer q.l.Unlock()
	return q.remainingGlobalComputation
}

// Size returns the current number of live subtrees in the forest.
func (q *Queue) Size() int {
	q.l.Lock()
	defer q.l.Unlock()
	return q.f.len()
}

// IsEmpty reports whether there are no queued tasks left anywhere in
// the forest.
func (q *Queue) IsEmpty() bool {
	q.l.Lock()
	defer q.l.Unlock()
	return q.numRemainingTasks == 0
}

// CanTerminate implements the termination detector (component C6):
// the local predicate must observe remainingGlobalComputation == 0
// *and* the transport's own drained state (spec §4.6). Once true this
// never flips back to false (testable property 7), since
// remainingGlobalComputation only ever decreases.
func (q *Queue) CanTerminate() bool {
	q.l.Lock()
	defer q.l.Unlock()
	return q.remainingGlobalComputation == 0 && q.transport.CanTerminate()
}

// SendReceive is a thin re-entrant wrapper delegating to the
// transport while holding l (spec §4.3): the transport may
// synchronously call back into GenerateTasks before SendReceive
// returns.
func (q *Queue) SendReceive(ctx context.Context, threadID int, metric interface{}) ([]transport.Arrival, error) {
	q.l.Lock()
	defer q.l.Unlock()
	dtlog.Event(ctx, "send/receive with transport")
	arrivals, err := q.transport.SendReceive(ctx, threadID, metric)
	if err != nil {
		return nil, errors.Wrap(err, "dtqueue: transport send/receive")
	}
	return arrivals, nil
}

// ReleaseCache is a thin re-entrant wrapper delegating to the
// transport while holding l.
func (q *Queue) ReleaseCache(slot task.CacheSlotID, n int32) error {
	q.l.Lock()
	defer q.l.Unlock()
	if err := q.transport.ReleaseCache(slot, n); err != nil {
		return errors.Wrap(err, "dtqueue: release cache")
	}
	if q.metrics != nil {
		q.metrics.CacheReleases.Add(float64(n))
	}
	return nil
}

// SetSplitRequested marks that a worker found every non-empty queue
// locked and wants RedistributeAmongCores to run at the next
// quiescent point (spec §4.5). It is only ever cleared inside
// RedistributeAmongCores — see SPEC_FULL.md's Open Question decisions.
func (q *Queue) SetSplitRequested() {
	q.l.Lock()
	defer q.l.Unlock()
	q.splitRequested = true
}
