// Package transport defines the queue's Downward API (spec §6): the
// contract the table-exchange transport must satisfy, and the
// cache-slot refcount interface (component C4). The real MPI-backed
// transport is out of scope for this module; this package only names
// the interface and ships an in-memory fake for tests and
// cmd/dtqueue-sim.
package transport

import (
	"context"

	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/task"
)

// Arrival describes one reference subtable that has just landed in
// the transport's receive cache, ready to be cross-joined against
// every local query subtree by Queue.GenerateTasks.
type Arrival struct {
	Rank     int32
	RefBegin int64
	RefCount int64
	Slot     task.CacheSlotID
}

// SubTable is the reference subtable pinned behind a cache slot.
type SubTable struct {
	Table task.TableHandle
	Root  task.Node
}

// Scheduler is the back-reference the transport holds to call into
// the queue core, matching Init's "pass self as a back-reference" in
// spec §4.3.
type Scheduler interface {
	GenerateTasks(ctx context.Context, metric spatial.Metric, arrivals []Arrival) error
}

// Transport is the queue's downward-facing contract onto the
// table-exchange layer (spec §6). LockCache/ReleaseCache implement
// component C4: every LockCache(slot, k) the queue issues must
// eventually be balanced by k calls to ReleaseCache(slot, 1).
type Transport interface {
	Init(ctx context.Context, queryTable, referenceTable task.TableHandle, back Scheduler) error
	SendReceive(ctx context.Context, threadID int, metric interface{}) ([]Arrival, error)
	FindSubTable(slot task.CacheSlotID) (*SubTable, bool)
	FindByBeginCount(begin, count int64) (task.Node, bool)
	LocalTable() task.TableHandle
	LockCache(slot task.CacheSlotID, n int32) error
	ReleaseCache(slot task.CacheSlotID, n int32) error
	PushCompletedComputation(ctx context.Context, quantity uint64) error
	CanTerminate() bool
}
