package transport

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/xuanhan863/dtqueue/pkg/task"
)

// MemTransport is an in-memory fake of Transport for tests and
// cmd/dtqueue-sim. It tracks per-slot refcounts and asserts on
// underflow the way pkg/kv/txn_interceptor_pipeliner.go's
// inFlightWriteSet asserts on negative byte accounting.
type MemTransport struct {
	mu sync.Mutex

	local     task.TableHandle
	subtables map[task.CacheSlotID]*SubTable
	refcounts map[task.CacheSlotID]int32

	pending    []Arrival
	globalDone bool
	completed  uint64
}

// NewMemTransport builds an empty fake transport over the given local
// table handle.
func NewMemTransport(local task.TableHandle) *MemTransport {
	return &MemTransport{
		local:     local,
		subtables: make(map[task.CacheSlotID]*SubTable),
		refcounts: make(map[task.CacheSlotID]int32),
	}
}

// StageSubTable registers a reference subtable behind slot, as if it
// had just been received from a peer rank.
func (m *MemTransport) StageSubTable(slot task.CacheSlotID, st *SubTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subtables[slot] = st
}

// Inject queues arrivals to be returned by the next SendReceive call.
func (m *MemTransport) Inject(arrivals ...Arrival) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, arrivals...)
}

// MarkGlobalDone flips the fake's CanTerminate predicate, standing in
// for a real transport's distributed termination-detection gossip.
func (m *MemTransport) MarkGlobalDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalDone = true
}

func (m *MemTransport) Init(_ context.Context, _, local task.TableHandle, _ Scheduler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local = local
	return nil
}

func (m *MemTransport) SendReceive(_ context.Context, _ int, _ interface{}) ([]Arrival, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	m.pending = nil
	return out, nil
}

func (m *MemTransport) FindSubTable(slot task.CacheSlotID) (*SubTable, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.subtables[slot]
	return st, ok
}

func (m *MemTransport) FindByBeginCount(begin, count int64) (task.Node, bool) {
	// The fake has no local table structure to search; a real
	// transport resolves this against Transport.LocalTable(). The
	// tests and cmd/dtqueue-sim stage a SubTable for every arrival's
	// slot, so GenerateTasks resolves them through FindSubTable and
	// never reaches this fallback, which (as in the C++) is only
	// consulted when FindSubTable finds nothing, i.e. the arrival
	// denotes local, not remote, data.
	_ = begin
	_ = count
	return nil, false
}

func (m *MemTransport) LocalTable() task.TableHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.local
}

func (m *MemTransport) LockCache(slot task.CacheSlotID, n int32) error {
	if n <= 0 {
		return errors.AssertionFailedf("transport: LockCache called with non-positive n=%d", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refcounts[slot] += n
	return nil
}

func (m *MemTransport) ReleaseCache(slot task.CacheSlotID, n int32) error {
	if n <= 0 {
		return errors.AssertionFailedf("transport: ReleaseCache called with non-positive n=%d", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining, ok := m.refcounts[slot]
	if !ok || remaining < n {
		return errors.Mark(
			errors.Newf("transport: ReleaseCache(%d, %d) would underflow slot refcount %d", slot, n, remaining),
			ErrRefcountUnderflow,
		)
	}
	m.refcounts[slot] = remaining - n
	if m.refcounts[slot] == 0 {
		delete(m.refcounts, slot)
		delete(m.subtables, slot)
	}
	return nil
}

// Refcount returns the current outstanding lock count for slot, for
// test assertions.
func (m *MemTransport) Refcount(slot task.CacheSlotID) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refcounts[slot]
}

func (m *MemTransport) PushCompletedComputation(_ context.Context, quantity uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed += quantity
	return nil
}

func (m *MemTransport) CanTerminate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.globalDone && len(m.pending) == 0
}

// ErrRefcountUnderflow is the sentinel wrapped into the error returned
// by ReleaseCache on underflow (spec §7's RefcountUnderflow kind).
var ErrRefcountUnderflow = errors.New("transport: refcount underflow")

// NewSlotID returns a fresh, unique slot id for tests that need to
// stage several arrivals without colliding on the same slot.
func NewSlotID() task.CacheSlotID {
	// Fold a UUID down to an int64 range; collisions are astronomically
	// unlikely for the handful of slots any single test stages, and
	// this only needs to be unique within one test's fake transport,
	// not globally.
	u := uuid.New()
	var v int64
	for _, b := range u[:8] {
		v = v<<8 | int64(b)
	}
	if v < 0 {
		v = -v
	}
	return task.CacheSlotID(v)
}
