// Package rlock provides the re-entrant lock spec §5/§9 requires for
// the task queue's nested lock L: SendReceive re-enters GenerateTasks
// synchronously through the transport, on the same goroutine, so a
// plain sync.Mutex would deadlock.
//
// Shaped after pkg/util/syncutil.Mutex (embed-and-extend a stdlib
// primitive, expose AssertHeld for callers that require the lock to
// already be held). The owner goroutine is identified via
// github.com/petermattis/goid, the same library the teacher itself
// depends on directly and calls (goid.Get()) in
// pkg/kv/kvserver/concurrency/concurrency_manager_test.go.
package rlock

import (
	"sync"

	"github.com/petermattis/goid"
)

// Mutex is a counted, owner-tracked re-entrant mutex. The zero value
// is an unlocked, usable Mutex.
type Mutex struct {
	mu    sync.Mutex
	cond  sync.Cond
	owner int64 // goroutine id of the current holder, 0 if unlocked
	depth int
}

func (m *Mutex) init() {
	if m.cond.L == nil {
		m.cond.L = &m.mu
	}
}

// Lock acquires m. If the calling goroutine already holds m, Lock
// increments the hold depth and returns immediately instead of
// deadlocking. Otherwise it blocks until the current holder (if any)
// releases m entirely.
func (m *Mutex) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()

	gid := goid.Get()
	for m.owner != 0 && m.owner != gid {
		m.cond.Wait()
	}
	m.owner = gid
	m.depth++
}

// Unlock releases one level of the calling goroutine's hold on m. Once
// depth reaches zero the lock becomes available to other goroutines.
// Unlock panics if the calling goroutine does not hold m — an
// unbalanced Lock/Unlock pair is a programmer error, not a
// recoverable condition, consistent with spec §7's fail-fast policy.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()

	gid := goid.Get()
	if m.owner != gid {
		panic("rlock: Unlock called by goroutine that does not hold the lock")
	}
	m.depth--
	if m.depth == 0 {
		m.owner = 0
		m.cond.Signal()
	}
}

// AssertHeld may panic if the calling goroutine does not hold m. Used
// the way pkg/util/syncutil.Mutex.AssertHeld is used: to enforce a
// "callers must already hold L" contract on internal helpers.
func (m *Mutex) AssertHeld() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if m.owner != goid.Get() {
		panic("rlock: lock is not held by the calling goroutine")
	}
}
