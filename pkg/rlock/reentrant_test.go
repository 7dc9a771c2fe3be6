package rlock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReentrantLockSameGoroutine(t *testing.T) {
	var m Mutex
	m.Lock()
	m.Lock() // must not deadlock: same goroutine re-entering
	m.AssertHeld()
	m.Unlock()
	m.AssertHeld() // still held once more
	m.Unlock()
}

func TestUnlockByNonHolderPanics(t *testing.T) {
	var m Mutex
	m.Lock()
	defer m.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.Panics(t, func() { m.Unlock() })
	}()
	<-done
}

func TestExcludesOtherGoroutines(t *testing.T) {
	var m Mutex
	m.Lock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second goroutine acquired the lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second goroutine never acquired the lock after release")
	}
}

func TestNestedUnlockRequiresFullDepth(t *testing.T) {
	var m Mutex
	m.Lock()
	m.Lock()
	m.Unlock() // depth 2 -> 1, still held

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := make(chan struct{})
	go func() {
		defer wg.Done()
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("lock released before final Unlock")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock() // depth 1 -> 0, released
	wg.Wait()
}
