package tsync

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Mutex is a mutual exclusion lock whose waits can be bounded by a deadline
// or a context without polling.
//
// It is a weighted semaphore of size one, so waiters are served in FIFO
// order and a timed out waiter never ends up holding the lock. Like
// sync.Mutex it is not tied to a goroutine: one goroutine may Lock and
// another Unlock.
//
// A Mutex must be created with NewMutex.
type Mutex struct {
	_   noCopy
	sem *semaphore.Weighted

	// locked is set by whoever holds sem and cleared before it is released.
	locked atomic.Bool
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the mutex is available.
func (m *Mutex) Lock() {
	// Background is never done, so Acquire cannot fail.
	_ = m.sem.Acquire(context.Background(), 1)
	m.locked.Store(true)
}

// Unlock releases the mutex. It panics if m is not locked.
func (m *Mutex) Unlock() {
	if !m.locked.CompareAndSwap(true, false) {
		panic("tsync: unlock of unlocked Mutex")
	}
	m.sem.Release(1)
}

// TryLock acquires the mutex if it is free and reports whether it did.
func (m *Mutex) TryLock() bool {
	if !m.sem.TryAcquire(1) {
		return false
	}
	m.locked.Store(true)
	return true
}

// LockContext blocks until the mutex is acquired or ctx is done.
// On failure it returns ctx.Err() and the mutex is not held.
// A ctx that is already done fails even if the mutex is free.
func (m *Mutex) LockContext(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	m.locked.Store(true)
	return nil
}

// LockUntil blocks until the mutex is acquired or deadline passes, in which
// case it returns ErrTimeout. A past deadline still gets one attempt.
func (m *Mutex) LockUntil(deadline time.Time) error {
	return lockContextUntil(m, deadline)
}

// LockTimeout is LockUntil(time.Now().Add(d)).
func (m *Mutex) LockTimeout(d time.Duration) error {
	return m.LockUntil(time.Now().Add(d))
}
