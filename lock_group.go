package tsync

import (
	"time"

	"github.com/llxisdsh/pb"
)

// LockGroup allows deadline bounded locking on arbitrary keys.
//
// Features:
//   - Infinite Keys: No need to pre-allocate locks.
//   - Auto-Cleanup: a key's lock is dropped once nobody holds or waits for it,
//     including waiters that timed out.
//   - Native waits: each key is a Mutex, so timed waits do not poll.
//
// Usage:
//
//	var group LockGroup[string]
//	if err := group.LockTimeout("session-7", time.Second); err != nil {
//		return err // ErrTimeout
//	}
//	defer group.Unlock("session-7")
//
// It is zero-value usable.
type LockGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *lockGroupEntry]
}

type lockGroupEntry struct {
	mu *Mutex
	// ref is only touched inside ProcessEntry.
	ref int32
}

// Lock blocks until k is locked.
func (g *LockGroup[K]) Lock(k K) {
	g.retain(k).mu.Lock()
}

// LockUntil blocks until k is locked or deadline passes, in which case it
// returns ErrTimeout and k is not held.
func (g *LockGroup[K]) LockUntil(k K, deadline time.Time) error {
	e := g.retain(k)
	if err := e.mu.LockUntil(deadline); err != nil {
		g.release(k)
		return err
	}
	return nil
}

// LockTimeout is LockUntil(k, time.Now().Add(d)).
func (g *LockGroup[K]) LockTimeout(k K, d time.Duration) error {
	return g.LockUntil(k, time.Now().Add(d))
}

// Unlock releases k. It panics if k is not locked.
func (g *LockGroup[K]) Unlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		panic("tsync: unlock of unlocked LockGroup key")
	}
	e.mu.Unlock()
	g.release(k)
}

func (g *LockGroup[K]) retain(k K) *lockGroupEntry {
	e, _ := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *lockGroupEntry]) (*pb.EntryOf[K, *lockGroupEntry], *lockGroupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			v := &lockGroupEntry{mu: NewMutex(), ref: 1}
			return &pb.EntryOf[K, *lockGroupEntry]{Value: v}, v, false
		},
	)
	return e
}

func (g *LockGroup[K]) release(k K) {
	_, _ = g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *lockGroupEntry]) (*pb.EntryOf[K, *lockGroupEntry], *lockGroupEntry, bool) {
			if l == nil {
				return nil, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, true
			}
			return l, l.Value, true
		},
	)
}
