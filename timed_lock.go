package tsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultQuantum is the longest PollStrategy sleeps between two attempts
// when no Quantum is configured.
const DefaultQuantum = 10 * time.Millisecond

// TryLocker is a lock that supports non-blocking acquisition.
// *sync.Mutex, *sync.RWMutex and *Mutex satisfy it.
type TryLocker interface {
	sync.Locker
	TryLock() bool
}

// ContextLocker is a TryLocker that can also wait for the lock natively,
// giving up when ctx is done. On failure the lock must not be held.
type ContextLocker interface {
	TryLocker
	LockContext(ctx context.Context) error
}

// Strategy acquires a lock, blocking at most until deadline.
//
// LockUntil returns nil once the lock is held and ErrTimeout if the
// deadline passed first, in which case the lock is not held by the caller.
// A deadline that has already passed still gets one acquisition attempt.
type Strategy interface {
	LockUntil(l TryLocker, deadline time.Time) error
}

// TryLockUntil acquires l, blocking at most until deadline.
// It uses AutoStrategy: a native wait if l is a ContextLocker, bounded
// polling otherwise.
func TryLockUntil(l TryLocker, deadline time.Time) error {
	return AutoStrategy{}.LockUntil(l, deadline)
}

// PollStrategy emulates a timed lock with TryLock and short sleeps.
//
// Sleeps never extend past the deadline, so a timeout is reported at most
// one Quantum (plus scheduler latency) after the deadline.
type PollStrategy struct {
	// Quantum caps each sleep between attempts. Zero means DefaultQuantum.
	Quantum time.Duration
}

func (s PollStrategy) quantum() time.Duration {
	if s.Quantum <= 0 {
		return DefaultQuantum
	}
	return s.Quantum
}

// LockUntil implements Strategy.
func (s PollStrategy) LockUntil(l TryLocker, deadline time.Time) error {
	q := s.quantum()
	for {
		if l.TryLock() {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		time.Sleep(min(q, remaining))
	}
}

// NativeStrategy waits with the lock's own deadline-aware primitive.
// The lock must implement ContextLocker; otherwise LockUntil returns an
// error wrapping errors.ErrUnsupported without touching the lock.
type NativeStrategy struct{}

// LockUntil implements Strategy.
func (NativeStrategy) LockUntil(l TryLocker, deadline time.Time) error {
	cl, ok := l.(ContextLocker)
	if !ok {
		return fmt.Errorf("tsync: %T has no native timed lock: %w", l, errors.ErrUnsupported)
	}
	return lockContextUntil(cl, deadline)
}

func lockContextUntil(l ContextLocker, deadline time.Time) error {
	// Contexts that are already done fail without trying, so the one
	// attempt owed to a past deadline is made here.
	if l.TryLock() {
		return nil
	}
	if !time.Now().Before(deadline) {
		return ErrTimeout
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	if err := l.LockContext(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	}
	return nil
}

// AutoStrategy uses NativeStrategy when the lock supports it and falls back
// to Poll otherwise.
type AutoStrategy struct {
	Poll PollStrategy
}

// LockUntil implements Strategy.
func (s AutoStrategy) LockUntil(l TryLocker, deadline time.Time) error {
	if cl, ok := l.(ContextLocker); ok {
		return lockContextUntil(cl, deadline)
	}
	return s.Poll.LockUntil(l, deadline)
}

// Observed returns a Strategy that reports how long every LockUntil call
// waited, and whether it acquired the lock, to o.
func Observed(s Strategy, o Observer) Strategy {
	if o == nil {
		return s
	}
	return observedStrategy{s: s, o: o}
}

type observedStrategy struct {
	s Strategy
	o Observer
}

func (s observedStrategy) LockUntil(l TryLocker, deadline time.Time) error {
	start := time.Now()
	err := s.s.LockUntil(l, deadline)
	switch {
	case err == nil:
		s.o.LockAcquired(time.Since(start))
	case errors.Is(err, ErrTimeout):
		s.o.LockTimedOut(time.Since(start))
	}
	return err
}

// ParseStrategy maps a strategy name ("auto", "poll" or "native") to a
// Strategy. quantum configures the polling part, if any.
func ParseStrategy(name string, quantum time.Duration) (Strategy, error) {
	switch name {
	case "", "auto":
		return AutoStrategy{Poll: PollStrategy{Quantum: quantum}}, nil
	case "poll":
		return PollStrategy{Quantum: quantum}, nil
	case "native":
		return NativeStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown lock strategy %q", ErrInvalidArgument, name)
	}
}
