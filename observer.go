package tsync

import "time"

// Observer receives notifications about barrier trips and timed lock
// outcomes. Implementations must be safe for concurrent use and must not
// block: BarrierTripped is called while other parties are being released.
//
// See package prom for a Prometheus backed implementation.
type Observer interface {
	// BarrierTripped is called once per cycle by the last arriver.
	// generation is the number of the cycle that just completed, from 1.
	BarrierTripped(parties int, generation uint64)
	// LockAcquired is called after a deadline bounded acquisition succeeded.
	LockAcquired(waited time.Duration)
	// LockTimedOut is called after a deadline bounded acquisition gave up.
	LockTimedOut(waited time.Duration)
}

type nopObserver struct{}

func (nopObserver) BarrierTripped(int, uint64) {}
func (nopObserver) LockAcquired(time.Duration) {}
func (nopObserver) LockTimedOut(time.Duration) {}
