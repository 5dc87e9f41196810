package tsync

import (
	"fmt"
	"sync"

	"github.com/llxisdsh/tsync/internal/opt"
)

// Barrier is a reusable rendezvous point for a fixed party of goroutines.
//
// Each call to Await blocks until Parties() callers have arrived in the
// current cycle, then all of them are released together and the barrier
// resets for the next cycle. The barrier is called "cyclic" because it can
// be re-used after the waiting goroutines are released.
//
// It is a plain monitor (a mutex plus a condition variable), so the mutex
// can be swapped for an instrumented one with WithSubstrate or the
// tsync_deadlock build tag. Each cycle has a generation number; a waiter
// only leaves once the generation it arrived in has ended.
//
// A Barrier must be created with NewBarrier.
type Barrier struct {
	_ noCopy

	parties int
	mu      sync.Locker
	cond    sync.Cond
	obs     Observer

	// Guarded by mu.
	waiting    int
	generation uint64
	destroyed  bool
}

// Arrival tells an Await caller what part it played in the cycle.
type Arrival uint8

const (
	// Follower is returned to every party that blocked until the cycle
	// completed.
	Follower Arrival = iota
	// LastArriver is returned to the single party whose arrival completed
	// the cycle.
	LastArriver
)

// Last reports whether a is LastArriver.
func (a Arrival) Last() bool { return a == LastArriver }

func (a Arrival) String() string {
	switch a {
	case Follower:
		return "follower"
	case LastArriver:
		return "last-arriver"
	default:
		return fmt.Sprintf("Arrival(%d)", uint8(a))
	}
}

// BarrierOption configures a Barrier at construction time.
type BarrierOption func(*barrierConfig)

type barrierConfig struct {
	newLocker func() (sync.Locker, error)
	obs       Observer
}

// WithSubstrate replaces the mutex guarding the barrier state. newLocker is
// called once by NewBarrier; if it fails, NewBarrier returns an error
// wrapping both ErrResource and the constructor's error.
func WithSubstrate(newLocker func() (sync.Locker, error)) BarrierOption {
	return func(c *barrierConfig) {
		c.newLocker = newLocker
	}
}

// WithObserver reports every trip of the barrier to o.
func WithObserver(o Observer) BarrierOption {
	return func(c *barrierConfig) {
		if o != nil {
			c.obs = o
		}
	}
}

// NewBarrier creates a barrier that trips once parties callers have
// reached Await. It returns ErrInvalidArgument if parties is not positive.
func NewBarrier(parties int, opts ...BarrierOption) (*Barrier, error) {
	if parties <= 0 {
		return nil, fmt.Errorf("%w: barrier parties must be positive, got %d",
			ErrInvalidArgument, parties)
	}

	cfg := barrierConfig{
		newLocker: func() (sync.Locker, error) { return new(opt.Mutex_), nil },
		obs:       nopObserver{},
	}
	for _, o := range opts {
		o(&cfg)
	}

	mu, err := cfg.newLocker()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResource, err)
	}
	if mu == nil {
		return nil, fmt.Errorf("%w: substrate returned a nil locker", ErrResource)
	}

	b := &Barrier{
		parties: parties,
		mu:      mu,
		obs:     cfg.obs,
	}
	b.cond.L = mu
	return b, nil
}

// Await blocks until Parties() callers, this one included, have called
// Await in the current cycle.
//
// The caller whose arrival completes the cycle resets the barrier, wakes
// every other party and returns LastArriver without blocking. All other
// callers return Follower once that happens. There is no ordering among
// released followers.
//
// Await cannot be cancelled. It panics if the barrier was destroyed.
func (b *Barrier) Await() Arrival {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		panic("tsync: Await on destroyed Barrier")
	}

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		next, obs := b.generation, b.obs
		b.cond.Broadcast()
		b.mu.Unlock()

		obs.BarrierTripped(b.parties, next)
		return LastArriver
	}

	// A wakeup that does not belong to our cycle ending is ignored.
	for gen == b.generation {
		b.cond.Wait()
	}
	b.mu.Unlock()
	return Follower
}

// Parties returns the number of callers required to trip the barrier.
func (b *Barrier) Parties() int {
	return b.parties
}

// Waiting returns the number of callers blocked in the current cycle.
func (b *Barrier) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiting
}

// Generation returns the number of completed cycles.
func (b *Barrier) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// Destroy retires the barrier. Any later Await panics.
//
// The caller must ensure no goroutine is blocked in Await. Destroying a
// barrier with waiters leaves them blocked forever; this is not detected.
func (b *Barrier) Destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.obs = nopObserver{}
	b.mu.Unlock()
}
