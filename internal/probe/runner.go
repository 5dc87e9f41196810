package probe

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/tsync"
)

// Report summarizes one Run.
type Report struct {
	Barrier BarrierReport `yaml:"barrier"`
	Lock    LockReport    `yaml:"lock"`
}

// BarrierReport summarizes the barrier scenario.
type BarrierReport struct {
	Parties      int           `yaml:"parties"`
	Cycles       int           `yaml:"cycles"`
	LastArrivers int           `yaml:"last_arrivers"`
	Elapsed      time.Duration `yaml:"elapsed"`
}

// LockReport summarizes the timed lock scenario.
type LockReport struct {
	Strategy     string        `yaml:"strategy"`
	Acquired     int           `yaml:"acquired"`
	TimedOut     int           `yaml:"timed_out"`
	MaxOvershoot time.Duration `yaml:"max_overshoot"`
}

// Runner runs the scenarios described by a Config.
type Runner struct {
	cfg Config
	log logr.Logger
	obs tsync.Observer
}

// NewRunner validates cfg and returns a Runner. obs may be nil.
func NewRunner(cfg Config, log logr.Logger, obs tsync.Observer) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, log: log, obs: obs}, nil
}

// Run executes the barrier scenario and then the lock scenario.
//
// ctx is only checked between scenarios: a barrier cycle cannot be
// abandoned once parties are waiting in it.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var rep Report
	var err error

	if err = ctx.Err(); err != nil {
		return rep, err
	}
	if rep.Barrier, err = r.runBarrier(); err != nil {
		return rep, fmt.Errorf("barrier scenario: %w", err)
	}
	r.log.Info("barrier scenario done",
		"parties", rep.Barrier.Parties,
		"cycles", rep.Barrier.Cycles,
		"elapsed", rep.Barrier.Elapsed)

	if err = ctx.Err(); err != nil {
		return rep, err
	}
	if rep.Lock, err = r.runLock(); err != nil {
		return rep, fmt.Errorf("lock scenario: %w", err)
	}
	r.log.Info("lock scenario done",
		"strategy", rep.Lock.Strategy,
		"acquired", rep.Lock.Acquired,
		"timedOut", rep.Lock.TimedOut,
		"maxOvershoot", rep.Lock.MaxOvershoot)
	return rep, nil
}

func (r *Runner) runBarrier() (BarrierReport, error) {
	cfg := r.cfg.Barrier
	rep := BarrierReport{Parties: cfg.Parties, Cycles: cfg.Cycles}

	var opts []tsync.BarrierOption
	if r.obs != nil {
		opts = append(opts, tsync.WithObserver(r.obs))
	}
	b, err := tsync.NewBarrier(cfg.Parties, opts...)
	if err != nil {
		return rep, err
	}
	defer b.Destroy()

	lasts := make([]atomic.Int32, cfg.Cycles)
	start := time.Now()

	var g errgroup.Group
	for id := range cfg.Parties {
		g.Go(func() error {
			log := r.log.WithValues("party", id)
			for c := range cfg.Cycles {
				if cfg.Jitter > 0 {
					time.Sleep(rand.N(cfg.Jitter))
				}
				a := b.Await()
				if a.Last() {
					lasts[c].Add(1)
				}
				log.V(2).Info("released", "cycle", c, "arrival", a.String())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	rep.Elapsed = time.Since(start)

	for c := range lasts {
		n := int(lasts[c].Load())
		rep.LastArrivers += n
		if n != 1 {
			return rep, fmt.Errorf("cycle %d had %d last arrivers", c, n)
		}
	}
	if gen := b.Generation(); gen != uint64(cfg.Cycles) {
		return rep, fmt.Errorf("barrier completed %d cycles, want %d", gen, cfg.Cycles)
	}
	return rep, nil
}

func (r *Runner) runLock() (LockReport, error) {
	cfg := r.cfg.Lock
	rep := LockReport{Strategy: cfg.Strategy}
	if rep.Strategy == "" {
		rep.Strategy = "auto"
	}

	s, err := tsync.ParseStrategy(cfg.Strategy, cfg.Quantum)
	if err != nil {
		return rep, err
	}
	s = tsync.Observed(s, r.obs)

	m := tsync.NewMutex()
	m.Lock()
	release := time.AfterFunc(cfg.Hold, m.Unlock)
	defer func() {
		// Make sure the holder has let go before returning.
		if release.Stop() {
			m.Unlock()
		}
	}()

	var (
		mu        sync.Mutex
		acquired  int
		timedOut  int
		overshoot time.Duration
	)
	var g errgroup.Group
	for id := range cfg.Contenders {
		g.Go(func() error {
			deadline := time.Now().Add(cfg.Wait)
			err := s.LockUntil(m, deadline)
			late := time.Since(deadline)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				m.Unlock()
				acquired++
			case errors.Is(err, tsync.ErrTimeout):
				timedOut++
				overshoot = max(overshoot, late)
			default:
				return err
			}
			r.log.V(1).Info("contender done", "contender", id, "acquired", err == nil)
			return nil
		})
	}
	err = g.Wait()

	rep.Acquired = acquired
	rep.TimedOut = timedOut
	rep.MaxOvershoot = overshoot
	return rep, err
}
