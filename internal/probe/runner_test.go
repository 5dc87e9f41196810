package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu       sync.Mutex
	trips    int
	acquired int
	timeouts int
}

func (o *countingObserver) BarrierTripped(int, uint64) {
	o.mu.Lock()
	o.trips++
	o.mu.Unlock()
}

func (o *countingObserver) LockAcquired(time.Duration) {
	o.mu.Lock()
	o.acquired++
	o.mu.Unlock()
}

func (o *countingObserver) LockTimedOut(time.Duration) {
	o.mu.Lock()
	o.timeouts++
	o.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Barrier.Parties = 3
	cfg.Barrier.Cycles = 5
	cfg.Lock.Contenders = 3
	return cfg
}

func TestRunner_AllTimeOut(t *testing.T) {
	cfg := testConfig()
	cfg.Lock.Hold = 200 * time.Millisecond
	cfg.Lock.Wait = 30 * time.Millisecond

	obs := &countingObserver{}
	r, err := NewRunner(cfg, testr.New(t), obs)
	require.NoError(t, err)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, rep.Barrier.Cycles)
	assert.Equal(t, 5, rep.Barrier.LastArrivers)
	assert.Equal(t, 0, rep.Lock.Acquired)
	assert.Equal(t, 3, rep.Lock.TimedOut)
	assert.True(t, rep.Lock.MaxOvershoot >= 0, "overshoot %v", rep.Lock.MaxOvershoot)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 5, obs.trips)
	assert.Equal(t, 3, obs.timeouts)
}

func TestRunner_AllAcquire(t *testing.T) {
	for _, strategy := range []string{"auto", "poll", "native"} {
		t.Run(strategy, func(t *testing.T) {
			cfg := testConfig()
			cfg.Lock.Strategy = strategy
			cfg.Lock.Hold = 10 * time.Millisecond
			cfg.Lock.Wait = 2 * time.Second

			r, err := NewRunner(cfg, testr.New(t), nil)
			require.NoError(t, err)

			rep, err := r.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, strategy, rep.Lock.Strategy)
			assert.Equal(t, 3, rep.Lock.Acquired)
			assert.Equal(t, 0, rep.Lock.TimedOut)
		})
	}
}

func TestRunner_SinglePartyNoCycles(t *testing.T) {
	cfg := testConfig()
	cfg.Barrier.Parties = 1
	cfg.Barrier.Cycles = 0
	cfg.Lock.Contenders = 0

	r, err := NewRunner(cfg, testr.New(t), nil)
	require.NoError(t, err)
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Barrier.LastArrivers)
}

func TestRunner_Cancelled(t *testing.T) {
	r, err := NewRunner(testConfig(), testr.New(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestNewRunner_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Barrier.Parties = -2
	_, err := NewRunner(cfg, testr.New(t), nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
}
