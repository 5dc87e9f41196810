package prom

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxisdsh/tsync"
)

func TestObserver_Barrier(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewObserver(reg, "tsync")
	require.NoError(t, err)

	b, err := tsync.NewBarrier(3, tsync.WithObserver(obs))
	require.NoError(t, err)

	for range 2 {
		var wg sync.WaitGroup
		wg.Add(3)
		for range 3 {
			go func() {
				defer wg.Done()
				b.Await()
			}()
		}
		wg.Wait()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(obs.trips.WithLabelValues("3")))
}

func TestObserver_Lock(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewObserver(reg, "tsync")
	require.NoError(t, err)

	s := tsync.Observed(tsync.AutoStrategy{}, obs)
	m := tsync.NewMutex()

	require.NoError(t, s.LockUntil(m, time.Now().Add(time.Second)))
	err = s.LockUntil(m, time.Now().Add(5*time.Millisecond))
	require.True(t, errors.Is(err, tsync.ErrTimeout), "got %v", err)
	m.Unlock()

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.acquired))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.timeouts))

	n, err := testutil.GatherAndCount(reg, "tsync_lock_wait_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one histogram series per outcome")
}

func TestObserver_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewObserver(reg, "tsync")
	require.NoError(t, err)

	_, err = NewObserver(reg, "tsync")
	require.Error(t, err)
}

func TestObserver_Unregistered(t *testing.T) {
	obs, err := NewObserver(nil, "")
	require.NoError(t, err)
	obs.LockAcquired(time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.acquired))
}

func TestPartiesLabel(t *testing.T) {
	assert.Equal(t, "1", partiesLabel(1))
	assert.Equal(t, "64", partiesLabel(64))
	assert.Equal(t, ">64", partiesLabel(65))
}
