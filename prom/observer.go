// Package prom exports tsync barrier and timed lock activity as Prometheus
// metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llxisdsh/tsync"
)

// Observer implements tsync.Observer on top of Prometheus collectors.
type Observer struct {
	trips    *prometheus.CounterVec
	acquired prometheus.Counter
	timeouts prometheus.Counter
	wait     *prometheus.HistogramVec
}

var _ tsync.Observer = (*Observer)(nil)

// NewObserver creates the collectors under namespace and registers them
// with reg. A nil reg leaves them unregistered.
func NewObserver(reg prometheus.Registerer, namespace string) (*Observer, error) {
	o := &Observer{
		trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barrier_trips_total",
			Help:      "Completed barrier cycles, by party size.",
		}, []string{"parties"}),
		acquired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_acquired_total",
			Help:      "Deadline bounded lock acquisitions that succeeded.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_timeouts_total",
			Help:      "Deadline bounded lock acquisitions that timed out.",
		}),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent in deadline bounded lock acquisitions.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs .. ~26s
		}, []string{"outcome"}),
	}
	if reg == nil {
		return o, nil
	}
	for _, c := range []prometheus.Collector{o.trips, o.acquired, o.timeouts, o.wait} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// BarrierTripped implements tsync.Observer.
func (o *Observer) BarrierTripped(parties int, _ uint64) {
	o.trips.WithLabelValues(partiesLabel(parties)).Inc()
}

// LockAcquired implements tsync.Observer.
func (o *Observer) LockAcquired(waited time.Duration) {
	o.acquired.Inc()
	o.wait.WithLabelValues("acquired").Observe(waited.Seconds())
}

// LockTimedOut implements tsync.Observer.
func (o *Observer) LockTimedOut(waited time.Duration) {
	o.timeouts.Inc()
	o.wait.WithLabelValues("timeout").Observe(waited.Seconds())
}
