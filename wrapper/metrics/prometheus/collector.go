// Package prometheus publishes httpcachestore metrics for Prometheus:
// InstrumentedStore records the result (hit/miss/success/error) and latency
// of every Save/Load/Delete on a wrapped BlobStore, and Collector carries
// lock-contention and sweeper-deletion counters that the caller records
// through RecordLockContention and RecordSweeperDeletions. Grounded on the
// teacher's metrics/prometheus (Collector) and wrapper/metrics/prometheus
// (InstrumentedCache).
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultSuccess = "success"
	resultError   = "error"
)

// Collector holds the Prometheus metric vectors this package publishes.
type Collector struct {
	storeOps         *prometheus.CounterVec
	storeOpDuration  *prometheus.HistogramVec
	lockContention   prometheus.Counter
	sweeperDeletions prometheus.Counter
}

// Config configures a Collector.
type Config struct {
	// Registry to register metrics against. Defaults to
	// prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
	// Namespace for metrics (default "httpcachestore").
	Namespace string
}

// NewCollector creates a Collector with the default registry and
// namespace.
func NewCollector() *Collector {
	return NewCollectorWithConfig(Config{})
}

// NewCollectorWithConfig creates a Collector with the given configuration.
func NewCollectorWithConfig(cfg Config) *Collector {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "httpcachestore"
	}
	factory := promauto.With(cfg.Registry)

	return &Collector{
		storeOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "store_operations_total",
			Help:      "Total number of store operations by kind and result.",
		}, []string{"operation", "result"}),
		storeOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of store operations in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"operation"}),
		lockContention: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "lock_contention_total",
			Help:      "Total number of Lock calls that found the key already held.",
		}),
		sweeperDeletions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "sweeper_deletions_total",
			Help:      "Total number of files removed by Clear across all runs.",
		}),
	}
}

// RecordOperation records one store operation's outcome and latency.
func (c *Collector) RecordOperation(operation, result string, duration time.Duration) {
	c.storeOps.WithLabelValues(operation, result).Inc()
	c.storeOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLockContention increments the lock-contention counter.
func (c *Collector) RecordLockContention() {
	c.lockContention.Inc()
}

// RecordSweeperDeletions adds n to the sweeper-deletions counter.
func (c *Collector) RecordSweeperDeletions(n int) {
	c.sweeperDeletions.Add(float64(n))
}
