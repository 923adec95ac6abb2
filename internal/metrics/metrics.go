// Package metrics exposes Prometheus instrumentation for ledger operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests and multiple apps never collide
// on the global default registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	postings    *prometheus.CounterVec
	corrections prometheus.Counter
	lockWait    prometheus.Histogram
}

// NewRecorder registers all ledger metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "savings",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Completed ledger operations by kind and reconciliation mode.",
		}, []string{"operation", "mode"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "savings",
			Subsystem: "ledger",
			Name:      "operation_failures_total",
			Help:      "Failed ledger operations by kind.",
		}, []string{"operation"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "savings",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger operations including persistence.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		postings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "savings",
			Subsystem: "interest",
			Name:      "postings_total",
			Help:      "Interest engine entries created by transaction type.",
		}, []string{"type"}),
		corrections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "savings",
			Subsystem: "interest",
			Name:      "corrections_total",
			Help:      "Interest postings reversed and replaced after a recomputation.",
		}),
		lockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "savings",
			Subsystem: "ledger",
			Name:      "account_lock_wait_seconds",
			Help:      "Time spent waiting for the per-account lock.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}
}

// Operation records the outcome of a ledger operation.
func (r *Recorder) Operation(op, mode string, started time.Time, err error) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil {
		r.failures.WithLabelValues(op).Inc()
		return
	}
	r.operations.WithLabelValues(op, mode).Inc()
}

// Posting counts an entry created by the interest engine.
func (r *Recorder) Posting(txType string) {
	if r == nil {
		return
	}
	r.postings.WithLabelValues(txType).Inc()
}

// Correction counts a reverse-and-replace of a stale posting.
func (r *Recorder) Correction() {
	if r == nil {
		return
	}
	r.corrections.Inc()
}

// LockWait observes how long an operation queued behind its account.
func (r *Recorder) LockWait(d time.Duration) {
	if r == nil {
		return
	}
	r.lockWait.Observe(d.Seconds())
}

// Registry exposes the underlying registry for scraping and tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
