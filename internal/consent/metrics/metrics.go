// Package metrics registers the Prometheus instruments for the consent
// lifecycle engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the consent engine.
type Metrics struct {
	Submits       prometheus.Counter
	Revocations   prometheus.Counter
	Regrants      prometheus.Counter
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheFailures prometheus.Counter
	OpDuration    *prometheus.HistogramVec
}

// New creates and registers all consent metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		Submits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concur_consent_submits_total",
			Help: "Total number of consent artifacts accepted",
		}),
		Revocations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concur_consent_revocations_total",
			Help: "Total number of in-place purpose revocations",
		}),
		Regrants: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concur_consent_regrants_total",
			Help: "Total number of re-grant forks",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concur_consent_cache_hits_total",
			Help: "Projection reads served from the cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concur_consent_cache_misses_total",
			Help: "Projection reads rebuilt from the store",
		}),
		CacheFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concur_consent_cache_failures_total",
			Help: "Cache operations that failed and were treated as misses",
		}),
		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concur_consent_op_duration_ms",
			Help:    "Latency of consent engine operations in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"op"}),
	}
}

// ObserveOp records the latency of one engine operation.
func (m *Metrics) ObserveOp(op string, start time.Time) {
	m.OpDuration.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
