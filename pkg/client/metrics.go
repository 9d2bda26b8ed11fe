package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; all observations are then dropped.
type Metrics struct {
	attempts *prometheus.CounterVec
	retries  prometheus.Counter
	duration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gsearch_request_attempts_total",
			Help: "Generate content attempts by outcome",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gsearch_request_retries_total",
			Help: "Generate content retries scheduled",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gsearch_request_attempt_duration_seconds",
			Help:    "Duration of a single generate content round trip",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
	}
	for _, c := range []prometheus.Collector{m.attempts, m.retries, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeAttempt(res attemptResult) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(res.outcome.String()).Inc()
}

func (m *Metrics) observeRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) observeDuration(started time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(started).Seconds())
}
