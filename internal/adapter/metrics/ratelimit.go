package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/rulehub/internal/domain"
)

// RateLimitMetrics counts quota checks and view/copy tracking outcomes.
type RateLimitMetrics struct {
	Checks   *prometheus.CounterVec
	Tracking *prometheus.CounterVec
}

func NewRateLimitMetrics(reg prometheus.Registerer) *RateLimitMetrics {
	m := &RateLimitMetrics{
		Checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "checks_total",
			Help:      "Total number of sliding-window quota checks, by category and outcome.",
		}, []string{"category", "outcome"}),
		Tracking: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "events_total",
			Help:      "Total number of view and copy tracking requests, by event and outcome.",
		}, []string{"event", "outcome"}),
	}

	reg.MustRegister(m.Checks, m.Tracking)
	return m
}

func (m *RateLimitMetrics) ObserveRateLimit(category domain.RateLimitCategory, outcome string) {
	m.Checks.WithLabelValues(string(category), outcome).Inc()
}

func (m *RateLimitMetrics) ObserveTracking(event domain.TrackedEvent, outcome string) {
	m.Tracking.WithLabelValues(string(event), outcome).Inc()
}
