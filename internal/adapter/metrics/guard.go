package metrics

import "github.com/prometheus/client_golang/prometheus"

// GuardMetrics tracks the vote-pattern guard.
type GuardMetrics struct {
	Decisions *prometheus.CounterVec
	Evictions *prometheus.CounterVec
	Entries   prometheus.Gauge
}

func NewGuardMetrics(reg prometheus.Registerer) *GuardMetrics {
	m := &GuardMetrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Total number of guard evaluations, by outcome.",
		}, []string{"outcome"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "evictions_total",
			Help:      "Total number of guard records evicted, by reason.",
		}, []string{"reason"}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "entries",
			Help:      "Number of records currently held by the guard.",
		}),
	}

	reg.MustRegister(m.Decisions, m.Evictions, m.Entries)
	return m
}

func (m *GuardMetrics) ObserveGuardDecision(outcome string) {
	m.Decisions.WithLabelValues(outcome).Inc()
}

func (m *GuardMetrics) ObserveGuardEvictions(reason string, n int) {
	m.Evictions.WithLabelValues(reason).Add(float64(n))
}

func (m *GuardMetrics) SetGuardEntries(n int) {
	m.Entries.Set(float64(n))
}
