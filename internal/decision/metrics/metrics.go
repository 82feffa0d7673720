package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Evidence gathering latencies by source
	EvidenceLatency *prometheus.HistogramVec

	// Decision outcomes by trust level and profile
	DecisionOutcome *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New registers the decision metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the decision metrics with reg. Tests pass a
// fresh registry so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvidenceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustline_decision_evidence_duration_seconds",
			Help:    "Duration of evidence gathering operations by source",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5, 5},
		}, []string{"source"}), // source: "exif", "address_db"

		DecisionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_decision_outcomes_total",
			Help: "Total decision outcomes by trust level and profile",
		}, []string{"trust_level", "profile"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustline_decision_evaluate_duration_seconds",
			Help:    "Duration of full decision evaluation including evidence gathering",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5, 5, 10},
		}),
	}
}

// ObserveEvidenceLatency records the duration of fetching evidence from a source.
func (m *Metrics) ObserveEvidenceLatency(source string, d time.Duration) {
	if m != nil {
		m.EvidenceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(level, profile string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(level, profile).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
