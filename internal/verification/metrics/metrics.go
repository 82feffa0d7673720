package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification sessions.
type Metrics struct {
	SessionsStarted   *prometheus.CounterVec
	SessionsCompleted *prometheus.CounterVec
	ValidationRuns    *prometheus.CounterVec
	ValidationLatency prometheus.Histogram
	ValidationsActive prometheus.Gauge
	PhotoBytes        prometheus.Histogram
}

// New registers the verification metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the verification metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_verification_sessions_started_total",
			Help: "Verification sessions started by profile",
		}, []string{"profile"}),

		SessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_verification_sessions_completed_total",
			Help: "Verification sessions completed by trust level",
		}, []string{"trust_level"}),

		ValidationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_verification_validation_runs_total",
			Help: "Validation runs by outcome",
		}, []string{"outcome"}), // outcome: "decided", "failed", "cancelled", "superseded"

		ValidationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustline_verification_validation_duration_seconds",
			Help:    "Duration of a validation run including history analysis",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 3, 4, 5, 10},
		}),

		ValidationsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trustline_verification_validations_in_flight",
			Help: "Validation runs currently in flight",
		}),

		PhotoBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustline_verification_photo_bytes",
			Help:    "Size of accepted photo uploads",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 7),
		}),
	}
}

func (m *Metrics) IncStarted(profile string) {
	if m != nil {
		m.SessionsStarted.WithLabelValues(profile).Inc()
	}
}

func (m *Metrics) IncCompleted(level string) {
	if m != nil {
		m.SessionsCompleted.WithLabelValues(level).Inc()
	}
}

// ObserveValidation records a finished run.
func (m *Metrics) ObserveValidation(outcome string, d time.Duration) {
	if m != nil {
		m.ValidationRuns.WithLabelValues(outcome).Inc()
		m.ValidationLatency.Observe(d.Seconds())
	}
}

// TrackInFlight increments the in-flight gauge and returns its release.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.ValidationsActive.Inc()
	return m.ValidationsActive.Dec
}

func (m *Metrics) ObservePhotoBytes(n int64) {
	if m != nil {
		m.PhotoBytes.Observe(float64(n))
	}
}
