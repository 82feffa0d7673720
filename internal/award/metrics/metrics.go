package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for trust-score awards.
type Metrics struct {
	PointsAwarded   *prometheus.CounterVec
	PublishFailures prometheus.Counter
}

// New registers the award metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the award metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PointsAwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_award_points_total",
			Help: "Points awarded by category",
		}, []string{"category"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustline_award_publish_failures_total",
			Help: "Award events that could not be published downstream",
		}),
	}
}

func (m *Metrics) AddPoints(category string, points int) {
	if m != nil {
		m.PointsAwarded.WithLabelValues(category).Add(float64(points))
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}
