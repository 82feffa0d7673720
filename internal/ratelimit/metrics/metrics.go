package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected    *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_ratelimit_rejected_total",
			Help: "Requests rejected by rate limiting",
		}, []string{"class", "scope"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustline_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the store errored",
		}),
	}
}

func (m *Metrics) IncRejected(class, scope string) {
	if m != nil {
		m.Rejected.WithLabelValues(class, scope).Inc()
	}
}

func (m *Metrics) IncStoreErrors() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
