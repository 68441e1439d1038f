package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent logging.
type Metrics struct {
	DecisionsLogged   *prometheus.CounterVec
	CategoriesGranted *prometheus.CounterVec
	LogLatency        prometheus.Histogram
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionsLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caskhouse_consent_decisions_logged_total",
			Help: "Consent decisions received, labeled by capture method and decision",
		}, []string{"method", "decision"}),
		CategoriesGranted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caskhouse_consent_categories_granted_total",
			Help: "Optional consent categories granted across logged decisions",
		}, []string{"category"}),
		LogLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caskhouse_consent_log_latency_seconds",
			Help:    "Latency of persisting a consent decision",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementDecision(method, decision string) {
	m.DecisionsLogged.WithLabelValues(method, decision).Inc()
}

func (m *Metrics) IncrementCategory(category string) {
	m.CategoriesGranted.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveLogLatency(seconds float64) {
	m.LogLatency.Observe(seconds)
}
