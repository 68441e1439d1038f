package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for erasure requests.
type Metrics struct {
	Erasures        *prometheus.CounterVec
	RecordsErased   *prometheus.CounterVec
	ErasureDuration prometheus.Histogram
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Erasures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caskhouse_gdpr_erasures_total",
			Help: "Erasure requests processed, labeled by result",
		}, []string{"result"}),
		RecordsErased: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caskhouse_gdpr_records_erased_total",
			Help: "Records removed by erasure requests, labeled by store",
		}, []string{"store"}),
		ErasureDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caskhouse_gdpr_erasure_duration_seconds",
			Help:    "Wall time of a full erasure fan-out",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementErasure(ok bool) {
	result := "completed"
	if !ok {
		result = "failed"
	}
	m.Erasures.WithLabelValues(result).Inc()
}

func (m *Metrics) AddRecords(store string, n int) {
	m.RecordsErased.WithLabelValues(store).Add(float64(n))
}

func (m *Metrics) ObserveDuration(seconds float64) {
	m.ErasureDuration.Observe(seconds)
}
