package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for visitor tracking.
type Metrics struct {
	SnapshotsReceived *prometheus.CounterVec
	EventsRecorded    *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	FieldsCaptured    *prometheus.CounterVec
	StoreLatency      *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SnapshotsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caskhouse_tracking_snapshots_received_total",
			Help: "Visitor snapshots received, labeled by trigger and whether the agent is a bot",
		}, []string{"trigger", "bot"}),
		EventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caskhouse_tracking_events_recorded_total",
			Help: "Tracking events stored, labeled by category",
		}, []string{"category"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caskhouse_tracking_events_published_total",
			Help: "Tracking events handed to the broker, labeled by result",
		}, []string{"result"}),
		FieldsCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caskhouse_tracking_fields_captured_total",
			Help: "Form field captures stored, labeled by form type",
		}, []string{"form_type"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caskhouse_tracking_store_latency_seconds",
			Help:    "Latency of tracking store writes, labeled by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementSnapshot(trigger string, bot bool) {
	if trigger == "" {
		trigger = "unspecified"
	}
	m.SnapshotsReceived.WithLabelValues(trigger, boolLabel(bot)).Inc()
}

func (m *Metrics) IncrementEvent(category string) {
	m.EventsRecorded.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementPublished(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementCapture(formType string) {
	m.FieldsCaptured.WithLabelValues(formType).Inc()
}

func (m *Metrics) ObserveStoreLatency(operation string, seconds float64) {
	m.StoreLatency.WithLabelValues(operation).Observe(seconds)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
