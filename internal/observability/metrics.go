// Package observability provides Prometheus metrics for the detection
// pipeline and its delivery surfaces.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion pipeline
	EventsIngestedTotal *prometheus.CounterVec // by severity and action
	EventsRejectedTotal *prometheus.CounterVec // by reason: validation, monitoring_disabled, storage
	ClassificationTime  prometheus.Histogram
	ThreatsBlockedTotal prometheus.Counter

	// Live stream
	StreamClientsActive prometheus.Gauge
	StreamEventsDropped prometheus.Counter

	// Notification delivery
	WebhookDeliveriesTotal *prometheus.CounterVec // by status: success, error
}

// NewMetrics creates a Metrics instance with all collectors registered on a
// fresh registry. It returns an error if any registration fails.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_ingested_total",
			Help: "Total number of telemetry events classified and stored, by severity and action",
		},
		[]string{"severity", "action"},
	)

	m.EventsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_rejected_total",
			Help: "Total number of telemetry events rejected before storage, by reason",
		},
		[]string{"reason"},
	)

	m.ClassificationTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telemetry_classification_duration_seconds",
			Help:    "Time taken to validate, classify, and persist a telemetry event",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	m.ThreatsBlockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_threats_blocked_total",
			Help: "Total number of events classified as threats and blocked",
		},
	)

	m.StreamClientsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_clients_active",
			Help: "Number of currently connected live event stream clients",
		},
	)

	m.StreamEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_events_dropped_total",
			Help: "Total number of events dropped from slow stream client buffers",
		},
	)

	m.WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of threat webhook delivery attempts, by status",
		},
		[]string{"status"},
	)

	collectors := []prometheus.Collector{
		m.EventsIngestedTotal,
		m.EventsRejectedTotal,
		m.ClassificationTime,
		m.ThreatsBlockedTotal,
		m.StreamClientsActive,
		m.StreamEventsDropped,
		m.WebhookDeliveriesTotal,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics collector: %w", err)
		}
	}

	return m, nil
}

// Handler returns an http.Handler exposing the registry in the Prometheus
// text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
