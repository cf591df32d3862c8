// Package metrics provides Prometheus metrics export for the scheduler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports scheduler metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Booking-slot query metrics
	bookingSlotsLatency  *prometheus.HistogramVec
	bookingSlotsRequests *prometheus.CounterVec

	// Free/busy computation metrics
	freeBusyLatency  *prometheus.HistogramVec
	freeBusyRequests *prometheus.CounterVec

	// Reminder pipeline metrics
	reminderExpansionLatency prometheus.Histogram
	reminderExpanded         prometheus.Counter
	reminderDispatched       *prometheus.CounterVec
	reminderDropped          *prometheus.CounterVec
	reminderDispatchLatency  *prometheus.HistogramVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.bookingSlotsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "booking",
			Name:      "slots_latency_seconds",
			Help:      "Service booking-slot query latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"status"},
	)

	e.bookingSlotsRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "booking",
			Name:      "slots_requests_total",
			Help:      "Total number of service booking-slot queries",
		},
		[]string{"status"},
	)

	e.freeBusyLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "freebusy",
			Name:      "compute_latency_seconds",
			Help:      "Free/busy computation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"status"},
	)

	e.freeBusyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "freebusy",
			Name:      "compute_requests_total",
			Help:      "Total number of free/busy computations",
		},
		[]string{"status"},
	)

	e.reminderExpansionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "reminder",
			Name:      "expansion_latency_seconds",
			Help:      "Reminder expansion tick latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.reminderExpanded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "reminder",
			Name:      "expanded_total",
			Help:      "Total number of reminder rows materialized by the expansion task",
		},
	)

	e.reminderDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "reminder",
			Name:      "dispatched_total",
			Help:      "Total number of reminders successfully delivered to an account webhook",
		},
		[]string{"account_id"},
	)

	e.reminderDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "reminder",
			Name:      "dropped_total",
			Help:      "Total number of reminders dropped without delivery",
		},
		[]string{"reason"},
	)

	e.reminderDispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "reminder",
			Name:      "dispatch_latency_seconds",
			Help:      "Per-account webhook delivery latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"status"},
	)

	registry.MustRegister(
		e.bookingSlotsLatency,
		e.bookingSlotsRequests,
		e.freeBusyLatency,
		e.freeBusyRequests,
		e.reminderExpansionLatency,
		e.reminderExpanded,
		e.reminderDispatched,
		e.reminderDropped,
		e.reminderDispatchLatency,
	)

	return e
}

// RecordBookingSlots records a service booking-slot query.
func (e *PrometheusExporter) RecordBookingSlots(latency time.Duration, success bool) {
	status := statusLabel(success)
	e.bookingSlotsRequests.WithLabelValues(status).Inc()
	e.bookingSlotsLatency.WithLabelValues(status).Observe(latency.Seconds())
}

// RecordFreeBusy records a free/busy computation.
func (e *PrometheusExporter) RecordFreeBusy(latency time.Duration, success bool) {
	status := statusLabel(success)
	e.freeBusyRequests.WithLabelValues(status).Inc()
	e.freeBusyLatency.WithLabelValues(status).Observe(latency.Seconds())
}

// RecordReminderExpansion records one run of the reminder expansion task.
func (e *PrometheusExporter) RecordReminderExpansion(latency time.Duration, expanded int) {
	e.reminderExpansionLatency.Observe(latency.Seconds())
	e.reminderExpanded.Add(float64(expanded))
}

// RecordReminderDispatched records a successful per-account webhook delivery.
func (e *PrometheusExporter) RecordReminderDispatched(accountID string, count int, latency time.Duration) {
	e.reminderDispatched.WithLabelValues(accountID).Add(float64(count))
	e.reminderDispatchLatency.WithLabelValues("success").Observe(latency.Seconds())
}

// RecordReminderDropped records reminders dropped without delivery, grouped
// by reason (e.g. "no_webhook", "event_deleted", "stale_version", "delivery_failed").
func (e *PrometheusExporter) RecordReminderDropped(reason string, count int) {
	e.reminderDropped.WithLabelValues(reason).Add(float64(count))
}

// RecordReminderDispatchFailure records a failed per-account webhook delivery latency.
func (e *PrometheusExporter) RecordReminderDispatchFailure(latency time.Duration) {
	e.reminderDispatchLatency.WithLabelValues("failure").Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the Prometheus metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
