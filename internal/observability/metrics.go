package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "issue_engine"

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	assignments     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	pushFailures    prometheus.Counter
	outboxEvents    *prometheus.CounterVec
	outboxPending   prometheus.Gauge
}

// NewMetrics registers every collector plus Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors returned to clients by error code.",
		}, []string{"code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Accepted issue status transitions.",
		}, []string{"from", "to"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Assignments recorded by strategy.",
		}, []string{"strategy"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification rows by kind and outcome (created or duplicate).",
		}, []string{"kind", "outcome"}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Best-effort push deliveries that failed.",
		}),
		outboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox entries processed by event type and result.",
		}, []string{"event_type", "result"}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending",
			Help:      "Undispatched outbox entries at the last relay pass.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.transitions,
		m.assignments,
		m.notifications,
		m.pushFailures,
		m.outboxEvents,
		m.outboxPending,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest observes one finished HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code).Inc()
}

// RecordTransition counts an accepted status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordAssignment counts a recorded assignment.
func (m *Metrics) RecordAssignment(strategy string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(strategy).Inc()
}

// RecordNotification counts a notification insert attempt.
func (m *Metrics) RecordNotification(kind string, created bool) {
	if m == nil {
		return
	}
	outcome := "created"
	if !created {
		outcome = "duplicate"
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

// RecordPushFailure counts a failed best-effort push.
func (m *Metrics) RecordPushFailure() {
	if m == nil {
		return
	}
	m.pushFailures.Inc()
}

// RecordOutboxEvent counts a relay outcome: dispatched, retried or dropped_push.
func (m *Metrics) RecordOutboxEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.outboxEvents.WithLabelValues(eventType, result).Inc()
}

// SetOutboxPending records the backlog size.
func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}
