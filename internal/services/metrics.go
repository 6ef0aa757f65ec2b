package services

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "assign"

// AssignMetrics is a prometheus.Collector for assignment activity.
// A nil *AssignMetrics is valid and records nothing.
type AssignMetrics struct {
	operations     *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	casRetries     prometheus.Counter
	lifecycle      *prometheus.CounterVec
	reminders      *prometheus.CounterVec
	jobs           *prometheus.CounterVec
	realtimeEvents *prometheus.CounterVec
}

// NewAssignMetrics returns a new collector. Register it with a registry.
func NewAssignMetrics() *AssignMetrics {
	return &AssignMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "assigner",
			Name:      "operations_total",
			Help:      "Assign and unassign operations by kind and result.",
		}, []string{"op", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dispatcher",
			Name:      "notifications_total",
			Help:      "Notification deliveries by type and result (delivered, skipped, failed).",
		}, []string{"type", "result"}),
		casRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "assigner",
			Name:      "cas_retries_total",
			Help:      "Upsert retries after losing a concurrent write.",
		}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "synchronizer",
			Name:      "events_total",
			Help:      "Lifecycle events handled by kind and result.",
		}, []string{"kind", "result"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reminders",
			Name:      "decisions_total",
			Help:      "Reminder decisions per user by outcome.",
		}, []string{"outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Background jobs processed by kind and result.",
		}, []string{"kind", "result"}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "published_total",
			Help:      "Realtime messages published by channel.",
		}, []string{"channel"}),
	}
}

// Describe is part of the prometheus.Collector interface.
func (m *AssignMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operations.Describe(ch)
	m.notifications.Describe(ch)
	m.casRetries.Describe(ch)
	m.lifecycle.Describe(ch)
	m.reminders.Describe(ch)
	m.jobs.Describe(ch)
	m.realtimeEvents.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *AssignMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operations.Collect(ch)
	m.notifications.Collect(ch)
	m.casRetries.Collect(ch)
	m.lifecycle.Collect(ch)
	m.reminders.Collect(ch)
	m.jobs.Collect(ch)
	m.realtimeEvents.Collect(ch)
}

func (m *AssignMetrics) operation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *AssignMetrics) notification(notificationType, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notificationType, result).Inc()
}

func (m *AssignMetrics) casRetry() {
	if m == nil {
		return
	}
	m.casRetries.Inc()
}

func (m *AssignMetrics) lifecycleEvent(kind EventKind, err error) {
	if m == nil {
		return
	}
	m.lifecycle.WithLabelValues(string(kind), resultLabel(err)).Inc()
}

func (m *AssignMetrics) reminder(outcome string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(outcome).Inc()
}

func (m *AssignMetrics) job(kind JobKind, err error) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(string(kind), resultLabel(err)).Inc()
}

// realtime counts a published message. Per-topic channels share one label.
func (m *AssignMetrics) realtime(channel string) {
	if m == nil {
		return
	}
	if strings.HasPrefix(channel, "/topic/") {
		channel = "/topic"
	}
	m.realtimeEvents.WithLabelValues(channel).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
