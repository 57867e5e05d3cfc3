// Package metrics exposes Prometheus collectors for directory calls, tool
// invocations, handoffs and conversations. All methods are nil-safe so
// components can run without metrics in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "phoneai"

// Metrics groups the application collectors.
type Metrics struct {
	directoryTotal   *prometheus.CounterVec
	directoryLatency *prometheus.HistogramVec
	toolTotal        *prometheus.CounterVec
	handoffTotal     *prometheus.CounterVec
	conversations    *prometheus.CounterVec
}

// New registers the collectors on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		directoryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "requests_total",
			Help:      "Customer directory requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		directoryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "request_duration_seconds",
			Help:      "Latency of customer directory requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		toolTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "toolkit",
			Name:      "invocations_total",
			Help:      "Operations invoked on behalf of a handler",
		}, []string{"handler", "operation", "outcome"}),
		handoffTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handoff",
			Name:      "transitions_total",
			Help:      "Handoff requests by source, destination and result",
		}, []string{"source", "destination", "result"}),
		conversations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "lifecycle_total",
			Help:      "Conversation lifecycle events",
		}, []string{"event"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.directoryTotal, m.directoryLatency, m.toolTotal, m.handoffTotal, m.conversations)
	return m
}

// ObserveDirectoryCall records one directory request.
func (m *Metrics) ObserveDirectoryCall(endpoint, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.directoryTotal.WithLabelValues(endpoint, outcome).Inc()
	m.directoryLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// ObserveToolInvocation records one dispatched operation.
func (m *Metrics) ObserveToolInvocation(handler, operation, outcome string) {
	if m == nil {
		return
	}
	m.toolTotal.WithLabelValues(handler, operation, outcome).Inc()
}

// ObserveHandoff records an applied or rejected transition.
func (m *Metrics) ObserveHandoff(source, destination string, applied bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "rejected"
	}
	m.handoffTotal.WithLabelValues(source, destination, result).Inc()
}

// ObserveConversation records a lifecycle event such as "started" or "ended".
func (m *Metrics) ObserveConversation(event string) {
	if m == nil {
		return
	}
	m.conversations.WithLabelValues(event).Inc()
}
