package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailure  = "failure"
)

// PortalMetrics records order transitions, HR-sync actions and upstream latency.
type PortalMetrics struct {
	transitions *prometheus.CounterVec
	syncs       *prometheus.CounterVec
	upstream    *prometheus.HistogramVec
}

// NewPortalMetrics registers the portal metrics on the provided registerer.
func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	if reg == nil {
		return &PortalMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions attempted through the portal.",
	}, []string{"action", "result"})
	syncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hrsync_actions_total",
		Help: "External HR-system sync actions attempted through the portal.",
	}, []string{"action", "result"})
	upstream := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_service_request_duration_seconds",
		Help:    "Duration of order-service calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})
	reg.MustRegister(transitions, syncs, upstream)
	return &PortalMetrics{
		transitions: transitions,
		syncs:       syncs,
		upstream:    upstream,
	}
}

// IncTransition counts one transition attempt.
func (m *PortalMetrics) IncTransition(action, result string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action), normalizeLabel(result)).Inc()
}

// IncSync counts one HR-sync attempt.
func (m *PortalMetrics) IncSync(action, result string) {
	if m == nil || m.syncs == nil {
		return
	}
	m.syncs.WithLabelValues(normalizeLabel(action), normalizeLabel(result)).Inc()
}

// ObserveUpstream records the duration of one order-service call.
func (m *PortalMetrics) ObserveUpstream(operation, result string, duration time.Duration) {
	if m == nil || m.upstream == nil {
		return
	}
	m.upstream.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
