package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittotasks/pkg/metrics"
)

// syncMetrics is the Prometheus implementation of metrics.SyncMetrics.
type syncMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	requestsInFlight       *prometheus.GaugeVec
	bytesTransferred       *prometheus.CounterVec
	notifications          *prometheus.CounterVec
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
}

// NewSyncMetrics creates Prometheus-backed SyncMetrics for one adapter. The
// adapter name becomes a constant "adapter" label so several adapters can
// share the registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewSyncMetrics(adapter string) metrics.SyncMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopSyncMetrics()
	}

	factory := promauto.With(metrics.GetRegistry())
	labels := prometheus.Labels{"adapter": adapter}

	return &syncMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dittotasks_sync_requests_total",
				Help:        "Total number of sync requests by kind and response",
				ConstLabels: labels,
			},
			[]string{"kind", "response"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "dittotasks_sync_request_duration_milliseconds",
				Help:        "Duration of sync requests in milliseconds",
				ConstLabels: labels,
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"kind"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "dittotasks_sync_requests_in_flight",
				Help:        "Current number of sync requests being processed",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		bytesTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dittotasks_sync_bytes_transferred_total",
				Help:        "Total frame bytes received and sent",
				ConstLabels: labels,
			},
			[]string{"direction"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dittotasks_sync_notifications_total",
				Help:        "Change notifications delivered to or dropped for subscribers",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "dittotasks_sync_active_connections",
				Help:        "Current number of active connections",
				ConstLabels: labels,
			},
		),
		connectionsAccepted: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "dittotasks_sync_connections_accepted_total",
				Help:        "Total number of connections accepted",
				ConstLabels: labels,
			},
		),
		connectionsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "dittotasks_sync_connections_closed_total",
				Help:        "Total number of connections closed",
				ConstLabels: labels,
			},
		),
		connectionsForceClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "dittotasks_sync_connections_force_closed_total",
				Help:        "Total number of connections force-closed during shutdown timeout",
				ConstLabels: labels,
			},
		),
	}
}

func (m *syncMetrics) RecordRequest(kind string, outcome string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(kind, outcome).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(float64(duration) / float64(time.Millisecond))
}

func (m *syncMetrics) RecordRequestStart(kind string) {
	m.requestsInFlight.WithLabelValues(kind).Inc()
}

func (m *syncMetrics) RecordRequestEnd(kind string) {
	m.requestsInFlight.WithLabelValues(kind).Dec()
}

func (m *syncMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *syncMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *syncMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *syncMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *syncMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *syncMetrics) RecordNotification(delivered bool) {
	result := "delivered"
	if !delivered {
		result = "dropped"
	}
	m.notifications.WithLabelValues(result).Inc()
}
