package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittotasks/pkg/metrics"
)

type storeMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	size       prometheus.Gauge
}

// NewStoreMetrics creates Prometheus-backed StoreMetrics for the named
// backend.
func NewStoreMetrics(backend string) metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopStoreMetrics()
	}

	factory := promauto.With(metrics.GetRegistry())
	labels := prometheus.Labels{"backend": backend}

	return &storeMetrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dittotasks_store_operations_total",
				Help:        "Snapshot store operations by type and status",
				ConstLabels: labels,
			},
			[]string{"operation", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "dittotasks_store_operation_duration_milliseconds",
				Help:        "Duration of snapshot store operations in milliseconds",
				ConstLabels: labels,
				Buckets:     []float64{1, 10, 100, 1000, 10000},
			},
			[]string{"operation"},
		),
		size: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "dittotasks_store_snapshot_bytes",
				Help:        "Size of the last snapshot loaded or saved",
				ConstLabels: labels,
			},
		),
	}
}

func (m *storeMetrics) RecordOperation(operation string, duration time.Duration, bytes int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(float64(duration) / float64(time.Millisecond))
	if err == nil && bytes > 0 {
		m.size.Set(float64(bytes))
	}
}
