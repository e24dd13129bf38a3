// Package metrics provides Prometheus metrics collection for the sync server.
//
// All metrics are optional. Until InitRegistry is called, constructors in
// the prometheus subpackage return no-op implementations, so the server runs
// the same with or without collection enabled.
//
// Usage:
//
//	metrics.InitRegistry()
//	syncMetrics := prometheus.NewSyncMetrics("tcp")
//	adapter := tcp.New(config, syncMetrics)
//
//	// Or use nil for no-op behavior
//	adapter := tcp.New(config, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is the global Prometheus registry.
	// Written once through registryOnce, read many times.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Call it before creating any metrics instance. Later calls are ignored.
// Without it GetRegistry returns nil and every constructor returns a no-op.
// Go and process collectors are registered alongside the sync metrics.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
// Safe to call concurrently.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
//
// Metrics are enabled if InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
