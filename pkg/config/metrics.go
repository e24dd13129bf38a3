package config

import (
	"github.com/marmos91/dittotasks/pkg/metrics"
	promMetrics "github.com/marmos91/dittotasks/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// TCP is the collector for the TCP adapter (never nil)
	TCP metrics.SyncMetrics

	// WebSocket is the collector for the WebSocket adapter (never nil)
	WebSocket metrics.SyncMetrics

	// Store records backend operations (never nil)
	Store metrics.StoreMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled, the global Prometheus registry is initialized and
// every collector is Prometheus-backed. Otherwise the server is nil and all
// collectors are no-ops.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			TCP:       metrics.NewNoopSyncMetrics(),
			WebSocket: metrics.NewNoopSyncMetrics(),
			Store:     metrics.NewNoopStoreMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:    server,
		TCP:       promMetrics.NewSyncMetrics("tcp"),
		WebSocket: promMetrics.NewSyncMetrics("websocket"),
		Store:     promMetrics.NewStoreMetrics(cfg.Storage.Type),
	}
}
