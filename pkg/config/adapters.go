package config

import (
	"fmt"

	"github.com/marmos91/dittotasks/internal/ratelimiter"
	"github.com/marmos91/dittotasks/pkg/adapter"
	"github.com/marmos91/dittotasks/pkg/adapter/tcp"
	"github.com/marmos91/dittotasks/pkg/adapter/websocket"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Adapters are returned in start order (TCP first); the server stops them
// in reverse.
func CreateAdapters(cfg *Config, m *MetricsResult) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.TCP.Enabled {
		adapters = append(adapters, tcp.New(cfg.Adapters.TCP, m.TCP))
	}

	if cfg.Adapters.WebSocket.Enabled {
		adapters = append(adapters, websocket.New(cfg.Adapters.WebSocket, m.WebSocket))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}

// CreateRateLimiter returns the request limiter shared by all adapters, or
// nil when rate limiting is disabled.
func CreateRateLimiter(cfg *RateLimitConfig) *ratelimiter.PerClient {
	if !cfg.Enabled {
		return nil
	}

	var global *ratelimiter.RateLimiter
	if cfg.RequestsPerSecond > 0 {
		global = ratelimiter.New(cfg.RequestsPerSecond, cfg.Burst)
	}
	return ratelimiter.NewPerClient(global, cfg.PerClientRequestsPerSecond, cfg.PerClientBurst, cfg.ClientIdleTimeout)
}
