package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittotasks/internal/protocol"
	"github.com/marmos91/dittotasks/pkg/adapter/tcp"
	"github.com/marmos91/dittotasks/pkg/adapter/websocket"
)

// Default ports and file names.
const (
	DefaultTCPPort       = 8080
	DefaultWebSocketPort = 8081
	DefaultMetricsPort   = 9090
	DefaultDatabaseFile  = "database.bin"
	DefaultPasswordFile  = "password"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific option maps are filled in by CreateBackend
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applySecurityDefaults(&cfg.Security)
	applyStorageDefaults(&cfg.Storage)
	applyAdaptersDefaults(&cfg.Adapters)
	applyClientDefaults(&cfg.Client, &cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}

	rl := &cfg.RateLimit
	if rl.Enabled {
		if rl.PerClientRequestsPerSecond == 0 {
			rl.PerClientRequestsPerSecond = 20
		}
		if rl.PerClientBurst == 0 {
			rl.PerClientBurst = 40
		}
	}
	if rl.ClientIdleTimeout == 0 {
		rl.ClientIdleTimeout = 10 * time.Minute
	}
}

func applySecurityDefaults(cfg *SecurityConfig) {
	if cfg.PasswordFile == "" {
		cfg.PasswordFile = filepath.Join(getConfigDir(), DefaultPasswordFile)
	}
	if cfg.GeneratePassword == nil {
		generate := true
		cfg.GeneratePassword = &generate
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(getDataDir(), "server")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, DefaultDatabaseFile)
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// An adapter with neither Enabled nor Port set was not configured at
	// all; enable it so a config-less start serves both transports.
	// Setting a port with enabled: false keeps it off.
	if !cfg.TCP.Enabled && cfg.TCP.Port == 0 {
		cfg.TCP.Enabled = true
	}
	if !cfg.WebSocket.Enabled && cfg.WebSocket.Port == 0 {
		cfg.WebSocket.Enabled = true
	}

	applyTCPDefaults(&cfg.TCP)
	applyWebSocketDefaults(&cfg.WebSocket)
}

func applyTCPDefaults(cfg *tcp.TCPConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultTCPPort
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
}

func applyWebSocketDefaults(cfg *websocket.Config) {
	if cfg.Port == 0 {
		cfg.Port = DefaultWebSocketPort
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = protocol.DefaultMaxFrameSize
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyClientDefaults points the client at the local adapters unless told
// otherwise.
func applyClientDefaults(cfg *ClientConfig, adapters *AdaptersConfig) {
	if cfg.Address == "" {
		cfg.Address = "localhost:" + strconv.Itoa(adapters.TCP.Port)
	}
	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = "ws://localhost:" + strconv.Itoa(adapters.WebSocket.Port) + adapters.WebSocket.Path
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(getDataDir(), DefaultDatabaseFile)
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = time.Minute
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			TCP:       tcp.TCPConfig{Enabled: true},
			WebSocket: websocket.Config{Enabled: true},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
