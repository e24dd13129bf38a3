package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittotasks/pkg/adapter/tcp"
	"github.com/marmos91/dittotasks/pkg/adapter/websocket"
	"github.com/spf13/viper"
)

// Config represents the complete DittoTasks configuration.
//
// The same file serves the server (logging, server, security, storage,
// adapters) and the command line client (client). Sections a process does
// not use are ignored.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOTASKS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Storage follows the store-specific pattern: Storage.Type selects the
// backend and only the matching option map is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Security holds the shared sync password
	Security SecurityConfig `mapstructure:"security" yaml:"security"`

	// Storage selects where the server persists the document
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`

	// Client configures the command line client
	Client ClientConfig `mapstructure:"client" yaml:"client"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// RateLimit throttles sync requests
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	// Enabled exposes /metrics when true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics HTTP port
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// RateLimitConfig configures request throttling.
//
// A zero rate disables the corresponding bucket.
type RateLimitConfig struct {
	// Enabled turns rate limiting on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// RequestsPerSecond is the sustained rate across all clients
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the global burst size
	Burst uint `mapstructure:"burst" yaml:"burst"`

	// PerClientRequestsPerSecond is the sustained rate for one client host
	PerClientRequestsPerSecond uint `mapstructure:"per_client_requests_per_second" yaml:"per_client_requests_per_second"`

	// PerClientBurst is the burst size for one client host
	PerClientBurst uint `mapstructure:"per_client_burst" yaml:"per_client_burst"`

	// ClientIdleTimeout evicts buckets of clients that went quiet
	ClientIdleTimeout time.Duration `mapstructure:"client_idle_timeout" yaml:"client_idle_timeout" validate:"min=0"`
}

// SecurityConfig holds the password every client and the server share.
//
// Resolution order: Password, then the contents of PasswordFile. When the
// file does not exist it is created, holding either a random password or,
// with GeneratePassword disabled, DefaultPassword.
type SecurityConfig struct {
	// Password is the plaintext sync password.
	// Prefer DITTOTASKS_SECURITY_PASSWORD over writing it to the file.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// PasswordFile stores the password when Password is empty
	// Default: <config dir>/password
	PasswordFile string `mapstructure:"password_file" yaml:"password_file"`

	// GeneratePassword creates a random password on first run
	GeneratePassword *bool `mapstructure:"generate_password" yaml:"generate_password"`
}

// StorageConfig specifies the snapshot backend.
type StorageConfig struct {
	// Type specifies which backend implementation to use
	// Valid values: filesystem, badger, s3, memory
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem badger s3 memory"`

	// DataDir is the server data directory
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// DatabasePath overrides the document file of the filesystem backend.
	// A ".json" extension stores JSON instead of the binary form.
	// Default: <data_dir>/database.bin
	DatabasePath string `mapstructure:"database_path" yaml:"database_path,omitempty"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// TCP is the framed request/response transport
	TCP tcp.TCPConfig `mapstructure:"tcp" yaml:"tcp"`

	// WebSocket carries the same messages plus change notifications
	WebSocket websocket.Config `mapstructure:"websocket" yaml:"websocket"`
}

// ClientConfig configures the command line client.
type ClientConfig struct {
	// Address is the host:port of the server's TCP adapter
	Address string `mapstructure:"address" yaml:"address" validate:"required"`

	// WebSocketURL is the notification endpoint used by "watch"
	WebSocketURL string `mapstructure:"websocket_url" yaml:"websocket_url"`

	// DatabasePath is the local document file
	// Default: <data dir>/database.bin
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// DialTimeout bounds connecting to the server
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" validate:"min=0"`

	// RequestTimeout bounds one sync round trip
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"min=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOTASKS_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath uses the default location. A missing file is not an
// error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// envKeys lists keys that may come from the environment without appearing
// in the file. AutomaticEnv only overrides keys viper already knows about.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"security.password",
	"security.password_file",
	"storage.type",
	"storage.data_dir",
	"storage.database_path",
	"adapters.tcp.port",
	"adapters.websocket.port",
	"client.address",
	"client.websocket_url",
	"client.database_path",
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOTASKS_SECURITY_PASSWORD=secret
	v.SetEnvPrefix("DITTOTASKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/dittotasks/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// SetConfigFile reports a missing explicit file as a PathError.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittotasks")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittotasks")
}

// getDataDir returns the default data directory, following XDG_DATA_HOME.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "dittotasks")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "dittotasks")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
