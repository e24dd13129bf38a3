package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolateDirs points the XDG directories at a temporary location so tests
// never touch the user's configuration.
func isolateDirs(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	return tmpDir
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	isolateDirs(t)
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

storage:
  type: "filesystem"

adapters:
  tcp:
    enabled: true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Adapters.TCP.Port != DefaultTCPPort {
		t.Errorf("Expected default TCP port %d, got %d", DefaultTCPPort, cfg.Adapters.TCP.Port)
	}
	if cfg.Adapters.WebSocket.Port != DefaultWebSocketPort {
		t.Errorf("Expected default WebSocket port %d, got %d", DefaultWebSocketPort, cfg.Adapters.WebSocket.Port)
	}
	if filepath.Base(cfg.Storage.DatabasePath) != DefaultDatabaseFile {
		t.Errorf("Expected database file %q, got %q", DefaultDatabaseFile, cfg.Storage.DatabasePath)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	isolateDirs(t)
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Storage.Type != "filesystem" {
		t.Errorf("Expected default storage type 'filesystem', got %q", cfg.Storage.Type)
	}
	if !cfg.Adapters.TCP.Enabled || !cfg.Adapters.WebSocket.Enabled {
		t.Error("Expected both adapters enabled without a config file")
	}
}

func TestLoad_DefaultLocation(t *testing.T) {
	tmpDir := isolateDirs(t)
	dir := filepath.Join(tmpDir, "config", "dittotasks")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolateDirs(t)
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	isolateDirs(t)
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[storage]
type = "memory"

[adapters.tcp]
enabled = true
port = 9000
read_timeout = "1m"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected storage type 'memory', got %q", cfg.Storage.Type)
	}
	if cfg.Adapters.TCP.Port != 9000 {
		t.Errorf("Expected TCP port 9000, got %d", cfg.Adapters.TCP.Port)
	}
	if cfg.Adapters.TCP.ReadTimeout != time.Minute {
		t.Errorf("Expected read timeout 1m, got %v", cfg.Adapters.TCP.ReadTimeout)
	}
}

func TestLoad_StorageOptions(t *testing.T) {
	isolateDirs(t)
	configPath := writeConfig(t, "config.yaml", `
storage:
  type: badger
  data_dir: /var/lib/dittotasks
  badger:
    in_memory: true
    sync_writes: false
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Storage.Badger["in_memory"] != true {
		t.Errorf("Expected badger.in_memory true, got %v", cfg.Storage.Badger["in_memory"])
	}
	if cfg.Storage.DatabasePath != filepath.Join("/var/lib/dittotasks", DefaultDatabaseFile) {
		t.Errorf("Expected database path under data_dir, got %q", cfg.Storage.DatabasePath)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	isolateDirs(t)
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected default metrics port %d, got %d", DefaultMetricsPort, cfg.Server.Metrics.Port)
	}
	if cfg.Storage.Type != "filesystem" {
		t.Errorf("Expected default storage type 'filesystem', got %q", cfg.Storage.Type)
	}
	if cfg.Adapters.WebSocket.Path != "/ws" {
		t.Errorf("Expected default WebSocket path '/ws', got %q", cfg.Adapters.WebSocket.Path)
	}
	if cfg.Client.Address != "localhost:8080" {
		t.Errorf("Expected client address 'localhost:8080', got %q", cfg.Client.Address)
	}
	if cfg.Client.WebSocketURL != "ws://localhost:8081/ws" {
		t.Errorf("Expected client websocket URL 'ws://localhost:8081/ws', got %q", cfg.Client.WebSocketURL)
	}
	if cfg.Security.GeneratePassword == nil || !*cfg.Security.GeneratePassword {
		t.Error("Expected password generation enabled by default")
	}
}

func TestConfigExists(t *testing.T) {
	isolateDirs(t)

	if ConfigExists() {
		t.Fatal("Expected no config in a fresh config directory")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	isolateDirs(t)
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	isolateDirs(t)
	dir := GetConfigDir()

	if filepath.Base(dir) != "dittotasks" {
		t.Errorf("Expected directory name 'dittotasks', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	isolateDirs(t)
	t.Setenv("DITTOTASKS_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTOTASKS_ADAPTERS_TCP_PORT", "5049")
	t.Setenv("DITTOTASKS_SECURITY_PASSWORD", "from-env")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

adapters:
  tcp:
    enabled: true
    port: 8080
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.TCP.Port != 5049 {
		t.Errorf("Expected port 5049 from env var, got %d", cfg.Adapters.TCP.Port)
	}
	if cfg.Security.Password != "from-env" {
		t.Errorf("Expected password from env var, got %q", cfg.Security.Password)
	}
}
