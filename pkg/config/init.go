package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `# DittoTasks Configuration File
#
# Every value below is the default. Environment variables override the file
# using the DITTOTASKS_ prefix, e.g. DITTOTASKS_SECURITY_PASSWORD or
# DITTOTASKS_ADAPTERS_TCP_PORT.

`

// InitConfig writes a default configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Render returns cfg as commented YAML in the layout InitConfig writes.
// The password itself is never included.
func Render(cfg *Config) (string, error) {
	return generateYAMLWithComments(cfg)
}

// field is one commented key of a generated mapping.
type field struct {
	key     string
	comment string
	value   any
}

// generateYAMLWithComments renders cfg as YAML with a comment above every
// key.
func generateYAMLWithComments(cfg *Config) (string, error) {
	tcpCfg, wsCfg := cfg.Adapters.TCP, cfg.Adapters.WebSocket

	root, err := mapping(
		field{"logging", "Log output", []field{
			{"level", "DEBUG, INFO, WARN or ERROR", cfg.Logging.Level},
			{"format", "text or json", cfg.Logging.Format},
			{"output", "stdout, stderr or a file path", cfg.Logging.Output},
		}},
		field{"server", "Server-wide settings", []field{
			{"shutdown_timeout", "Maximum time to wait for graceful shutdown", cfg.Server.ShutdownTimeout},
			{"metrics", "Prometheus endpoint at /metrics", []field{
				{"enabled", "", cfg.Server.Metrics.Enabled},
				{"port", "", cfg.Server.Metrics.Port},
			}},
			{"rate_limit", "Request throttling, per client host and overall", []field{
				{"enabled", "", cfg.Server.RateLimit.Enabled},
				{"requests_per_second", "0 disables the global bucket", cfg.Server.RateLimit.RequestsPerSecond},
				{"burst", "", cfg.Server.RateLimit.Burst},
				{"per_client_requests_per_second", "", cfg.Server.RateLimit.PerClientRequestsPerSecond},
				{"per_client_burst", "", cfg.Server.RateLimit.PerClientBurst},
				{"client_idle_timeout", "", cfg.Server.RateLimit.ClientIdleTimeout},
			}},
		}},
		field{"security", "Shared sync password. Set password (or DITTOTASKS_SECURITY_PASSWORD)\nto skip the password file.", []field{
			{"password_file", "Created on first run when missing", cfg.Security.PasswordFile},
			{"generate_password", "Random password on first run; false writes \"" + DefaultPassword + "\"", *cfg.Security.GeneratePassword},
		}},
		field{"storage", "Server snapshot backend: filesystem, badger, s3 or memory.\nbadger accepts db_path, in_memory and sync_writes; s3 accepts region,\nbucket, key_prefix, endpoint, access_key_id, secret_access_key and max_retries.", []field{
			{"type", "", cfg.Storage.Type},
			{"data_dir", "", cfg.Storage.DataDir},
			{"database_path", "Filesystem backend document file; .json stores JSON", cfg.Storage.DatabasePath},
		}},
		field{"adapters", "Protocol adapters", []field{
			{"tcp", "Framed request/response transport", []field{
				{"enabled", "", tcpCfg.Enabled},
				{"bind_address", "Empty listens on all interfaces", tcpCfg.BindAddress},
				{"port", "", tcpCfg.Port},
				{"max_connections", "0 means unlimited", tcpCfg.MaxConnections},
				{"max_frame_size", "Bytes", tcpCfg.MaxFrameSize},
				{"read_timeout", "", tcpCfg.ReadTimeout},
				{"write_timeout", "", tcpCfg.WriteTimeout},
				{"idle_timeout", "", tcpCfg.IdleTimeout},
				{"shutdown_timeout", "", tcpCfg.ShutdownTimeout},
				{"metrics_log_interval", "0 disables periodic connection logging", tcpCfg.MetricsLogInterval},
			}},
			{"websocket", "Same messages plus change notifications", []field{
				{"enabled", "", wsCfg.Enabled},
				{"bind_address", "", wsCfg.BindAddress},
				{"port", "", wsCfg.Port},
				{"path", "", wsCfg.Path},
				{"max_message_size", "Bytes", wsCfg.MaxMessageSize},
				{"write_timeout", "", wsCfg.WriteTimeout},
				{"idle_timeout", "", wsCfg.IdleTimeout},
				{"shutdown_timeout", "", wsCfg.ShutdownTimeout},
			}},
		}},
		field{"client", "Command line client", []field{
			{"address", "Server TCP adapter", cfg.Client.Address},
			{"websocket_url", "Used by watch", cfg.Client.WebSocketURL},
			{"database_path", "Local document file", cfg.Client.DatabasePath},
			{"dial_timeout", "", cfg.Client.DialTimeout},
			{"request_timeout", "", cfg.Client.RequestTimeout},
		}},
	)
	if err != nil {
		return "", err
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return configHeader + string(out), nil
}

// mapping builds a YAML mapping node. A []field value becomes a nested
// mapping; anything else is encoded as a scalar.
func mapping(fields ...field) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: f.key}
		if f.comment != "" {
			key.HeadComment = commentLines(f.comment)
		}

		var value *yaml.Node
		if nested, ok := f.value.([]field); ok {
			var err error
			if value, err = mapping(nested...); err != nil {
				return nil, err
			}
		} else {
			value = &yaml.Node{}
			if err := value.Encode(f.value); err != nil {
				return nil, fmt.Errorf("encode %s: %w", f.key, err)
			}
		}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}

func commentLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "# " + l
	}
	return strings.Join(lines, "\n")
}
