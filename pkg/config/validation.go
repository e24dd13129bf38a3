package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, so validation
// accepts both uppercase and lowercase levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	tcpCfg, wsCfg := cfg.Adapters.TCP, cfg.Adapters.WebSocket

	if !tcpCfg.Enabled && !wsCfg.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if tcpCfg.Enabled && wsCfg.Enabled && tcpCfg.Port != 0 && tcpCfg.Port == wsCfg.Port {
		return fmt.Errorf("adapters: tcp and websocket cannot share port %d", tcpCfg.Port)
	}

	if cfg.Server.Metrics.Enabled {
		for name, port := range map[string]int{"tcp": tcpCfg.Port, "websocket": wsCfg.Port} {
			if port != 0 && port == cfg.Server.Metrics.Port {
				return fmt.Errorf("server.metrics: port %d is already used by the %s adapter", port, name)
			}
		}
	}

	if wsCfg.Enabled && !strings.HasPrefix(wsCfg.Path, "/") {
		return fmt.Errorf("adapters.websocket.path: %q must start with /", wsCfg.Path)
	}

	if tcpCfg.ShutdownTimeout <= 0 || wsCfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("adapters: shutdown_timeout must be positive")
	}

	if cfg.Storage.Type == "filesystem" && cfg.Storage.DatabasePath == "" {
		return fmt.Errorf("storage: filesystem backend requires database_path or data_dir")
	}

	if _, _, err := net.SplitHostPort(cfg.Client.Address); err != nil {
		return fmt.Errorf("client.address: %w", err)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
