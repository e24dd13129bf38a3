package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/pkg/adapter"
	"github.com/marmos91/dittotasks/pkg/config"
	"github.com/marmos91/dittotasks/pkg/notify"
	"github.com/marmos91/dittotasks/pkg/server"
	"github.com/marmos91/dittotasks/pkg/shared"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		port     int
		wsPort   int
		dataDir  string
		database string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync server",
		Long: `Run the sync server on the configured adapters (TCP on 8080 and
WebSocket on 8081 by default) until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Adapters.TCP.Port = port
			}
			if flags.Changed("ws-port") {
				cfg.Adapters.WebSocket.Port = wsPort
			}
			if flags.Changed("data-dir") {
				cfg.Storage.DataDir = dataDir
				if !flags.Changed("database") {
					cfg.Storage.DatabasePath = ""
				}
			}
			if flags.Changed("database") {
				cfg.Storage.DatabasePath = database
			}
			config.ApplyDefaults(cfg)
			if err := config.Validate(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := runServer(ctx, cfg)
			if errors.Is(err, context.Canceled) {
				logger.Info("Server stopped gracefully")
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultTCPPort, "TCP adapter port")
	cmd.Flags().IntVar(&wsPort, "ws-port", config.DefaultWebSocketPort, "WebSocket adapter port")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Server data directory")
	cmd.Flags().StringVar(&database, "database", "", "Server document file (filesystem storage)")
	return cmd
}

// runServer wires storage, notifications and adapters together and blocks
// until ctx is done.
func runServer(ctx context.Context, cfg *config.Config) error {
	password, err := config.ResolvePassword(nil, &cfg.Security)
	if err != nil {
		return err
	}

	m := config.InitializeMetrics(cfg)

	backend, err := config.CreateBackend(ctx, &cfg.Storage, m.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close %s storage: %v", backend.Name(), err)
		}
	}()

	bus := notify.New(notify.Config{}, m.WebSocket)
	defer bus.Close()

	data, err := shared.Load(ctx, backend, bus)
	if err != nil {
		return fmt.Errorf("load document from %s storage: %w", backend.Name(), err)
	}
	logger.Info("Loaded document from %s storage (last modified %s)", backend.Name(), data.ModifiedDate())

	srv := server.New(adapter.Shared{
		Data:        data,
		Broadcaster: bus,
		Password:    password,
		Limiter:     config.CreateRateLimiter(&cfg.Server.RateLimit),
	})
	if m.Server != nil {
		m.Server.SetStatus(data.Status)
		srv.SetMetricsServer(m.Server)
		logger.Info("Metrics available on :%d/metrics", cfg.Server.Metrics.Port)
	}

	adapters, err := config.CreateAdapters(cfg, m)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	return srv.Serve(ctx)
}
