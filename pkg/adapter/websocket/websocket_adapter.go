// Package websocket serves the synchronization protocol over WebSocket and
// pushes DatabaseChanged notifications to connected observers.
//
// Each binary message carries one sealed protocol message. Requests are
// answered in order on the same socket; notifications are interleaved
// between responses.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/internal/protocol"
	"github.com/marmos91/dittotasks/pkg/adapter"
	"github.com/marmos91/dittotasks/pkg/metrics"
)

// Config holds configuration for the WebSocket adapter.
type Config struct {
	// Enabled controls whether the WebSocket adapter is active.
	Enabled bool `mapstructure:"enabled"`

	// BindAddress is the interface to listen on. Empty means all.
	BindAddress string `mapstructure:"bind_address"`

	// Port is the HTTP port. 0 lets the OS pick one.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Path is the upgrade endpoint.
	// Default: /ws
	Path string `mapstructure:"path"`

	// MaxMessageSize bounds a single message in bytes.
	// Default: 64 MiB
	MaxMessageSize int64 `mapstructure:"max_message_size" validate:"min=0"`

	// WriteTimeout bounds writing one message.
	// Default: 30 seconds
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes sockets that stop answering pings.
	// Default: 2 minutes
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = protocol.DefaultMaxFrameSize
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Adapter is the WebSocket transport.
type Adapter struct {
	config Config

	shared  adapter.Shared
	handler *protocol.Handler
	metrics metrics.SyncMetrics

	upgrader websocket.Upgrader

	serverMu sync.Mutex
	server   *http.Server
	port     atomic.Int32
	ready    chan struct{}

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount   atomic.Int32
	activeConns sync.WaitGroup
	sockets     sync.Map
}

// New creates a WebSocket adapter. m may be nil.
func New(config Config, m metrics.SyncMetrics) *Adapter {
	config.applyDefaults()
	if m == nil {
		m = metrics.NewNoopSyncMetrics()
	}

	a := &Adapter{
		config:  config,
		metrics: m,
		// Messages are sealed end to end; browsers are not a client.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ready:    make(chan struct{}),
		shutdown: make(chan struct{}),
	}
	a.port.Store(int32(config.Port))
	return a
}

// SetShared injects the shared document.
func (a *Adapter) SetShared(sh adapter.Shared) {
	a.shared = sh
	a.handler = protocol.NewHandler(sh.Data, protocol.HandlerConfig{
		Password: sh.Password,
		Limiter:  sh.Limiter,
		Metrics:  a.metrics,
	})
}

// Router returns the HTTP routes served by the adapter.
func (a *Adapter) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(a.config.Path, a.handleUpgrade)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

// Serve listens until ctx is cancelled or Stop is called.
func (a *Adapter) Serve(ctx context.Context) error {
	if a.handler == nil {
		return fmt.Errorf("WebSocket adapter: SetShared was not called")
	}

	addr := net.JoinHostPort(a.config.BindAddress, strconv.Itoa(a.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create WebSocket listener on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.serverMu.Lock()
	select {
	case <-a.shutdown:
		a.serverMu.Unlock()
		_ = listener.Close()
		return nil
	default:
	}
	a.server = server
	a.serverMu.Unlock()

	a.port.Store(int32(listener.Addr().(*net.TCPAddr).Port))
	close(a.ready)

	logger.Info("WebSocket sync server listening on %s%s", listener.Addr(), a.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("WebSocket shutdown signal received: %v", ctx.Err())
	case <-a.shutdown:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("WebSocket server: %w", err)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()
	return a.Stop(stopCtx)
}

// Stop closes the listener, then every open socket, and waits for their
// goroutines until ctx expires.
func (a *Adapter) Stop(ctx context.Context) error {
	var err error
	a.shutdownOnce.Do(func() {
		a.serverMu.Lock()
		close(a.shutdown)
		server := a.server
		a.serverMu.Unlock()

		if server != nil {
			// Hijacked sockets are not tracked by http.Server; they are
			// closed below.
			err = server.Shutdown(ctx)
		}
	})

	a.sockets.Range(func(_, value any) bool {
		conn := value.(*websocket.Conn)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		a.activeConns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetActiveConnections returns the number of open sockets.
func (a *Adapter) GetActiveConnections() int32 { return a.connCount.Load() }

// Port returns the bound port once listening.
func (a *Adapter) Port() int { return int(a.port.Load()) }

// Ready is closed once the listener is bound.
func (a *Adapter) Ready() <-chan struct{} { return a.ready }

// Protocol returns "WebSocket".
func (a *Adapter) Protocol() string { return "WebSocket" }
