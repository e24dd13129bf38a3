// Package tcp serves the synchronization protocol over plain TCP with
// record-marking framing.
package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/internal/protocol"
	"github.com/marmos91/dittotasks/pkg/adapter"
	"github.com/marmos91/dittotasks/pkg/metrics"
)

// TCPAdapter accepts sync connections and serves one request/response
// exchange at a time per connection.
//
// Each accepted connection runs in its own goroutine. A failing connection
// only terminates its goroutine; the server keeps serving others.
//
// Shutdown is graceful: the listener closes, in-flight requests see their
// context cancelled, and connections still open after ShutdownTimeout are
// force-closed.
type TCPAdapter struct {
	config TCPConfig

	listenerMu sync.Mutex
	listener   net.Listener
	port       atomic.Int32
	ready      chan struct{}

	shared  adapter.Shared
	handler *protocol.Handler
	metrics metrics.SyncMetrics

	// activeConns tracks in-flight connections for graceful shutdown.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// connSemaphore limits concurrent connections when MaxConnections > 0.
	connSemaphore chan struct{}

	// shutdownCtx is cancelled on shutdown to abort in-flight requests.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps connection IDs to net.Conn for forced closure.
	activeConnections sync.Map
}

// TCPConfig holds configuration for the TCP adapter.
//
// All timeout values are durations; zero selects the default.
type TCPConfig struct {
	// Enabled controls whether the TCP adapter is active.
	Enabled bool `mapstructure:"enabled"`

	// BindAddress is the interface to listen on. Empty means all.
	BindAddress string `mapstructure:"bind_address"`

	// Port is the TCP port to listen on.
	// 0 lets the OS pick a free port (used by tests).
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// MaxFrameSize bounds a single message in bytes.
	// Default: 64 MiB
	MaxFrameSize int `mapstructure:"max_frame_size" validate:"min=0"`

	// ReadTimeout bounds reading one request.
	// Default: 5 minutes
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing one response.
	// Default: 30 seconds
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes connections without traffic.
	// Default: 5 minutes
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is how long graceful shutdown waits before
	// force-closing connections.
	// Default: 30 seconds
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MetricsLogInterval periodically logs connection counts. 0 disables it.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

func (c *TCPConfig) applyDefaults() {
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *TCPConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("invalid MaxFrameSize %d: must be >= 0", c.MaxFrameSize)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("invalid timeouts: read=%v write=%v idle=%v", c.ReadTimeout, c.WriteTimeout, c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// New creates a TCP adapter. It panics on an invalid configuration, which
// config.Validate rules out for loaded configurations.
//
// m may be nil to disable metrics.
func New(config TCPConfig, m metrics.SyncMetrics) *TCPAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid TCP config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("TCP connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("TCP connection limit: unlimited")
	}

	if m == nil {
		m = metrics.NewNoopSyncMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	a := &TCPAdapter{
		config:         config,
		ready:          make(chan struct{}),
		metrics:        m,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
	a.port.Store(int32(config.Port))
	return a
}

// SetShared injects the shared document and builds the request handler.
func (s *TCPAdapter) SetShared(sh adapter.Shared) {
	s.shared = sh
	s.handler = protocol.NewHandler(sh.Data, protocol.HandlerConfig{
		Password: sh.Password,
		Limiter:  sh.Limiter,
		Metrics:  s.metrics,
	})
	logger.Debug("TCP shared state configured")
}

// Serve listens and accepts connections until ctx is cancelled or Stop is
// called.
func (s *TCPAdapter) Serve(ctx context.Context) error {
	if s.handler == nil {
		return fmt.Errorf("TCP adapter: SetShared was not called")
	}

	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create TCP listener on %s: %w", addr, err)
	}

	s.listenerMu.Lock()
	select {
	case <-s.shutdown:
		s.listenerMu.Unlock()
		_ = listener.Close()
		return nil
	default:
	}
	s.listener = listener
	s.listenerMu.Unlock()

	s.port.Store(int32(listener.Addr().(*net.TCPAddr).Port))
	close(s.ready)

	logger.Info("TCP sync server listening on %s", listener.Addr())
	logger.Debug("TCP config: max_connections=%d read_timeout=%v write_timeout=%v idle_timeout=%v",
		s.config.MaxConnections, s.config.ReadTimeout, s.config.WriteTimeout, s.config.IdleTimeout)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("TCP shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting TCP connection: %v", err)
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		conn := newConnection(s, tcpConn)
		s.activeConnections.Store(conn.info.ID, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("TCP connection %s accepted from %s (active: %d)",
			conn.info.ID, conn.info.Addr, currentConns)

		go func() {
			defer func() {
				s.activeConnections.Delete(conn.info.ID)

				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("TCP connection %s closed (active: %d)", conn.info.ID, currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}()
	}
}

// initiateShutdown closes the listener and cancels in-flight requests.
// Safe to call multiple times.
func (s *TCPAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("TCP shutdown initiated")

		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing TCP listener: %v", err)
			}
		}
		s.listenerMu.Unlock()

		s.cancelRequests()
	})
}

// gracefulShutdown waits up to ShutdownTimeout for connections to finish,
// then force-closes the rest.
func (s *TCPAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("TCP graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("TCP graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("TCP shutdown timeout exceeded: %d connection(s) still active after %v, forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("TCP shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *TCPAdapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection %s: %v", id, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d TCP connection(s)", closedCount)
	}
}

// Stop initiates shutdown and waits for connections to finish until ctx
// expires.
func (s *TCPAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("TCP shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		s.forceCloseConnections()
		return ctx.Err()
	}
}

func (s *TCPAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("TCP metrics: active_connections=%d", s.connCount.Load())
		}
	}
}

// GetActiveConnections returns the number of open connections.
func (s *TCPAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the bound port once Serve is listening, the configured one
// before.
func (s *TCPAdapter) Port() int {
	return int(s.port.Load())
}

// Ready is closed once the listener is bound.
func (s *TCPAdapter) Ready() <-chan struct{} {
	return s.ready
}

// Protocol returns "TCP".
func (s *TCPAdapter) Protocol() string {
	return "TCP"
}
