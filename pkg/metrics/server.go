package metrics

import (
	"context"
	"encoding/json"
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/dittotasks/internal/logger"
)

// Status describes the document the sync server currently serves.
type Status struct {
	Backend      string    `json:"backend"`
	LastModified time.Time `json:"last_modified"`
	Bytes        int       `json:"bytes"`
	Persisted    bool      `json:"persisted"`
}

// StatusFunc reports the current Status. It is called once per request.
type StatusFunc func() Status

// ServerConfig configures the observability endpoint.
type ServerConfig struct {
	// BindAddress defaults to all interfaces.
	BindAddress string

	// Port 0 picks a free port; Port reports it once the server listens.
	Port int
}

// Server exposes the sync server to operators:
//
//	GET /metrics  Prometheus scrape endpoint
//	GET /healthz  liveness
//	GET /readyz   200 once the document is loaded, 503 before
//	GET /status   the resident document as JSON
type Server struct {
	config ServerConfig
	http   *http.Server
	status atomic.Pointer[StatusFunc]

	port         atomic.Int32
	ready        chan struct{}
	shutdownOnce sync.Once
}

// NewServer returns a stopped server. Call Start to serve.
func NewServer(config ServerConfig) *Server {
	s := &Server{config: config, ready: make(chan struct{})}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if reg := GetRegistry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.status.Load() == nil {
			http.Error(w, "document not loaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/status", s.handleStatus)

	s.http = &http.Server{
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// SetStatus installs the status source and marks the server ready.
func (s *Server) SetStatus(f StatusFunc) {
	s.status.Store(&f)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	f := s.status.Load()
	if f == nil {
		http.Error(w, "document not loaded", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode((*f)()); err != nil {
		logger.Debug("Write status response: %v", err)
	}
}

// Start listens and serves until ctx is cancelled, then shuts down within
// five seconds. A failure to listen is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics server listen on %s: %w", addr, err)
	}
	s.port.Store(int32(ln.Addr().(*net.TCPAddr).Port))
	close(s.ready)
	logger.Info("Metrics server listening on %s", ln.Addr())

	errc := make(chan error, 1)
	go func() { errc <- s.http.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if err = s.http.Shutdown(ctx); err != nil {
			err = fmt.Errorf("metrics server shutdown: %w", err)
		}
	})
	return err
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Port returns the listening port, or the configured one before Start.
func (s *Server) Port() int {
	if p := s.port.Load(); p != 0 {
		return int(p)
	}
	return s.config.Port
}
