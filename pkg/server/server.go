// Package server runs every enabled sync adapter over one shared document.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/pkg/adapter"
	"github.com/marmos91/dittotasks/pkg/metrics"
)

// stopTimeout bounds the shutdown of all adapters together.
const stopTimeout = 30 * time.Second

// DittoServer coordinates multiple transport adapters serving the same
// document.
//
// All adapters share one adapter.Shared value: the document, the change
// broadcaster, the password and the rate limiter. An update accepted over
// TCP is therefore visible, and announced, to WebSocket observers.
//
// Lifecycle:
//  1. Create with New()
//  2. Register adapters with AddAdapter()
//  3. Optionally attach a metrics server with SetMetricsServer()
//  4. Call Serve(), which blocks until ctx is cancelled or an adapter fails
//
// Shutdown stops adapters in reverse registration order, then the metrics
// server.
type DittoServer struct {
	shared adapter.Shared

	adapters []adapter.Adapter
	metrics  *metrics.Server

	mu     sync.RWMutex
	served bool
}

// New creates a DittoServer. It panics if the shared document is missing.
func New(shared adapter.Shared) *DittoServer {
	if shared.Data == nil {
		panic("shared server data cannot be nil")
	}
	return &DittoServer{
		shared:   shared,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter registers an adapter and injects the shared state into it.
//
// Returns an error if an adapter for the same protocol or the same fixed
// port is already registered. Port 0 never conflicts. Panics if called
// after Serve().
func (s *DittoServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetShared(s.shared)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// SetMetricsServer attaches the Prometheus endpoint. It is started with
// the adapters and stopped after them.
func (s *DittoServer) SetMetricsServer(m *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

type adapterError struct {
	protocol string
	err      error
}

// Serve starts all adapters and blocks until ctx is cancelled or one of
// them fails, in which case every other adapter is stopped too.
//
// Returns ctx.Err() after a requested shutdown, or the failing adapter's
// error. Serve may only be called once.
func (s *DittoServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called on this server instance")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	metricsServer := s.metrics
	s.mu.Unlock()

	logger.Info("Starting DittoServer with %d adapter(s)", len(adapters))

	errChan := make(chan adapterError, len(adapters)+1)
	var wg sync.WaitGroup

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(metricsCtx); err != nil {
				errChan <- adapterError{protocol: "metrics", err: err}
			}
		}()
	}

	startTime := time.Now()
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped: %v", protocol, err)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	go func() {
		for _, a := range adapters {
			select {
			case <-a.Ready():
			case <-ctx.Done():
				return
			}
		}
		logger.Info("All adapters started in %v", time.Since(startTime))
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("%s failed: %v, shutting down all adapters", adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	s.stopAllAdapters(adapters)
	stopMetrics()

	wg.Wait()
	logger.Info("DittoServer stopped")
	return shutdownErr
}

// stopAllAdapters stops adapters in reverse registration order.
func (s *DittoServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		} else {
			logger.Debug("%s adapter stopped", adp.Protocol())
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *DittoServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
