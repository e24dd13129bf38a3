package adapter

import (
	"context"

	"github.com/marmos91/dittotasks/internal/ratelimiter"
	"github.com/marmos91/dittotasks/pkg/notify"
	"github.com/marmos91/dittotasks/pkg/shared"
)

// Shared is the state every adapter serves. All adapters share the same
// document, so an update accepted on one transport is visible on every
// other one.
type Shared struct {
	// Data is the authoritative document.
	Data *shared.ServerData

	// Broadcaster delivers change notifications to persistent connections.
	// May be nil; adapters without push support ignore it.
	Broadcaster *notify.Broadcaster

	// Password seals every message.
	Password string

	// Limiter throttles requests per client. Nil disables limiting.
	Limiter *ratelimiter.PerClient
}

// Adapter represents a transport-specific server adapter that can be
// managed by DittoServer.
//
// Lifecycle:
//  1. Creation: Adapter is created with transport-specific configuration
//  2. Injection: SetShared() provides the shared document
//  3. Startup: Serve() starts the server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetShared() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the server and blocks until the context is cancelled or
	// an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Wait for active requests to complete (with timeout)
	//   - Clean up resources
	//
	// If Serve returns before context cancellation, DittoServer treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// SetShared injects the shared state. Called exactly once before Serve().
	SetShared(s Shared)

	// Stop initiates graceful shutdown. It must be idempotent and safe to
	// call concurrently with Serve().
	Stop(ctx context.Context) error

	// Protocol returns the human-readable transport name for logging and
	// metrics, e.g. "TCP" or "WebSocket".
	Protocol() string

	// Port returns the port the adapter is listening on, or the configured
	// port before Serve() bound it.
	Port() int

	// Ready is closed once the adapter accepts connections.
	Ready() <-chan struct{}
}
