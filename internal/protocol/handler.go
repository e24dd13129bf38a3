package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/internal/ratelimiter"
	"github.com/marmos91/dittotasks/pkg/envelope"
	"github.com/marmos91/dittotasks/pkg/metrics"
	"github.com/marmos91/dittotasks/pkg/shared"
)

// State is the server-side document the handler serves.
// *shared.ServerData implements it.
type State interface {
	ModifiedDate() time.Time
	Download() ([]byte, time.Time)
	Update(ctx context.Context, origin string, data []byte, lastModified time.Time) error
}

// ConnInfo identifies the connection a request arrived on.
type ConnInfo struct {
	// ID is unique per connection and used as the notification origin.
	ID string

	// Addr is the remote address, "host:port" for TCP.
	Addr string
}

// clientKey returns the host part of the remote address, used as the
// rate limiting key.
func (c ConnInfo) clientKey() string {
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return c.Addr
	}
	return host
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Password seals and opens every message.
	Password string

	// Limiter throttles requests per client. Nil disables limiting.
	Limiter *ratelimiter.PerClient

	// Metrics records request outcomes. Nil disables metrics.
	Metrics metrics.SyncMetrics
}

// Handler decrypts requests, runs them against State and seals the
// responses. It is transport agnostic and safe for concurrent use.
type Handler struct {
	state    State
	password string
	limiter  *ratelimiter.PerClient
	metrics  metrics.SyncMetrics
}

// NewHandler creates a Handler serving state.
func NewHandler(state State, cfg HandlerConfig) *Handler {
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopSyncMetrics()
	}
	return &Handler{
		state:    state,
		password: cfg.Password,
		limiter:  cfg.Limiter,
		metrics:  m,
	}
}

// requestHandler processes one decoded request.
//
// A returned error is a server-side failure unrelated to the request's
// content. The transport closes the connection instead of answering.
type requestHandler func(ctx context.Context, state State, conn ConnInfo, req Request) (Response, error)

type requestInfo struct {
	// Name is used for logs and metrics.
	Name string

	Handler requestHandler
}

// dispatchTable maps request kinds to their handlers.
var dispatchTable = map[RequestKind]*requestInfo{
	RequestGetModifiedDate: {
		Name:    RequestGetModifiedDate.String(),
		Handler: handleGetModifiedDate,
	},
	RequestDownloadDatabase: {
		Name:    RequestDownloadDatabase.String(),
		Handler: handleDownloadDatabase,
	},
	RequestUpdateDatabase: {
		Name:    RequestUpdateDatabase.String(),
		Handler: handleUpdateDatabase,
	},
}

// Handle processes one sealed request and returns the sealed response.
//
// Requests that cannot be opened are answered, not failed: a wrong
// password or a tampered envelope yields InvalidPassword, a payload that
// authenticates but is not a known request yields InvalidDatabaseBinary.
// An error is returned only when ctx is done, the rate limiter refuses to
// wait, or the server cannot serve the request.
func (h *Handler) Handle(ctx context.Context, conn ConnInfo, frame []byte) ([]byte, error) {
	start := time.Now()

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx, conn.clientKey()); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := OpenRequest(frame, h.password)
	if err != nil {
		resp := InvalidPassword()
		if errors.Is(err, envelope.ErrPayload) {
			resp = InvalidDatabaseBinary()
		}
		logger.Warn("Rejecting request from %s: %v", conn.Addr, err)
		h.metrics.RecordRequest("Unreadable", resp.Kind.String(), time.Since(start))
		return h.seal(resp)
	}

	info, ok := dispatchTable[req.Kind]
	if !ok {
		// Validate already rejected unknown kinds; keep the table authoritative.
		h.metrics.RecordRequest(req.Kind.String(), ResponseInvalidDatabaseBinary.String(), time.Since(start))
		return h.seal(InvalidDatabaseBinary())
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	h.metrics.RecordRequestStart(info.Name)
	resp, err := info.Handler(ctx, h.state, conn, req)
	h.metrics.RecordRequestEnd(info.Name)
	if err != nil {
		h.metrics.RecordRequest(info.Name, "error", time.Since(start))
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}

	logger.Debug("%s from %s -> %s (%s)", info.Name, conn.Addr, resp.Kind, time.Since(start))
	h.metrics.RecordRequest(info.Name, resp.Kind.String(), time.Since(start))
	return h.seal(resp)
}

// Push seals an unsolicited response, such as DatabaseChanged.
func (h *Handler) Push(resp Response) ([]byte, error) {
	return h.seal(resp)
}

func (h *Handler) seal(resp Response) ([]byte, error) {
	out, err := SealResponse(resp, h.password)
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", resp.Kind, err)
	}
	return out, nil
}

func handleGetModifiedDate(_ context.Context, state State, _ ConnInfo, _ Request) (Response, error) {
	return ModifiedDate(state.ModifiedDate()), nil
}

func handleDownloadDatabase(_ context.Context, state State, _ ConnInfo, _ Request) (Response, error) {
	data, ts := state.Download()
	return Database(data, ts), nil
}

func handleUpdateDatabase(ctx context.Context, state State, conn ConnInfo, req Request) (Response, error) {
	err := state.Update(ctx, conn.ID, req.Database, req.Timestamp())
	switch {
	case errors.Is(err, shared.ErrInvalidDatabase):
		logger.Warn("UpdateDatabase from %s rejected: %v", conn.Addr, err)
		return InvalidDatabaseBinary(), nil
	case err != nil:
		return Response{}, err
	}
	return DatabaseUpdated(), nil
}
