package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/internal/protocol"
)

type connection struct {
	server *TCPAdapter
	conn   net.Conn
	info   protocol.ConnInfo
}

func newConnection(server *TCPAdapter, conn net.Conn) *connection {
	return &connection{
		server: server,
		conn:   conn,
		info: protocol.ConnInfo{
			ID:   ulid.Make().String(),
			Addr: conn.RemoteAddr().String(),
		},
	}
}

// Serve handles requests until the client disconnects, an error occurs,
// or ctx is cancelled. Panics are recovered so one bad request cannot take
// the server down.
func (c *connection) Serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler for %s: %v", c.info.Addr, r)
		}
		_ = c.conn.Close()
	}()

	c.resetIdleDeadline()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Connection %s closed due to context cancellation", c.info.ID)
			return
		case <-c.server.shutdown:
			logger.Debug("Connection %s closed due to server shutdown", c.info.ID)
			return
		default:
		}

		if err := c.handleRequest(ctx); err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("Connection %s closed by client", c.info.ID)
			case errors.As(err, &netErr) && netErr.Timeout():
				logger.Debug("Connection %s timed out: %v", c.info.ID, err)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				logger.Debug("Connection %s cancelled: %v", c.info.ID, err)
			default:
				logger.Warn("Error handling request from %s: %v", c.info.Addr, err)
			}
			return
		}

		c.resetIdleDeadline()
	}
}

func (c *connection) resetIdleDeadline() {
	if c.server.config.IdleTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.server.config.IdleTimeout)); err != nil {
			logger.Warn("Failed to set deadline for %s: %v", c.info.Addr, err)
		}
	}
}

// handleRequest reads one framed request, dispatches it and writes the
// framed response.
func (c *connection) handleRequest(ctx context.Context) error {
	if c.server.config.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	frame, err := protocol.ReadFrame(c.conn, c.server.config.MaxFrameSize)
	if err != nil {
		return err
	}
	c.server.metrics.RecordBytesTransferred("in", int64(len(frame)+4))

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	reply, err := c.server.handler.Handle(ctx, c.info, frame)
	if err != nil {
		return err
	}

	if c.server.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if err := protocol.WriteFrame(c.conn, reply); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	c.server.metrics.RecordBytesTransferred("out", int64(len(reply)+4))
	return nil
}
