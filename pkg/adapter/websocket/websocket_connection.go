package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/internal/protocol"
	"github.com/marmos91/dittotasks/pkg/notify"
)

type connection struct {
	adapter *Adapter
	conn    *websocket.Conn
	info    protocol.ConnInfo

	// writeMu serializes writers: gorilla allows one at a time.
	writeMu sync.Mutex
}

func (a *Adapter) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	select {
	case <-a.shutdown:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	c := &connection{
		adapter: a,
		conn:    ws,
		info:    protocol.ConnInfo{ID: ulid.Make().String(), Addr: r.RemoteAddr},
	}

	a.activeConns.Add(1)
	a.sockets.Store(c.info.ID, ws)
	count := a.connCount.Add(1)
	a.metrics.RecordConnectionAccepted()
	a.metrics.SetActiveConnections(count)
	logger.Debug("WebSocket connection %s from %s (active: %d)", c.info.ID, c.info.Addr, count)

	defer func() {
		a.sockets.Delete(c.info.ID)
		count := a.connCount.Add(-1)
		a.metrics.RecordConnectionClosed()
		a.metrics.SetActiveConnections(count)
		a.activeConns.Done()
		logger.Debug("WebSocket connection %s closed (active: %d)", c.info.ID, count)
	}()

	// The request context ends when the handler returns, which is what
	// scopes the notification subscription to this socket.
	c.serve(r.Context())
}

func (c *connection) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in WebSocket handler for %s: %v", c.info.Addr, r)
		}
		_ = c.conn.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := c.adapter.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.IdleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.IdleTimeout))
	})

	var wg sync.WaitGroup
	if b := c.adapter.shared.Broadcaster; b != nil {
		notes, err := b.Subscribe(ctx, c.info.ID)
		if err != nil {
			logger.Warn("Subscribe %s to change notifications: %v", c.info.ID, err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.pushNotifications(notes)
			}()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.keepAlive(ctx)
	}()

	c.readLoop(ctx)
	cancel()
	_ = c.conn.Close()
	wg.Wait()
}

func (c *connection) readLoop(ctx context.Context) {
	for {
		mt, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("WebSocket %s read error: %v", c.info.ID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.adapter.config.IdleTimeout))

		if mt != websocket.BinaryMessage {
			logger.Debug("WebSocket %s sent a non-binary message, ignoring", c.info.ID)
			continue
		}
		c.adapter.metrics.RecordBytesTransferred("in", int64(len(frame)))

		reply, err := c.adapter.handler.Handle(ctx, c.info, frame)
		if err != nil {
			logger.Warn("WebSocket request from %s failed: %v", c.info.Addr, err)
			return
		}
		if err := c.write(websocket.BinaryMessage, reply); err != nil {
			logger.Debug("WebSocket %s write error: %v", c.info.ID, err)
			return
		}
	}
}

func (c *connection) pushNotifications(notes <-chan notify.Notification) {
	for n := range notes {
		msg, err := c.adapter.handler.Push(protocol.DatabaseChanged(n.LastModified))
		if err != nil {
			logger.Warn("Seal change notification: %v", err)
			continue
		}
		if err := c.write(websocket.BinaryMessage, msg); err != nil {
			logger.Debug("WebSocket %s notification write failed: %v", c.info.ID, err)
			return
		}
	}
}

func (c *connection) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(c.adapter.config.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.adapter.config.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *connection) write(mt int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.adapter.config.WriteTimeout))
	if err := c.conn.WriteMessage(mt, data); err != nil {
		return err
	}
	c.adapter.metrics.RecordBytesTransferred("out", int64(len(data)))
	return nil
}
