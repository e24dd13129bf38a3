package client

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/internal/protocol"
	"github.com/marmos91/dittotasks/pkg/document"
)

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// URL of the server's WebSocket endpoint, e.g. ws://host:8081/ws.
	URL string

	// Path of the local document file.
	Path string

	// WatchFile also syncs when the local file is changed by another
	// process.
	WatchFile bool

	// InitialBackoff and MaxBackoff bound reconnect delays.
	// Defaults: 500ms and 30s
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnSync, if set, is called after every sync attempt.
	OnSync func(Result)
}

func (c *WatchConfig) applyDefaults() {
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Watcher keeps a local document in sync: it listens for DatabaseChanged
// notifications on a WebSocket and runs a sync whenever the server holds
// something newer than the local copy.
//
// Notifications only carry a timestamp. The sync itself goes through the
// Client, so the last-writer-wins rules are the same as for a manual sync.
type Watcher struct {
	client *Client
	config WatchConfig
	doc    *document.Document
}

// NewWatcher creates a Watcher for doc, which must have been loaded from
// config.Path.
func (c *Client) NewWatcher(doc *document.Document, config WatchConfig) *Watcher {
	config.applyDefaults()
	return &Watcher{client: c, config: config, doc: doc}
}

// Run syncs once, then reacts to notifications and file changes until ctx
// is done. It returns nil on cancellation; sync failures are reported
// through OnSync and logged, never returned.
func (w *Watcher) Run(ctx context.Context) error {
	w.sync(ctx, "startup")

	var fileEvents <-chan fsnotify.Event
	var fileErrors <-chan error
	if w.config.WatchFile {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch %s: %w", w.config.Path, err)
		}
		defer fw.Close()

		// Saves replace the file by rename, so the directory is watched.
		if err := fw.Add(filepath.Dir(w.config.Path)); err != nil {
			return fmt.Errorf("watch %s: %w", w.config.Path, err)
		}
		fileEvents, fileErrors = fw.Events, fw.Errors
	}

	changed := make(chan time.Time, 1)
	go w.listen(ctx, changed)

	target := filepath.Clean(w.config.Path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ts := <-changed:
			if ts.After(w.doc.LastModified()) {
				w.sync(ctx, "server change")
			}

		case ev, ok := <-fileEvents:
			if !ok {
				fileEvents = nil
				continue
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reloadLocal(ctx)

		case err, ok := <-fileErrors:
			if !ok {
				fileErrors = nil
				continue
			}
			logger.Warn("File watcher error: %v", err)
		}
	}
}

// reloadLocal picks up edits made to the file by another process.
func (w *Watcher) reloadLocal(ctx context.Context) {
	loaded, err := w.client.files.LoadFrom(w.config.Path)
	if err != nil {
		// A writer may be mid-rename; the next event retries.
		logger.Debug("Reload %s: %v", w.config.Path, err)
		return
	}
	if !loaded.LastModified().After(w.doc.LastModified()) {
		return
	}
	w.doc.ReplaceWith(loaded)
	w.sync(ctx, "local change")
}

func (w *Watcher) sync(ctx context.Context, reason string) {
	outcome, err := w.client.Sync(ctx, w.doc, w.config.Path)
	if err != nil {
		logger.Warn("Sync after %s failed: %v", reason, err)
	} else {
		logger.Info("Sync after %s: %s", reason, outcome)
	}
	if w.config.OnSync != nil {
		w.config.OnSync(Result{Outcome: outcome, Err: err})
	}
}

// listen keeps a notification socket open, reconnecting with exponential
// backoff. Timestamps are coalesced: only the latest pending one is kept.
func (w *Watcher) listen(ctx context.Context, changed chan time.Time) {
	first := true
	for {
		conn, err := w.connect(ctx)
		if err != nil {
			return
		}

		if !first {
			// Notifications sent while disconnected are lost; ask directly.
			if remote, err := w.client.ModifiedDate(ctx); err == nil {
				offer(changed, remote)
			}
		}
		first = false

		w.readNotifications(ctx, conn, changed)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		logger.Warn("Notification socket to %s lost, reconnecting", w.config.URL)
	}
}

func (w *Watcher) connect(ctx context.Context) (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.config.InitialBackoff
	b.MaxInterval = w.config.MaxBackoff
	b.MaxElapsedTime = 0

	var conn *websocket.Conn
	err := backoff.Retry(func() error {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, w.config.URL, nil)
		if err != nil {
			logger.Debug("Dial %s: %v", w.config.URL, err)
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	logger.Info("Listening for changes on %s", w.config.URL)
	return conn, nil
}

func (w *Watcher) readNotifications(ctx context.Context, conn *websocket.Conn, changed chan time.Time) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
				logger.Debug("Notification socket read: %v", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		resp, err := protocol.OpenResponse(data, w.client.config.Password)
		if err != nil {
			logger.Warn("Unreadable notification (wrong password?): %v", err)
			continue
		}
		if resp.Kind == protocol.ResponseDatabaseChanged {
			offer(changed, resp.Timestamp())
		}
	}
}

// offer replaces any pending timestamp with ts. Only one goroutine sends.
func offer(ch chan time.Time, ts time.Time) {
	select {
	case ch <- ts:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- ts
	}
}
