// Package client implements the client side of synchronization: one
// last-writer-wins round trip against the server, run inline or in the
// background, plus a watcher that re-syncs on change notifications.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/afero"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/internal/protocol"
	"github.com/marmos91/dittotasks/pkg/document"
	"github.com/marmos91/dittotasks/pkg/envelope"
)

// Outcome is what a successful sync did.
type Outcome int

const (
	// Uploaded means the local document replaced the server's.
	Uploaded Outcome = iota + 1

	// Downloaded means the server's document replaced the local one.
	Downloaded
)

func (o Outcome) String() string {
	switch o {
	case Uploaded:
		return "uploaded"
	case Downloaded:
		return "downloaded"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Config configures a Client.
type Config struct {
	// Address is the server's TCP address, "host:port".
	Address string

	// Password seals every message.
	Password string

	// DialTimeout bounds connection setup.
	// Default: 10 seconds
	DialTimeout time.Duration

	// RequestTimeout bounds one request/response exchange.
	// Default: 1 minute
	RequestTimeout time.Duration

	// MaxFrameSize bounds a response.
	// Default: 64 MiB
	MaxFrameSize int
}

func (c *Config) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = time.Minute
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
}

// Client syncs local documents with a server over TCP.
type Client struct {
	config Config
	files  *document.FileStore
}

// New creates a Client. Downloaded documents are saved through fsys;
// nil selects the OS filesystem.
func New(config Config, fsys afero.Fs) *Client {
	config.applyDefaults()
	return &Client{config: config, files: document.NewFileStore(fsys)}
}

// Files returns the store used for local documents.
func (c *Client) Files() *document.FileStore {
	return c.files
}

// Result is the terminal value of a background sync.
type Result struct {
	Outcome Outcome
	Err     error
}

// SyncAsync runs Sync in a goroutine and delivers exactly one Result on the
// returned channel. Cancelling ctx aborts the exchange; doc is then left
// untouched unless the download had already been fully received.
func (c *Client) SyncAsync(ctx context.Context, doc *document.Document, path string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		outcome, err := c.Sync(ctx, doc, path)
		out <- Result{Outcome: outcome, Err: err}
	}()
	return out
}

// Sync reconciles doc with the server.
//
// If the server's document is strictly newer, it is downloaded, saved to
// path and swapped into doc. Otherwise, ties included, doc is uploaded. An
// empty path skips saving.
//
// Errors are *SyncError.
func (c *Client) Sync(ctx context.Context, doc *document.Document, path string) (Outcome, error) {
	sess, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer sess.close()

	local := doc.LastModified()

	resp, err := sess.roundTrip(ctx, protocol.GetModifiedDate())
	if err != nil {
		return 0, err
	}
	if resp.Kind != protocol.ResponseModifiedDate {
		return 0, unexpected(protocol.RequestGetModifiedDate, resp)
	}
	remote := resp.Timestamp()

	logger.Debug("Sync: local=%s remote=%s", formatTS(local), formatTS(remote))

	if remote.After(local) {
		if err := c.download(ctx, sess, doc, path); err != nil {
			return 0, err
		}
		return Downloaded, nil
	}
	if err := c.upload(ctx, sess, doc); err != nil {
		return 0, err
	}
	return Uploaded, nil
}

func (c *Client) download(ctx context.Context, sess *session, doc *document.Document, path string) error {
	resp, err := sess.roundTrip(ctx, protocol.DownloadDatabase())
	if err != nil {
		return err
	}
	if resp.Kind != protocol.ResponseDatabase {
		return unexpected(protocol.RequestDownloadDatabase, resp)
	}

	downloaded, err := document.FromBinary(resp.Database)
	if err != nil {
		return newError(Parse, err)
	}

	if path != "" {
		// The binary form is saved verbatim so both replicas hold the same
		// bytes.
		data := resp.Database
		if document.FormatForPath(path) != document.FormatBinary {
			if data, err = downloaded.Encode(document.FormatForPath(path)); err != nil {
				return newError(FileUnwritable, err)
			}
		}
		if err := c.files.SaveTo(path, data); err != nil {
			return newError(FileUnwritable, err)
		}
	}

	doc.ReplaceWith(downloaded)
	logger.Info("Downloaded database (%d bytes, modified %s)", len(resp.Database), formatTS(doc.LastModified()))
	return nil
}

func (c *Client) upload(ctx context.Context, sess *session, doc *document.Document) error {
	data, ts, err := doc.Snapshot()
	if err != nil {
		return newError(Parse, err)
	}

	resp, err := sess.roundTrip(ctx, protocol.UpdateDatabase(data, ts))
	if err != nil {
		return err
	}
	switch resp.Kind {
	case protocol.ResponseDatabaseUpdated:
		logger.Info("Uploaded database (%d bytes, modified %s)", len(data), formatTS(ts))
		return nil
	case protocol.ResponseInvalidDatabaseBinary:
		return ErrInvalidDatabaseBinary
	default:
		return unexpected(protocol.RequestUpdateDatabase, resp)
	}
}

// SyncFile loads the document at path (an empty one if missing), syncs it
// and returns it.
func (c *Client) SyncFile(ctx context.Context, path string) (*document.Document, Outcome, error) {
	doc, err := c.files.LoadOrNew(path)
	if err != nil {
		return nil, 0, fromLoadError(err)
	}
	outcome, err := c.Sync(ctx, doc, path)
	return doc, outcome, err
}

// session is one TCP connection carrying sequential exchanges.
type session struct {
	client *Client
	conn   net.Conn
	stop   func() bool
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	d := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		return nil, newError(Connection, err)
	}
	// Closing the socket unblocks any pending read when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	return &session{client: c, conn: conn, stop: stop}, nil
}

func (s *session) close() {
	s.stop()
	_ = s.conn.Close()
}

func (s *session) roundTrip(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	cfg := s.client.config

	frame, err := protocol.SealRequest(req, cfg.Password)
	if err != nil {
		return protocol.Response{}, newError(Connection, err)
	}

	_ = s.conn.SetDeadline(time.Now().Add(cfg.RequestTimeout))
	if err := protocol.WriteFrame(s.conn, frame); err != nil {
		return protocol.Response{}, connectionError(ctx, err)
	}
	reply, err := protocol.ReadFrame(s.conn, cfg.MaxFrameSize)
	if err != nil {
		return protocol.Response{}, connectionError(ctx, err)
	}

	resp, err := protocol.OpenResponse(reply, cfg.Password)
	switch {
	case errors.Is(err, envelope.ErrAuthentication):
		// The server answers a wrong password with a reply we cannot open.
		return protocol.Response{}, newError(InvalidPassword, err)
	case err != nil:
		return protocol.Response{}, newError(InvalidResponse, err)
	}

	if resp.Kind == protocol.ResponseInvalidPassword {
		return protocol.Response{}, ErrInvalidPassword
	}
	return resp, nil
}

func connectionError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return newError(Connection, err)
}

func unexpected(req protocol.RequestKind, resp protocol.Response) error {
	if resp.Kind == protocol.ResponseInvalidDatabaseBinary {
		return ErrInvalidDatabaseBinary
	}
	return newError(InvalidResponse, fmt.Errorf("%s answered with %s", req, resp.Kind))
}

func formatTS(t time.Time) string {
	if t.Equal(document.MinTimestamp) {
		return "never"
	}
	return t.Format(time.RFC3339Nano)
}

// ModifiedDate asks the server for its last-modified timestamp.
func (c *Client) ModifiedDate(ctx context.Context) (time.Time, error) {
	sess, err := c.dial(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer sess.close()

	resp, err := sess.roundTrip(ctx, protocol.GetModifiedDate())
	if err != nil {
		return time.Time{}, err
	}
	if resp.Kind != protocol.ResponseModifiedDate {
		return time.Time{}, unexpected(protocol.RequestGetModifiedDate, resp)
	}
	return resp.Timestamp(), nil
}
