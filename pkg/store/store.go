// Package store defines where the server keeps its document snapshot.
//
// The server holds exactly one document. A Backend persists the latest
// accepted snapshot (the serialized bytes plus their last-modified time) and
// hands it back at startup. Implementations live in subpackages: fs, memory,
// badger and s3.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Load when nothing was ever saved.
	ErrNotFound = errors.New("no snapshot stored")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("store closed")
)

// Snapshot is a serialized document and the time it was last modified.
type Snapshot struct {
	Data         []byte
	LastModified time.Time
}

// Backend persists the server's snapshot.
//
// Save must be durable when it returns: the server publishes change
// notifications right after, and observers may read the snapshot back
// immediately. Implementations must be safe for concurrent use.
type Backend interface {
	// Load returns the last saved snapshot, or ErrNotFound.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Name identifies the backend type in logs and metrics.
	Name() string

	// Close releases resources. Further calls fail with ErrClosed.
	Close() error
}
