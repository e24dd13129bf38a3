// Package shared holds the server's single authoritative document.
//
// Connections read it concurrently and replace it exclusively. An accepted
// replacement is persisted through the configured store.Backend, then made
// resident, then announced to other observers, all under the write lock, so
// a reader never sees a snapshot that was not persisted first.
package shared

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/pkg/document"
	"github.com/marmos91/dittotasks/pkg/metrics"
	"github.com/marmos91/dittotasks/pkg/notify"
	"github.com/marmos91/dittotasks/pkg/store"
)

// ErrInvalidDatabase is returned when uploaded or stored bytes do not
// decode as a document, or disagree with the timestamp they came with.
var ErrInvalidDatabase = errors.New("invalid database binary")

// Publisher receives change notifications. *notify.Broadcaster implements
// it.
type Publisher interface {
	Publish(n notify.Notification) error
}

// ServerData is the resident snapshot.
type ServerData struct {
	mu           sync.RWMutex
	data         []byte
	lastModified time.Time
	persisted    bool

	backend   store.Backend
	publisher Publisher
}

// Load reads the snapshot from backend. A backend that holds nothing yields
// an empty document stamped with document.MinTimestamp. A stored snapshot
// that does not decode is an error: the server must not start and later
// overwrite it.
//
// publisher may be nil.
func Load(ctx context.Context, backend store.Backend, publisher Publisher) (*ServerData, error) {
	s := &ServerData{backend: backend, publisher: publisher}

	snap, err := backend.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		empty, err := document.New().ToBinary()
		if err != nil {
			return nil, err
		}
		s.data = empty
		s.lastModified = document.MinTimestamp
		logger.Info("No stored database in %s backend, starting empty", backend.Name())
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load from %s backend: %w", backend.Name(), err)
	}

	doc, err := document.FromBinary(snap.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: stored snapshot: %v", ErrInvalidDatabase, err)
	}
	s.data = snap.Data
	s.lastModified = doc.LastModified()
	s.persisted = true

	logger.Info("Loaded database from %s backend (%d bytes, modified %s)",
		backend.Name(), len(snap.Data), s.lastModified.Format(time.RFC3339Nano))
	return s, nil
}

// ModifiedDate returns the timestamp of the resident snapshot, or
// document.MinTimestamp if nothing was ever persisted.
func (s *ServerData) ModifiedDate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastModified
}

// Download returns the resident bytes and their timestamp. The slice is
// never mutated after being published here; callers must not modify it.
func (s *ServerData) Download() ([]byte, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, s.lastModified
}

// Persisted reports whether the resident snapshot came from, or was written
// to, the backend.
func (s *ServerData) Persisted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persisted
}

// Status summarizes the resident snapshot for the status endpoint.
func (s *ServerData) Status() metrics.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return metrics.Status{
		Backend:      s.backend.Name(),
		LastModified: s.lastModified,
		Bytes:        len(s.data),
		Persisted:    s.persisted,
	}
}

// Update replaces the snapshot with data uploaded by origin.
//
// data must decode as a document whose timestamp equals lastModified;
// otherwise ErrInvalidDatabase is returned and nothing changes. A backend
// failure is returned as is and leaves the previous snapshot resident; no
// notification is sent.
func (s *ServerData) Update(ctx context.Context, origin string, data []byte, lastModified time.Time) error {
	doc, err := document.FromBinary(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabase, err)
	}
	if !doc.LastModified().Equal(lastModified) {
		return fmt.Errorf("%w: declared timestamp %s, document says %s",
			ErrInvalidDatabase, lastModified.Format(time.RFC3339Nano), doc.LastModified().Format(time.RFC3339Nano))
	}

	data = bytes.Clone(data)
	ts := doc.LastModified()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(ctx, store.Snapshot{Data: data, LastModified: ts}); err != nil {
		return fmt.Errorf("persist to %s backend: %w", s.backend.Name(), err)
	}
	s.data = data
	s.lastModified = ts
	s.persisted = true

	if s.publisher != nil {
		if err := s.publisher.Publish(notify.Notification{Origin: origin, LastModified: ts}); err != nil {
			logger.Warn("Publish change notification: %v", err)
		}
	}

	logger.Debug("Database replaced by %s (%d bytes, modified %s)", origin, len(data), ts.Format(time.RFC3339Nano))
	return nil
}
