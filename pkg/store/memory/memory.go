// Package memory is an in-process snapshot backend for tests and ephemeral
// servers.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/marmos91/dittotasks/pkg/store"
)

// Store keeps the snapshot in memory.
type Store struct {
	mu     sync.RWMutex
	snap   *store.Snapshot
	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.Snapshot{}, store.ErrClosed
	}
	if s.snap == nil {
		return store.Snapshot{}, store.ErrNotFound
	}
	return store.Snapshot{
		Data:         bytes.Clone(s.snap.Data),
		LastModified: s.snap.LastModified,
	}, nil
}

func (s *Store) Save(ctx context.Context, snap store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.snap = &store.Snapshot{Data: bytes.Clone(snap.Data), LastModified: snap.LastModified}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
