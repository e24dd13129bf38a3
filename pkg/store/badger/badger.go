// Package badger stores the snapshot in an embedded BadgerDB.
//
// The serialized document and its timestamp are written in one transaction
// under fixed keys, so a crash never leaves one without the other.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittotasks/pkg/store"
)

var (
	keyDocument = []byte("document/current")
	keyModified = []byte("document/modified")
)

// Config configures a BadgerDB backend.
type Config struct {
	// DBPath is the database directory. Ignored when InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps everything in RAM. Intended for tests.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites makes every commit fsync before returning.
	// Default: true (set by the config layer)
	SyncWrites bool `mapstructure:"sync_writes"`
}

// Store is a BadgerDB snapshot backend.
type Store struct {
	db *badger.DB
}

// New opens (or creates) the database.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, errors.New("badger store: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Name() string { return "badger" }

func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}

	var snap store.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyDocument)
		if err != nil {
			return err
		}
		if snap.Data, err = item.ValueCopy(nil); err != nil {
			return err
		}

		item, err = txn.Get(keyModified)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt timestamp: %d bytes", len(val))
			}
			snap.LastModified = time.Unix(0, int64(binary.BigEndian.Uint64(val))).UTC()
			return nil
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return store.Snapshot{}, store.ErrNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return store.Snapshot{}, store.ErrClosed
	case err != nil:
		return store.Snapshot{}, fmt.Errorf("badger load: %w", err)
	}
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(snap.LastModified.UnixNano()))

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyDocument, bytes.Clone(snap.Data)); err != nil {
			return err
		}
		return txn.Set(keyModified, ts[:])
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return store.ErrClosed
	}
	if err != nil {
		return fmt.Errorf("badger save: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}
