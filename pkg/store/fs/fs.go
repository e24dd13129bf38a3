// Package fs stores the snapshot as a single document file.
//
// The file holds the serialized document exactly as a client would write
// it, so client and server files can be compared byte for byte. A path
// ending in ".json" stores the JSON form instead; the binary form is still
// what Load returns.
package fs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/marmos91/dittotasks/pkg/document"
	"github.com/marmos91/dittotasks/pkg/store"
)

// Config configures a filesystem backend.
type Config struct {
	// Path is the document file.
	Path string

	// Fs is the filesystem to use. Nil means the OS filesystem.
	Fs afero.Fs
}

// Store is a filesystem snapshot backend.
type Store struct {
	path   string
	format document.Format
	files  *document.FileStore

	mu     sync.Mutex
	closed bool
}

// New returns a Store writing to cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("fs store: path is required")
	}
	return &Store{
		path:   cfg.Path,
		format: document.FormatForPath(cfg.Path),
		files:  document.NewFileStore(cfg.Fs),
	}, nil
}

func (s *Store) Name() string { return "filesystem" }

// Path returns the document file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.Snapshot{}, store.ErrClosed
	}

	data, err := s.files.ReadBytes(s.path)
	if errors.Is(err, document.ErrFileNotFound) {
		return store.Snapshot{}, store.ErrNotFound
	}
	if err != nil {
		return store.Snapshot{}, err
	}

	doc, err := document.Decode(data, s.format)
	if err != nil {
		return store.Snapshot{}, &document.LoadError{Kind: document.ErrFileUnparsable, Path: s.path, Err: err}
	}
	if s.format == document.FormatJSON {
		if data, err = doc.ToBinary(); err != nil {
			return store.Snapshot{}, err
		}
	}
	return store.Snapshot{Data: data, LastModified: doc.LastModified()}, nil
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

	data := snap.Data
	if s.format == document.FormatJSON {
		doc, err := document.FromBinary(snap.Data)
		if err != nil {
			return fmt.Errorf("convert snapshot to json: %w", err)
		}
		if data, err = doc.ToJSON(); err != nil {
			return err
		}
	}
	return s.files.SaveTo(s.path, data)
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
