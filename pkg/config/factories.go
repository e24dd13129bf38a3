package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/pkg/metrics"
	"github.com/marmos91/dittotasks/pkg/store"
	"github.com/marmos91/dittotasks/pkg/store/badger"
	"github.com/marmos91/dittotasks/pkg/store/fs"
	"github.com/marmos91/dittotasks/pkg/store/memory"
	"github.com/marmos91/dittotasks/pkg/store/s3"
)

// CreateBackend creates the snapshot backend selected by cfg.Type.
//
// The type-specific option map is decoded into the backend's own Config and
// passed to its constructor. Every Load and Save of the returned backend is
// recorded in m (nil disables recording).
//
// Supported types:
//   - "filesystem": pkg/store/fs, a single document file at DatabasePath
//   - "badger": pkg/store/badger, an embedded key-value store
//   - "s3": pkg/store/s3, a single object in a bucket
//   - "memory": pkg/store/memory, nothing survives a restart
func CreateBackend(ctx context.Context, cfg *StorageConfig, m metrics.StoreMetrics) (store.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		backend store.Backend
		err     error
	)
	switch cfg.Type {
	case "filesystem":
		backend, err = createFilesystemBackend(cfg, nil)
	case "badger":
		backend, err = createBadgerBackend(ctx, cfg)
	case "s3":
		backend, err = createS3Backend(ctx, cfg.S3)
	case "memory":
		logger.Warn("Using the memory storage backend: the document is lost on restart")
		backend = memory.New()
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return store.WithMetrics(backend, m), nil
}

// createFilesystemBackend creates the document file backend. fsys may be nil
// to use the OS filesystem.
func createFilesystemBackend(cfg *StorageConfig, fsys afero.Fs) (store.Backend, error) {
	path := cfg.DatabasePath
	if path == "" && cfg.DataDir != "" {
		path = filepath.Join(cfg.DataDir, DefaultDatabaseFile)
	}
	if path == "" {
		return nil, fmt.Errorf("filesystem storage: database_path is required")
	}

	backend, err := fs.New(fs.Config{Path: path, Fs: fsys})
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem backend: %w", err)
	}
	return backend, nil
}

// createBadgerBackend opens a BadgerDB backend. db_path defaults to
// <data_dir>/badger and writes are synced unless sync_writes is false.
func createBadgerBackend(ctx context.Context, cfg *StorageConfig) (store.Backend, error) {
	storeCfg := badger.Config{
		DBPath:     filepath.Join(cfg.DataDir, "badger"),
		SyncWrites: true,
	}
	if err := mapstructure.Decode(cfg.Badger, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger storage config: %w", err)
	}

	if !storeCfg.InMemory && storeCfg.DBPath == "" {
		return nil, fmt.Errorf("badger storage: db_path is required")
	}

	backend, err := badger.New(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger backend: %w", err)
	}
	return backend, nil
}

// createS3Backend creates an S3 backend.
func createS3Backend(ctx context.Context, options map[string]any) (store.Backend, error) {
	storeCfg := s3.Config{KeyPrefix: "dittotasks/"}
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 storage config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 storage: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 storage: region is required")
	}

	backend, err := s3.New(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 backend: %w", err)
	}
	return backend, nil
}
