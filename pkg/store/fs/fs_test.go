package fs

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotasks/pkg/document"
	"github.com/marmos91/dittotasks/pkg/document/doctest"
	"github.com/marmos91/dittotasks/pkg/store"
	storetesting "github.com/marmos91/dittotasks/pkg/store/testing"
)

func TestFilesystemBackend(t *testing.T) {
	for _, path := range []string{"/data/database.bin", "/data/database.json"} {
		t.Run(path, func(t *testing.T) {
			suite := &storetesting.BackendTestSuite{
				NewBackend: func(t *testing.T) store.Backend {
					s, err := New(Config{Path: path, Fs: afero.NewMemMapFs()})
					require.NoError(t, err)
					return s
				},
			}
			suite.Run(t)
		})
	}
}

func TestFilesystemBackendWritesBytesVerbatim(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := New(Config{Path: "/srv/database.bin", Fs: fsys})
	require.NoError(t, err)

	data, ts, err := doctest.Generate(2, 2).Snapshot()
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), store.Snapshot{Data: data, LastModified: ts}))

	onDisk, err := afero.ReadFile(fsys, "/srv/database.bin")
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}

func TestFilesystemBackendReportsCorruption(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/srv/database.bin", []byte("junk"), 0o644))

	s, err := New(Config{Path: "/srv/database.bin", Fs: fsys})
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, document.ErrFileUnparsable)
}

func TestFilesystemBackendRejectsInvalidJSONConversion(t *testing.T) {
	s, err := New(Config{Path: "/srv/database.json", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)

	err = s.Save(context.Background(), store.Snapshot{Data: []byte("nope")})
	assert.Error(t, err)
}

func TestFilesystemRequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
