package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotasks/pkg/store"
	storetesting "github.com/marmos91/dittotasks/pkg/store/testing"
)

func TestBadgerBackendInMemory(t *testing.T) {
	suite := &storetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) store.Backend {
			s, err := New(context.Background(), Config{InMemory: true})
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

func TestBadgerBackendSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()
	ts := time.Date(2025, 2, 3, 4, 5, 6, 7, time.UTC)

	s, err := New(ctx, Config{DBPath: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, store.Snapshot{Data: []byte("payload"), LastModified: ts}))
	require.NoError(t, s.Close())

	s, err = New(ctx, Config{DBPath: dir})
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(snap.Data))
	assert.Equal(t, ts, snap.LastModified)
}

func TestBadgerRequiresPath(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
