// Package testing provides a conformance suite for store.Backend
// implementations.
package testing

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotasks/pkg/document/doctest"
	"github.com/marmos91/dittotasks/pkg/store"
)

// BackendTestSuite tests the store.Backend contract, not implementation
// details, so it runs unchanged against every backend.
//
// Usage:
//
//	func TestMyBackend(t *testing.T) {
//	    suite := &storetesting.BackendTestSuite{
//	        NewBackend: func(t *testing.T) store.Backend {
//	            return mybackend.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type BackendTestSuite struct {
	// NewBackend creates a fresh, empty backend for each test.
	NewBackend func(t *testing.T) store.Backend

	// SkipClose disables the closed-backend checks for backends whose
	// Close is a no-op.
	SkipClose bool
}

// Run executes all tests in the suite.
func (suite *BackendTestSuite) Run(t *testing.T) {
	t.Run("LoadEmpty", suite.testLoadEmpty)
	t.Run("SaveLoad", suite.testSaveLoad)
	t.Run("Overwrite", suite.testOverwrite)
	t.Run("CallerBufferIsolation", suite.testCallerBufferIsolation)
	t.Run("ConcurrentSaves", suite.testConcurrentSaves)
	if !suite.SkipClose {
		t.Run("Closed", suite.testClosed)
	}
}

func testContext() context.Context {
	return context.Background()
}

// snapshot builds a valid serialized document so backends that parse the
// payload (filesystem) accept it.
func snapshot(t *testing.T, projects int) store.Snapshot {
	t.Helper()
	doc := doctest.Generate(projects, 3)
	data, ts, err := doc.Snapshot()
	require.NoError(t, err)
	return store.Snapshot{Data: data, LastModified: ts}
}

func (suite *BackendTestSuite) newBackend(t *testing.T) store.Backend {
	b := suite.NewBackend(t)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func (suite *BackendTestSuite) testLoadEmpty(t *testing.T) {
	b := suite.newBackend(t)

	_, err := b.Load(testContext())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func (suite *BackendTestSuite) testSaveLoad(t *testing.T) {
	b := suite.newBackend(t)
	snap := snapshot(t, 2)

	require.NoError(t, b.Save(testContext(), snap))

	got, err := b.Load(testContext())
	require.NoError(t, err)
	assert.Equal(t, snap.Data, got.Data)
	assert.True(t, snap.LastModified.Equal(got.LastModified), "got %v want %v", got.LastModified, snap.LastModified)
}

func (suite *BackendTestSuite) testOverwrite(t *testing.T) {
	b := suite.newBackend(t)

	require.NoError(t, b.Save(testContext(), snapshot(t, 1)))
	second := snapshot(t, 3)
	require.NoError(t, b.Save(testContext(), second))

	got, err := b.Load(testContext())
	require.NoError(t, err)
	assert.Equal(t, second.Data, got.Data)
}

func (suite *BackendTestSuite) testCallerBufferIsolation(t *testing.T) {
	b := suite.newBackend(t)
	snap := snapshot(t, 1)
	original := bytes.Clone(snap.Data)

	require.NoError(t, b.Save(testContext(), snap))
	snap.Data[len(snap.Data)-1] ^= 0xff

	got, err := b.Load(testContext())
	require.NoError(t, err)
	assert.Equal(t, original, got.Data)
}

func (suite *BackendTestSuite) testConcurrentSaves(t *testing.T) {
	b := suite.newBackend(t)

	snaps := make([]store.Snapshot, 4)
	for i := range snaps {
		snaps[i] = snapshot(t, i+1)
	}

	var wg sync.WaitGroup
	for _, s := range snaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Save(testContext(), s))
		}()
	}
	wg.Wait()

	got, err := b.Load(testContext())
	require.NoError(t, err)
	found := false
	for _, s := range snaps {
		if bytes.Equal(s.Data, got.Data) {
			found = true
		}
	}
	assert.True(t, found, "stored snapshot must be one of the saved ones, intact")
}

func (suite *BackendTestSuite) testClosed(t *testing.T) {
	b := suite.NewBackend(t)
	require.NoError(t, b.Save(testContext(), snapshot(t, 1)))
	require.NoError(t, b.Close())

	_, err := b.Load(testContext())
	assert.True(t, errors.Is(err, store.ErrClosed), "load after close: %v", err)

	err = b.Save(testContext(), store.Snapshot{Data: []byte("x"), LastModified: time.Now()})
	assert.True(t, errors.Is(err, store.ErrClosed), "save after close: %v", err)
}
