package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	InitRegistry()
	s := NewServer(ServerConfig{BindAddress: "127.0.0.1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not start")
	}
	return s
}

func get(t *testing.T, s *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", s.Port(), path))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerStatusBeforeLoad(t *testing.T) {
	s := startServer(t)
	require.NotZero(t, s.Port())

	code, _ := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = get(t, s, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestServerStatusReportsDocument(t *testing.T) {
	s := startServer(t)
	modified := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	s.SetStatus(func() Status {
		return Status{Backend: "badger", LastModified: modified, Bytes: 512, Persisted: true}
	})

	code, _ := get(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body := get(t, s, "/status")
	require.Equal(t, http.StatusOK, code)

	var got Status
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "badger", got.Backend)
	assert.Equal(t, 512, got.Bytes)
	assert.True(t, got.Persisted)
	assert.True(t, modified.Equal(got.LastModified))
}

func TestServerExposesRegistry(t *testing.T) {
	s := startServer(t)

	code, body := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}
