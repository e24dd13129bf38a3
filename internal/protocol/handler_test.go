package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotasks/internal/ratelimiter"
	"github.com/marmos91/dittotasks/pkg/document"
	"github.com/marmos91/dittotasks/pkg/document/doctest"
	"github.com/marmos91/dittotasks/pkg/shared"
	"github.com/marmos91/dittotasks/pkg/store/memory"
)

var testConn = ConnInfo{ID: "conn-1", Addr: "127.0.0.1:50000"}

func newTestHandler(t *testing.T, cfg HandlerConfig) (*Handler, *shared.ServerData) {
	t.Helper()
	state, err := shared.Load(context.Background(), memory.New(), nil)
	require.NoError(t, err)
	cfg.Password = password
	return NewHandler(state, cfg), state
}

func roundTrip(t *testing.T, h *Handler, req Request, pw string) Response {
	t.Helper()
	frame, err := SealRequest(req, pw)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), testConn, frame)
	require.NoError(t, err)

	resp, err := OpenResponse(out, password)
	require.NoError(t, err)
	return resp
}

func TestHandleGetModifiedDateWhenEmpty(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	resp := roundTrip(t, h, GetModifiedDate(), password)
	assert.Equal(t, ResponseModifiedDate, resp.Kind)
	assert.True(t, document.MinTimestamp.Equal(resp.Timestamp()))
}

func TestHandleUpdateThenDownload(t *testing.T) {
	h, state := newTestHandler(t, HandlerConfig{})

	data, ts, err := doctest.Generate(2, 5).Snapshot()
	require.NoError(t, err)

	resp := roundTrip(t, h, UpdateDatabase(data, ts), password)
	assert.Equal(t, ResponseDatabaseUpdated, resp.Kind)
	assert.True(t, ts.Equal(state.ModifiedDate()))

	resp = roundTrip(t, h, GetModifiedDate(), password)
	assert.True(t, ts.Equal(resp.Timestamp()))

	resp = roundTrip(t, h, DownloadDatabase(), password)
	assert.Equal(t, ResponseDatabase, resp.Kind)
	assert.Equal(t, data, resp.Database)
	assert.True(t, ts.Equal(resp.Timestamp()))
}

func TestHandleInvalidDatabaseBinary(t *testing.T) {
	h, state := newTestHandler(t, HandlerConfig{})

	resp := roundTrip(t, h, UpdateDatabase([]byte("not a database"), time.Now()), password)
	assert.Equal(t, ResponseInvalidDatabaseBinary, resp.Kind)
	assert.False(t, state.Persisted())
}

func TestHandleWrongPassword(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	frame, err := SealRequest(GetModifiedDate(), "wrong")
	require.NoError(t, err)
	out, err := h.Handle(context.Background(), testConn, frame)
	require.NoError(t, err)

	// The client holding the wrong password cannot read the reply either.
	_, err = OpenResponse(out, "wrong")
	assert.Error(t, err)

	resp, err := OpenResponse(out, password)
	require.NoError(t, err)
	assert.Equal(t, ResponseInvalidPassword, resp.Kind)
}

func TestHandleGarbageFrame(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	out, err := h.Handle(context.Background(), testConn, []byte{0xde, 0xad})
	require.NoError(t, err)
	resp, err := OpenResponse(out, password)
	require.NoError(t, err)
	assert.Equal(t, ResponseInvalidPassword, resp.Kind)
}

func TestHandleUnknownRequestKind(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	resp := roundTrip(t, h, Request{Kind: 77}, password)
	assert.Equal(t, ResponseInvalidDatabaseBinary, resp.Kind)
}

func TestHandleRateLimitRespectsCancellation(t *testing.T) {
	limiter := ratelimiter.NewPerClient(nil, 1, 1, time.Minute)
	h, _ := newTestHandler(t, HandlerConfig{Limiter: limiter})

	frame, err := SealRequest(GetModifiedDate(), password)
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), testConn, frame)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.Handle(ctx, testConn, frame)
	assert.Error(t, err)
	assert.Equal(t, 1, limiter.Clients())
}

func TestPushDatabaseChanged(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})
	ts := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	out, err := h.Push(DatabaseChanged(ts))
	require.NoError(t, err)
	resp, err := OpenResponse(out, password)
	require.NoError(t, err)
	assert.Equal(t, ResponseDatabaseChanged, resp.Kind)
	assert.True(t, ts.Equal(resp.Timestamp()))
}
