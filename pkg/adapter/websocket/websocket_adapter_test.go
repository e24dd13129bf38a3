package websocket

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotasks/internal/protocol"
	"github.com/marmos91/dittotasks/pkg/adapter"
	"github.com/marmos91/dittotasks/pkg/document/doctest"
	"github.com/marmos91/dittotasks/pkg/notify"
	"github.com/marmos91/dittotasks/pkg/shared"
	"github.com/marmos91/dittotasks/pkg/store/memory"
)

const testPassword = "ws-test"

func startAdapter(t *testing.T) *Adapter {
	t.Helper()

	b := notify.New(notify.Config{}, nil)
	t.Cleanup(func() { _ = b.Close() })

	data, err := shared.Load(context.Background(), memory.New(), b)
	require.NoError(t, err)

	a := New(Config{BindAddress: "127.0.0.1", ShutdownTimeout: 2 * time.Second}, nil)
	a.SetShared(adapter.Shared{Data: data, Broadcaster: b, Password: testPassword})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-a.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not start")
	}
	return a
}

func dial(t *testing.T, a *Adapter) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/ws", a.Port()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, req protocol.Request) {
	t.Helper()
	frame, err := protocol.SealRequest(req, testPassword)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
}

func receive(t *testing.T, conn *websocket.Conn) protocol.Response {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, mt)
	resp, err := protocol.OpenResponse(data, testPassword)
	require.NoError(t, err)
	return resp
}

func TestRequestResponse(t *testing.T) {
	a := startAdapter(t)
	conn := dial(t, a)

	send(t, conn, protocol.GetModifiedDate())
	assert.Equal(t, protocol.ResponseModifiedDate, receive(t, conn).Kind)
}

func TestUpdateNotifiesOtherObservers(t *testing.T) {
	a := startAdapter(t)
	writer := dial(t, a)
	observer := dial(t, a)

	require.Eventually(t, func() bool { return a.GetActiveConnections() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return a.shared.Broadcaster.Subscribers() == 2 }, 2*time.Second, 10*time.Millisecond)

	data, ts, err := doctest.Generate(1, 2).Snapshot()
	require.NoError(t, err)

	send(t, writer, protocol.UpdateDatabase(data, ts))
	assert.Equal(t, protocol.ResponseDatabaseUpdated, receive(t, writer).Kind)

	note := receive(t, observer)
	assert.Equal(t, protocol.ResponseDatabaseChanged, note.Kind)
	assert.True(t, ts.Equal(note.Timestamp()))

	// The writer is not told about its own update.
	_ = writer.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = writer.ReadMessage()
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	a := startAdapter(t)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", a.Port()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStopClosesSockets(t *testing.T) {
	a := startAdapter(t)
	conn := dial(t, a)
	require.Eventually(t, func() bool { return a.GetActiveConnections() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, int32(0), a.GetActiveConnections())
}
