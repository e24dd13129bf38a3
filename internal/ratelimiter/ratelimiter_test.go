package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowRespectsBurst(t *testing.T) {
	limiter := New(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(), "request %d within burst", i)
	}
	assert.False(t, limiter.Allow())
}

func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 10_000; i++ {
		require.True(t, limiter.Allow())
	}
	require.NoError(t, limiter.Wait(context.Background()))
}

func TestWaitContextCancellation(t *testing.T) {
	limiter := New(1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx))
}

func TestPerClientIsolatesClients(t *testing.T) {
	p := NewPerClient(nil, 1, 1, time.Minute)

	assert.True(t, p.Allow("10.0.0.1"))
	assert.False(t, p.Allow("10.0.0.1"))
	assert.True(t, p.Allow("10.0.0.2"), "other clients keep their own bucket")
	assert.Equal(t, 2, p.Clients())
}

func TestPerClientHonoursGlobal(t *testing.T) {
	p := NewPerClient(New(1, 1), 100, 100, time.Minute)

	assert.True(t, p.Allow("a"))
	assert.False(t, p.Allow("b"))
}

func TestPerClientEvictsIdleBuckets(t *testing.T) {
	p := NewPerClient(nil, 1, 1, time.Minute)

	start := time.Now()
	p.bucket("old", start)
	p.bucket("new", start.Add(2*time.Minute))

	assert.Equal(t, 1, p.Clients())
}
