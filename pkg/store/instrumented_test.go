package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedOp struct {
	operation string
	bytes     int
	err       error
}

type recordingMetrics struct {
	ops []recordedOp
}

func (m *recordingMetrics) RecordOperation(operation string, _ time.Duration, bytes int, err error) {
	m.ops = append(m.ops, recordedOp{operation, bytes, err})
}

// emptyBackend reports a missing snapshot wrapped with backend context.
type emptyBackend struct{}

func (emptyBackend) Load(context.Context) (Snapshot, error) {
	return Snapshot{}, fmt.Errorf("bucket tasks: %w", ErrNotFound)
}
func (emptyBackend) Save(context.Context, Snapshot) error { return nil }
func (emptyBackend) Name() string                         { return "empty" }
func (emptyBackend) Close() error                         { return nil }

func TestWithMetricsTreatsWrappedNotFoundAsSuccess(t *testing.T) {
	m := &recordingMetrics{}
	b := WithMetrics(emptyBackend{}, m)

	_, err := b.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	require.Len(t, m.ops, 1)
	assert.Equal(t, recordedOp{operation: "load"}, m.ops[0])
}

func TestWithMetricsRecordsSave(t *testing.T) {
	m := &recordingMetrics{}
	b := WithMetrics(emptyBackend{}, m)

	require.NoError(t, b.Save(context.Background(), Snapshot{Data: []byte("abc")}))
	require.Len(t, m.ops, 1)
	assert.Equal(t, recordedOp{operation: "save", bytes: 3}, m.ops[0])
}

func TestWithMetricsNil(t *testing.T) {
	b := emptyBackend{}
	assert.Equal(t, Backend(b), WithMetrics(b, nil))
}
