package store

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dittotasks/pkg/metrics"
)

type instrumented struct {
	Backend
	metrics metrics.StoreMetrics
}

// WithMetrics wraps b so every Load and Save is recorded in m.
// A nil m returns b unchanged.
func WithMetrics(b Backend, m metrics.StoreMetrics) Backend {
	if m == nil {
		return b
	}
	return &instrumented{Backend: b, metrics: m}
}

func (i *instrumented) Load(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	snap, err := i.Backend.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		i.metrics.RecordOperation("load", time.Since(start), 0, nil)
		return snap, err
	}
	i.metrics.RecordOperation("load", time.Since(start), len(snap.Data), err)
	return snap, err
}

func (i *instrumented) Save(ctx context.Context, snap Snapshot) error {
	start := time.Now()
	err := i.Backend.Save(ctx, snap)
	i.metrics.RecordOperation("save", time.Since(start), len(snap.Data), err)
	return err
}
