package metrics

import "time"

// StoreMetrics provides observability for snapshot store backends.
type StoreMetrics interface {
	// RecordOperation records a backend call.
	//
	// Parameters:
	//   - operation: "load" or "save"
	//   - duration: time spent in the backend
	//   - bytes: snapshot size, zero when unknown
	//   - err: error returned by the backend, nil on success
	RecordOperation(operation string, duration time.Duration, bytes int, err error)
}

// NewNoopStoreMetrics returns a StoreMetrics that discards everything.
func NewNoopStoreMetrics() StoreMetrics {
	return noopStoreMetrics{}
}

type noopStoreMetrics struct{}

func (noopStoreMetrics) RecordOperation(string, time.Duration, int, error) {}
