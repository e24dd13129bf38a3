package metrics

import "time"

// SyncMetrics provides observability for the sync adapters.
//
// Implementations collect request, connection and broadcast statistics. The
// interface is optional: adapters given nil fall back to a no-op
// implementation with zero overhead.
//
// Example usage:
//
//	metrics.InitRegistry()
//	m := prometheus.NewSyncMetrics("tcp")
//	adapter := tcp.New(config, m)
type SyncMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - kind: request kind (e.g., "GetModifiedDate", "UpdateDatabase")
	//   - outcome: response kind sent back (e.g., "DatabaseUpdated", "InvalidPassword")
	//   - duration: time taken to process the request
	RecordRequest(kind string, outcome string, duration time.Duration)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart(kind string)

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd(kind string)

	// RecordBytesTransferred records frame bytes.
	//
	// Parameters:
	//   - direction: "in" or "out"
	//   - bytes: number of bytes on the wire
	RecordBytesTransferred(direction string, bytes int64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the counter of connections
	// closed because the shutdown timeout expired.
	RecordConnectionForceClosed()

	// RecordNotification records a change notification pushed to one
	// subscriber, or dropped because its buffer was full.
	RecordNotification(delivered bool)
}

// NewNoopSyncMetrics returns a SyncMetrics that discards everything.
func NewNoopSyncMetrics() SyncMetrics {
	return noopSyncMetrics{}
}

type noopSyncMetrics struct{}

func (noopSyncMetrics) RecordRequest(string, string, time.Duration) {}
func (noopSyncMetrics) RecordRequestStart(string)                   {}
func (noopSyncMetrics) RecordRequestEnd(string)                     {}
func (noopSyncMetrics) RecordBytesTransferred(string, int64)        {}
func (noopSyncMetrics) SetActiveConnections(int32)                  {}
func (noopSyncMetrics) RecordConnectionAccepted()                   {}
func (noopSyncMetrics) RecordConnectionClosed()                     {}
func (noopSyncMetrics) RecordConnectionForceClosed()                {}
func (noopSyncMetrics) RecordNotification(bool)                     {}
