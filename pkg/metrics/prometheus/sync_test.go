package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotasks/pkg/metrics"
)

func TestSyncMetricsRecordsPerAdapter(t *testing.T) {
	metrics.InitRegistry()

	tcp := NewSyncMetrics("tcp")
	ws := NewSyncMetrics("websocket")

	impl, ok := tcp.(*syncMetrics)
	require.True(t, ok, "registry enabled, expected Prometheus implementation")

	tcp.RecordRequest("GetModifiedDate", "ModifiedDate", 3*time.Millisecond)
	tcp.RecordRequest("GetModifiedDate", "ModifiedDate", time.Millisecond)
	ws.RecordRequest("GetModifiedDate", "ModifiedDate", time.Millisecond)
	tcp.RecordNotification(false)
	tcp.SetActiveConnections(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(impl.requestsTotal.WithLabelValues("GetModifiedDate", "ModifiedDate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.notifications.WithLabelValues("dropped")))
	assert.Equal(t, 4.0, testutil.ToFloat64(impl.activeConnections))
}
