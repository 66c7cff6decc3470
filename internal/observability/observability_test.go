package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTextLoggerFormatsSortedFields(t *testing.T) {
	var buf strings.Builder
	logger := NewTextLogger(&buf).WithClock(func() time.Time {
		return time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	})

	logger.Info("order accepted", F("symbol", "SPY"), F("order_id", "o1"))

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "2025-06-02T09:30:00Z INFO order accepted"), line)
	// Fields render in key order regardless of call order.
	require.Contains(t, line, "order_id=o1 symbol=SPY")
}

func TestGlobalLoggerFallsBackToNoop(t *testing.T) {
	var buf strings.Builder
	SetLogger(NewTextLogger(&buf))
	Log().Warn("something")
	require.Contains(t, buf.String(), "WARN something")

	SetLogger(nil)
	Log().Warn("dropped")
	require.NotContains(t, buf.String(), "dropped")
}

func TestRuntimeMetricsAccumulates(t *testing.T) {
	m := NewRuntimeMetrics()
	m.IncCounter(MetricOrdersSubmitted, 1, map[string]string{"symbol": "SPY"})
	m.IncCounter(MetricOrdersSubmitted, 1, map[string]string{"symbol": "SPY"})
	m.IncCounter(MetricOrdersFilled, 1, map[string]string{"symbol": "SPY"})
	m.IncCounter("unknown.metric", 1, nil)
	m.SetGauge(MetricQueueDepth, 4, nil)
	m.SetGauge("other.gauge", 9, nil)

	snapshot := m.Snapshot()
	require.Equal(t, 2, snapshot.Submitted["SPY"])
	require.Equal(t, 1, snapshot.Filled["SPY"])
	require.Equal(t, 4, snapshot.QueueDepth)

	// Snapshot is detached from the live accumulator.
	snapshot.Submitted["SPY"] = 99
	require.Equal(t, 2, m.Snapshot().Submitted["SPY"])
}
