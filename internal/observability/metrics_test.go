package observability

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets/:id", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/tickets/:id", "GET", 200, 30*time.Millisecond)
	m.RecordRequest("/api/tickets", "GET", 200, time.Millisecond)
	m.RecordError("/api/tickets/:id", "PATCH", "VALIDATION_ERROR")

	snap := m.Snapshot()
	require.Len(t, snap.Requests, 2)
	assert.True(t, sort.SliceIsSorted(snap.Requests, func(i, j int) bool {
		return snap.Requests[i].Key < snap.Requests[j].Key
	}))

	byID := statFor(t, snap, "/api/tickets/:id|GET|200")
	assert.Equal(t, int64(2), byID.Count)
	assert.InDelta(t, 20.0, byID.AvgMillis, 0.001)
	assert.Equal(t, int64(1), statFor(t, snap, "/api/tickets|GET|200").Count)
	assert.Equal(t, int64(1), snap.Errors["/api/tickets/:id|PATCH|VALIDATION_ERROR"])
}

func statFor(t *testing.T, snap Snapshot, key string) RouteStat {
	t.Helper()
	for _, stat := range snap.Requests {
		if stat.Key == key {
			return stat
		}
	}
	require.Failf(t, "missing route stat", "key %q", key)
	return RouteStat{}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestConsoleLoggerBuilds(t *testing.T) {
	logger, err := NewConsoleLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}
