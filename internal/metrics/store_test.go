package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(capacity int) *Store {
	return NewStore(capacity)
}

func TestStore_AggregateEmptyWindow(t *testing.T) {
	store := newTestStore(10)

	stats := store.Aggregate(Window1m, "cpu_usage_percent")

	assert.Equal(t, WindowStats{}, stats)
	assert.Zero(t, stats.Count)
}

func TestStore_AggregateSingleName(t *testing.T) {
	store := newTestStore(10)

	for _, v := range []float64{10, 30, 20} {
		store.Add(Metric{Name: "response_time_ms", Value: v, Type: TypeTimer})
	}
	store.Add(Metric{Name: "other_metric", Value: 999, Type: TypeGauge})

	stats := store.Aggregate(Window5m, "response_time_ms")

	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 10.0, stats.Min)
	assert.Equal(t, 30.0, stats.Max)
	assert.Equal(t, 20.0, stats.Avg)
	assert.Equal(t, 20.0, stats.Latest)
}

func TestStore_AggregateUnknownWindowDefaultsToHour(t *testing.T) {
	store := newTestStore(10)
	store.Add(Metric{Name: "requests_total", Value: 5})

	stats := store.Aggregate("2d", "requests_total")

	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 5.0, stats.Latest)
}

func TestStore_AggregateAllGroupsByName(t *testing.T) {
	store := newTestStore(100)
	store.Add(Metric{Name: "cpu_usage_percent", Value: 40})
	store.Add(Metric{Name: "cpu_usage_percent", Value: 60})
	store.Add(Metric{Name: "memory_usage_percent", Value: 70})

	all := store.AggregateAll(Window15m)

	require.Len(t, all, 2)
	assert.Equal(t, 2, all["cpu_usage_percent"].Count)
	assert.Equal(t, 50.0, all["cpu_usage_percent"].Avg)
	assert.Equal(t, 1, all["memory_usage_percent"].Count)
}

func TestStore_WindowEviction(t *testing.T) {
	store := newTestStore(10000)

	// The 1m window holds 60 points; overfill it and make sure the oldest
	// samples are gone.
	for i := 0; i < 70; i++ {
		store.Add(Metric{Name: "tick", Value: float64(i)})
	}

	stats := store.Aggregate(Window1m, "tick")
	assert.Equal(t, 60, stats.Count)
	assert.Equal(t, 10.0, stats.Min)
	assert.Equal(t, 69.0, stats.Max)
	assert.Equal(t, 69.0, stats.Latest)
}

func TestStore_BufferEviction(t *testing.T) {
	store := newTestStore(5)

	for i := 0; i < 8; i++ {
		store.Add(Metric{Name: fmt.Sprintf("m%d", i), Value: float64(i)})
	}

	assert.Equal(t, 5, store.BufferLen())
	assert.Empty(t, store.Recent("m0", time.Time{}, time.Time{}, 0))
	assert.Len(t, store.Recent("m7", time.Time{}, time.Time{}, 0), 1)
}

func TestStore_RecentFilters(t *testing.T) {
	store := newTestStore(100)
	now := time.Now().UTC()

	store.Add(Metric{Name: "visits", Value: 1, Timestamp: now.Add(-2 * time.Hour)})
	store.Add(Metric{Name: "visits", Value: 2, Timestamp: now.Add(-30 * time.Minute)})
	store.Add(Metric{Name: "visits", Value: 3, Timestamp: now})

	got := store.Recent("visits", now.Add(-time.Hour), time.Time{}, 0)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Value)
	assert.Equal(t, 3.0, got[1].Value)

	limited := store.Recent("visits", time.Time{}, time.Time{}, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, 3.0, limited[0].Value)
}

func TestStore_AddDefaultsTimestamp(t *testing.T) {
	store := newTestStore(10)
	store.Add(Metric{Name: "checkins", Value: 1})

	got := store.Recent("checkins", time.Time{}, time.Time{}, 0)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now().UTC(), got[0].Timestamp, time.Minute)
}

func TestStore_WindowSizes(t *testing.T) {
	store := newTestStore(10)
	store.Add(Metric{Name: "a", Value: 1})
	store.Add(Metric{Name: "b", Value: 2})

	sizes := store.WindowSizes()
	for _, key := range WindowKeys {
		assert.Equal(t, 2, sizes[key], "window %s", key)
	}
}
