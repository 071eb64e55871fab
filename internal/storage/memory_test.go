package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/metrics"
)

func TestMemoryGateway_QueryMetricsFilters(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, gateway.SaveMetric(ctx, metrics.Metric{Name: "cpu_usage_percent", Value: 10, Timestamp: now.Add(-2 * time.Hour)}))
	require.NoError(t, gateway.SaveMetric(ctx, metrics.Metric{Name: "cpu_usage_percent", Value: 20, Timestamp: now.Add(-time.Minute)}))
	require.NoError(t, gateway.SaveMetric(ctx, metrics.Metric{Name: "memory_usage_percent", Value: 30, Timestamp: now}))

	byName, err := gateway.QueryMetrics(ctx, MetricFilter{Name: "cpu_usage_percent"})
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, 20.0, byName[0].Value, "newest first")

	recent, err := gateway.QueryMetrics(ctx, MetricFilter{Start: now.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := gateway.QueryMetrics(ctx, MetricFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryGateway_UpdateAlertNotFound(t *testing.T) {
	gateway := NewMemoryGateway()

	err := gateway.UpdateAlert(context.Background(), alerting.Alert{ID: "missing"})

	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestMemoryGateway_AlertRetentionKeepsUnresolved(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()
	old := time.Now().UTC().AddDate(0, 0, -45)

	require.NoError(t, gateway.SaveAlert(ctx, alerting.Alert{
		ID: "stale_active", Status: alerting.StatusActive, TriggeredAt: old,
	}))
	require.NoError(t, gateway.SaveAlert(ctx, alerting.Alert{
		ID: "stale_resolved", Status: alerting.StatusResolved, TriggeredAt: old, ResolvedAt: &old,
	}))

	deleted, err := gateway.DeleteOlderThan(ctx, TableAlerts, time.Now().UTC().AddDate(0, 0, -30))

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := gateway.QueryAlerts(ctx, AlertFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "stale_active", remaining[0].ID, "active alerts survive retention regardless of age")
}

func TestMemoryGateway_DeleteOlderThanMetrics(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, gateway.SaveMetric(ctx, metrics.Metric{Name: "old", Timestamp: now.AddDate(0, 0, -8)}))
	require.NoError(t, gateway.SaveMetric(ctx, metrics.Metric{Name: "fresh", Timestamp: now.Add(-time.Hour)}))

	deleted, err := gateway.DeleteOlderThan(ctx, TableMetrics, now.AddDate(0, 0, -7))

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	kept, err := gateway.QueryMetrics(ctx, MetricFilter{})
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "fresh", kept[0].Name)
}

func TestMemoryGateway_DeleteOlderThanUnknownTable(t *testing.T) {
	gateway := NewMemoryGateway()

	_, err := gateway.DeleteOlderThan(context.Background(), Table("members"), time.Now())

	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestMemoryGateway_PingAfterClose(t *testing.T) {
	gateway := NewMemoryGateway()

	assert.NoError(t, gateway.Ping(context.Background()))
	require.NoError(t, gateway.Close())
	assert.Error(t, gateway.Ping(context.Background()))
}
