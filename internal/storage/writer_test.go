package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriter_FlushesAllKinds(t *testing.T) {
	gateway := NewMemoryGateway()
	writer := NewWriter(gateway, 16, testLogger())
	writer.Start()

	writer.EnqueueMetric(metrics.Metric{Name: "cpu_usage_percent", Value: 42})
	writer.EnqueueAlert(alerting.Alert{ID: "high_cpu_1", RuleName: "high_cpu", Status: alerting.StatusActive})
	writer.EnqueueHealthCheck(health.Result{CheckName: "database", Status: health.StatusHealthy})

	assert.Eventually(t, func() bool {
		stored, err := gateway.QueryMetrics(context.Background(), MetricFilter{Name: "cpu_usage_percent"})
		if err != nil || len(stored) != 1 {
			return false
		}
		alerts, err := gateway.QueryAlerts(context.Background(), AlertFilter{})
		return err == nil && len(alerts) == 1 && len(gateway.HealthChecks()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	writer.Stop()
	assert.Zero(t, writer.Dropped())
	assert.Zero(t, writer.Failures())
}

func TestWriter_DropsOldestWhenFull(t *testing.T) {
	gateway := NewMemoryGateway()
	writer := NewWriter(gateway, 2, testLogger())
	// Not started: jobs stay queued so backpressure is deterministic.

	for i := 0; i < 5; i++ {
		writer.EnqueueMetric(metrics.Metric{Name: fmt.Sprintf("m%d", i), Value: float64(i)})
	}

	assert.Equal(t, 2, writer.Depth())
	assert.Equal(t, int64(3), writer.Dropped())

	writer.Start()
	writer.Stop()

	stored, err := gateway.QueryMetrics(context.Background(), MetricFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	names := []string{stored[0].Name, stored[1].Name}
	assert.ElementsMatch(t, []string{"m3", "m4"}, names)
}

func TestWriter_StopDrainsQueue(t *testing.T) {
	gateway := NewMemoryGateway()
	writer := NewWriter(gateway, 100, testLogger())

	for i := 0; i < 50; i++ {
		writer.EnqueueMetric(metrics.Metric{Name: "latency_ms", Value: float64(i)})
	}

	writer.Start()
	writer.Stop()

	stored, err := gateway.QueryMetrics(context.Background(), MetricFilter{Name: "latency_ms"})
	require.NoError(t, err)
	assert.Len(t, stored, 50)
	assert.Zero(t, writer.Depth())
}

func TestWriter_CountsFailures(t *testing.T) {
	gateway := NewMemoryGateway()
	gateway.FailWrites(errors.New("disk on fire"))
	writer := NewWriter(gateway, 16, testLogger())

	writer.EnqueueMetric(metrics.Metric{Name: "cpu_usage_percent", Value: 1})
	writer.EnqueueMetric(metrics.Metric{Name: "cpu_usage_percent", Value: 2})

	writer.Start()
	writer.Stop()

	assert.Equal(t, int64(2), writer.Failures())
}

func TestWriter_DefaultQueueSize(t *testing.T) {
	writer := NewWriter(NewMemoryGateway(), 0, testLogger())
	assert.Equal(t, DefaultQueueSize, cap(writer.queue))
}

func TestWriter_StopWithoutStart(t *testing.T) {
	writer := NewWriter(NewMemoryGateway(), 4, testLogger())
	assert.NotPanics(t, func() { writer.Stop() })
}

func TestAsyncAlertStore(t *testing.T) {
	gateway := NewMemoryGateway()
	writer := NewWriter(gateway, 16, testLogger())
	writer.Start()
	defer writer.Stop()

	store := NewAsyncAlertStore(writer, gateway)

	err := store.SaveAlert(context.Background(), alerting.Alert{ID: "a1", Status: alerting.StatusActive})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		alerts, err := gateway.QueryAlerts(context.Background(), AlertFilter{})
		return err == nil && len(alerts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Lifecycle transitions bypass the queue.
	err = store.UpdateAlert(context.Background(), alerting.Alert{ID: "a1", Status: alerting.StatusResolved})
	require.NoError(t, err)

	alerts, err := gateway.QueryAlerts(context.Background(), AlertFilter{Status: alerting.StatusResolved})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	err = store.UpdateAlert(context.Background(), alerting.Alert{ID: "missing", Status: alerting.StatusResolved})
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAsyncHealthStore(t *testing.T) {
	gateway := NewMemoryGateway()
	writer := NewWriter(gateway, 16, testLogger())
	writer.Start()
	defer writer.Stop()

	store := NewAsyncHealthStore(writer)

	err := store.SaveHealthCheck(context.Background(), health.Result{CheckName: "disk", Status: health.StatusWarning})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(gateway.HealthChecks()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
