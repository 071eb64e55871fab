package monitoring

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
	"github.com/gymkit/monitoring-engine/internal/retention"
	"github.com/gymkit/monitoring-engine/internal/storage"
	"github.com/gymkit/monitoring-engine/internal/sysstats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceFixture struct {
	service *Service
	gateway *storage.MemoryGateway
	writer  *storage.Writer
}

func newServiceFixture(t *testing.T, rules []alerting.Rule) *serviceFixture {
	t.Helper()
	logger := testLogger()
	gateway := storage.NewMemoryGateway()
	writer := storage.NewWriter(gateway, 64, logger)

	engine, err := alerting.NewEngine(rules, storage.NewAsyncAlertStore(writer, gateway), logger, false)
	require.NoError(t, err)

	sweeper := alerting.NewSweeper(engine, alerting.DefaultSweepInterval, alerting.DefaultResolveGrace, logger)
	runner := health.NewRunner(storage.NewAsyncHealthStore(writer), health.DefaultProbeTimeout, logger)
	collector := sysstats.NewCollector("", nil)
	cleaner := retention.NewCleaner(gateway, retention.DefaultPolicy(), retention.DefaultInterval, logger)

	service := NewService(
		metrics.NewStore(metrics.DefaultBufferCapacity),
		engine, sweeper, runner, collector, gateway, writer, cleaner,
		NewPrometheusMetrics(), nil, Options{}, logger,
	)
	writer.Start()
	t.Cleanup(writer.Stop)

	return &serviceFixture{service: service, gateway: gateway, writer: writer}
}

func highCPURule() alerting.Rule {
	return alerting.Rule{
		Name:       "high_cpu_usage",
		MetricName: "cpu_usage_percent",
		Condition:  alerting.OpGreaterThan,
		Threshold:  80,
		Severity:   alerting.SeverityHigh,
		Enabled:    true,
	}
}

func TestService_RecordMetricEndToEnd(t *testing.T) {
	f := newServiceFixture(t, []alerting.Rule{highCPURule()})
	ctx := context.Background()

	f.service.RecordMetric(ctx, metrics.Metric{
		Name: "cpu_usage_percent", Value: 85, Type: metrics.TypeGauge, Unit: "%",
	})

	// Windows reflect the point immediately.
	report := f.service.GetPerformanceMetrics("1m")
	require.Contains(t, report.Metrics, "cpu_usage_percent")
	assert.Equal(t, 85.0, report.Metrics["cpu_usage_percent"].Latest)
	assert.Equal(t, 1, report.Metrics["cpu_usage_percent"].Count)

	// Exactly one active alert from the matching rule.
	active := f.service.GetAlerts(alerting.StatusActive, "", 0)
	require.Len(t, active, 1)
	assert.Equal(t, 85.0, active[0].CurrentValue)
	assert.Equal(t, 80.0, active[0].Threshold)
	assert.Equal(t, alerting.SeverityHigh, active[0].Severity)

	// Persistence is eventually consistent.
	assert.Eventually(t, func() bool {
		stored, err := f.service.GetMetrics(context.Background(), storage.MetricFilter{Name: "cpu_usage_percent"})
		return err == nil && len(stored) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_RecordMetricAtThresholdNoAlert(t *testing.T) {
	f := newServiceFixture(t, []alerting.Rule{highCPURule()})

	f.service.RecordMetric(context.Background(), metrics.Metric{
		Name: "cpu_usage_percent", Value: 80, Type: metrics.TypeGauge,
	})

	assert.Empty(t, f.service.GetAlerts(alerting.StatusActive, "", 0))
}

func TestService_RecordMetricDropsUnnamed(t *testing.T) {
	f := newServiceFixture(t, nil)

	f.service.RecordMetric(context.Background(), metrics.Metric{Value: 1})

	report := f.service.GetPerformanceMetrics("1h")
	assert.Empty(t, report.Metrics)
}

func TestService_RecordMetricDefaultsTimestamp(t *testing.T) {
	f := newServiceFixture(t, nil)

	f.service.RecordMetric(context.Background(), metrics.Metric{Name: "latency_ms", Value: 12})

	assert.Eventually(t, func() bool {
		stored, err := f.gateway.QueryMetrics(context.Background(), storage.MetricFilter{Name: "latency_ms"})
		return err == nil && len(stored) == 1 && !stored[0].Timestamp.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_GetPerformanceMetricsUnknownWindow(t *testing.T) {
	f := newServiceFixture(t, nil)

	report := f.service.GetPerformanceMetrics("6h")

	assert.Equal(t, "1h", report.Window)
	assert.WithinDuration(t, time.Now().UTC(), report.Timestamp, time.Minute)
}

func TestService_AcknowledgeAlert(t *testing.T) {
	f := newServiceFixture(t, []alerting.Rule{highCPURule()})
	f.service.RecordMetric(context.Background(), metrics.Metric{Name: "cpu_usage_percent", Value: 99})

	active := f.service.GetAlerts(alerting.StatusActive, "", 0)
	require.Len(t, active, 1)

	assert.True(t, f.service.AcknowledgeAlert(active[0].ID, "ops"))
	assert.False(t, f.service.AcknowledgeAlert("no_such_alert", "ops"))

	acked := f.service.GetAlerts(alerting.StatusAcknowledged, "", 0)
	require.Len(t, acked, 1)
	assert.Equal(t, "ops", acked[0].AcknowledgedBy)
}

func TestService_GetSystemHealthPrecedence(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.service.RegisterHealthCheck("a", health.CheckFunc(func(context.Context) health.Result {
		return health.Result{Status: health.StatusHealthy}
	}))
	f.service.RegisterHealthCheck("b", health.CheckFunc(func(context.Context) health.Result {
		return health.Result{Status: health.StatusCritical}
	}))
	f.service.RegisterHealthCheck("c", health.CheckFunc(func(context.Context) health.Result {
		return health.Result{Status: health.StatusWarning}
	}))

	report := f.service.GetSystemHealth(context.Background())

	assert.Equal(t, health.StatusCritical, report.OverallStatus)
	assert.Len(t, report.Checks, 3)
}

func TestService_GetSystemStats(t *testing.T) {
	f := newServiceFixture(t, nil)

	snap, err := f.service.GetSystemStats(context.Background())

	require.NoError(t, err)
	assert.Positive(t, snap.Memory.TotalBytes)
}

func TestService_StartStop(t *testing.T) {
	logger := testLogger()
	gateway := storage.NewMemoryGateway()
	writer := storage.NewWriter(gateway, 64, logger)
	engine, err := alerting.NewEngine(nil, storage.NewAsyncAlertStore(writer, gateway), logger, false)
	require.NoError(t, err)

	service := NewService(
		metrics.NewStore(metrics.DefaultBufferCapacity),
		engine,
		alerting.NewSweeper(engine, time.Hour, time.Hour, logger),
		health.NewRunner(nil, health.DefaultProbeTimeout, logger),
		sysstats.NewCollector("", nil),
		gateway, writer,
		retention.NewCleaner(gateway, retention.DefaultPolicy(), time.Hour, logger),
		NewPrometheusMetrics(), nil,
		Options{CollectInterval: 50 * time.Millisecond, HealthInterval: time.Hour},
		logger,
	)

	service.Start()

	// The self-collection loop feeds host gauges through the hot path.
	assert.Eventually(t, func() bool {
		report := service.GetPerformanceMetrics("1m")
		_, ok := report.Metrics["cpu_usage_percent"]
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	assert.NotPanics(t, service.Stop)

	stored, err := gateway.QueryMetrics(context.Background(), storage.MetricFilter{Name: "cpu_usage_percent"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored, "writer drained on stop")
}

func TestService_SlowProbeDoesNotDelayCollection(t *testing.T) {
	logger := testLogger()
	gateway := storage.NewMemoryGateway()
	writer := storage.NewWriter(gateway, 64, logger)
	engine, err := alerting.NewEngine(nil, storage.NewAsyncAlertStore(writer, gateway), logger, false)
	require.NoError(t, err)

	service := NewService(
		metrics.NewStore(metrics.DefaultBufferCapacity),
		engine,
		alerting.NewSweeper(engine, time.Hour, time.Hour, logger),
		health.NewRunner(nil, health.DefaultProbeTimeout, logger),
		sysstats.NewCollector("", nil),
		gateway, writer,
		retention.NewCleaner(gateway, retention.DefaultPolicy(), time.Hour, logger),
		NewPrometheusMetrics(), nil,
		Options{CollectInterval: 20 * time.Millisecond, HealthInterval: 20 * time.Millisecond},
		logger,
	)

	release := make(chan struct{})
	service.RegisterHealthCheck("stalled", health.CheckFunc(func(ctx context.Context) health.Result {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return health.Result{Status: health.StatusHealthy}
	}))

	service.Start()
	defer service.Stop()
	defer close(release)

	// Collection ticks must keep landing while the probe is stalled.
	var first metrics.WindowStats
	require.Eventually(t, func() bool {
		first = service.GetPerformanceMetrics("1m").Metrics["cpu_usage_percent"]
		return first.Count > 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		current := service.GetPerformanceMetrics("1m").Metrics["cpu_usage_percent"]
		return current.Count > first.Count
	}, 5*time.Second, 10*time.Millisecond,
		"collection stalled while a probe was blocked")
}
