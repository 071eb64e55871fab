// Package monitoring assembles the metrics, alerting, health, and
// retention components into one engine service.
package monitoring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
	"github.com/gymkit/monitoring-engine/internal/retention"
	"github.com/gymkit/monitoring-engine/internal/storage"
	"github.com/gymkit/monitoring-engine/internal/sysstats"
)

// Default loop intervals.
const (
	DefaultCollectInterval = 30 * time.Second
	DefaultHealthInterval  = 5 * time.Minute
)

// Options tunes the service beyond its dependencies. Zero values fall
// back to the defaults.
type Options struct {
	CollectInterval time.Duration
	HealthInterval  time.Duration
}

// PerformanceReport summarizes one time window across all metric names.
type PerformanceReport struct {
	Window    string                         `json:"window"`
	Metrics   map[string]metrics.WindowStats `json:"metrics"`
	Timestamp time.Time                      `json:"timestamp"`
}

// Service is the engine façade. All external operations go through it;
// it also owns the background loops.
type Service struct {
	logger    *slog.Logger
	store     *metrics.Store
	engine    *alerting.Engine
	sweeper   *alerting.Sweeper
	runner    *health.Runner
	collector *sysstats.Collector
	gateway   storage.Gateway
	writer    *storage.Writer
	cleaner   *retention.Cleaner
	prom      *PrometheusMetrics
	tracer    *Tracer

	collectInterval time.Duration
	healthInterval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService wires the engine together. tracer may be nil.
func NewService(
	store *metrics.Store,
	engine *alerting.Engine,
	sweeper *alerting.Sweeper,
	runner *health.Runner,
	collector *sysstats.Collector,
	gateway storage.Gateway,
	writer *storage.Writer,
	cleaner *retention.Cleaner,
	prom *PrometheusMetrics,
	tracer *Tracer,
	opts Options,
	logger *slog.Logger,
) *Service {
	if opts.CollectInterval <= 0 {
		opts.CollectInterval = DefaultCollectInterval
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = DefaultHealthInterval
	}
	if tracer != nil {
		cleaner.SetTracer(tracer)
	}
	return &Service{
		logger:          logger,
		store:           store,
		engine:          engine,
		sweeper:         sweeper,
		runner:          runner,
		collector:       collector,
		gateway:         gateway,
		writer:          writer,
		cleaner:         cleaner,
		prom:            prom,
		tracer:          tracer,
		collectInterval: opts.CollectInterval,
		healthInterval:  opts.HealthInterval,
	}
}

// RecordMetric ingests one observation: buffer and window append, async
// persistence dispatch, then synchronous rule evaluation. It never fails
// the caller; persistence problems are logged by the writer.
func (s *Service) RecordMetric(ctx context.Context, m metrics.Metric) {
	if m.Name == "" {
		s.logger.Warn("Dropping metric without a name")
		return
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	s.store.Add(m)
	s.writer.EnqueueMetric(m)
	triggered := s.engine.Evaluate(m)

	s.prom.RecordIngested(string(m.Type))
	s.prom.RecordBufferSize(s.store.BufferLen())
	s.prom.RecordPersistenceQueue(s.writer.Depth(), s.writer.Dropped(), s.writer.Failures())
	for _, alert := range triggered {
		s.prom.RecordAlertTriggered(string(alert.Severity))
	}
	if s.tracer != nil {
		s.tracer.TraceRecordMetric(ctx, m.Name, string(m.Type), m.Value, len(triggered))
	}
}

// GetMetrics returns persisted points matching the filter, newest first.
// Points still in the persistence queue may be missing.
func (s *Service) GetMetrics(ctx context.Context, filter storage.MetricFilter) ([]metrics.Metric, error) {
	return s.gateway.QueryMetrics(ctx, filter)
}

// GetSystemHealth runs every registered probe immediately and reduces
// the results to one report.
func (s *Service) GetSystemHealth(ctx context.Context) health.Report {
	start := time.Now()
	report := s.runner.RunAll(ctx)

	for name, result := range report.Checks {
		s.prom.RecordHealthCheck(name, healthStatusValue(result.Status),
			time.Duration(result.ResponseTimeMs)*time.Millisecond)
	}
	if s.tracer != nil {
		s.tracer.TraceHealthRun(ctx, string(report.OverallStatus), len(report.Checks), time.Since(start))
	}
	return report
}

// GetSystemStats samples host, process, and pool statistics.
func (s *Service) GetSystemStats(ctx context.Context) (sysstats.Snapshot, error) {
	return s.collector.Collect(ctx)
}

// GetAlerts returns cached alerts, newest first, optionally filtered by
// status and severity.
func (s *Service) GetAlerts(status alerting.Status, severity alerting.Severity, limit int) []alerting.Alert {
	return s.engine.Alerts(status, severity, limit)
}

// AcknowledgeAlert marks an alert acknowledged. Returns false for an
// unknown or already resolved alert.
func (s *Service) AcknowledgeAlert(alertID, userID string) bool {
	return s.engine.Acknowledge(alertID, userID)
}

// GetPerformanceMetrics aggregates one window per metric name. Unknown
// window keys fall back to "1h".
func (s *Service) GetPerformanceMetrics(window string) PerformanceReport {
	window = metrics.NormalizeWindow(window)
	return PerformanceReport{
		Window:    window,
		Metrics:   s.store.AggregateAll(window),
		Timestamp: time.Now().UTC(),
	}
}

// RegisterHealthCheck adds or replaces a named probe.
func (s *Service) RegisterHealthCheck(name string, checker health.Checker) {
	s.runner.Register(name, checker)
}

// Start launches the writer, alert sweep, retention cleaner and the
// service's own collection loop.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.writer.Start()
	s.sweeper.Start()
	s.cleaner.Start()

	s.logger.Info("Starting monitoring service",
		"collect_interval", s.collectInterval,
		"health_interval", s.healthInterval,
	)

	go s.run(ctx)
}

// Stop terminates the loops in reverse order and drains pending writes.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done

	s.cleaner.Stop()
	s.sweeper.Stop()
	s.writer.Stop()
	s.logger.Info("Monitoring service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	collectTicker := time.NewTicker(s.collectInterval)
	defer collectTicker.Stop()
	healthTicker := time.NewTicker(s.healthInterval)
	defer healthTicker.Stop()

	// Health runs on its own goroutine so a slow probe pass cannot
	// delay collection ticks.
	var healthRuns sync.WaitGroup
	defer healthRuns.Wait()

	// Prime the windows so the first performance report is not empty.
	s.collectSelf(ctx)

	for {
		select {
		case <-collectTicker.C:
			s.collectSelf(ctx)
		case <-healthTicker.C:
			healthRuns.Add(1)
			go func() {
				defer healthRuns.Done()
				s.GetSystemHealth(ctx)
			}()
		case <-ctx.Done():
			return
		}
	}
}

// collectSelf samples host resources and feeds them back through the
// regular ingestion path.
func (s *Service) collectSelf(ctx context.Context) {
	snap, err := s.collector.Collect(ctx)
	if err != nil {
		s.logger.Error("Self-collection failed", "error", err)
		return
	}

	now := snap.Timestamp
	samples := []metrics.Metric{
		{Name: "cpu_usage_percent", Value: snap.CPU.UsagePercent, Type: metrics.TypeGauge, Unit: "%", Timestamp: now},
		{Name: "memory_usage_percent", Value: snap.Memory.UsagePercent, Type: metrics.TypeGauge, Unit: "%", Timestamp: now},
		{Name: "disk_usage_percent", Value: snap.Disk.UsagePercent, Type: metrics.TypeGauge, Unit: "%", Timestamp: now},
		{Name: "goroutines", Value: float64(snap.Process.Goroutines), Type: metrics.TypeGauge, Timestamp: now},
	}
	for _, m := range samples {
		s.RecordMetric(ctx, m)
	}

	for window, size := range s.store.WindowSizes() {
		s.prom.RecordWindowSize(window, size)
	}
	s.updateAlertGauges()
}

// updateAlertGauges recomputes the per-severity active-alert gauges.
func (s *Service) updateAlertGauges() {
	severities := []alerting.Severity{
		alerting.SeverityLow, alerting.SeverityMedium, alerting.SeverityHigh, alerting.SeverityCritical,
	}
	for _, severity := range severities {
		active := len(s.engine.Alerts(alerting.StatusActive, severity, 0))
		acked := len(s.engine.Alerts(alerting.StatusAcknowledged, severity, 0))
		s.prom.RecordActiveAlerts(string(severity), active+acked)
	}
	s.prom.RecordResolvedAlerts(s.engine.Counts()[alerting.StatusResolved])
}

func healthStatusValue(status health.Status) float64 {
	switch status {
	case health.StatusHealthy:
		return 0
	case health.StatusWarning:
		return 1
	case health.StatusCritical:
		return 2
	default:
		return 3
	}
}
