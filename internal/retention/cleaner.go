// Package retention prunes persisted monitoring data past its
// configured age.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/gymkit/monitoring-engine/internal/storage"
)

// Default retention windows and sweep cadence.
const (
	DefaultMetricsRetention = 7 * 24 * time.Hour
	DefaultHealthRetention  = 7 * 24 * time.Hour
	DefaultAlertsRetention  = 30 * 24 * time.Hour
	DefaultInterval         = 24 * time.Hour
)

// Policy holds per-table retention windows.
type Policy struct {
	Metrics      time.Duration
	HealthChecks time.Duration
	Alerts       time.Duration
}

// DefaultPolicy returns the standard windows: a week of raw metrics and
// probe results, a month of resolved alerts.
func DefaultPolicy() Policy {
	return Policy{
		Metrics:      DefaultMetricsRetention,
		HealthChecks: DefaultHealthRetention,
		Alerts:       DefaultAlertsRetention,
	}
}

// SweepTracer records a trace span for each completed sweep.
type SweepTracer interface {
	TraceRetentionSweep(ctx context.Context, deleted int64, duration time.Duration)
}

// Cleaner periodically deletes expired rows through the storage gateway.
type Cleaner struct {
	gateway  storage.Gateway
	logger   *slog.Logger
	policy   Policy
	interval time.Duration
	tracer   SweepTracer
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCleaner creates a cleaner. A non-positive interval falls back to
// DefaultInterval; zero policy fields fall back to the defaults.
func NewCleaner(gateway storage.Gateway, policy Policy, interval time.Duration, logger *slog.Logger) *Cleaner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if policy.Metrics <= 0 {
		policy.Metrics = DefaultMetricsRetention
	}
	if policy.HealthChecks <= 0 {
		policy.HealthChecks = DefaultHealthRetention
	}
	if policy.Alerts <= 0 {
		policy.Alerts = DefaultAlertsRetention
	}
	return &Cleaner{
		gateway:  gateway,
		logger:   logger,
		policy:   policy,
		interval: interval,
	}
}

// SetTracer enables span emission per sweep. Call before Start.
func (c *Cleaner) SetTracer(tracer SweepTracer) {
	c.tracer = tracer
}

// Start launches the daily sweep loop.
func (c *Cleaner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("Starting retention cleaner",
		"interval", c.interval,
		"metrics_retention", c.policy.Metrics,
		"health_retention", c.policy.HealthChecks,
		"alerts_retention", c.policy.Alerts,
	)

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				deleted := c.RunOnce(ctx)
				if c.tracer != nil {
					c.tracer.TraceRetentionSweep(ctx, deleted, time.Since(start))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (c *Cleaner) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.logger.Info("Retention cleaner stopped")
}

// RunOnce sweeps every table. A failing table is logged and skipped so
// one bad sweep never blocks the others.
func (c *Cleaner) RunOnce(ctx context.Context) int64 {
	now := time.Now().UTC()
	targets := []struct {
		table  storage.Table
		cutoff time.Time
	}{
		{storage.TableMetrics, now.Add(-c.policy.Metrics)},
		{storage.TableHealthChecks, now.Add(-c.policy.HealthChecks)},
		{storage.TableAlerts, now.Add(-c.policy.Alerts)},
	}

	var total int64
	for _, target := range targets {
		deleted, err := c.gateway.DeleteOlderThan(ctx, target.table, target.cutoff)
		if err != nil {
			c.logger.Error("Retention sweep failed",
				"table", target.table,
				"error", err,
			)
			continue
		}
		if deleted > 0 {
			c.logger.Info("Retention sweep removed rows",
				"table", target.table,
				"deleted", deleted,
				"cutoff", target.cutoff,
			)
		}
		total += deleted
	}
	return total
}
