package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
)

// MemoryGateway is a map-backed Gateway used in tests and for DSN-less
// startup. It honors the same query and retention semantics as the
// PostgreSQL gateway.
type MemoryGateway struct {
	mu           sync.RWMutex
	metricRows   []metrics.Metric
	alertRows    map[string]alerting.Alert
	healthRows   []health.Result
	closed       bool
	failWrites   bool
	writeFailure error
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{alertRows: make(map[string]alerting.Alert)}
}

// FailWrites makes every subsequent write return err. Used in tests to
// exercise best-effort persistence paths.
func (g *MemoryGateway) FailWrites(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWrites = err != nil
	g.writeFailure = err
}

// SaveMetric appends one metric point.
func (g *MemoryGateway) SaveMetric(_ context.Context, m metrics.Metric) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWrites {
		return g.writeFailure
	}
	g.metricRows = append(g.metricRows, m)
	return nil
}

// QueryMetrics returns stored points matching the filter, newest first.
func (g *MemoryGateway) QueryMetrics(_ context.Context, filter MetricFilter) ([]metrics.Metric, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []metrics.Metric
	for _, m := range g.metricRows {
		if filter.Name != "" && m.Name != filter.Name {
			continue
		}
		if !filter.Start.IsZero() && m.Timestamp.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && m.Timestamp.After(filter.End) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveAlert inserts a freshly triggered alert.
func (g *MemoryGateway) SaveAlert(_ context.Context, alert alerting.Alert) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWrites {
		return g.writeFailure
	}
	g.alertRows[alert.ID] = alert
	return nil
}

// UpdateAlert persists a lifecycle transition for an existing alert.
func (g *MemoryGateway) UpdateAlert(_ context.Context, alert alerting.Alert) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWrites {
		return g.writeFailure
	}
	if _, ok := g.alertRows[alert.ID]; !ok {
		return fmt.Errorf("alert %s: %w", alert.ID, ErrAlertNotFound)
	}
	g.alertRows[alert.ID] = alert
	return nil
}

// QueryAlerts returns stored alerts matching the filter, newest first.
func (g *MemoryGateway) QueryAlerts(_ context.Context, filter AlertFilter) ([]alerting.Alert, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []alerting.Alert
	for _, alert := range g.alertRows {
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveHealthCheck appends one probe result.
func (g *MemoryGateway) SaveHealthCheck(_ context.Context, result health.Result) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWrites {
		return g.writeFailure
	}
	g.healthRows = append(g.healthRows, result)
	return nil
}

// HealthChecks returns all stored probe results. Test helper.
func (g *MemoryGateway) HealthChecks() []health.Result {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]health.Result(nil), g.healthRows...)
}

// DeleteOlderThan removes expired rows from one table.
func (g *MemoryGateway) DeleteOlderThan(_ context.Context, table Table, cutoff time.Time) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var deleted int64
	switch table {
	case TableMetrics:
		kept := g.metricRows[:0]
		for _, m := range g.metricRows {
			if m.Timestamp.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, m)
		}
		g.metricRows = kept
	case TableHealthChecks:
		kept := g.healthRows[:0]
		for _, result := range g.healthRows {
			if result.CheckedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, result)
		}
		g.healthRows = kept
	case TableAlerts:
		for id, alert := range g.alertRows {
			if alert.Status == alerting.StatusResolved && alert.ResolvedAt != nil && alert.ResolvedAt.Before(cutoff) {
				delete(g.alertRows, id)
				deleted++
			}
		}
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return deleted, nil
}

// Ping reports whether the gateway is open.
func (g *MemoryGateway) Ping(_ context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return fmt.Errorf("gateway closed")
	}
	return nil
}

// Close marks the gateway closed.
func (g *MemoryGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}
