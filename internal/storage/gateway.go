// Package storage provides the persistence gateway for the monitoring
// engine: durable metrics, alerts and health-check history behind a narrow
// append/query/delete contract, plus the asynchronous writer that keeps
// storage I/O off the ingestion hot path.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
)

// Table identifies one retention-managed table.
type Table string

// Retention-managed tables
const (
	TableMetrics      Table = "metrics"
	TableHealthChecks Table = "health_checks"
	TableAlerts       Table = "alerts"
)

// Gateway errors
var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrAlertNotFound = errors.New("alert not found")
)

// MetricFilter narrows a metric history query. Zero values disable the
// corresponding bound.
type MetricFilter struct {
	Name  string
	Start time.Time
	End   time.Time
	Limit int
}

// AlertFilter narrows an alert history query.
type AlertFilter struct {
	Status   alerting.Status
	Severity alerting.Severity
	Limit    int
}

// Gateway is the persistence contract consumed by the engine. Implementations
// must be safe for concurrent use.
type Gateway interface {
	SaveMetric(ctx context.Context, m metrics.Metric) error
	QueryMetrics(ctx context.Context, filter MetricFilter) ([]metrics.Metric, error)

	SaveAlert(ctx context.Context, alert alerting.Alert) error
	UpdateAlert(ctx context.Context, alert alerting.Alert) error
	QueryAlerts(ctx context.Context, filter AlertFilter) ([]alerting.Alert, error)

	SaveHealthCheck(ctx context.Context, result health.Result) error

	// DeleteOlderThan removes expired rows from one table. For the alerts
	// table only resolved alerts older than the cutoff are removed.
	DeleteOlderThan(ctx context.Context, table Table, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
