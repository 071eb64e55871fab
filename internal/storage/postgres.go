package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Registers the pgx driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
)

const defaultQueryLimit = 100

// PostgresGateway persists monitoring data in PostgreSQL via database/sql.
type PostgresGateway struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the pgx driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*PostgresGateway, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresGateway{db: db}, nil
}

// NewPostgresGateway wraps an existing connection pool.
func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// DB exposes the underlying pool for collaborators such as the database
// health probe and the stats collector.
func (g *PostgresGateway) DB() *sql.DB { return g.db }

// EnsureSchema creates the monitoring tables if they do not exist.
func (g *PostgresGateway) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS metrics (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			metric_type TEXT NOT NULL,
			unit TEXT,
			description TEXT,
			tags JSONB,
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_name_recorded_at ON metrics (name, recorded_at)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			rule_name TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			current_value DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			triggered_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ,
			acknowledged_at TIMESTAMPTZ,
			acknowledged_by TEXT,
			description TEXT,
			tags JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS health_checks (
			id BIGSERIAL PRIMARY KEY,
			check_name TEXT NOT NULL,
			status TEXT NOT NULL,
			response_time_ms BIGINT NOT NULL,
			details JSONB,
			error TEXT,
			checked_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// SaveMetric appends one metric point.
func (g *PostgresGateway) SaveMetric(ctx context.Context, m metrics.Metric) error {
	tags, err := marshalJSON(m.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode metric tags: %w", err)
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO metrics (name, value, metric_type, unit, description, tags, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.Name, m.Value, string(m.Type), m.Unit, m.Description, tags, m.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save metric %s: %w", m.Name, err)
	}
	return nil
}

// QueryMetrics returns persisted points matching the filter, newest first.
func (g *PostgresGateway) QueryMetrics(ctx context.Context, filter MetricFilter) ([]metrics.Metric, error) {
	query := `SELECT name, value, metric_type, unit, description, tags, recorded_at FROM metrics WHERE 1=1`
	args := make([]any, 0, 4)
	if filter.Name != "" {
		args = append(args, filter.Name)
		query += fmt.Sprintf(" AND name = $%d", len(args))
	}
	if !filter.Start.IsZero() {
		args = append(args, filter.Start)
		query += fmt.Sprintf(" AND recorded_at >= $%d", len(args))
	}
	if !filter.End.IsZero() {
		args = append(args, filter.End)
		query += fmt.Sprintf(" AND recorded_at <= $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY recorded_at DESC LIMIT $%d", len(args))

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []metrics.Metric
	for rows.Next() {
		var (
			m    metrics.Metric
			typ  string
			unit sql.NullString
			desc sql.NullString
			tags []byte
		)
		if err := rows.Scan(&m.Name, &m.Value, &typ, &unit, &desc, &tags, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		m.Type = metrics.MetricType(typ)
		m.Unit = unit.String
		m.Description = desc.String
		if err := unmarshalJSON(tags, &m.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode metric tags: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metric rows: %w", err)
	}
	return out, nil
}

// SaveAlert inserts a freshly triggered alert.
func (g *PostgresGateway) SaveAlert(ctx context.Context, alert alerting.Alert) error {
	tags, err := marshalJSON(alert.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode alert tags: %w", err)
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO alerts (id, rule_name, metric_name, current_value, threshold,
			severity, status, triggered_at, resolved_at, acknowledged_at,
			acknowledged_by, description, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, alert.ID, alert.RuleName, alert.MetricName, alert.CurrentValue, alert.Threshold,
		string(alert.Severity), string(alert.Status), alert.TriggeredAt, alert.ResolvedAt,
		alert.AcknowledgedAt, alert.AcknowledgedBy, alert.Description, tags)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, err)
	}
	return nil
}

// UpdateAlert persists a lifecycle transition for an existing alert.
func (g *PostgresGateway) UpdateAlert(ctx context.Context, alert alerting.Alert) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE alerts
		SET status = $2, resolved_at = $3, acknowledged_at = $4, acknowledged_by = $5
		WHERE id = $1
	`, alert.ID, string(alert.Status), alert.ResolvedAt, alert.AcknowledgedAt, alert.AcknowledgedBy)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", alert.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for alert %s: %w", alert.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("alert %s: %w", alert.ID, ErrAlertNotFound)
	}
	return nil
}

// QueryAlerts returns persisted alerts matching the filter, newest first.
func (g *PostgresGateway) QueryAlerts(ctx context.Context, filter AlertFilter) ([]alerting.Alert, error) {
	query := `SELECT id, rule_name, metric_name, current_value, threshold, severity,
		status, triggered_at, resolved_at, acknowledged_at, acknowledged_by, description, tags
		FROM alerts WHERE 1=1`
	args := make([]any, 0, 3)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY triggered_at DESC LIMIT $%d", len(args))

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []alerting.Alert
	for rows.Next() {
		var (
			alert    alerting.Alert
			severity string
			status   string
			resolved sql.NullTime
			acked    sql.NullTime
			ackedBy  sql.NullString
			desc     sql.NullString
			tags     []byte
		)
		if err := rows.Scan(&alert.ID, &alert.RuleName, &alert.MetricName, &alert.CurrentValue,
			&alert.Threshold, &severity, &status, &alert.TriggeredAt, &resolved, &acked,
			&ackedBy, &desc, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alert.Severity = alerting.Severity(severity)
		alert.Status = alerting.Status(status)
		if resolved.Valid {
			alert.ResolvedAt = &resolved.Time
		}
		if acked.Valid {
			alert.AcknowledgedAt = &acked.Time
		}
		alert.AcknowledgedBy = ackedBy.String
		alert.Description = desc.String
		if err := unmarshalJSON(tags, &alert.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode alert tags: %w", err)
		}
		out = append(out, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alert rows: %w", err)
	}
	return out, nil
}

// SaveHealthCheck appends one probe result.
func (g *PostgresGateway) SaveHealthCheck(ctx context.Context, result health.Result) error {
	details, err := marshalJSON(result.Details)
	if err != nil {
		return fmt.Errorf("failed to encode health check details: %w", err)
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO health_checks (check_name, status, response_time_ms, details, error, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, result.CheckName, string(result.Status), result.ResponseTimeMs, details, result.Error, result.CheckedAt)
	if err != nil {
		return fmt.Errorf("failed to save health check %s: %w", result.CheckName, err)
	}
	return nil
}

// DeleteOlderThan removes expired rows from one table.
func (g *PostgresGateway) DeleteOlderThan(ctx context.Context, table Table, cutoff time.Time) (int64, error) {
	var query string
	switch table {
	case TableMetrics:
		query = `DELETE FROM metrics WHERE recorded_at < $1`
	case TableHealthChecks:
		query = `DELETE FROM health_checks WHERE checked_at < $1`
	case TableAlerts:
		query = `DELETE FROM alerts WHERE status = 'resolved' AND resolved_at < $1`
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	res, err := g.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result for %s: %w", table, err)
	}
	return deleted, nil
}

// Ping verifies database connectivity.
func (g *PostgresGateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// Close releases the connection pool.
func (g *PostgresGateway) Close() error {
	return g.db.Close()
}

func marshalJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]string:
		if val == nil {
			return nil, nil
		}
	case map[string]any:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func unmarshalJSON[T any](data []byte, dst *T) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
