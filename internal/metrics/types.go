// Package metrics provides in-memory metric ingestion and rolling time-window
// aggregation for the monitoring engine.
package metrics

import "time"

// MetricType classifies a metric for consumers; it does not alter storage semantics.
type MetricType string

// Supported metric types
const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
	TypeTimer     MetricType = "timer"
	TypeRate      MetricType = "rate"
)

// Metric is a single time-stamped observation. Metrics are immutable once
// recorded; many points share a name over time.
type Metric struct {
	Name        string            `json:"name"`
	Value       float64           `json:"value"`
	Type        MetricType        `json:"metric_type"`
	Unit        string            `json:"unit,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// WindowStats holds the aggregation of one metric name over one time window.
type WindowStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Latest float64 `json:"latest"`
}
