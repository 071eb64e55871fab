// Package alerting provides threshold alert rules, stateful alert lifecycles
// and the background auto-resolution sweep for the monitoring engine.
package alerting

import (
	"fmt"
	"time"
)

// Severity classifies how urgent an alert is.
type Severity string

// Supported severities
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a raw severity string.
func ParseSeverity(raw string) (Severity, error) {
	switch Severity(raw) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(raw), nil
	default:
		return "", fmt.Errorf("unknown severity %q", raw)
	}
}

// Status is the lifecycle state of an alert.
//
// Valid transitions:
//
//	(none)       -> active        rule condition triggered
//	active       -> acknowledged  operator acknowledgement
//	active       -> resolved      auto-resolve sweep
//	acknowledged -> resolved      auto-resolve sweep
//
// resolved is terminal; a re-triggering condition creates a fresh alert with a
// new id instead of reviving a resolved one.
type Status string

// Alert lifecycle states
const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Operator is a closed set of comparison operators for rule conditions.
type Operator string

// Supported comparison operators
const (
	OpGreaterThan Operator = ">"
	OpLessThan    Operator = "<"
	OpEqual       Operator = "=="
	OpNotEqual    Operator = "!="
)

// ParseOperator validates a raw condition string. Unknown operators are
// rejected here, at rule-load time, never at evaluation time.
func ParseOperator(raw string) (Operator, error) {
	switch Operator(raw) {
	case OpGreaterThan, OpLessThan, OpEqual, OpNotEqual:
		return Operator(raw), nil
	default:
		return "", fmt.Errorf("unknown condition operator %q", raw)
	}
}

// Compare applies the operator to a metric value and a rule threshold.
func (op Operator) Compare(value, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return value > threshold
	case OpLessThan:
		return value < threshold
	case OpEqual:
		return value == threshold
	case OpNotEqual:
		return value != threshold
	default:
		return false
	}
}

// Rule is a named policy comparing one metric against a threshold. Rules are
// loaded at startup and held for the process lifetime.
type Rule struct {
	Name        string            `json:"name"`
	MetricName  string            `json:"metric_name"`
	Condition   Operator          `json:"condition"`
	Threshold   float64           `json:"threshold"`
	Severity    Severity          `json:"severity"`
	Duration    time.Duration     `json:"duration"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Alert is one instance of a rule having fired. It is cached in memory by id
// and persisted; acknowledge and resolve mutate both copies.
type Alert struct {
	ID             string            `json:"id"`
	RuleName       string            `json:"rule_name"`
	MetricName     string            `json:"metric_name"`
	CurrentValue   float64           `json:"current_value"`
	Threshold      float64           `json:"threshold"`
	Severity       Severity          `json:"severity"`
	Status         Status            `json:"status"`
	TriggeredAt    time.Time         `json:"triggered_at"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string            `json:"acknowledged_by,omitempty"`
	Description    string            `json:"description,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
}
