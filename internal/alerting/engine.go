package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gymkit/monitoring-engine/internal/metrics"
)

// updateTimeout bounds the write-through store call for lifecycle updates.
const updateTimeout = 5 * time.Second

// Store is the persistence contract the engine needs for alerts. The durable
// copy and the in-memory cache are updated together; the cache is the
// fast-path read, the store the durable record.
type Store interface {
	SaveAlert(ctx context.Context, alert Alert) error
	UpdateAlert(ctx context.Context, alert Alert) error
}

// Engine evaluates alert rules against live metrics and tracks alert
// lifecycles. All mutable state is guarded by an internal mutex; Evaluate,
// Acknowledge and the lifecycle sweep may run concurrently.
type Engine struct {
	logger *slog.Logger
	store  Store

	mu            sync.RWMutex
	rules         map[string]Rule
	alerts        map[string]*Alert
	lastTriggered map[string]time.Time

	// dedupActive restricts each rule to one open (active or acknowledged)
	// alert at a time. Off by default: the engine deliberately permits
	// concurrent alerts per rule.
	dedupActive bool
}

// NewEngine creates an alert engine with the given ruleset. Rules are
// validated at registration; a malformed rule fails construction rather than
// surfacing during evaluation.
func NewEngine(rules []Rule, store Store, logger *slog.Logger, dedupActive bool) (*Engine, error) {
	byName := make(map[string]Rule, len(rules))
	for _, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("rule name is required")
		}
		if rule.MetricName == "" {
			return nil, fmt.Errorf("rule %q: metric name is required", rule.Name)
		}
		if _, err := ParseOperator(string(rule.Condition)); err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if _, err := ParseSeverity(string(rule.Severity)); err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if _, dup := byName[rule.Name]; dup {
			return nil, fmt.Errorf("duplicate rule name %q", rule.Name)
		}
		byName[rule.Name] = rule
	}

	return &Engine{
		logger:        logger,
		store:         store,
		rules:         byName,
		alerts:        make(map[string]*Alert),
		lastTriggered: make(map[string]time.Time),
		dedupActive:   dedupActive,
	}, nil
}

// Rules returns a snapshot of the registered ruleset.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, 0, len(e.rules))
	for _, rule := range e.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Evaluate checks the metric against every enabled rule watching its name and
// returns the alerts created. A rule with a non-zero duration will not
// re-trigger within that interval of its previous trigger.
func (e *Engine) Evaluate(m metrics.Metric) []Alert {
	now := time.Now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()

	var created []Alert
	for _, rule := range e.rules {
		if !rule.Enabled || rule.MetricName != m.Name {
			continue
		}
		if !rule.Condition.Compare(m.Value, rule.Threshold) {
			continue
		}
		if rule.Duration > 0 {
			if last, ok := e.lastTriggered[rule.Name]; ok && now.Sub(last) < rule.Duration {
				continue
			}
		}
		if e.dedupActive && e.hasOpenAlertLocked(rule.Name) {
			continue
		}

		alert := e.newAlertLocked(rule, m.Value, now)
		e.alerts[alert.ID] = &alert
		e.lastTriggered[rule.Name] = now
		created = append(created, alert)

		e.logger.Warn("Alert triggered",
			"alert_id", alert.ID,
			"rule", rule.Name,
			"metric", m.Name,
			"value", m.Value,
			"threshold", rule.Threshold,
			"severity", rule.Severity,
		)
		if err := e.store.SaveAlert(context.Background(), alert); err != nil {
			e.logger.Error("Failed to persist alert", "alert_id", alert.ID, "error", err)
		}
	}
	return created
}

// newAlertLocked constructs a fresh active alert for the rule.
func (e *Engine) newAlertLocked(rule Rule, value float64, now time.Time) Alert {
	id := fmt.Sprintf("%s_%d", rule.Name, now.Unix())
	if _, taken := e.alerts[id]; taken {
		// Same rule fired twice within one second.
		id = fmt.Sprintf("%s_%d", rule.Name, now.UnixNano())
	}
	return Alert{
		ID:           id,
		RuleName:     rule.Name,
		MetricName:   rule.MetricName,
		CurrentValue: value,
		Threshold:    rule.Threshold,
		Severity:     rule.Severity,
		Status:       StatusActive,
		TriggeredAt:  now,
		Description:  rule.Description,
		Tags:         rule.Tags,
	}
}

// hasOpenAlertLocked reports whether the rule already has an active or
// acknowledged alert in the cache.
func (e *Engine) hasOpenAlertLocked(ruleName string) bool {
	for _, alert := range e.alerts {
		if alert.RuleName == ruleName && alert.Status != StatusResolved {
			return true
		}
	}
	return false
}

// Acknowledge marks the alert as acknowledged by the given user, updating
// cache and store. Returns false for an unknown id or a resolved alert.
// Re-acknowledging an acknowledged alert simply re-stamps it.
func (e *Engine) Acknowledge(alertID, userID string) bool {
	e.mu.Lock()
	alert, ok := e.alerts[alertID]
	if !ok || alert.Status == StatusResolved {
		e.mu.Unlock()
		return false
	}

	now := time.Now().UTC()
	alert.Status = StatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = userID
	snapshot := *alert
	e.mu.Unlock()

	// Persist outside the lock so a slow store cannot stall Evaluate.
	e.persistUpdate(snapshot, "acknowledgement")
	e.logger.Info("Alert acknowledged", "alert_id", alertID, "user", userID)
	return true
}

// ResolveExpired transitions every active or acknowledged alert older than
// grace to resolved and reports how many were resolved. Resolution is
// time-based; it does not re-evaluate the original condition.
func (e *Engine) ResolveExpired(now time.Time, grace time.Duration) int {
	e.mu.Lock()
	var resolved []Alert
	for _, alert := range e.alerts {
		if alert.Status == StatusResolved {
			continue
		}
		if now.Sub(alert.TriggeredAt) <= grace {
			continue
		}

		ts := now
		alert.Status = StatusResolved
		alert.ResolvedAt = &ts
		resolved = append(resolved, *alert)
	}
	e.mu.Unlock()

	for _, alert := range resolved {
		e.persistUpdate(alert, "resolution")
		e.logger.Info("Alert auto-resolved", "alert_id", alert.ID, "rule", alert.RuleName)
	}
	return len(resolved)
}

// persistUpdate writes an alert lifecycle change through to the store with a
// bounded timeout. Must not be called while holding e.mu.
func (e *Engine) persistUpdate(alert Alert, change string) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if err := e.store.UpdateAlert(ctx, alert); err != nil {
		e.logger.Error("Failed to persist alert "+change, "alert_id", alert.ID, "error", err)
	}
}

// Alerts returns cached alerts filtered by status and severity (empty values
// match everything), newest first, capped at limit (0 means no limit).
func (e *Engine) Alerts(status Status, severity Severity, limit int) []Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Alert, 0, len(e.alerts))
	for _, alert := range e.alerts {
		if status != "" && alert.Status != status {
			continue
		}
		if severity != "" && alert.Severity != severity {
			continue
		}
		out = append(out, *alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Counts reports the number of cached alerts per status.
func (e *Engine) Counts() map[Status]int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	counts := make(map[Status]int, 3)
	for _, alert := range e.alerts {
		counts[alert.Status]++
	}
	return counts
}
