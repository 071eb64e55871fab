// Package health provides the health-check runner: a registry of named
// probes, concurrent execution with per-probe isolation, and reduction of the
// individual results into one overall system status.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status is the outcome of one probe or of the whole system.
type Status string

// Probe statuses
const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// DefaultProbeTimeout bounds a single probe run so one hung probe cannot
// stall the whole pass.
const DefaultProbeTimeout = 10 * time.Second

// Result is the output of one probe run.
type Result struct {
	CheckName      string         `json:"check_name"`
	Status         Status         `json:"status"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Details        map[string]any `json:"details,omitempty"`
	Error          string         `json:"error,omitempty"`
	CheckedAt      time.Time      `json:"checked_at"`
}

// Report reduces one full probe pass to a single system status.
type Report struct {
	OverallStatus Status            `json:"overall_status"`
	Checks        map[string]Result `json:"checks"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Checker is the probe contract. Implementations fill Status, Details and
// Error; the runner stamps CheckName, ResponseTimeMs and CheckedAt.
type Checker interface {
	Check(ctx context.Context) Result
}

// CheckFunc adapts a plain function to the Checker interface.
type CheckFunc func(ctx context.Context) Result

// Check runs the probe function.
func (f CheckFunc) Check(ctx context.Context) Result { return f(ctx) }

// ResultStore persists probe results for history and trend queries.
type ResultStore interface {
	SaveHealthCheck(ctx context.Context, result Result) error
}

// Runner executes every registered probe and reduces the results.
type Runner struct {
	mu      sync.RWMutex
	checks  map[string]Checker
	timeout time.Duration
	store   ResultStore
	logger  *slog.Logger
}

// NewRunner creates a health-check runner. A non-positive timeout falls back
// to DefaultProbeTimeout.
func NewRunner(store ResultStore, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Runner{
		checks:  make(map[string]Checker),
		timeout: timeout,
		store:   store,
		logger:  logger,
	}
}

// Register adds a named probe. Registering the same name again replaces the
// previous probe.
func (r *Runner) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = checker
	r.logger.Info("Registered health check", "check", name)
}

// RunAll executes every registered probe concurrently and reduces the results.
// A failing or panicking probe is reported as critical; it never aborts the
// rest of the pass. Each result is persisted best-effort.
func (r *Runner) RunAll(ctx context.Context) Report {
	r.mu.RLock()
	checks := make(map[string]Checker, len(r.checks))
	for name, checker := range r.checks {
		checks[name] = checker
	}
	r.mu.RUnlock()

	report := Report{
		Checks:    make(map[string]Result, len(checks)),
		Timestamp: time.Now().UTC(),
	}

	var wg sync.WaitGroup
	var resultsMu sync.Mutex
	for name, checker := range checks {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			result := r.runOne(ctx, name, checker)

			resultsMu.Lock()
			report.Checks[name] = result
			resultsMu.Unlock()

			if r.store != nil {
				if err := r.store.SaveHealthCheck(ctx, result); err != nil {
					r.logger.Error("Failed to persist health check result", "check", name, "error", err)
				}
			}
		}(name, checker)
	}
	wg.Wait()

	report.OverallStatus = Reduce(report.Checks)
	return report
}

// runOne executes a single probe with a bounded timeout and panic isolation.
// The probe runs in its own goroutine so even a probe that ignores its
// context cannot stall the pass.
func (r *Runner) runOne(ctx context.Context, name string, checker Checker) Result {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Health check panicked", "check", name, "panic", rec)
				resultCh <- Result{
					Status: StatusCritical,
					Error:  fmt.Sprintf("health check panicked: %v", rec),
				}
			}
		}()
		resultCh <- checker.Check(probeCtx)
	}()

	var result Result
	select {
	case result = <-resultCh:
		if probeCtx.Err() != nil && result.Status != StatusCritical {
			result.Status = StatusCritical
			result.Error = fmt.Sprintf("health check timed out after %s", r.timeout)
		}
	case <-probeCtx.Done():
		result = Result{
			Status: StatusCritical,
			Error:  fmt.Sprintf("health check timed out after %s", r.timeout),
		}
	}

	result.CheckName = name
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	result.CheckedAt = time.Now().UTC()
	if result.Status == "" {
		result.Status = StatusUnknown
	}
	return result
}

// Reduce computes the overall status with the precedence
// critical > warning > healthy > unknown.
func Reduce(checks map[string]Result) Status {
	hasWarning := false
	hasHealthy := false
	for _, result := range checks {
		switch result.Status {
		case StatusCritical:
			return StatusCritical
		case StatusWarning:
			hasWarning = true
		case StatusHealthy:
			hasHealthy = true
		}
	}
	if hasWarning {
		return StatusWarning
	}
	if hasHealthy {
		return StatusHealthy
	}
	return StatusUnknown
}
