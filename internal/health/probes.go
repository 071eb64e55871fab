package health

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Usage thresholds shared by the disk and memory probes.
const (
	usageWarningPercent  = 80.0
	usageCriticalPercent = 90.0
)

// DatabaseProbe pings the backing database.
type DatabaseProbe struct {
	db *sql.DB
}

// NewDatabaseProbe creates a database connectivity probe.
func NewDatabaseProbe(db *sql.DB) *DatabaseProbe {
	return &DatabaseProbe{db: db}
}

// Check pings the database and reports pool statistics.
func (p *DatabaseProbe) Check(ctx context.Context) Result {
	if p.db == nil {
		return Result{Status: StatusUnknown, Error: "no database configured"}
	}
	if err := p.db.PingContext(ctx); err != nil {
		return Result{
			Status: StatusCritical,
			Error:  fmt.Sprintf("database ping failed: %v", err),
		}
	}

	stats := p.db.Stats()
	return Result{
		Status: StatusHealthy,
		Details: map[string]any{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
			"wait_count":       stats.WaitCount,
		},
	}
}

// DiskProbe checks usage of one filesystem path.
type DiskProbe struct {
	path string
}

// NewDiskProbe creates a disk usage probe for the given path.
func NewDiskProbe(path string) *DiskProbe {
	if path == "" {
		path = "/"
	}
	return &DiskProbe{path: path}
}

// Check reads disk usage and maps it to a status by threshold.
func (p *DiskProbe) Check(ctx context.Context) Result {
	usage, err := disk.UsageWithContext(ctx, p.path)
	if err != nil {
		return Result{
			Status: StatusCritical,
			Error:  fmt.Sprintf("disk usage read failed: %v", err),
		}
	}
	return Result{
		Status: statusForUsage(usage.UsedPercent),
		Details: map[string]any{
			"path":         p.path,
			"used_percent": usage.UsedPercent,
			"used_bytes":   usage.Used,
			"total_bytes":  usage.Total,
		},
	}
}

// MemoryProbe checks system memory pressure.
type MemoryProbe struct{}

// NewMemoryProbe creates a memory usage probe.
func NewMemoryProbe() *MemoryProbe {
	return &MemoryProbe{}
}

// Check reads virtual memory usage and maps it to a status by threshold.
func (p *MemoryProbe) Check(ctx context.Context) Result {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Result{
			Status: StatusCritical,
			Error:  fmt.Sprintf("memory read failed: %v", err),
		}
	}
	return Result{
		Status: statusForUsage(vm.UsedPercent),
		Details: map[string]any{
			"used_percent": vm.UsedPercent,
			"used_bytes":   vm.Used,
			"total_bytes":  vm.Total,
		},
	}
}

func statusForUsage(usedPercent float64) Status {
	switch {
	case usedPercent >= usageCriticalPercent:
		return StatusCritical
	case usedPercent >= usageWarningPercent:
		return StatusWarning
	default:
		return StatusHealthy
	}
}
