// Package sysstats samples host and process resource usage for the
// monitoring service.
package sysstats

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// DefaultDiskPath is the mount point sampled when none is configured.
const DefaultDiskPath = "/"

// CPUStats describes host CPU usage and load.
type CPUStats struct {
	UsagePercent float64 `json:"usage_percent"`
	Cores        int     `json:"cores"`
	Load1        float64 `json:"load_1,omitempty"`
	Load5        float64 `json:"load_5,omitempty"`
	Load15       float64 `json:"load_15,omitempty"`
}

// MemoryStats describes host memory usage.
type MemoryStats struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
}

// DiskStats describes usage of the sampled mount point.
type DiskStats struct {
	Path         string  `json:"path"`
	TotalBytes   uint64  `json:"total_bytes"`
	UsedBytes    uint64  `json:"used_bytes"`
	FreeBytes    uint64  `json:"free_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// NetworkStats describes cumulative traffic across all interfaces.
type NetworkStats struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
}

// ProcessStats describes this process.
type ProcessStats struct {
	PID            int32   `json:"pid"`
	RSSBytes       uint64  `json:"rss_bytes"`
	CPUPercent     float64 `json:"cpu_percent"`
	Goroutines     int     `json:"goroutines"`
	GoHeapBytes    uint64  `json:"go_heap_bytes"`
	OpenGoMaxProcs int     `json:"gomaxprocs"`
}

// DatabaseStats describes the shared connection pool. Zero when the
// service runs without a database.
type DatabaseStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// Snapshot is one full resource sample.
type Snapshot struct {
	CPU           CPUStats      `json:"cpu"`
	Memory        MemoryStats   `json:"memory"`
	Disk          DiskStats     `json:"disk"`
	Network       NetworkStats  `json:"network"`
	Process       ProcessStats  `json:"process"`
	Database      DatabaseStats `json:"database"`
	UptimeSeconds uint64        `json:"uptime_seconds"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Collector samples host, process, and connection-pool statistics.
type Collector struct {
	diskPath string
	db       *sql.DB
	proc     *process.Process
}

// NewCollector creates a collector. db may be nil; diskPath falls back to
// DefaultDiskPath when empty.
func NewCollector(diskPath string, db *sql.DB) *Collector {
	if diskPath == "" {
		diskPath = DefaultDiskPath
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{diskPath: diskPath, db: db, proc: proc}
}

// Collect takes one snapshot. Individual probe failures degrade the
// affected section to zero values instead of failing the whole sample;
// only a CPU sampling failure is reported as an error because every
// consumer depends on it.
func (c *Collector) Collect(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Timestamp: time.Now().UTC()}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return snap, fmt.Errorf("failed to sample cpu: %w", err)
	}
	if len(percents) > 0 {
		snap.CPU.UsagePercent = percents[0]
	}
	snap.CPU.Cores = runtime.NumCPU()
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.CPU.Load1 = avg.Load1
		snap.CPU.Load5 = avg.Load5
		snap.CPU.Load15 = avg.Load15
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.Memory = MemoryStats{
			TotalBytes:     vm.Total,
			UsedBytes:      vm.Used,
			AvailableBytes: vm.Available,
			UsagePercent:   vm.UsedPercent,
		}
	}

	if usage, err := disk.UsageWithContext(ctx, c.diskPath); err == nil {
		snap.Disk = DiskStats{
			Path:         c.diskPath,
			TotalBytes:   usage.Total,
			UsedBytes:    usage.Used,
			FreeBytes:    usage.Free,
			UsagePercent: usage.UsedPercent,
		}
	}

	if counters, err := net.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		snap.Network = NetworkStats{
			BytesSent:   counters[0].BytesSent,
			BytesRecv:   counters[0].BytesRecv,
			PacketsSent: counters[0].PacketsSent,
			PacketsRecv: counters[0].PacketsRecv,
		}
	}

	snap.Process = c.collectProcess(ctx)

	if c.db != nil {
		stats := c.db.Stats()
		snap.Database = DatabaseStats{
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
			WaitCount:       stats.WaitCount,
		}
	}

	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		snap.UptimeSeconds = uptime
	}

	return snap, nil
}

func (c *Collector) collectProcess(ctx context.Context) ProcessStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := ProcessStats{
		PID:            int32(os.Getpid()),
		Goroutines:     runtime.NumGoroutine(),
		GoHeapBytes:    memStats.HeapAlloc,
		OpenGoMaxProcs: runtime.GOMAXPROCS(0),
	}
	if c.proc == nil {
		return stats
	}
	if info, err := c.proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
		stats.RSSBytes = info.RSS
	}
	if pct, err := c.proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = pct
	}
	return stats
}
