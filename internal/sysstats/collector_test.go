package sysstats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Collect(t *testing.T) {
	collector := NewCollector("", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := collector.Collect(ctx)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snap.CPU.UsagePercent, 0.0)
	assert.LessOrEqual(t, snap.CPU.UsagePercent, 100.0)
	assert.Positive(t, snap.CPU.Cores)

	assert.Positive(t, snap.Memory.TotalBytes)
	assert.GreaterOrEqual(t, snap.Memory.UsagePercent, 0.0)
	assert.LessOrEqual(t, snap.Memory.UsagePercent, 100.0)

	assert.Equal(t, DefaultDiskPath, snap.Disk.Path)
	assert.Positive(t, snap.Disk.TotalBytes)

	assert.Positive(t, snap.Process.PID)
	assert.Positive(t, snap.Process.Goroutines)
	assert.Positive(t, snap.Process.GoHeapBytes)

	assert.Zero(t, snap.Database.OpenConnections, "no pool configured")
	assert.WithinDuration(t, time.Now().UTC(), snap.Timestamp, time.Minute)
}

func TestCollector_CustomDiskPath(t *testing.T) {
	collector := NewCollector("/tmp", nil)

	snap, err := collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/tmp", snap.Disk.Path)
}
