package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, pm *PrometheusMetrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := pm.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func TestPrometheusMetrics_Ingestion(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.RecordIngested("gauge")
	pm.RecordIngested("gauge")
	pm.RecordIngested("counter")
	pm.RecordBufferSize(42)

	family := gatherFamily(t, pm, "engine_metrics_ingested_total")
	require.NotNil(t, family)
	total := 0.0
	for _, m := range family.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	assert.Equal(t, 3.0, total)

	buffer := gatherFamily(t, pm, "engine_buffer_size")
	require.NotNil(t, buffer)
	assert.Equal(t, 42.0, buffer.GetMetric()[0].GetGauge().GetValue())
}

func TestPrometheusMetrics_PersistenceCountersMonotonic(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.RecordPersistenceQueue(5, 2, 1)
	pm.RecordPersistenceQueue(3, 2, 1)
	pm.RecordPersistenceQueue(0, 7, 4)

	dropped := gatherFamily(t, pm, "engine_persistence_dropped_total")
	require.NotNil(t, dropped)
	assert.Equal(t, 7.0, dropped.GetMetric()[0].GetCounter().GetValue())

	failures := gatherFamily(t, pm, "engine_persistence_failures_total")
	require.NotNil(t, failures)
	assert.Equal(t, 4.0, failures.GetMetric()[0].GetCounter().GetValue())

	depth := gatherFamily(t, pm, "engine_persistence_queue_depth")
	require.NotNil(t, depth)
	assert.Equal(t, 0.0, depth.GetMetric()[0].GetGauge().GetValue())
}

func TestPrometheusMetrics_AlertGauges(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.RecordAlertTriggered("high")
	pm.RecordActiveAlerts("high", 2)
	pm.RecordActiveAlerts("high", 1)
	pm.RecordResolvedAlerts(3)

	active := gatherFamily(t, pm, "engine_alerts_active")
	require.NotNil(t, active)
	assert.Equal(t, 1.0, active.GetMetric()[0].GetGauge().GetValue())

	resolved := gatherFamily(t, pm, "engine_alerts_resolved_total")
	require.NotNil(t, resolved)
	assert.Equal(t, 3.0, resolved.GetMetric()[0].GetCounter().GetValue())
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.RecordIngested("gauge")
	pm.RecordHealthCheck("database", 0, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "engine_metrics_ingested_total")
	assert.Contains(t, body, "engine_health_status")
}
