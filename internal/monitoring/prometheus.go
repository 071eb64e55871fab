package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// PrometheusMetrics exposes the engine's own operational metrics on a
// dedicated registry.
type PrometheusMetrics struct {
	// Ingestion metrics
	metricsIngestedTotal *prometheus.CounterVec
	bufferSize           prometheus.Gauge
	windowSize           *prometheus.GaugeVec

	// Persistence metrics
	persistQueueDepth    prometheus.Gauge
	persistDroppedTotal  prometheus.Counter
	persistFailuresTotal prometheus.Counter

	// Alert metrics
	alertsTriggeredTotal *prometheus.CounterVec
	alertsActive         *prometheus.GaugeVec
	alertsResolvedTotal  prometheus.Counter

	// Health metrics
	healthStatus        *prometheus.GaugeVec
	healthCheckDuration *prometheus.HistogramVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates the self-metrics collector.
func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{registry: prometheus.NewRegistry()}

	pm.initIngestionMetrics()
	pm.initPersistenceMetrics()
	pm.initAlertMetrics()
	pm.initHealthMetrics()
	pm.initHTTPMetrics()

	pm.registerMetrics()

	return pm
}

func (pm *PrometheusMetrics) initIngestionMetrics() {
	pm.metricsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_metrics_ingested_total",
			Help: "Total number of metrics recorded",
		},
		[]string{"type"},
	)

	pm.bufferSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_buffer_size",
			Help: "Current number of points in the in-memory buffer",
		},
	)

	pm.windowSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_window_size",
			Help: "Current number of points per time window",
		},
		[]string{"window"},
	)
}

func (pm *PrometheusMetrics) initPersistenceMetrics() {
	pm.persistQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_persistence_queue_depth",
			Help: "Current number of pending writes in the persistence queue",
		},
	)

	pm.persistDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_persistence_dropped_total",
			Help: "Total number of writes dropped under backpressure",
		},
	)

	pm.persistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_persistence_failures_total",
			Help: "Total number of writes rejected by the storage gateway",
		},
	)
}

func (pm *PrometheusMetrics) initAlertMetrics() {
	pm.alertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_alerts_triggered_total",
			Help: "Total number of alerts triggered",
		},
		[]string{"severity"},
	)

	pm.alertsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_alerts_active",
			Help: "Current number of unresolved alerts",
		},
		[]string{"severity"},
	)

	pm.alertsResolvedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_alerts_resolved_total",
			Help: "Total number of alerts auto-resolved by the lifecycle sweep",
		},
	)
}

func (pm *PrometheusMetrics) initHealthMetrics() {
	pm.healthStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_health_status",
			Help: "Latest probe status (0 healthy, 1 warning, 2 critical, 3 unknown)",
		},
		[]string{"check"},
	)

	pm.healthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_health_check_duration_seconds",
			Help:    "Probe execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"check"},
	)
}

func (pm *PrometheusMetrics) initHTTPMetrics() {
	pm.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	pm.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(pm.metricsIngestedTotal)
	pm.registry.MustRegister(pm.bufferSize)
	pm.registry.MustRegister(pm.windowSize)

	pm.registry.MustRegister(pm.persistQueueDepth)
	pm.registry.MustRegister(pm.persistDroppedTotal)
	pm.registry.MustRegister(pm.persistFailuresTotal)

	pm.registry.MustRegister(pm.alertsTriggeredTotal)
	pm.registry.MustRegister(pm.alertsActive)
	pm.registry.MustRegister(pm.alertsResolvedTotal)

	pm.registry.MustRegister(pm.healthStatus)
	pm.registry.MustRegister(pm.healthCheckDuration)

	pm.registry.MustRegister(pm.httpRequestsTotal)
	pm.registry.MustRegister(pm.httpRequestDuration)
}

// RecordIngested counts one recorded metric by type.
func (pm *PrometheusMetrics) RecordIngested(metricType string) {
	pm.metricsIngestedTotal.WithLabelValues(metricType).Inc()
}

// RecordBufferSize reports the current buffer occupancy.
func (pm *PrometheusMetrics) RecordBufferSize(size int) {
	pm.bufferSize.Set(float64(size))
}

// RecordWindowSize reports the current occupancy of one time window.
func (pm *PrometheusMetrics) RecordWindowSize(window string, size int) {
	pm.windowSize.WithLabelValues(window).Set(float64(size))
}

// RecordPersistenceQueue reports the writer queue state.
func (pm *PrometheusMetrics) RecordPersistenceQueue(depth int, dropped, failures int64) {
	pm.persistQueueDepth.Set(float64(depth))
	setCounter(pm.persistDroppedTotal, dropped)
	setCounter(pm.persistFailuresTotal, failures)
}

// RecordAlertTriggered counts one triggered alert by severity.
func (pm *PrometheusMetrics) RecordAlertTriggered(severity string) {
	pm.alertsTriggeredTotal.WithLabelValues(severity).Inc()
}

// RecordActiveAlerts reports the number of unresolved alerts per severity.
func (pm *PrometheusMetrics) RecordActiveAlerts(severity string, count int) {
	pm.alertsActive.WithLabelValues(severity).Set(float64(count))
}

// RecordResolvedAlerts advances the resolved-alert counter to the
// current registry total.
func (pm *PrometheusMetrics) RecordResolvedAlerts(total int) {
	setCounter(pm.alertsResolvedTotal, int64(total))
}

// RecordHealthCheck reports one probe outcome.
func (pm *PrometheusMetrics) RecordHealthCheck(check string, statusValue float64, duration time.Duration) {
	pm.healthStatus.WithLabelValues(check).Set(statusValue)
	pm.healthCheckDuration.WithLabelValues(check).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request outcome.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	pm.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	pm.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Registry returns the backing registry.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler returns the /metrics HTTP handler for this registry.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// setCounter advances a monotonic counter to an absolute value sampled
// from an atomic source.
func setCounter(c prometheus.Counter, target int64) {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return
	}
	delta := float64(target) - m.GetCounter().GetValue()
	if delta > 0 {
		c.Add(delta)
	}
}
