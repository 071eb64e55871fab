package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for tracing
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	EnableConsole  bool
	SampleRate     float64
}

// Tracer provides distributed tracing around the engine's slow paths.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	logger   *slog.Logger
	config   *TracingConfig
}

// NewTracer creates a new tracer instance
func NewTracer(config *TracingConfig, logger *slog.Logger) (*Tracer, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporters []sdktrace.SpanExporter

	if config.OTLPEndpoint != "" {
		otlpExporter, err := otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpoint(config.OTLPEndpoint),
		)
		if err != nil {
			logger.Warn("Failed to create OTLP exporter", "error", err)
		} else {
			exporters = append(exporters, otlpExporter)
		}
	}

	if config.EnableConsole {
		consoleExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			logger.Warn("Failed to create console exporter", "error", err)
		} else {
			exporters = append(exporters, consoleExporter)
		}
	}

	if len(exporters) == 0 {
		// Fallback to console exporter if no other exporters are available
		consoleExporter, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		exporters = append(exporters, consoleExporter)
	}

	provider := newProvider(res, config.SampleRate, exporters)

	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer(config.ServiceName),
		provider: provider,
		logger:   logger,
		config:   config,
	}, nil
}

// newProvider builds a tracer provider with a batcher per exporter, so
// configuring both OTLP and console delivers spans to both.
func newProvider(res *resource.Resource, sampleRate float64, exporters []sdktrace.SpanExporter) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRate)),
	}
	for _, exporter := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// StartSpan starts a new span
func (t *Tracer) StartSpan(ctx context.Context, name string,
	opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// TraceRecordMetric traces one ingestion pass.
func (t *Tracer) TraceRecordMetric(ctx context.Context, name, metricType string, value float64, alertsTriggered int) {
	_, span := t.StartSpan(ctx, "engine.record_metric")
	defer span.End()

	span.SetAttributes(
		attribute.String("metric.name", name),
		attribute.String("metric.type", metricType),
		attribute.Float64("metric.value", value),
		attribute.Int("alerts.triggered", alertsTriggered),
	)
	span.SetStatus(codes.Ok, "")
}

// TraceHealthRun traces one full probe pass.
func (t *Tracer) TraceHealthRun(ctx context.Context, overallStatus string, checks int, duration time.Duration) {
	_, span := t.StartSpan(ctx, "engine.health_run")
	defer span.End()

	span.SetAttributes(
		attribute.String("health.overall_status", overallStatus),
		attribute.Int("health.checks", checks),
		attribute.Int64("health.duration_ms", duration.Milliseconds()),
	)
	if overallStatus == "critical" {
		span.SetStatus(codes.Error, "system critical")
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// TraceRetentionSweep traces one retention cleanup pass.
func (t *Tracer) TraceRetentionSweep(ctx context.Context, deleted int64, duration time.Duration) {
	_, span := t.StartSpan(ctx, "engine.retention_sweep")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("retention.deleted", deleted),
		attribute.Int64("retention.duration_ms", duration.Milliseconds()),
	)
	span.SetStatus(codes.Ok, "")
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}
