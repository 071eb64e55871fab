// Package main provides the entry point for the monitoring engine server.
// It assembles the metric, alerting, health, and retention components and
// exposes them over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/config"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
	"github.com/gymkit/monitoring-engine/internal/monitoring"
	"github.com/gymkit/monitoring-engine/internal/retention"
	"github.com/gymkit/monitoring-engine/internal/server"
	"github.com/gymkit/monitoring-engine/internal/storage"
	"github.com/gymkit/monitoring-engine/internal/sysstats"
	"github.com/gymkit/monitoring-engine/internal/version"
	"github.com/gymkit/monitoring-engine/pkg/logger"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("Starting monitoring engine",
		"version", version.GetVersion(),
		"port", cfg.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	gateway, db, err := openGateway(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = gateway.Close() }()

	rules, err := loadRules(cfg, log)
	if err != nil {
		log.Error("Failed to load alert rules", "error", err)
		os.Exit(1)
	}

	writer := storage.NewWriter(gateway, cfg.WriteQueueSize, log)

	engine, err := alerting.NewEngine(rules, storage.NewAsyncAlertStore(writer, gateway), log, cfg.DedupActive)
	if err != nil {
		log.Error("Failed to build alert engine", "error", err)
		os.Exit(1)
	}

	var tracer *monitoring.Tracer
	if cfg.TracingEnabled {
		tracer, err = monitoring.NewTracer(&monitoring.TracingConfig{
			ServiceName:    "monitoring-engine",
			ServiceVersion: version.GetVersion(),
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.TraceOTLP,
			EnableConsole:  cfg.TraceConsole,
			SampleRate:     cfg.TraceSampleRate,
		}, log)
		if err != nil {
			log.Error("Failed to initialize tracing", "error", err)
			os.Exit(1)
		}
	}

	runner := health.NewRunner(storage.NewAsyncHealthStore(writer), cfg.ProbeTimeout, log)
	prom := monitoring.NewPrometheusMetrics()

	service := monitoring.NewService(
		metrics.NewStore(cfg.BufferCapacity),
		engine,
		alerting.NewSweeper(engine, cfg.SweepInterval, cfg.ResolveGrace, log),
		runner,
		sysstats.NewCollector(cfg.DiskPath, db),
		gateway,
		writer,
		retention.NewCleaner(gateway, retention.Policy{
			Metrics:      time.Duration(cfg.MetricsRetentionDays) * 24 * time.Hour,
			HealthChecks: time.Duration(cfg.HealthRetentionDays) * 24 * time.Hour,
			Alerts:       time.Duration(cfg.AlertsRetentionDays) * 24 * time.Hour,
		}, cfg.RetentionInterval, log),
		prom,
		tracer,
		monitoring.Options{
			CollectInterval: cfg.CollectInterval,
			HealthInterval:  cfg.HealthInterval,
		},
		log,
	)

	registerProbes(service, cfg, db)

	service.Start()

	srv := server.New(cfg, service, prom, log)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	service.Stop()
	if tracer != nil {
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown tracer", "error", err)
		}
	}

	log.Info("Monitoring engine exited")
}

// openGateway selects the storage backend: PostgreSQL when a DSN is
// configured, in-memory otherwise. The returned *sql.DB is nil for the
// in-memory gateway.
func openGateway(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Gateway, *sql.DB, error) {
	if cfg.DatabaseDSN == "" {
		log.Warn("No database configured, using in-memory storage")
		return storage.NewMemoryGateway(), nil, nil
	}

	pg, err := storage.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	log.Info("Connected to PostgreSQL")
	return pg, pg.DB(), nil
}

// loadRules reads the configured rules file, falling back to the
// built-in defaults when none is set.
func loadRules(cfg *config.Config, log *slog.Logger) ([]alerting.Rule, error) {
	if cfg.RulesFile == "" {
		log.Info("No rules file configured, using default alert rules")
		return alerting.DefaultRules(), nil
	}

	rules, err := alerting.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded alert rules", "file", cfg.RulesFile, "rules", len(rules))
	return rules, nil
}

// registerProbes wires the built-in health checks.
func registerProbes(service *monitoring.Service, cfg *config.Config, db *sql.DB) {
	if db != nil {
		service.RegisterHealthCheck("database", health.NewDatabaseProbe(db))
	}
	service.RegisterHealthCheck("disk", health.NewDiskProbe(cfg.DiskPath))
	service.RegisterHealthCheck("memory", health.NewMemoryProbe())
}
