// Package server exposes the monitoring engine over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gymkit/monitoring-engine/internal/config"
	"github.com/gymkit/monitoring-engine/internal/monitoring"
)

const readHeaderTimeout = 30 * time.Second

// Server is the HTTP front of the monitoring engine.
type Server struct {
	*http.Server
	config      *config.Config
	logger      *slog.Logger
	rateLimiter *HTTPRateLimiter
}

// New creates the server with routing, rate limiting, and request
// metrics wired in. The prometheus registry is exposed on /metrics.
func New(cfg *config.Config, service *monitoring.Service, prom *monitoring.PrometheusMetrics, logger *slog.Logger) *Server {
	handler := NewHandler(service, logger)
	rateLimiter := NewHTTPRateLimiter(cfg.RateLimit, cfg.RateBurst)

	limited := RateLimitMiddleware(rateLimiter)
	measured := metricsMiddleware(prom)

	mux := http.NewServeMux()
	mux.Handle("/health", measured(http.HandlerFunc(handler.HandleHealth)))
	mux.Handle("/monitoring/metrics/record",
		measured(limited(http.HandlerFunc(handler.HandleRecordMetric))))
	mux.Handle("/monitoring/metrics",
		measured(limited(http.HandlerFunc(handler.HandleMetrics))))
	mux.Handle("/monitoring/alerts/acknowledge",
		measured(limited(http.HandlerFunc(handler.HandleAcknowledgeAlert))))
	mux.Handle("/monitoring/alerts",
		measured(limited(http.HandlerFunc(handler.HandleAlerts))))
	mux.Handle("/monitoring/performance",
		measured(limited(http.HandlerFunc(handler.HandlePerformance))))
	mux.Handle("/monitoring/stats",
		measured(limited(http.HandlerFunc(handler.HandleStats))))

	// Engine self-metrics; internal, not rate limited.
	mux.Handle("/metrics", prom.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return &Server{
		Server:      srv,
		config:      cfg,
		logger:      logger,
		rateLimiter: rateLimiter,
	}
}

// Start begins serving. It blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "port", s.config.Port)
	return s.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(prom *monitoring.PrometheusMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			prom.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start))
		})
	}
}
