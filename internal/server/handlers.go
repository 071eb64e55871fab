package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
	"github.com/gymkit/monitoring-engine/internal/monitoring"
	"github.com/gymkit/monitoring-engine/internal/storage"
)

// Handler maps HTTP requests onto the monitoring service. The engine
// boundary stays function-level; this layer only does request parsing
// and response encoding.
type Handler struct {
	service *monitoring.Service
	logger  *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(service *monitoring.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type recordMetricRequest struct {
	Name        string            `json:"name"`
	Value       float64           `json:"value"`
	Type        string            `json:"metric_type,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type acknowledgeRequest struct {
	AlertID string `json:"alert_id"`
	UserID  string `json:"user_id"`
}

// HandleHealth runs all probes and reports the reduced system status.
// A critical system answers 503 so load balancers can act on it.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.service.GetSystemHealth(r.Context())

	status := http.StatusOK
	if report.OverallStatus == health.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, report)
}

// HandleRecordMetric ingests one observation.
func (h *Handler) HandleRecordMetric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req recordMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Metric name is required", http.StatusBadRequest)
		return
	}

	h.service.RecordMetric(r.Context(), metrics.Metric{
		Name:        req.Name,
		Value:       req.Value,
		Type:        metrics.MetricType(req.Type),
		Unit:        req.Unit,
		Description: req.Description,
		Tags:        req.Tags,
	})
	w.WriteHeader(http.StatusAccepted)
}

// HandleMetrics returns persisted metric points.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := storage.MetricFilter{
		Name:  r.URL.Query().Get("name"),
		Limit: queryInt(r, "limit"),
	}
	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid start time", http.StatusBadRequest)
			return
		}
		filter.Start = start
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid end time", http.StatusBadRequest)
			return
		}
		filter.End = end
	}

	points, err := h.service.GetMetrics(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to query metrics", "error", err)
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"metrics": points,
		"count":   len(points),
	})
}

// HandleAlerts returns cached alerts, optionally filtered.
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := alerting.Status(r.URL.Query().Get("status"))
	severity := alerting.Severity(r.URL.Query().Get("severity"))
	alerts := h.service.GetAlerts(status, severity, queryInt(r, "limit"))

	h.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// HandleAcknowledgeAlert marks an alert acknowledged.
func (h *Handler) HandleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AlertID == "" {
		http.Error(w, "alert_id is required", http.StatusBadRequest)
		return
	}

	acknowledged := h.service.AcknowledgeAlert(req.AlertID, req.UserID)
	status := http.StatusOK
	if !acknowledged {
		status = http.StatusNotFound
	}
	h.writeJSON(w, status, map[string]bool{"acknowledged": acknowledged})
}

// HandlePerformance aggregates the in-memory windows.
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.service.GetPerformanceMetrics(r.URL.Query().Get("window"))
	h.writeJSON(w, http.StatusOK, report)
}

// HandleStats samples current host and process resource usage.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.service.GetSystemStats(r.Context())
	if err != nil {
		h.logger.Error("Failed to collect system stats", "error", err)
		http.Error(w, "Stats collection failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func queryInt(r *http.Request, key string) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return 0
}
