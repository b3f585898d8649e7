package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/engine"
)

const (
	defaultDashboardWindow = 24 * time.Hour
	defaultRecordLimit     = 20
)

// MonitoringHandler exposes the performance monitor's views.
type MonitoringHandler struct {
	engine        *engine.Engine
	slowThreshold time.Duration
	logger        *zap.Logger
}

// NewMonitoringHandler creates a new MonitoringHandler.
func NewMonitoringHandler(eng *engine.Engine, slowThreshold time.Duration, logger *zap.Logger) *MonitoringHandler {
	return &MonitoringHandler{engine: eng, slowThreshold: slowThreshold, logger: logger}
}

// RegisterRoutes registers the monitoring handler's routes on the given mux.
func (h *MonitoringHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /monitoring/dashboard", h.Dashboard)
	mux.HandleFunc("GET /monitoring/slow-queries", h.SlowQueries)
	mux.HandleFunc("GET /monitoring/failed-queries", h.FailedQueries)
}

// Dashboard handles GET /monitoring/dashboard. Accepts ?hours=N, default 24.
func (h *MonitoringHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	window := defaultDashboardWindow
	if hours := queryInt(r, "hours", 0); hours > 0 {
		window = time.Duration(hours) * time.Hour
	}

	if err := WriteJSON(w, http.StatusOK, h.engine.Dashboard(window)); err != nil {
		h.logger.Error("Failed to encode dashboard", zap.Error(err))
	}
}

// SlowQueries handles GET /monitoring/slow-queries. Accepts ?limit=N.
func (h *MonitoringHandler) SlowQueries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultRecordLimit)
	records := h.engine.SlowQueries(h.slowThreshold, limit)

	if err := WriteJSON(w, http.StatusOK, map[string]any{"queries": records}); err != nil {
		h.logger.Error("Failed to encode slow queries", zap.Error(err))
	}
}

// FailedQueries handles GET /monitoring/failed-queries. Accepts ?limit=N.
func (h *MonitoringHandler) FailedQueries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultRecordLimit)
	records := h.engine.FailedQueries(limit)

	if err := WriteJSON(w, http.StatusOK, map[string]any{"queries": records}); err != nil {
		h.logger.Error("Failed to encode failed queries", zap.Error(err))
	}
}
