package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/engine"
)

const defaultTopQueries = 10

// CacheHandler exposes cache statistics and administration.
type CacheHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(eng *engine.Engine, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{engine: eng, logger: logger}
}

// RegisterRoutes registers the cache handler's routes on the given mux.
func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /cache/stats", h.Stats)
	mux.HandleFunc("GET /cache/top-accessed", h.TopAccessed)
	mux.HandleFunc("DELETE /cache/clear", h.Clear)
	mux.HandleFunc("GET /popular-queries", h.TopAccessed)
}

// Stats handles GET /cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, h.engine.CacheStats()); err != nil {
		h.logger.Error("Failed to encode cache stats", zap.Error(err))
	}
}

// TopAccessed handles GET /cache/top-accessed and GET /popular-queries.
// Accepts ?limit=N, default 10.
func (h *CacheHandler) TopAccessed(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultTopQueries)
	entries := h.engine.TopQueries(limit)

	type entryBody struct {
		SQL        string   `json:"sql"`
		TablesUsed []string `json:"tables_used"`
		HitCount   int64    `json:"hit_count"`
	}
	body := make([]entryBody, len(entries))
	for i, e := range entries {
		body[i] = entryBody{SQL: e.GeneratedSQL, TablesUsed: e.TablesUsed, HitCount: e.HitCount}
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"queries": body}); err != nil {
		h.logger.Error("Failed to encode top accessed", zap.Error(err))
	}
}

// Clear handles DELETE /cache/clear.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearCache()
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"}); err != nil {
		h.logger.Error("Failed to encode cache clear response", zap.Error(err))
	}
}

// queryInt parses a positive integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
