package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/engine"
	"github.com/quickcommerce/deals-engine/pkg/models"
)

// AskRequest is the POST /query body.
type AskRequest struct {
	Question string `json:"question"`
	// ClientID overrides the connection-derived identity. Lets gateways
	// forward per-user identities through a shared connection.
	ClientID string `json:"client_id,omitempty"`
}

// AskResponse is the POST /query response body.
type AskResponse struct {
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	RowCount   int              `json:"row_count"`
	SQL        string           `json:"sql"`
	SQLSource  string           `json:"sql_source"`
	TablesUsed []string         `json:"tables_used"`
	CacheHit   bool             `json:"cache_hit"`
	DurationMS int64            `json:"duration_ms"`
}

// QueryHandler answers natural language questions.
type QueryHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(eng *engine.Engine, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{engine: eng, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", h.Ask)
}

// Ask handles POST /query.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field")
		return
	}
	if req.Question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = clientIdentity(r)
	}

	result, err := h.engine.Answer(r.Context(), req.Question, clientID)
	if err != nil {
		if !engine.IsUserError(err) {
			h.logger.Error("Query failed",
				zap.String("question", req.Question),
				zap.Error(err))
		}
		_ = WriteEngineError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, toAskResponse(result)); err != nil {
		h.logger.Error("Failed to encode query response", zap.Error(err))
	}
}

func toAskResponse(result *models.QueryResult) AskResponse {
	return AskResponse{
		Columns:    result.Rows.Columns,
		Rows:       result.Rows.Rows,
		RowCount:   len(result.Rows.Rows),
		SQL:        result.SQLUsed,
		SQLSource:  result.SQLSource,
		TablesUsed: result.TablesUsed,
		CacheHit:   result.CacheHit,
		DurationMS: result.DurationMS,
	}
}

// clientIdentity derives the rate-limit key for a request: the
// X-Client-ID header when present, otherwise the remote IP.
func clientIdentity(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
