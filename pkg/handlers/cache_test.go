package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/cache"
	"github.com/quickcommerce/deals-engine/pkg/engine"
)

func warmCache(t *testing.T, eng *engine.Engine, question string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if _, err := eng.Answer(context.Background(), question, "warmup"); err != nil {
			t.Fatalf("warmup answer failed: %v", err)
		}
	}
}

func TestCacheHandler_Stats(t *testing.T) {
	eng, _ := newTestEngine(t, 100)
	warmCache(t, eng, "cheapest onions", 2)
	handler := NewCacheHandler(eng, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	rec := httptest.NewRecorder()
	handler.Stats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var stats cache.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.Size != 1 {
		t.Errorf("expected cache size 1, got %d", stats.Size)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestCacheHandler_TopAccessed(t *testing.T) {
	eng, _ := newTestEngine(t, 100)
	warmCache(t, eng, "cheapest onions", 3)
	handler := NewCacheHandler(eng, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/cache/top-accessed", nil)
	rec := httptest.NewRecorder()
	handler.TopAccessed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var body struct {
		Queries []struct {
			SQL        string   `json:"sql"`
			TablesUsed []string `json:"tables_used"`
			HitCount   int64    `json:"hit_count"`
		} `json:"queries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Queries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(body.Queries))
	}
	if body.Queries[0].HitCount != 2 {
		t.Errorf("expected hit count 2, got %d", body.Queries[0].HitCount)
	}
	if body.Queries[0].SQL == "" {
		t.Error("expected the cached SQL in the entry")
	}
	if len(body.Queries[0].TablesUsed) == 0 {
		t.Error("expected tables_used in the entry")
	}
}

func TestCacheHandler_Clear(t *testing.T) {
	eng, _ := newTestEngine(t, 100)
	warmCache(t, eng, "cheapest onions", 1)
	handler := NewCacheHandler(eng, zap.NewNop())

	req := httptest.NewRequest(http.MethodDelete, "/cache/clear", nil)
	rec := httptest.NewRecorder()
	handler.Clear(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if size := eng.CacheStats().Size; size != 0 {
		t.Errorf("expected an empty cache after clear, got size %d", size)
	}
}

func TestCacheHandler_RegisterRoutes(t *testing.T) {
	eng, _ := newTestEngine(t, 100)
	warmCache(t, eng, "cheapest onions", 1)
	handler := NewCacheHandler(eng, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	for _, route := range []struct {
		method, path string
	}{
		{http.MethodGet, "/cache/stats"},
		{http.MethodGet, "/cache/top-accessed"},
		{http.MethodGet, "/popular-queries"},
		{http.MethodDelete, "/cache/clear"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s %s: expected status %d, got %d", route.method, route.path, http.StatusOK, rec.Code)
		}
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing", "", 10},
		{"valid", "limit=5", 5},
		{"not a number", "limit=abc", 10},
		{"zero", "limit=0", 10},
		{"negative", "limit=-3", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			if got := queryInt(req, "limit", 10); got != tt.want {
				t.Errorf("queryInt = %d, want %d", got, tt.want)
			}
		})
	}
}
