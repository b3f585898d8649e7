package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/cache"
	"github.com/quickcommerce/deals-engine/pkg/engine"
	"github.com/quickcommerce/deals-engine/pkg/models"
	"github.com/quickcommerce/deals-engine/pkg/monitoring"
	"github.com/quickcommerce/deals-engine/pkg/planner"
	"github.com/quickcommerce/deals-engine/pkg/ratelimit"
	"github.com/quickcommerce/deals-engine/pkg/schema"
	"github.com/quickcommerce/deals-engine/pkg/sqlgen"
)

// stubExecutor satisfies database.Executor without a live database.
type stubExecutor struct {
	mu    sync.Mutex
	calls int
	rows  *models.RowSet
	err   error
}

func (s *stubExecutor) Execute(ctx context.Context, statement string) (*models.RowSet, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if s.rows != nil {
		return s.rows, nil
	}
	return &models.RowSet{
		Columns: []string{"name", "current_price"},
		Rows:    []map[string]any{{"name": "Onion 1kg", "current_price": 32.0}},
	}, nil
}

// newTestEngine builds a full engine over the default catalog with a stub
// executor and no LLM provider, so every question resolves through the
// template fallback.
func newTestEngine(t *testing.T, rateLimit int) (*engine.Engine, *stubExecutor) {
	t.Helper()
	logger := zap.NewNop()

	idx, err := schema.NewIndex(schema.DefaultCatalog(), logger)
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}

	monitor := monitoring.New(100, 5*time.Second, logger)
	p := planner.New(idx, monitor.TableFeedback, planner.Config{
		MaxCandidateTables: 5,
		ComplexityCeiling:  15,
	}, logger)

	queryCache := cache.New(1000, time.Minute, logger)
	t.Cleanup(queryCache.Close)

	limiter := ratelimit.New(rateLimit, time.Minute, logger)
	t.Cleanup(limiter.Close)

	generator := sqlgen.New(nil, idx, sqlgen.Config{Timeout: time.Second, MaxRows: 1000}, logger)
	executor := &stubExecutor{}

	return engine.New(limiter, queryCache, p, generator, executor, monitor, logger), executor
}
