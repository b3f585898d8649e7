// Package engine wires admission control, caching, planning, generation,
// validation and execution into the single Answer operation the handlers
// expose.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/apperrors"
	"github.com/quickcommerce/deals-engine/pkg/cache"
	"github.com/quickcommerce/deals-engine/pkg/database"
	"github.com/quickcommerce/deals-engine/pkg/models"
	"github.com/quickcommerce/deals-engine/pkg/monitoring"
	"github.com/quickcommerce/deals-engine/pkg/planner"
	"github.com/quickcommerce/deals-engine/pkg/ratelimit"
	"github.com/quickcommerce/deals-engine/pkg/sqlgen"
)

// Engine is the orchestrator. All fields are set at construction and never
// change, so Answer is safe for unbounded concurrency.
type Engine struct {
	limiter   *ratelimit.Limiter
	cache     *cache.Cache
	planner   *planner.Planner
	generator *sqlgen.Generator
	executor  database.Executor
	monitor   *monitoring.Monitor
	logger    *zap.Logger
}

// New creates the engine from already-constructed components.
func New(
	limiter *ratelimit.Limiter,
	queryCache *cache.Cache,
	p *planner.Planner,
	generator *sqlgen.Generator,
	executor database.Executor,
	monitor *monitoring.Monitor,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		limiter:   limiter,
		cache:     queryCache,
		planner:   p,
		generator: generator,
		executor:  executor,
		monitor:   monitor,
		logger:    logger.Named("engine"),
	}
}

// Answer runs the full cycle for one question. Admission control runs
// first and rejected requests produce no performance record; every
// admitted request produces exactly one.
func (e *Engine) Answer(ctx context.Context, question, clientID string) (*models.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.PlanningRejected(apperrors.KindNoMatch,
			"question is empty", nil)
	}

	if decision := e.limiter.Admit(clientID); !decision.Allowed {
		e.logger.Warn("Request rejected by rate limiter",
			zap.String("client_id", clientID),
			zap.Duration("retry_after", decision.RetryAfter))
		return nil, apperrors.RateLimited(decision.RetryAfter)
	}

	start := time.Now()
	rec := models.PerformanceRecord{Question: question}
	// Recording is observational and must never change the response, so it
	// happens unconditionally on the way out.
	defer func() {
		rec.Duration = time.Since(start)
		e.monitor.Record(rec)
	}()

	intent, err := e.planner.Plan(question)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.ErrorKind = string(apperrors.KindOf(err))
		return nil, err
	}
	rec.ComplexityScore = intent.ComplexityScore
	rec.TablesUsed = intent.TableNames()

	fingerprint := cache.Fingerprint(question, intent.TableNames())
	if entry := e.cache.Lookup(fingerprint); entry != nil {
		rec.Outcome = models.OutcomeSuccess
		rec.CacheHit = true
		rec.SQL = entry.GeneratedSQL
		rec.TablesUsed = entry.TablesUsed
		rec.RowCount = len(entry.Result.Rows.Rows)

		result := *entry.Result
		result.CacheHit = true
		result.DurationMS = time.Since(start).Milliseconds()
		return &result, nil
	}

	candidate, err := e.generator.Generate(ctx, intent)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.ErrorKind = string(apperrors.KindInvalidSQL)
		return nil, apperrors.New(apperrors.KindInvalidSQL,
			"could not produce a valid statement for this question", err)
	}
	rec.SQL = candidate.Statement
	rec.TablesUsed = candidate.BoundTables

	rows, err := e.executor.Execute(ctx, candidate.Statement)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.ErrorKind = string(apperrors.KindOf(err))
		e.logger.Error("Execution failed",
			zap.String("sql_source", candidate.Source),
			zap.Error(err))
		return nil, err
	}
	rec.RowCount = len(rows.Rows)
	rec.Outcome = monitoring.ClassifyOutcome(false, time.Since(start), e.monitor.SlowThreshold())

	result := &models.QueryResult{
		Rows:       rows,
		SQLUsed:    candidate.Statement,
		SQLSource:  candidate.Source,
		TablesUsed: candidate.BoundTables,
		DurationMS: time.Since(start).Milliseconds(),
	}

	e.cache.Store(fingerprint, result, candidate.Statement, candidate.BoundTables)
	return result, nil
}

// CacheStats returns a snapshot of cache behavior.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// TopQueries returns the most-accessed live cache entries.
func (e *Engine) TopQueries(limit int) []cache.AccessedEntry {
	return e.cache.TopAccessed(limit)
}

// ClearCache empties the result cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	e.logger.Info("Query cache cleared")
}

// Dashboard returns the monitoring snapshot for the given window.
func (e *Engine) Dashboard(window time.Duration) monitoring.Dashboard {
	return e.monitor.Snapshot(window)
}

// SlowQueries returns recorded slow executions, slowest first.
func (e *Engine) SlowQueries(threshold time.Duration, limit int) []models.PerformanceRecord {
	return e.monitor.SlowQueries(threshold, limit)
}

// FailedQueries returns recorded failures, most recent first.
func (e *Engine) FailedQueries(limit int) []models.PerformanceRecord {
	return e.monitor.FailedQueries(limit)
}

// RefreshSchema validates and atomically swaps the table catalog.
func (e *Engine) RefreshSchema(tables []models.TableDescriptor) error {
	if err := e.planner.Index().Swap(tables); err != nil {
		return fmt.Errorf("schema refresh: %w", err)
	}
	// Entries fingerprinted against the old catalog simply stop matching.
	e.cache.Clear()
	return nil
}

// IsUserError reports whether an error should map to a 4xx status.
func IsUserError(err error) bool {
	var ee *apperrors.EngineError
	if !errors.As(err, &ee) {
		return false
	}
	switch ee.Kind {
	case apperrors.KindRateLimited, apperrors.KindNoMatch, apperrors.KindTooComplex:
		return true
	default:
		return false
	}
}
