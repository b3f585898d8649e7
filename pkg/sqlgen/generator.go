package sqlgen

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/apperrors"
	"github.com/quickcommerce/deals-engine/pkg/llm"
	"github.com/quickcommerce/deals-engine/pkg/models"
	"github.com/quickcommerce/deals-engine/pkg/retry"
	"github.com/quickcommerce/deals-engine/pkg/schema"
)

const systemMessage = `You are a SQL generation assistant for a PostgreSQL price comparison database.
Respond with exactly one SELECT statement and nothing else.
Use only the tables and columns provided. Never modify data.
Always include a LIMIT clause.`

var fencedSQLRe = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")

// Generator produces a validated SQL candidate for a planned intent. The
// primary path asks the configured LLM provider; any failure there, and a
// tripped circuit breaker, degrade to the deterministic template fallback
// so generation never fails for a plannable question.
type Generator struct {
	client   llm.SQLGenerator // nil means fallback-only mode
	breaker  *llm.CircuitBreaker
	index    *schema.Index
	retryCfg *retry.Config
	timeout  time.Duration
	maxRows  int
	logger   *zap.Logger
}

// Config holds generation tunables.
type Config struct {
	Timeout time.Duration // per-request budget for the provider call
	MaxRows int           // row ceiling enforced on every statement
}

// New creates a Generator. A nil client is valid and routes every request
// to the template fallback.
func New(client llm.SQLGenerator, index *schema.Index, cfg Config, logger *zap.Logger) *Generator {
	return &Generator{
		client:   client,
		breaker:  llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig()),
		index:    index,
		retryCfg: retry.DefaultConfig(),
		timeout:  cfg.Timeout,
		maxRows:  cfg.MaxRows,
		logger:   logger.Named("sqlgen"),
	}
}

// Generate returns a validated candidate for the intent. The returned
// candidate always has Validated set; an error means a catalog
// inconsistency (a candidate table missing from the index) or that even
// the fallback produced an invalid statement.
func (g *Generator) Generate(ctx context.Context, intent *models.QueryIntent) (*models.SQLCandidate, error) {
	if g.client != nil {
		candidate, err := g.tryGenerated(ctx, intent)
		if err != nil {
			return nil, err
		}
		if candidate != nil {
			return candidate, nil
		}
	}
	return g.fallback(intent)
}

// tryGenerated runs the provider path end to end. Returns (nil, nil) on
// provider or validation failure so the caller degrades to the fallback;
// a non-nil error is fatal to the request.
func (g *Generator) tryGenerated(ctx context.Context, intent *models.QueryIntent) (*models.SQLCandidate, error) {
	if allowed, err := g.breaker.Allow(); !allowed {
		g.logger.Warn("Generation call shed", zap.Error(err))
		return nil, nil
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt, err := buildPrompt(intent, g.index)
	if err != nil {
		// A candidate table missing from the index is a catalog bug, not a
		// provider failure.
		return nil, err
	}

	raw, err := retry.DoWithResult(callCtx, g.retryCfg, func() (string, error) {
		return g.client.GenerateSQL(callCtx, systemMessage, prompt)
	})
	if err != nil {
		g.breaker.RecordFailure()
		g.logger.Warn("Generation failed, degrading to template fallback",
			zap.String("model", g.client.Model()),
			zap.Error(err))
		return nil, nil
	}
	g.breaker.RecordSuccess()

	statement := ExtractSQL(raw)
	validated, bound, err := Validate(statement, intent, g.maxRows)
	if err != nil {
		g.logger.Warn("Generated statement rejected",
			zap.String("statement", statement),
			zap.Error(err))
		return nil, nil
	}

	return &models.SQLCandidate{
		Statement:   validated,
		BoundTables: bound,
		Source:      models.SourceGenerated,
		Validated:   true,
	}, nil
}

func (g *Generator) fallback(intent *models.QueryIntent) (*models.SQLCandidate, error) {
	candidate, err := Fallback(intent, g.index, g.maxRows)
	if err != nil {
		return nil, fmt.Errorf("template fallback: %w", err)
	}

	validated, bound, err := Validate(candidate.Statement, intent, g.maxRows)
	if err != nil {
		// The fallback only emits columns and tables from the catalog, so
		// rejection here means the catalog itself is inconsistent.
		if !errors.Is(err, apperrors.ErrInvalidSQL) {
			return nil, err
		}
		return nil, fmt.Errorf("template fallback produced invalid statement: %w", apperrors.ErrGenerationFailed)
	}

	candidate.Statement = validated
	candidate.BoundTables = bound
	candidate.Validated = true
	return candidate, nil
}

// ExtractSQL pulls the statement out of a provider response: a fenced
// code block if present, otherwise everything from the first SELECT.
func ExtractSQL(raw string) string {
	if m := fencedSQLRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}

	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)
	if i := strings.Index(upper, "SELECT"); i > 0 {
		return strings.TrimSpace(trimmed[i:])
	}
	return trimmed
}

// buildPrompt serializes the candidate tables' descriptors. Only the
// shortlisted tables appear, which keeps the prompt small and constrains
// the model to the vetted set. Errors when a candidate table is missing
// from the index.
func buildPrompt(intent *models.QueryIntent, index *schema.Index) (string, error) {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(intent.RawQuestion)
	b.WriteString("\n\nAvailable tables:\n")

	for _, c := range intent.CandidateTables {
		t, err := index.Get(c.Name)
		if err != nil {
			return "", fmt.Errorf("candidate table %q: %w", c.Name, err)
		}
		b.WriteString(fmt.Sprintf("\nTable %s: %s\n", t.Name, t.Description))
		for _, col := range t.Columns {
			b.WriteString(fmt.Sprintf("  - %s (%s", col.Name, col.DeclaredType))
			if col.IsIndexed {
				b.WriteString(", indexed")
			}
			b.WriteString(")\n")
		}
		for _, rel := range t.Relationships {
			b.WriteString(fmt.Sprintf("  joins %s via %s = %s.%s\n",
				rel.ForeignTable, rel.LocalColumn, rel.ForeignTable, rel.ForeignColumn))
		}
	}

	b.WriteString("\nWrite one PostgreSQL SELECT statement answering the question. Use only these tables.")
	return b.String(), nil
}
