// Package planner turns a natural-language question into a QueryIntent:
// a ranked candidate table set with join and complexity estimates. Plans
// whose complexity exceeds the configured ceiling are rejected here, before
// any SQL is generated or executed.
package planner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/apperrors"
	"github.com/quickcommerce/deals-engine/pkg/models"
	"github.com/quickcommerce/deals-engine/pkg/schema"
)

// Complexity weights. The formula is
//
//	score = tableWeight*tables + joinWeight*joins + filterWeight*unindexedFilters
//
// joinWeight is positive and joins enter linearly, so the score is
// monotonically non-decreasing in join count for a fixed table count.
const (
	tableWeight  = 1.5
	joinWeight   = 2.0
	filterWeight = 1.0

	// crossJoinCount is charged per candidate table with no relationship
	// path into the already-connected set.
	crossJoinCount = 2
)

// Config holds planning bounds.
type Config struct {
	MaxCandidateTables int
	ComplexityCeiling  float64
}

// Planner selects tables and scores plan complexity for questions.
type Planner struct {
	index    *schema.Index
	feedback schema.FeedbackFunc
	cfg      Config
	logger   *zap.Logger
}

// New creates a planner over the given schema index. feedback may be nil;
// pass the monitor's TableFeedback to bias selection toward tables with a
// fast, successful history.
func New(index *schema.Index, feedback schema.FeedbackFunc, cfg Config, logger *zap.Logger) *Planner {
	return &Planner{
		index:    index,
		feedback: feedback,
		cfg:      cfg,
		logger:   logger.Named("planner"),
	}
}

// Index returns the schema index the planner selects tables from.
func (p *Planner) Index() *schema.Index {
	return p.index
}

// Plan produces a QueryIntent for the question, or an EngineError of kind
// no_matching_tables / query_too_complex. Reads shared state only from the
// immutable schema index and the monitor's feedback scores.
func (p *Planner) Plan(question string) (*models.QueryIntent, error) {
	tokens := Tokenize(question)

	scored := p.index.LookupByKeywords(tokens, p.feedback)
	if len(scored) == 0 {
		return nil, apperrors.PlanningRejected(
			apperrors.KindNoMatch,
			"no tables match the question",
			[]string{
				"Mention a product, price, platform, or category explicitly",
				"Try: 'Which app has cheapest onions right now?'",
			},
		)
	}

	if len(scored) > p.cfg.MaxCandidateTables {
		scored = scored[:p.cfg.MaxCandidateTables]
	}

	candidates := make([]models.CandidateTable, len(scored))
	tables := make([]*models.TableDescriptor, len(scored))
	for i, ts := range scored {
		candidates[i] = models.CandidateTable{Name: ts.Table.Name, Score: ts.Score}
		tables[i] = ts.Table
	}

	joins := estimateJoinCount(tables)
	unindexed := countUnindexedFilters(tokens, tables)
	complexity := tableWeight*float64(len(tables)) + joinWeight*float64(joins) + filterWeight*float64(unindexed)

	p.logger.Debug("Planned query",
		zap.String("question", question),
		zap.Strings("tables", tableNames(tables)),
		zap.Int("joins", joins),
		zap.Int("unindexed_filters", unindexed),
		zap.Float64("complexity", complexity))

	if complexity > p.cfg.ComplexityCeiling {
		return nil, apperrors.PlanningRejected(
			apperrors.KindTooComplex,
			fmt.Sprintf("query would touch %d tables with %d joins; simplify the question", len(tables), joins),
			[]string{
				"Break the question into smaller, more specific ones",
				"Focus on a specific product or category",
				"Name a single platform instead of comparing all of them",
			},
		)
	}

	return &models.QueryIntent{
		RawQuestion:        question,
		Tokens:             tokens,
		CandidateTables:    candidates,
		EstimatedJoinCount: joins,
		ComplexityScore:    complexity,
	}, nil
}

// estimateJoinCount estimates the joins needed to connect the candidate
// tables: greedily grow a connected set from the top-ranked table, always
// attaching the cheapest related table (join cost modeled as the product of
// row estimates). A table with no relationship into the connected set is
// charged crossJoinCount.
func estimateJoinCount(tables []*models.TableDescriptor) int {
	if len(tables) <= 1 {
		return 0
	}

	connected := map[string]*models.TableDescriptor{tables[0].Name: tables[0]}
	remaining := make(map[string]*models.TableDescriptor, len(tables)-1)
	for _, t := range tables[1:] {
		remaining[t.Name] = t
	}

	joins := 0
	for len(remaining) > 0 {
		var best *models.TableDescriptor
		bestCost := int64(-1)

		for _, cand := range remaining {
			for _, conn := range connected {
				if !related(cand, conn) {
					continue
				}
				cost := cand.RowCountEstimate * conn.RowCountEstimate
				if bestCost < 0 || cost < bestCost || (cost == bestCost && cand.Name < best.Name) {
					best = cand
					bestCost = cost
				}
			}
		}

		if best != nil {
			joins++
			connected[best.Name] = best
			delete(remaining, best.Name)
			continue
		}

		// No edge into the connected set: attach the lexicographically
		// first remaining table and charge it as a cross join.
		var next *models.TableDescriptor
		for _, t := range remaining {
			if next == nil || t.Name < next.Name {
				next = t
			}
		}
		joins += crossJoinCount
		connected[next.Name] = next
		delete(remaining, next.Name)
	}

	return joins
}

func related(a, b *models.TableDescriptor) bool {
	for _, r := range a.Relationships {
		if r.ForeignTable == b.Name {
			return true
		}
	}
	for _, r := range b.Relationships {
		if r.ForeignTable == a.Name {
			return true
		}
	}
	return false
}

// countUnindexedFilters counts tokens that name (or partially name) a
// non-indexed column of a candidate table. Filtering on such a column
// forces a scan, so each occurrence raises the complexity score.
func countUnindexedFilters(tokens []string, tables []*models.TableDescriptor) int {
	count := 0
	for _, t := range tables {
		for _, col := range t.Columns {
			if col.IsIndexed || col.SemanticRole == models.RoleIdentifier {
				continue
			}
			for _, tok := range tokens {
				if tok == col.Name {
					count++
					break
				}
			}
		}
	}
	return count
}

func tableNames(tables []*models.TableDescriptor) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}
