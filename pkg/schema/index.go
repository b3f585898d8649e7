// Package schema provides the immutable table catalog and keyword lookup
// used for table selection. The catalog is loaded once at startup and
// refreshed only by atomic swap of the whole structure, so concurrent
// readers never see partial state.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/apperrors"
	"github.com/quickcommerce/deals-engine/pkg/models"
)

// Relevance scoring weights. Exact keyword evidence always dominates the
// performance-feedback bonus, which only reorders near-ties.
const (
	exactMatchWeight   = 2.0
	partialMatchWeight = 1.0
	feedbackBonusMax   = 0.5

	// Partial matches shorter than this are noise ("app" inside "apple").
	minPartialTokenLen = 4
)

// TableScore pairs a table with its relevance score for one question.
type TableScore struct {
	Table *models.TableDescriptor
	Score float64
}

// FeedbackFunc reports historical quality for a table in [0, 1].
// The monitor's TableFeedback satisfies this.
type FeedbackFunc func(tableName string) float64

type catalog struct {
	byName  map[string]*models.TableDescriptor
	ordered []*models.TableDescriptor
}

// Index is the read-only schema index. Safe for concurrent use.
type Index struct {
	catalog atomic.Pointer[catalog]
	logger  *zap.Logger
}

// NewIndex builds an index over the given tables. Relationships must
// reference tables present in the same catalog.
func NewIndex(tables []models.TableDescriptor, logger *zap.Logger) (*Index, error) {
	c, err := buildCatalog(tables)
	if err != nil {
		return nil, err
	}

	idx := &Index{logger: logger.Named("schema")}
	idx.catalog.Store(c)

	idx.logger.Info("Schema index built", zap.Int("tables", len(tables)))
	return idx, nil
}

func buildCatalog(tables []models.TableDescriptor) (*catalog, error) {
	c := &catalog{byName: make(map[string]*models.TableDescriptor, len(tables))}

	for i := range tables {
		t := tables[i]
		if t.Name == "" {
			return nil, fmt.Errorf("table at position %d has no name", i)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q in catalog", t.Name)
		}
		c.byName[t.Name] = &t
		c.ordered = append(c.ordered, &t)
	}

	for _, t := range c.ordered {
		for _, rel := range t.Relationships {
			if _, ok := c.byName[rel.ForeignTable]; !ok {
				return nil, fmt.Errorf("table %q references unknown table %q", t.Name, rel.ForeignTable)
			}
		}
	}

	return c, nil
}

// Swap atomically replaces the whole catalog. In-flight lookups finish
// against the catalog they started with.
func (idx *Index) Swap(tables []models.TableDescriptor) error {
	c, err := buildCatalog(tables)
	if err != nil {
		return fmt.Errorf("refresh rejected: %w", err)
	}
	idx.catalog.Store(c)
	idx.logger.Info("Schema catalog swapped", zap.Int("tables", len(tables)))
	return nil
}

// Get returns the descriptor for a table name.
// Returns apperrors.ErrNotFound for unknown tables; callers treat that as
// fatal schema inconsistency, never as a skippable condition.
func (idx *Index) Get(name string) (*models.TableDescriptor, error) {
	if t, ok := idx.catalog.Load().byName[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("table %q: %w", name, apperrors.ErrNotFound)
}

// All returns every table descriptor in catalog order.
func (idx *Index) All() []*models.TableDescriptor {
	return idx.catalog.Load().ordered
}

// LookupByKeywords scores every table against the question tokens and
// returns matches ordered by relevance. Tables with zero keyword evidence
// are omitted regardless of feedback. Ties break by lower row-count
// estimate (prefer cheaper tables), then lexicographic name (determinism).
func (idx *Index) LookupByKeywords(tokens []string, feedback FeedbackFunc) []TableScore {
	c := idx.catalog.Load()

	var scored []TableScore
	for _, t := range c.ordered {
		s := keywordScore(tokens, t.SemanticKeywords)
		if s == 0 {
			continue
		}
		if feedback != nil {
			fb := feedback(t.Name)
			if fb < 0 {
				fb = 0
			} else if fb > 1 {
				fb = 1
			}
			s += fb * feedbackBonusMax
		}
		scored = append(scored, TableScore{Table: t, Score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Table.RowCountEstimate != b.Table.RowCountEstimate {
			return a.Table.RowCountEstimate < b.Table.RowCountEstimate
		}
		return a.Table.Name < b.Table.Name
	})

	return scored
}

func keywordScore(tokens []string, keywords []string) float64 {
	var score float64
	for _, tok := range tokens {
		best := 0.0
		for _, kw := range keywords {
			if tok == kw {
				best = exactMatchWeight
				break
			}
			if len(tok) >= minPartialTokenLen && len(kw) >= minPartialTokenLen &&
				(strings.Contains(kw, tok) || strings.Contains(tok, kw)) {
				if partialMatchWeight > best {
					best = partialMatchWeight
				}
			}
		}
		score += best
	}
	return score
}
