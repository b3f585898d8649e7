package models

// CandidateTable is one table shortlisted for a question, with the
// relevance score the schema index assigned to it.
type CandidateTable struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// QueryIntent is the planner's per-request output. Created fresh for every
// question and discarded when the request completes.
type QueryIntent struct {
	RawQuestion        string           `json:"raw_question"`
	Tokens             []string         `json:"tokens"`
	CandidateTables    []CandidateTable `json:"candidate_tables"` // ranked, best first
	EstimatedJoinCount int              `json:"estimated_join_count"`
	ComplexityScore    float64          `json:"complexity_score"`
}

// TableNames returns the candidate table names in rank order.
func (qi *QueryIntent) TableNames() []string {
	names := make([]string, len(qi.CandidateTables))
	for i, c := range qi.CandidateTables {
		names[i] = c.Name
	}
	return names
}

// HasCandidate reports whether the named table is in the candidate set.
func (qi *QueryIntent) HasCandidate(name string) bool {
	for _, c := range qi.CandidateTables {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CandidateSource constants for how a SQL candidate was produced.
const (
	SourceGenerated        = "generated"
	SourceTemplateFallback = "template_fallback"
)

// SQLCandidate is a statement proposed for execution. Created by the
// generation step, consumed by execution, retained only inside a cache
// entry's metadata.
type SQLCandidate struct {
	Statement   string   `json:"statement"`
	BoundTables []string `json:"bound_tables"`
	Source      string   `json:"source"`
	Validated   bool     `json:"validated"`
}

// RowSet is the shape returned by the execution boundary. Columns preserves
// the statement's projection order; Rows map column name to value.
type RowSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// QueryResult is the engine's answer to one question.
type QueryResult struct {
	Rows       *RowSet  `json:"rows"`
	SQLUsed    string   `json:"sql_used"`
	SQLSource  string   `json:"sql_source"`
	TablesUsed []string `json:"tables_used"`
	CacheHit   bool     `json:"cache_hit"`
	DurationMS int64    `json:"duration_ms"`
}
