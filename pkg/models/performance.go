package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome constants for a completed planning+execution cycle.
const (
	OutcomeSuccess = "success"
	OutcomeSlow    = "slow" // succeeded but exceeded the slow-query threshold
	OutcomeFailed  = "failed"
)

// PerformanceRecord captures one request's outcome for the monitor.
// Append-only; never mutated after creation.
type PerformanceRecord struct {
	ID              uuid.UUID     `json:"id"`
	Timestamp       time.Time     `json:"timestamp"`
	Question        string        `json:"question"`
	SQL             string        `json:"sql,omitempty"`
	Duration        time.Duration `json:"duration"`
	ComplexityScore float64       `json:"complexity_score"`
	TablesUsed      []string      `json:"tables_used"`
	Outcome         string        `json:"outcome"`
	CacheHit        bool          `json:"cache_hit"`
	ErrorKind       string        `json:"error_kind,omitempty"`
	RowCount        int           `json:"row_count"`
}
