// Package apperrors defines the engine's error taxonomy.
//
// Internal failures are wrapped into EngineError with a classified kind and
// a safe, user-presentable message. Raw provider or database error text must
// never be placed in Message; keep it in the wrapped cause for logs.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates a table name that does not exist in the schema
	// catalog. This is a misconfiguration, not a user error.
	ErrNotFound = errors.New("not found")

	// ErrGenerationFailed indicates the LLM generation path produced no
	// usable statement. Recovered locally via the template fallback.
	ErrGenerationFailed = errors.New("sql generation failed")

	// ErrInvalidSQL indicates a candidate statement failed validation.
	ErrInvalidSQL = errors.New("invalid sql")
)

// Kind classifies a user-visible engine failure.
type Kind string

const (
	KindRateLimited      Kind = "rate_limit_exceeded"
	KindNoMatch          Kind = "no_matching_tables"
	KindTooComplex       Kind = "query_too_complex"
	KindInvalidSQL       Kind = "invalid_sql"
	KindExecutionFailed  Kind = "execution_failed"
	KindExecutionTimeout Kind = "execution_timeout"
	KindInternal         Kind = "internal_error"
)

// EngineError is the only error shape surfaced to callers of the engine.
// Message is a safe summary; the underlying cause is reachable via Unwrap
// for logging but must not be serialized to clients.
type EngineError struct {
	Kind        Kind
	Message     string
	RetryAfter  time.Duration // set only for KindRateLimited
	Suggestions []string      // set for planning rejections
	cause       error
}

func (e *EngineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *EngineError) Unwrap() error {
	return e.cause
}

// New creates an EngineError with a classified kind and safe message.
func New(kind Kind, message string, cause error) *EngineError {
	return &EngineError{Kind: kind, Message: message, cause: cause}
}

// RateLimited creates the rejection returned when a client exceeds its
// request budget. retryAfter is the time until the oldest in-window request
// leaves the sliding window.
func RateLimited(retryAfter time.Duration) *EngineError {
	return &EngineError{
		Kind:       KindRateLimited,
		Message:    "rate limit exceeded, retry later",
		RetryAfter: retryAfter,
	}
}

// PlanningRejected creates the rejection returned when the planner refuses
// a question, either because nothing matched or the plan is too expensive.
func PlanningRejected(kind Kind, message string, suggestions []string) *EngineError {
	return &EngineError{Kind: kind, Message: message, Suggestions: suggestions}
}

// KindOf extracts the Kind from an error, or KindInternal if the error is
// not an EngineError.
func KindOf(err error) Kind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInternal
}
