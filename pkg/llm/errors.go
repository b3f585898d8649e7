package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies generation failures.
type ErrorType string

const (
	ErrorTypeAuth     ErrorType = "auth"     // bad/missing API key; not retryable
	ErrorTypeModel    ErrorType = "model"    // unknown model; not retryable
	ErrorTypeEndpoint ErrorType = "endpoint" // connectivity/server trouble; usually retryable
	ErrorTypeTimeout  ErrorType = "timeout"  // deadline exceeded; retryable
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error is a structured generation error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		s = fmt.Sprintf("%s (HTTP %d)", s, e.StatusCode)
	}
	if e.Cause != nil {
		s = fmt.Sprintf("%s: %v", s, e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable implements the retry package's RetryableError interface.
func (e *Error) IsRetryable() bool { return e.Retryable }

// ClassifyError categorizes a provider error into a structured Error so
// callers can decide between retrying and falling back.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(msg, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	switch {
	case strings.Contains(msg, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key"):
		return &Error{Type: ErrorTypeAuth, Message: "authentication failed", StatusCode: statusCode, Cause: err}

	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return &Error{Type: ErrorTypeModel, Message: "model not found", StatusCode: statusCode, Cause: err}

	case strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "context canceled"):
		return &Error{Type: ErrorTypeTimeout, Message: "request timed out", Retryable: true, StatusCode: statusCode, Cause: err}

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return &Error{Type: ErrorTypeEndpoint, Message: "connection failed", Retryable: true, StatusCode: statusCode, Cause: err}

	case strings.Contains(msg, "429") || strings.Contains(lower, "rate limit"):
		return &Error{Type: ErrorTypeEndpoint, Message: "provider rate limited", Retryable: true, StatusCode: statusCode, Cause: err}

	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504"):
		return &Error{Type: ErrorTypeEndpoint, Message: "provider server error", Retryable: true, StatusCode: statusCode, Cause: err}
	}

	return &Error{Type: ErrorTypeUnknown, Message: "generation failed", StatusCode: statusCode, Cause: err}
}

// IsRetryable reports whether the error is worth retrying.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}
