// Package llm provides the SQL-generation boundary: clients for
// OpenAI-compatible and Anthropic endpoints, structured error
// classification, and a circuit breaker that sheds calls to a provider
// that keeps failing.
package llm

import "context"

// SQLGenerator is the external generation boundary. Implementations take a
// prompt built from the question and the vetted candidate tables only, and
// return the raw model output. Use this interface for dependency injection
// to enable mocking in tests.
type SQLGenerator interface {
	// GenerateSQL produces a candidate SQL statement for the prompt.
	// The context carries the generation timeout; implementations must
	// respect cancellation.
	GenerateSQL(ctx context.Context, systemMessage, prompt string) (string, error)

	// Model returns the configured model name, for logging and metadata.
	Model() string
}

var (
	_ SQLGenerator = (*OpenAIClient)(nil)
	_ SQLGenerator = (*AnthropicClient)(nil)
)
