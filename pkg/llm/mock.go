package llm

import (
	"context"
	"sync"
)

// MockGenerator is a test double for the SQL generation boundary.
type MockGenerator struct {
	mu sync.Mutex

	// Response is returned by GenerateSQL unless Err is set.
	Response string
	// Err, when set, is returned by every call.
	Err error
	// GenerateFunc, when set, overrides Response/Err entirely.
	GenerateFunc func(ctx context.Context, systemMessage, prompt string) (string, error)

	// Calls records every prompt passed to GenerateSQL.
	Calls []string
}

// GenerateSQL implements SQLGenerator.
func (m *MockGenerator) GenerateSQL(ctx context.Context, systemMessage, prompt string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, systemMessage, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Model implements SQLGenerator.
func (m *MockGenerator) Model() string { return "mock" }

// CallCount returns how many times GenerateSQL was invoked.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

var _ SQLGenerator = (*MockGenerator)(nil)
