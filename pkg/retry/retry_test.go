package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transientErr struct{ retryable bool }

func (e *transientErr) Error() string     { return "transient" }
func (e *transientErr) IsRetryable() bool { return e.retryable }

func fastConfig() *Config {
	return &Config{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoWithResult_SucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &transientErr{retryable: true}
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDoWithResult_PermanentErrorReturnsImmediately(t *testing.T) {
	calls := 0
	_, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		calls++
		return 0, errors.New("permanent")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "errors without IsRetryable are permanent")
}

func TestDoWithResult_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		calls++
		return 0, &transientErr{retryable: true}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "1 attempt + 2 retries")
}

func TestDoWithResult_ContextCancelStopsWaiting(t *testing.T) {
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := DoWithResult(ctx, cfg, func() (int, error) {
		return 0, &transientErr{retryable: true}
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "must not sit out the full backoff")
}

func TestDoWithResult_NilConfigUsesDefaults(t *testing.T) {
	got, err := DoWithResult(context.Background(), nil, func() (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&transientErr{retryable: true}))
	assert.False(t, IsRetryable(&transientErr{retryable: false}))
	assert.False(t, IsRetryable(errors.New("plain")))
}
