package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		quota     bool
		server    bool
		retryable bool
	}{
		{"nil", nil, false, false, false},
		{"gemini quota", errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), true, false, true},
		{"claude rate limit", errors.New("rate_limit_error: slow down"), true, false, true},
		{"claude overloaded", errors.New("529 overloaded_error"), false, true, true},
		{"gemini unavailable", errors.New("Error 503, Status: UNAVAILABLE"), false, true, true},
		{"bad pdf", errors.New("400 invalid argument: document has no pages"), false, false, false},
	}

	policy := DefaultRetryPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.quota, IsRateLimitError(tt.err))
			assert.Equal(t, tt.server, IsServerError(tt.err))
			assert.Equal(t, tt.retryable, policy.Retryable(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota exceeded. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("boom")))
}

func TestBackoff(t *testing.T) {
	policy := DefaultRetryPolicy()
	quota := errors.New("429 quota")
	hinted := errors.New("429 quota. Please retry in 10s")
	server := errors.New("503 UNAVAILABLE")

	assert.Equal(t, 30*time.Second, policy.Backoff(0, quota))
	assert.Equal(t, 45*time.Second, policy.Backoff(1, quota))
	assert.Equal(t, 15*time.Second, policy.Backoff(0, hinted))
	assert.Equal(t, policy.MaxBackoff, policy.Backoff(5, quota))

	assert.Equal(t, 2*time.Second, policy.Backoff(0, server))
	assert.Equal(t, 6*time.Second, policy.Backoff(2, server))
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, QuotaBackoff: time.Millisecond, ServerBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 1}
}

func TestRetryPolicyDo(t *testing.T) {
	logger := arbor.NewLogger()
	ctx := context.Background()

	t.Run("recovers from server error", func(t *testing.T) {
		calls := 0
		err := fastPolicy().Do(ctx, logger, ProviderGemini, "summarize_chunk", func() error {
			calls++
			if calls == 1 {
				return errors.New("503 UNAVAILABLE")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent error not repeated", func(t *testing.T) {
		calls := 0
		err := fastPolicy().Do(ctx, logger, ProviderClaude, "classify", func() error {
			calls++
			return errors.New("400 invalid request")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := fastPolicy().Do(ctx, logger, ProviderGemini, "score", func() error {
			calls++
			return errors.New("429 RESOURCE_EXHAUSTED")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops when context ends", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		err := fastPolicy().Do(cancelled, logger, ProviderGemini, "merge_summaries", func() error {
			calls++
			return errors.New("503")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
