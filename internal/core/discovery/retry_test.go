package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := testRetry().Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_RetriesTransient(t *testing.T) {
	calls := 0
	err := testRetry().Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout waiting for upstream")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("429 rate limit")
	err := testRetry().Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	err := testRetry().Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errors.New("invalid api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour, Multiplier: 2.0}

	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, "op", func(ctx context.Context) error {
			return errors.New("503 unavailable")
		})
	}()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation during backoff")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"malformed response", ErrMalformedResponse, true},
		{"rate limit text", errors.New("got 429 Too Many Requests"), true},
		{"server error", errors.New("upstream returned 503"), true},
		{"timeout text", errors.New("request timeout"), true},
		{"auth failure", errors.New("401 unauthorized"), false},
		{"plain failure", errors.New("no such model"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
