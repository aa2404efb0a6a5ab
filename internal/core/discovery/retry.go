package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrMalformedResponse marks an oracle reply that could not be parsed.
// Treated the same as a transient failure: retried, then degraded.
var ErrMalformedResponse = errors.New("malformed oracle response")

// ErrExtractionFatal means no page text was recoverable from the input at all.
// This is the only condition that fails a whole job.
var ErrExtractionFatal = errors.New("no text extractable from production")

// RetryPolicy is the single retry/backoff abstraction applied to every oracle
// call (classification, embedding, storage, fact extraction).
type RetryPolicy struct {
	MaxAttempts    int           // total attempts, including the first
	InitialBackoff time.Duration // backoff before the second attempt
	MaxBackoff     time.Duration
	Multiplier     float64
	Retryable      func(error) bool // nil means IsTransient
}

// DefaultRetryPolicy returns the policy used when config doesn't override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Do executes fn with bounded retries and exponential backoff. Callers see
// only the final outcome, never intermediate attempts.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Printf("retry: %s succeeded on attempt %d", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}

		log.Printf("retry: %s failed (attempt %d/%d), retrying in %v: %v", operation, attempt, attempts, backoff, err)
		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * p.Multiplier)
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

// IsTransient reports whether an oracle error is worth retrying: timeouts,
// rate limits, server errors and malformed responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrMalformedResponse) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "quota",
		"500", "502", "503", "504",
		"timeout", "deadline", "connection reset", "connection refused", "temporarily unavailable",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
