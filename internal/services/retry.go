package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/shared"
)

// RateLimitError is returned on HTTP 429 responses and carries the wait the
// server requested via Retry-After.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Unwrap returns [shared.ErrRateLimited] so callers can match the category.
func (e *RateLimitError) Unwrap() error { return shared.ErrRateLimited }

// RetryPolicy retries failed service calls with exponential backoff. Rate
// limit responses wait out the server-requested delay instead.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy retries three times starting at one second.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

// Do runs fn until it succeeds or attempts are exhausted. Authentication
// failures, missing resources, and context cancellation are not retried.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if errors.Is(err, shared.ErrAuthFailed) || errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.BaseDelay << attempt
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
			delay = rateErr.RetryAfter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
}
