package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy handles retry logic with exponential backoff
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	retryable    func(error) bool
}

// NewRetryPolicy creates a new retry policy
func NewRetryPolicy(maxAttempts int, initialDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     30 * time.Second, // Cap at 30 seconds
	}
}

// WithRetryable sets a predicate for errors worth another attempt.
// Errors it rejects are returned immediately.
func (r *RetryPolicy) WithRetryable(fn func(error) bool) *RetryPolicy {
	r.retryable = fn
	return r
}

// MaxAttempts returns the configured number of attempts
func (r *RetryPolicy) MaxAttempts() int { return r.maxAttempts }

// Execute runs a function with retry logic
func (r *RetryPolicy) Execute(fn func() error) error {
	return r.ExecuteContext(context.Background(), func(context.Context) error { return fn() })
}

// ExecuteContext runs fn until it succeeds, the attempts run out or ctx is done
func (r *RetryPolicy) ExecuteContext(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	delay := r.initialDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if r.retryable != nil && !r.retryable(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt < r.maxAttempts {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(ctx.Err(), lastErr)
			case <-timer.C:
			}

			delay = time.Duration(float64(delay) * 1.5)
			if delay > r.maxDelay {
				delay = r.maxDelay
			}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", r.maxAttempts, lastErr)
}
