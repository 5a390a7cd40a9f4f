package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// RetryPolicy configures linear backoff for a single adapter invocation
type RetryPolicy struct {
	// MaxAttempts counts the first attempt; values below 1 mean 1
	MaxAttempts int

	// BaseDelay: attempt i (0-indexed) waits BaseDelay*(i+1) before the next one
	BaseDelay time.Duration

	// RateLimitDelay replaces BaseDelay when the last failure was a 429
	RateLimitDelay time.Duration

	// Sleep blocks for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each wait
	OnRetry func(err error, attempt int, delay time.Duration)
}

// Delay returns the wait after the failed attempt (0-indexed)
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	base := p.BaseDelay
	if p.RateLimitDelay > 0 && statusOf(err) == http.StatusTooManyRequests {
		base = p.RateLimitDelay
	}
	return base * time.Duration(attempt+1)
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or runs out of attempts.
// Non-retryable errors are returned unchanged; exhaustion wraps the last error with ErrRetriesExhausted.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := policy.Delay(attempt, err)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry cancelled after %d attempts: %w", attempt+1, errors.Join(err, lastErr))
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

// IsRetryable reports whether a failure is worth another attempt: 429, 5xx, timeouts and refused connections.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	if status := statusOf(err); status != 0 {
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// statusOf extracts the HTTP status carried by a ProviderError, 0 when there is none
func statusOf(err error) int {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
