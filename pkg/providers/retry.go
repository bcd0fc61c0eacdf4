package providers

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultMaxAttempts is the number of attempts made when a policy does not set one.
const DefaultMaxAttempts = 3

// nonRetryableMarkers are matched case-insensitively against error messages.
var nonRetryableMarkers = []string{
	"invalid_api_key",
	"authentication",
	"unauthorized",
	"forbidden",
	"not_found",
	"invalid_request",
}

// RetryEvent describes a single scheduled retry.
type RetryEvent struct {
	// Attempt is the zero-based attempt that just failed
	Attempt int

	// Remaining is the number of attempts still available
	Remaining int

	// Delay is the backoff before the next attempt
	Delay time.Duration

	// Err is the error that triggered the retry
	Err error
}

// RetryPolicy configures WithRetry.
//
// Delays follow 2^attempt * BaseDelay with attempt counted from 0: no jitter
// and no cap.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (default 3)
	MaxAttempts int

	// BaseDelay is the delay before the second attempt (default 1s)
	BaseDelay time.Duration

	// Logger receives one warn event per retry (default slog.Default())
	Logger *slog.Logger

	// OnRetry is called before each backoff wait
	OnRetry func(RetryEvent)

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns a policy with three attempts and a one second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   time.Second,
	}
}

// Delay returns the backoff after the given zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	return base * time.Duration(int64(1)<<uint(attempt))
}

// IsRetryable reports whether err may be retried. Errors whose message contains a
// non-retryable marker (invalid_api_key, authentication, unauthorized, forbidden,
// not_found, invalid_request) are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range nonRetryableMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}

// WithRetry runs op up to policy.MaxAttempts times with exponential backoff.
// A non-retryable error is returned immediately; when all attempts fail the last
// error is returned.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		remaining := maxAttempts - attempt - 1
		if remaining == 0 {
			break
		}

		delay := policy.Delay(attempt)
		logger.Warn("retrying provider operation",
			"attempt", attempt+1,
			"remaining", remaining,
			"delay", delay,
			"error", err.Error(),
		)
		if policy.OnRetry != nil {
			policy.OnRetry(RetryEvent{Attempt: attempt, Remaining: remaining, Delay: delay, Err: err})
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
