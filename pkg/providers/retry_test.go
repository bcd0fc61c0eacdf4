package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordingSleep captures requested delays without waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	policy := DefaultRetryPolicy()
	policy.Sleep = recordingSleep(&delays)

	calls := 0
	got, err := WithRetry(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset by peer")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected %q, got %q", "ok", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d: expected %s, got %s", i, want[i], delays[i])
		}
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	policy := DefaultRetryPolicy()
	policy.Sleep = recordingSleep(&delays)

	calls := 0
	lastErr := errors.New("server overloaded (3)")
	_, err := WithRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, lastErr
		}
		return 0, errors.New("server overloaded")
	})

	if !errors.Is(err, lastErr) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	// No wait after the final attempt.
	if len(delays) != 2 {
		t.Errorf("expected 2 waits, got %d", len(delays))
	}
}

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", errors.New("401 Unauthorized")},
		{"invalid api key", errors.New("invalid_api_key: key revoked")},
		{"forbidden", errors.New("Forbidden")},
		{"not found", errors.New("model_not_found: gpt-9")},
		{"invalid request", errors.New("invalid_request_error: bad field")},
		{"auth error type", &AuthError{Provider: "openai", StatusCode: 401}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			policy := DefaultRetryPolicy()
			policy.Sleep = recordingSleep(&delays)

			calls := 0
			_, err := WithRetry(context.Background(), policy, func(ctx context.Context) (struct{}, error) {
				calls++
				return struct{}{}, tt.err
			})

			if err != tt.err {
				t.Errorf("expected original error, got %v", err)
			}
			if calls != 1 {
				t.Errorf("expected 1 call, got %d", calls)
			}
			if len(delays) != 0 {
				t.Errorf("expected no waits, got %v", delays)
			}
		})
	}
}

func TestWithRetry_OnRetryHook(t *testing.T) {
	var events []RetryEvent
	policy := RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   10 * time.Millisecond,
		OnRetry:     func(e RetryEvent) { events = append(events, e) },
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}

	_, _ = WithRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
		return 0, errors.New("temporary")
	})

	if len(events) != 1 {
		t.Fatalf("expected 1 retry event, got %d", len(events))
	}
	if events[0].Attempt != 0 || events[0].Remaining != 1 {
		t.Errorf("unexpected event %+v", events[0])
	}
	if events[0].Delay != 10*time.Millisecond {
		t.Errorf("expected 10ms delay, got %s", events[0].Delay)
	}
}

func TestWithRetry_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultRetryPolicy()

	calls := 0
	_, err := WithRetry(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("temporary")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{&ProviderError{Provider: "openai", StatusCode: 500, Message: "oops"}, true},
		{&RateLimitError{Provider: "openai"}, true},
		{errors.New("AUTHENTICATION required"), false},
		{errors.New("resource not_found"), false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
