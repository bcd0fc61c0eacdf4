package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestProviderError(t *testing.T) {
	t.Run("with status code", func(t *testing.T) {
		err := &ProviderError{
			Provider:   "openai",
			StatusCode: 500,
			Message:    "internal error",
		}

		expected := `provider "openai" error (status 500): internal error`
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("without status code", func(t *testing.T) {
		err := &ProviderError{
			Provider: "openai",
			Message:  "connection failed",
		}

		expected := `provider "openai" error: connection failed`
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("network timeout")
		err := &ProviderError{
			Provider: "openai",
			Message:  "request failed",
			Cause:    cause,
		}

		if !errors.Is(err, cause) {
			t.Error("expected error to wrap cause")
		}
		if !strings.Contains(err.Error(), "network timeout") {
			t.Errorf("expected message to include cause, got %q", err.Error())
		}
	})
}

func TestAuthError(t *testing.T) {
	err := &AuthError{
		Provider:   "anthropic",
		StatusCode: 401,
		Message:    "Invalid API key",
	}

	expected := `provider "anthropic" authentication failed (status 401): Invalid API key`
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
	if IsRetryable(err) {
		t.Error("auth errors must not be retryable")
	}
}

func TestRateLimitError(t *testing.T) {
	t.Run("with retry after", func(t *testing.T) {
		err := &RateLimitError{
			Provider:   "openai",
			RetryAfter: 10 * time.Second,
			Message:    "Too many requests",
		}

		errStr := err.Error()
		if !strings.Contains(errStr, "rate limit exceeded") {
			t.Errorf("expected error to contain 'rate limit exceeded', got %q", errStr)
		}
		if !strings.Contains(errStr, "10s") {
			t.Errorf("expected error to contain retry duration, got %q", errStr)
		}
	})

	t.Run("without retry after", func(t *testing.T) {
		err := &RateLimitError{
			Provider: "openai",
			Message:  "Too many requests",
		}

		expected := `provider "openai" rate limit exceeded: Too many requests`
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("is retryable", func(t *testing.T) {
		if !IsRetryable(&RateLimitError{Provider: "openai", Message: "slow down"}) {
			t.Error("rate limit errors should be retryable")
		}
	})
}

func TestTimeoutError(t *testing.T) {
	t.Run("with timeout", func(t *testing.T) {
		err := &TimeoutError{Provider: "local", Timeout: 5 * time.Second, Cause: context.DeadlineExceeded}

		if !strings.Contains(err.Error(), "timeout after 5s") {
			t.Errorf("unexpected message %q", err.Error())
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("expected error to wrap context.DeadlineExceeded")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		err := &TimeoutError{Provider: "local", Cause: context.Canceled}

		if !strings.Contains(err.Error(), "cancelled") {
			t.Errorf("unexpected message %q", err.Error())
		}
		if !IsTimeout(err) {
			t.Error("IsTimeout should report true")
		}
	})
}

func TestParseError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &ParseError{Provider: "openai", RawResponse: `{"id":`, Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected error to wrap cause")
	}
	if !strings.Contains(err.Error(), "parse error") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "temperature", Message: "must be between 0 and 2, got 3"}

	expected := `validation error for field "temperature": must be between 0 and 2, got 3`
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestStreamError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &StreamError{Provider: "anthropic", Message: "read failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected error to wrap cause")
	}

	expected := `provider "anthropic" stream error: read failed: connection reset`
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Provider: "openai", Field: "api_key", Message: "is required"}

	expected := `provider "openai" configuration error for field "api_key": is required`
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestNoProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  *NoProviderError
		want string
	}{
		{"empty", &NoProviderError{}, "no provider available"},
		{"model only", &NoProviderError{Model: "gpt-4o"}, `no provider available for model "gpt-4o"`},
		{"provider only", &NoProviderError{Provider: KindAnthropic}, `no provider available: "anthropic" is not initialized`},
		{
			"both",
			&NoProviderError{Model: "claude-3-opus-20240229", Provider: KindAnthropic},
			`no provider available: "anthropic" (model "claude-3-opus-20240229") is not initialized`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPanicError(t *testing.T) {
	err := &PanicError{Provider: "local", Value: 42}

	if !strings.Contains(err.Error(), "42") {
		t.Errorf("expected value in message, got %q", err.Error())
	}
}

func TestErrorTypes_ErrorsAs(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{
			name: "auth error through wrap",
			err:  fmt.Errorf("complete: %w", &AuthError{Provider: "openai", StatusCode: 403}),
			check: func(err error) bool {
				var target *AuthError
				return errors.As(err, &target) && target.StatusCode == 403
			},
		},
		{
			name: "rate limit through wrap",
			err:  fmt.Errorf("complete: %w", &RateLimitError{Provider: "openai", RetryAfter: time.Second}),
			check: func(err error) bool {
				var target *RateLimitError
				return errors.As(err, &target) && target.RetryAfter == time.Second
			},
		},
		{
			name: "provider error preserves status",
			err:  fmt.Errorf("complete: %w", &ProviderError{Provider: "openai", StatusCode: 502}),
			check: func(err error) bool {
				var target *ProviderError
				return errors.As(err, &target) && target.StatusCode == 502
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("errors.As did not find expected type in %v", tt.err)
			}
		})
	}
}
