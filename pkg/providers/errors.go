package providers

import (
	"fmt"
	"time"
)

// ProviderError represents a general transport failure reported by a vendor.
// It carries the HTTP status code and the response body text.
type ProviderError struct {
	// Provider is the name of the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message or response body
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("provider %q error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// AuthError represents an authentication failure (HTTP 401 or 403).
// Its message always contains "authentication", so the retry engine never retries it.
type AuthError struct {
	Provider   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %q authentication failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
type RateLimitError struct {
	Provider string

	// RetryAfter is the vendor-suggested wait (informational; backoff is fixed)
	RetryAfter time.Duration

	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, e.Message)
}

// TimeoutError represents a request that exceeded its deadline.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
	Cause    error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
	}
	return fmt.Sprintf("provider %q request cancelled: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying context error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ParseError represents a malformed vendor response.
// It is fatal on non-streaming paths and never retried.
type ParseError struct {
	Provider string

	// RawResponse is the raw payload that failed to parse
	RawResponse string

	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ValidationError represents a request validation failure detected before
// anything is sent to a vendor.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// StreamError represents a failure that occurred after a stream was opened.
// It is delivered in the Error field of the last StreamChunk.
type StreamError struct {
	Provider string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// ConfigError represents an invalid adapter or dispatcher configuration.
// Configuration errors are returned synchronously and never retried.
type ConfigError struct {
	Provider string
	Field    string
	Message  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}

// NoProviderError is returned when no initialized adapter can serve a request.
type NoProviderError struct {
	Model    string
	Provider Kind
}

// Error implements the error interface.
func (e *NoProviderError) Error() string {
	switch {
	case e.Provider != "" && e.Model != "":
		return fmt.Sprintf("no provider available: %q (model %q) is not initialized", e.Provider, e.Model)
	case e.Provider != "":
		return fmt.Sprintf("no provider available: %q is not initialized", e.Provider)
	case e.Model != "":
		return fmt.Sprintf("no provider available for model %q", e.Model)
	default:
		return "no provider available"
	}
}

// PanicError wraps a non-error value recovered from a panic.
type PanicError struct {
	Provider string
	Value    interface{}
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("provider %q: unexpected failure: %v", e.Provider, e.Value)
}
