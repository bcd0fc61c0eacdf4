package metrics

import (
	"context"
	"errors"

	"mercator-hq/conduit/pkg/providers"
)

// ErrorType maps an error to a low-cardinality label value:
//   - "auth": authentication/authorization error
//   - "rate_limit": provider rate limit exceeded
//   - "timeout": request deadline exceeded
//   - "canceled": caller cancelled the request
//   - "server_error": provider server error (5xx)
//   - "client_error": provider client error (4xx)
//   - "network": transport failure without a status code
//   - "parse": malformed provider response
//   - "stream": failure after a stream was opened
//   - "validation", "config", "no_provider": rejected before any I/O
func ErrorType(err error) string {
	var (
		streamErr     *providers.StreamError
		authErr       *providers.AuthError
		rateErr       *providers.RateLimitError
		timeoutErr    *providers.TimeoutError
		parseErr      *providers.ParseError
		validationErr *providers.ValidationError
		configErr     *providers.ConfigError
		noProvErr     *providers.NoProviderError
		providerErr   *providers.ProviderError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &streamErr):
		return "stream"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &rateErr):
		return "rate_limit"
	case errors.As(err, &timeoutErr):
		if errors.Is(err, context.Canceled) {
			return "canceled"
		}
		return "timeout"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &configErr):
		return "config"
	case errors.As(err, &noProvErr):
		return "no_provider"
	case errors.As(err, &providerErr):
		switch {
		case providerErr.StatusCode >= 500:
			return "server_error"
		case providerErr.StatusCode >= 400:
			return "client_error"
		default:
			return "network"
		}
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}
