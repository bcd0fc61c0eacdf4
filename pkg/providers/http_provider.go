package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// TransportStats tracks request bookkeeping for one adapter.
type TransportStats struct {
	// TotalRequests is the number of HTTP requests sent
	TotalRequests int64

	// FailedRequests is the number of requests that failed or returned non-2xx
	FailedRequests int64

	// LastSuccessfulRequest is the time of the last 2xx response
	LastSuccessfulRequest time.Time

	// LastError is the most recent failure (nil after a success)
	LastError error
}

// HTTPTransport is the HTTP layer shared by the adapters. The pooled client is
// built lazily on first use, exactly once, and reused by concurrent calls.
//
// Do performs a single attempt; retries are the caller's concern so that
// streaming paths can bypass them.
type HTTPTransport struct {
	provider string
	config   ProviderConfig

	once   sync.Once
	client *http.Client

	statsMu sync.RWMutex
	stats   TransportStats
}

// NewHTTPTransport creates a transport for the named provider. No connection
// is made until the first request.
func NewHTTPTransport(provider string, config ProviderConfig) *HTTPTransport {
	return &HTTPTransport{
		provider: provider,
		config:   config,
	}
}

// Client returns the lazily constructed HTTP client.
func (t *HTTPTransport) Client() *http.Client {
	t.once.Do(func() {
		maxIdle := t.config.MaxIdleConns
		if maxIdle == 0 {
			maxIdle = 100
		}
		maxIdlePerHost := t.config.MaxIdleConnsPerHost
		if maxIdlePerHost == 0 {
			maxIdlePerHost = 10
		}
		idleTimeout := t.config.IdleConnTimeout
		if idleTimeout == 0 {
			idleTimeout = 90 * time.Second
		}

		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        maxIdle,
			MaxIdleConnsPerHost: maxIdlePerHost,
			IdleConnTimeout:     idleTimeout,
			ForceAttemptHTTP2:   true,
		}

		// No client-level timeout: it would cut long streams. Deadlines are
		// applied per call through the request context.
		t.client = &http.Client{Transport: transport}
	})
	return t.client
}

// Do performs one HTTP request. A 2xx response is returned with its body open.
// Any other status is read, closed and mapped to a typed error carrying the
// status and body text.
func (t *HTTPTransport) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.Client().Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = &TimeoutError{Provider: t.provider, Timeout: t.config.Timeout, Cause: ctxErr}
		} else {
			err = &ProviderError{Provider: t.provider, Message: "request failed", Cause: err}
		}
		t.record(err)
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		t.record(nil)
		return resp, nil
	}

	errorBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	err = statusError(t.provider, resp, string(errorBody))
	t.record(err)
	return nil, err
}

// DoJSON performs one request and returns the full response body.
func (t *HTTPTransport) DoJSON(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	resp, err := t.Do(ctx, method, url, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &TimeoutError{Provider: t.provider, Timeout: t.config.Timeout, Cause: ctxErr}
		}
		return nil, &ProviderError{Provider: t.provider, Message: "failed to read response", Cause: err}
	}
	return data, nil
}

// Stats returns a snapshot of the request bookkeeping.
func (t *HTTPTransport) Stats() TransportStats {
	t.statsMu.RLock()
	defer t.statsMu.RUnlock()
	return t.stats
}

// Close closes idle connections. The client is read through Client so a
// concurrent first request cannot race with it.
func (t *HTTPTransport) Close() error {
	t.Client().CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) record(err error) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()

	t.stats.TotalRequests++
	if err != nil {
		t.stats.FailedRequests++
		t.stats.LastError = err
		return
	}
	t.stats.LastError = nil
	t.stats.LastSuccessfulRequest = time.Now()
}

// statusError maps a non-2xx response to a typed error.
func statusError(provider string, resp *http.Response, body string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Provider: provider, StatusCode: resp.StatusCode, Message: body}
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   provider,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    body,
		}
	default:
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Message: body}
	}
}

// IsTimeout reports whether err stems from a cancelled or expired context.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
