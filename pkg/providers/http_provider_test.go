package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPTransport_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected auth header, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "success"}`))
	}))
	defer server.Close()

	transport := NewHTTPTransport("test", ProviderConfig{})
	data, err := transport.DoJSON(context.Background(), http.MethodPost, server.URL, []byte(`{}`),
		map[string]string{"Authorization": "Bearer test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"message": "success"}` {
		t.Errorf("unexpected body %q", data)
	}

	stats := transport.Stats()
	if stats.TotalRequests != 1 || stats.FailedRequests != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.LastSuccessfulRequest.IsZero() {
		t.Error("expected last successful request time to be set")
	}
}

func TestHTTPTransport_SingleAttempt(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "internal server error"}`))
	}))
	defer server.Close()

	transport := NewHTTPTransport("test", ProviderConfig{MaxRetries: 3})
	_, err := transport.Do(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("expected exactly one attempt, got %d", got)
	}
}

func TestHTTPTransport_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		headers    map[string]string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "401 auth",
			statusCode: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var e *AuthError
				if !errors.As(err, &e) || e.StatusCode != 401 {
					t.Errorf("expected AuthError 401, got %T: %v", err, err)
				}
			},
		},
		{
			name:       "403 auth",
			statusCode: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var e *AuthError
				if !errors.As(err, &e) || e.StatusCode != 403 {
					t.Errorf("expected AuthError 403, got %T: %v", err, err)
				}
			},
		},
		{
			name:       "429 rate limit",
			statusCode: http.StatusTooManyRequests,
			headers:    map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, err error) {
				var e *RateLimitError
				if !errors.As(err, &e) {
					t.Fatalf("expected RateLimitError, got %T: %v", err, err)
				}
				if e.RetryAfter != 7*time.Second {
					t.Errorf("expected 7s retry after, got %s", e.RetryAfter)
				}
			},
		},
		{
			name:       "502 provider error with body",
			statusCode: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var e *ProviderError
				if !errors.As(err, &e) || e.StatusCode != 502 {
					t.Fatalf("expected ProviderError 502, got %T: %v", err, err)
				}
				if !strings.Contains(e.Message, "upstream failure") {
					t.Errorf("expected body text in message, got %q", e.Message)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte("upstream failure"))
			}))
			defer server.Close()

			transport := NewHTTPTransport("test", ProviderConfig{})
			_, err := transport.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
			tt.check(t, err)

			if transport.Stats().FailedRequests != 1 {
				t.Errorf("expected failed request to be counted")
			}
		})
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	transport := NewHTTPTransport("test", ProviderConfig{Timeout: 50 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := transport.Do(ctx, http.MethodGet, server.URL, nil, nil)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline exceeded, got %v", err)
	}
}

func TestHTTPTransport_ClientBuiltOnce(t *testing.T) {
	transport := NewHTTPTransport("test", ProviderConfig{MaxIdleConns: 5})

	var wg sync.WaitGroup
	clients := make([]*http.Client, 20)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i] = transport.Client()
		}(i)
	}
	wg.Wait()

	for i, c := range clients {
		if c != clients[0] {
			t.Fatalf("client %d differs from first client", i)
		}
	}

	tr, ok := clients[0].Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport type %T", clients[0].Transport)
	}
	if tr.MaxIdleConns != 5 {
		t.Errorf("expected MaxIdleConns 5, got %d", tr.MaxIdleConns)
	}
	if tr.MaxIdleConnsPerHost != 10 {
		t.Errorf("expected default MaxIdleConnsPerHost 10, got %d", tr.MaxIdleConnsPerHost)
	}
}

func TestHTTPTransport_CloseConcurrentWithFirstRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	transport := NewHTTPTransport("test", ProviderConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			transport.Close()
		}()
		go func() {
			defer wg.Done()
			if _, err := transport.DoJSON(context.Background(), http.MethodGet, server.URL, nil, nil); err != nil {
				t.Errorf("request failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if transport.Client() == nil {
		t.Fatal("expected a usable client after Close")
	}
	if err := transport.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestHTTPTransport_StreamBodyLeftOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: hello\n\n"))
	}))
	defer server.Close()

	transport := NewHTTPTransport("test", ProviderConfig{})
	resp, err := transport.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(body) != "data: hello\n\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}
