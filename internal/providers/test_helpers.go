package providers

import (
	"context"
	"strings"
	"testing"
	"time"

	"mercator-hq/conduit/pkg/providers"
)

// TestConfig returns a provider configuration suitable for tests.
func TestConfig(name string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:                name,
		BaseURL:             "http://localhost:8080",
		APIKey:              "test-key",
		Timeout:             5 * time.Second,
		MaxRetries:          2,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
	}
}

// TestConfigWithURL returns a test config with a specific base URL.
func TestConfigWithURL(name, baseURL string) providers.ProviderConfig {
	config := TestConfig(name)
	config.BaseURL = baseURL
	return config
}

// NoWait makes retry waits instantaneous. Adapters embedding providers.Base
// satisfy the interface.
func NoWait(p interface {
	RetryPolicy() providers.RetryPolicy
	SetRetryPolicy(providers.RetryPolicy)
}) {
	policy := p.RetryPolicy()
	policy.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	p.SetRetryPolicy(policy)
}

// UserMessage creates a single user message slice.
func UserMessage(content string) []providers.Message {
	return []providers.Message{{Role: providers.RoleUser, Content: content}}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertEqual fails the test if got != expected.
func AssertEqual(t *testing.T, got, expected interface{}) {
	t.Helper()
	if got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

// AssertContains fails the test if haystack doesn't contain needle.
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q to contain %q", haystack, needle)
	}
}

// CollectStreamChunks drains a stream channel. Collection stops at the first
// chunk carrying an error, which is returned.
func CollectStreamChunks(t *testing.T, chunks <-chan *providers.StreamChunk) ([]*providers.StreamChunk, error) {
	t.Helper()

	timeout := time.After(10 * time.Second)
	var collected []*providers.StreamChunk
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return collected, nil
			}
			if chunk.Error != nil {
				return collected, chunk.Error
			}
			collected = append(collected, chunk)
		case <-timeout:
			t.Fatal("stream did not finish within 10s")
			return collected, nil
		}
	}
}

// ConcatenateChunks concatenates the content of all chunks.
func ConcatenateChunks(chunks []*providers.StreamChunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		b.WriteString(chunk.Content)
	}
	return b.String()
}

// WaitForCondition waits for a condition to become true within a timeout.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}
		<-ticker.C
	}
}
