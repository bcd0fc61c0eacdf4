package providers

import (
	"context"
	"fmt"
	"sync"

	"mercator-hq/conduit/pkg/providers"
)

// MockProvider is an in-process implementation of providers.Provider for
// dispatcher tests. It never touches the network.
type MockProvider struct {
	kind  providers.Kind
	name  string
	model string

	mu       sync.Mutex
	response *providers.CompletionResponse
	chunks   []*providers.StreamChunk
	models   []string
	err      error
	valid    bool
	calls    []providers.CompletionOptions
	closed   bool
	retryFn  func(providers.RetryEvent)
}

// NewMockProvider creates a mock adapter of the given kind that answers every
// completion with "mock response".
func NewMockProvider(kind providers.Kind) *MockProvider {
	return &MockProvider{
		kind:  kind,
		name:  string(kind),
		model: "mock-model",
		valid: true,
		response: &providers.CompletionResponse{
			ID:           "mock-1",
			Content:      "mock response",
			FinishReason: providers.FinishReasonStop,
			Usage:        providers.NewTokenUsage(10, 5),
		},
	}
}

// SetResponse replaces the completion response.
func (m *MockProvider) SetResponse(resp *providers.CompletionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = resp
}

// SetChunks sets the chunks Stream delivers.
func (m *MockProvider) SetChunks(chunks ...*providers.StreamChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = chunks
}

// SetModels sets the ListModels result.
func (m *MockProvider) SetModels(models ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = models
}

// SetError makes Complete, Stream and ListModels fail with err.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetValid sets the ValidateCredentials result.
func (m *MockProvider) SetValid(valid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid = valid
}

// Calls returns the options of every Complete and Stream call.
func (m *MockProvider) Calls() []providers.CompletionOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.CompletionOptions(nil), m.calls...)
}

// Closed reports whether Close was called.
func (m *MockProvider) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// EmitRetry invokes the installed retry hook, if any.
func (m *MockProvider) EmitRetry(event providers.RetryEvent) {
	m.mu.Lock()
	fn := m.retryFn
	m.mu.Unlock()
	if fn != nil {
		fn(event)
	}
}

func (m *MockProvider) Kind() providers.Kind { return m.kind }
func (m *MockProvider) Name() string         { return m.name }
func (m *MockProvider) IsReady() bool        { return true }
func (m *MockProvider) DefaultModel() string { return m.model }

// SetRetryHook records fn so tests can fire it with EmitRetry.
func (m *MockProvider) SetRetryHook(fn func(providers.RetryEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryFn = fn
}

func (m *MockProvider) ListModels(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]string(nil), m.models...), nil
}

func (m *MockProvider) Complete(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (*providers.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, opts)
	if m.err != nil {
		return nil, m.err
	}

	resp := *m.response
	if resp.Model == "" {
		resp.Model = opts.Model
		if resp.Model == "" {
			resp.Model = m.model
		}
	}
	return &resp, nil
}

func (m *MockProvider) Stream(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (<-chan *providers.StreamChunk, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	chunks := append([]*providers.StreamChunk(nil), m.chunks...)
	m.mu.Unlock()

	out := make(chan *providers.StreamChunk)
	go func() {
		defer close(out)
		for _, chunk := range chunks {
			if !providers.SendChunk(ctx, out, chunk) {
				return
			}
		}
	}()
	return out, nil
}

func (m *MockProvider) ValidateCredentials(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("provider %s already closed", m.name)
	}
	m.closed = true
	return nil
}
