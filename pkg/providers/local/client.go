package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/providers/openai"
)

const (
	// DefaultBaseURL is where a self-hosted server listens by default.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is used when neither the call nor the config names a model.
	DefaultModel = "llama3.1"
)

// Provider talks to self-hosted OpenAI-compatible servers (Ollama, LM Studio,
// vLLM) over plain HTTP. The API key is optional.
type Provider struct {
	providers.Base
	transport *providers.HTTPTransport
	baseURL   string
}

// NewProvider creates a local adapter. BaseURL defaults to DefaultBaseURL.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		config.Name = string(providers.KindLocal)
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 5
	}

	p := &Provider{
		Base:      providers.NewBase(providers.KindLocal, config, DefaultModel),
		transport: providers.NewHTTPTransport(config.Name, config),
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
	}

	p.Logger().Info("Local provider initialized", "base_url", p.baseURL)
	return p, nil
}

// IsReady reports whether a base URL is configured.
func (p *Provider) IsReady() bool {
	return p.baseURL != ""
}

// Complete sends a non-streaming chat completion through the retry engine.
// Servers that omit the response id get a generated one.
func (p *Provider) Complete(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (resp *providers.CompletionResponse, err error) {
	defer func() {
		if v := recover(); v != nil {
			resp, err = nil, p.HandleError(v)
		}
	}()

	if err := p.preflight(messages, opts); err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := json.Marshal(openai.BuildRequest(p.ResolveModel(opts), messages, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := providers.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	url := p.baseURL + "/v1/chat/completions"
	raw, err := providers.WithRetry(ctx, p.RetryPolicy(), func(ctx context.Context) ([]byte, error) {
		attemptCtx, cancel := providers.WithTimeout(ctx, p.Config().Timeout)
		defer cancel()
		return p.transport.DoJSON(attemptCtx, http.MethodPost, url, body, p.headers())
	})
	if err != nil {
		return nil, err
	}

	resp, err = openai.ParseResponse(p.Name(), raw)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		resp.ID = "local-" + uuid.NewString()
	}
	resp.Latency = time.Since(start)

	p.Logger().Debug("completion succeeded",
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
		"latency_ms", resp.LatencyMs(),
	)
	return resp, nil
}

// Stream sends a streaming chat completion and frames the raw response body
// into events by hand. The whole stream is bounded by opts.Timeout, or by the
// configured timeout when that is unset. Streams are not retried.
func (p *Provider) Stream(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (<-chan *providers.StreamChunk, error) {
	if err := p.preflight(messages, opts); err != nil {
		return nil, err
	}

	req := openai.BuildRequest(p.ResolveModel(opts), messages, opts)
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.Config().Timeout
	}
	callCtx, cancel := providers.WithTimeout(ctx, timeout)

	headers := p.headers()
	headers["Accept"] = "text/event-stream"

	httpResp, err := p.transport.Do(callCtx, http.MethodPost, p.baseURL+"/v1/chat/completions", body, headers)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan *providers.StreamChunk)
	go func() {
		defer cancel()
		defer httpResp.Body.Close()
		defer close(out)

		p.pump(ctx, callCtx, timeout, httpResp.Body, out)
	}()

	return out, nil
}

// ListModels returns every model id the server exposes, sorted.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	ids, err := p.fetchModels(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ValidateCredentials probes the model listing endpoint once.
func (p *Provider) ValidateCredentials(ctx context.Context) bool {
	if !p.IsReady() {
		return false
	}
	if _, err := p.fetchModels(ctx); err != nil {
		p.Logger().Debug("probe failed", "error", err)
		return false
	}
	return true
}

// Close releases idle connections.
func (p *Provider) Close() error {
	return p.transport.Close()
}

// Stats returns transport bookkeeping.
func (p *Provider) Stats() providers.TransportStats {
	return p.transport.Stats()
}

func (p *Provider) preflight(messages []providers.Message, opts providers.CompletionOptions) error {
	if err := providers.ValidateRequest(messages, opts); err != nil {
		return err
	}
	if !p.IsReady() {
		return &providers.ConfigError{
			Provider: p.Name(),
			Field:    "base_url",
			Message:  "base URL is required for a local provider",
		}
	}
	return nil
}

func (p *Provider) fetchModels(ctx context.Context) ([]string, error) {
	ctx, cancel := providers.WithTimeout(ctx, p.Config().Timeout)
	defer cancel()

	raw, err := p.transport.DoJSON(ctx, http.MethodGet, p.baseURL+"/v1/models", nil, p.headers())
	if err != nil {
		return nil, err
	}
	return providers.ParseModelList(p.Name(), raw)
}

func (p *Provider) headers() map[string]string {
	headers := map[string]string{}
	if key := p.Config().APIKey; key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	return headers
}
