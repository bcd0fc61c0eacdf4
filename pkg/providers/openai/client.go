package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"mercator-hq/conduit/pkg/providers"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when neither the call nor the config names a model.
	DefaultModel = "gpt-4o"
)

// modelPrefixes are the chat model families kept by ListModels.
var modelPrefixes = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}

// Provider is the OpenAI chat completions adapter.
type Provider struct {
	providers.Base
	transport *providers.HTTPTransport
	baseURL   string
}

// NewProvider creates an OpenAI adapter. The HTTP client is built on first use.
// A missing API key is not an error here; IsReady reports it and calls fail
// with a *providers.ConfigError.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		config.Name = string(providers.KindOpenAI)
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	p := &Provider{
		Base:      providers.NewBase(providers.KindOpenAI, config, DefaultModel),
		transport: providers.NewHTTPTransport(config.Name, config),
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
	}

	p.Logger().Info("OpenAI provider initialized", "base_url", p.baseURL)
	return p, nil
}

// IsReady reports whether an API key is configured.
func (p *Provider) IsReady() bool {
	return p.Config().APIKey != ""
}

// Complete sends a non-streaming chat completion through the retry engine.
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
	model := p.ResolveModel(opts)
	body, err := json.Marshal(BuildRequest(model, messages, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := providers.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	url := p.baseURL + "/chat/completions"
	raw, err := providers.WithRetry(ctx, p.RetryPolicy(), func(ctx context.Context) ([]byte, error) {
		attemptCtx, cancel := providers.WithTimeout(ctx, p.Config().Timeout)
		defer cancel()
		return p.transport.DoJSON(attemptCtx, http.MethodPost, url, body, p.headers())
	})
	if err != nil {
		return nil, err
	}

	resp, err = ParseResponse(p.Name(), raw)
	if err != nil {
		return nil, err
	}
	resp.Latency = time.Since(start)

	p.Logger().Debug("completion succeeded",
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
		"latency_ms", resp.LatencyMs(),
	)
	return resp, nil
}

// Stream sends a streaming chat completion. Streams are not retried.
// Usage, when reported, arrives on the chunk carrying the finish reason.
func (p *Provider) Stream(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (<-chan *providers.StreamChunk, error) {
	if err := p.preflight(messages, opts); err != nil {
		return nil, err
	}

	req := BuildRequest(p.ResolveModel(opts), messages, opts)
	req.Stream = true
	req.StreamOptions = &StreamOptions{IncludeUsage: true}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := providers.WithTimeout(ctx, opts.Timeout)

	headers := p.headers()
	headers["Accept"] = "text/event-stream"

	httpResp, err := p.transport.Do(ctx, http.MethodPost, p.baseURL+"/chat/completions", body, headers)
	if err != nil {
		cancel()
		return nil, err
	}

	reader := newStreamReader(p.Name(), httpResp.Body)
	out := make(chan *providers.StreamChunk)

	go func() {
		defer cancel()
		defer reader.Close()
		defer close(out)

		p.pump(ctx, reader, out)
	}()

	return out, nil
}

// ListModels returns the chat model ids exposed to the API key, sorted.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	ids, err := p.fetchModels(ctx)
	if err != nil {
		return nil, err
	}

	var models []string
	for _, id := range ids {
		if hasModelPrefix(id) {
			models = append(models, id)
		}
	}
	sort.Strings(models)
	return models, nil
}

// ValidateCredentials probes the model listing endpoint once.
func (p *Provider) ValidateCredentials(ctx context.Context) bool {
	if !p.IsReady() {
		return false
	}
	_, err := p.fetchModels(ctx)
	if err != nil {
		p.Logger().Debug("credential probe failed", "error", err)
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
			Field:    "api_key",
			Message:  "API key is required for OpenAI",
		}
	}
	return nil
}

func (p *Provider) fetchModels(ctx context.Context) ([]string, error) {
	ctx, cancel := providers.WithTimeout(ctx, p.Config().Timeout)
	defer cancel()

	raw, err := p.transport.DoJSON(ctx, http.MethodGet, p.baseURL+"/models", nil, p.headers())
	if err != nil {
		return nil, err
	}
	return providers.ParseModelList(p.Name(), raw)
}

func (p *Provider) headers() map[string]string {
	cfg := p.Config()
	headers := map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
	}
	if cfg.Organization != "" {
		headers["OpenAI-Organization"] = cfg.Organization
	}
	return headers
}

func hasModelPrefix(id string) bool {
	for _, prefix := range modelPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}
