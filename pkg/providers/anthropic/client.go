package anthropic

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
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultModel is used when neither the call nor the config names a model.
	DefaultModel = "claude-3-5-sonnet-20241022"

	// DefaultAnthropicVersion is the API version header value.
	DefaultAnthropicVersion = "2023-06-01"
)

// Provider is the Anthropic messages API adapter.
type Provider struct {
	providers.Base
	transport *providers.HTTPTransport
	baseURL   string
}

// NewProvider creates an Anthropic adapter. The HTTP client is built on first use.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		config.Name = string(providers.KindAnthropic)
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	p := &Provider{
		Base:      providers.NewBase(providers.KindAnthropic, config, DefaultModel),
		transport: providers.NewHTTPTransport(config.Name, config),
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
	}

	p.Logger().Info("Anthropic provider initialized", "base_url", p.baseURL)
	return p, nil
}

// IsReady reports whether an API key is configured.
func (p *Provider) IsReady() bool {
	return p.Config().APIKey != ""
}

// Complete sends a non-streaming messages request through the retry engine.
func (p *Provider) Complete(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (resp *providers.CompletionResponse, err error) {
	defer func() {
		if v := recover(); v != nil {
			resp, err = nil, p.HandleError(v)
		}
	}()

	start := time.Now()
	body, err := p.payload(messages, opts, false)
	if err != nil {
		return nil, err
	}

	ctx, cancel := providers.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	url := p.baseURL + "/v1/messages"
	raw, err := providers.WithRetry(ctx, p.RetryPolicy(), func(ctx context.Context) ([]byte, error) {
		attemptCtx, cancel := providers.WithTimeout(ctx, p.Config().Timeout)
		defer cancel()
		return p.transport.DoJSON(attemptCtx, http.MethodPost, url, body, p.headers())
	})
	if err != nil {
		return nil, err
	}

	resp, err = parseResponse(p.Name(), raw)
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

// Stream sends a streaming messages request. The vendor event stream is parsed
// by an emitter goroutine and bridged to the returned channel: one chunk per
// text delta, then a terminal chunk carrying the finish reason, usage and any
// tool calls. Streams are not retried.
func (p *Provider) Stream(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (<-chan *providers.StreamChunk, error) {
	body, err := p.payload(messages, opts, true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := providers.WithTimeout(ctx, opts.Timeout)

	headers := p.headers()
	headers["Accept"] = "text/event-stream"

	httpResp, err := p.transport.Do(ctx, http.MethodPost, p.baseURL+"/v1/messages", body, headers)
	if err != nil {
		cancel()
		return nil, err
	}

	stream := newMessageStream(p.Name(), httpResp.Body, p.Logger())
	bridge := newChunkBridge()

	stream.OnText(func(text string) {
		bridge.push(&providers.StreamChunk{ID: stream.ID(), Model: stream.Model(), Content: text})
	})
	stream.OnMessage(func(msg *MessagesResponse) {
		bridge.finish(finalChunk(msg))
	})
	stream.OnError(func(err error) {
		if ctx.Err() != nil {
			err = &providers.TimeoutError{Provider: p.Name(), Timeout: opts.Timeout, Cause: ctx.Err()}
		}
		bridge.finish(&providers.StreamChunk{ID: stream.ID(), Model: stream.Model(), Error: err})
	})
	stream.Start()

	out := make(chan *providers.StreamChunk)
	go func() {
		defer cancel()
		defer stream.Close()
		defer close(out)

		bridge.drain(ctx, out)
	}()

	return out, nil
}

// ListModels returns the Claude model ids visible to the API key, sorted.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	ids, err := p.fetchModels(ctx)
	if err != nil {
		return nil, err
	}

	var models []string
	for _, id := range ids {
		if strings.HasPrefix(id, "claude") {
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
	if _, err := p.fetchModels(ctx); err != nil {
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

// payload validates the call and encodes the request body.
func (p *Provider) payload(messages []providers.Message, opts providers.CompletionOptions, stream bool) ([]byte, error) {
	if err := providers.ValidateRequest(messages, opts); err != nil {
		return nil, err
	}
	if !p.IsReady() {
		return nil, &providers.ConfigError{
			Provider: p.Name(),
			Field:    "api_key",
			Message:  "API key is required for Anthropic",
		}
	}

	system, formatted, dropped, err := formatMessages(messages)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		p.Logger().Debug("dropped extra system messages", "count", dropped)
	}
	if len(formatted) == 0 {
		return nil, &providers.ValidationError{
			Field:   "messages",
			Message: "at least one non-system message is required",
		}
	}

	req := buildRequest(p.ResolveModel(opts), system, formatted, opts)
	req.Stream = stream

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
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
	return map[string]string{
		"x-api-key":         p.Config().APIKey,
		"anthropic-version": DefaultAnthropicVersion,
	}
}
