package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/conduit/pkg/catalog"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/logging"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/usage"
)

// Config holds the optional collaborators of a Dispatcher.
type Config struct {
	// Catalog resolves model ids to kinds and prices calls.
	// Default: catalog.NewDefault()
	Catalog *catalog.Catalog

	// Metrics receives request, retry and cost observations. Nil disables metrics.
	Metrics *metrics.Collector

	// Usage records one entry per call. Nil disables the ledger.
	Usage usage.Store

	// Logger defaults to slog.Default() tagged component=dispatcher.
	Logger *slog.Logger
}

// Dispatcher owns at most one initialized adapter per kind and routes calls
// to them.
//
// Dispatcher is thread-safe and can be used concurrently.
type Dispatcher struct {
	adapters    map[providers.Kind]providers.Provider
	defaultKind providers.Kind
	mu          sync.RWMutex

	catalog *catalog.Catalog
	metrics *metrics.Collector
	usage   usage.Store
	logger  *slog.Logger
}

// New creates an empty dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.NewDefault()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "dispatcher")
	}

	return &Dispatcher{
		adapters: make(map[providers.Kind]providers.Provider),
		catalog:  cfg.Catalog,
		metrics:  cfg.Metrics,
		usage:    cfg.Usage,
		logger:   cfg.Logger,
	}
}

// NewFromConfig creates a dispatcher with every provider in appCfg initialized
// and appCfg.DefaultProvider as the default. Failures are collected and
// returned together; the adapters already built are closed.
func NewFromConfig(appCfg *config.Config, cfg Config) (*Dispatcher, error) {
	d := New(cfg)

	var errs []error
	for _, kind := range appCfg.Kinds() {
		pc, _ := appCfg.ProviderConfig(kind)
		if err := d.Initialize(kind, pc); err != nil {
			errs = append(errs, err)
			d.logger.Error("failed to initialize provider", "kind", kind, "error", err)
		}
	}
	if len(errs) > 0 {
		d.Close()
		return nil, fmt.Errorf("failed to initialize %d provider(s): %w", len(errs), errors.Join(errs...))
	}

	if appCfg.DefaultProvider != "" {
		if err := d.SetDefault(providers.Kind(appCfg.DefaultProvider)); err != nil {
			d.Close()
			return nil, err
		}
	}

	d.logger.Info("dispatcher ready",
		"providers", len(d.Providers()),
		"default", d.Default(),
	)
	return d, nil
}

// Initialize builds the adapter for kind and stores it, replacing (and
// closing) any adapter of the same kind.
func (d *Dispatcher) Initialize(kind providers.Kind, cfg providers.ProviderConfig) error {
	p, err := NewProvider(kind, cfg)
	if err != nil {
		return err
	}
	d.Register(p)
	return nil
}

// Register stores a pre-built adapter under p.Kind(), replacing (and closing)
// any adapter of the same kind. The first registered adapter becomes the
// default until SetDefault is called.
func (d *Dispatcher) Register(p providers.Provider) {
	kind := p.Kind()
	d.installRetryHook(p)

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.adapters[kind]; ok && existing != p {
		d.logger.Warn("replacing existing provider", "kind", kind)
		if err := existing.Close(); err != nil {
			d.logger.Error("error closing provider", "kind", kind, "error", err)
		}
	}

	d.adapters[kind] = p
	if d.defaultKind == "" {
		d.defaultKind = kind
	}

	d.logger.Info("provider registered",
		"kind", kind,
		"name", p.Name(),
		"total_providers", len(d.adapters),
	)
}

// retryHookSetter is implemented by adapters embedding providers.Base.
type retryHookSetter interface {
	SetRetryHook(func(providers.RetryEvent))
}

func (d *Dispatcher) installRetryHook(p providers.Provider) {
	setter, ok := p.(retryHookSetter)
	if !ok {
		return
	}
	provider := string(p.Kind())
	setter.SetRetryHook(func(event providers.RetryEvent) {
		d.metrics.RecordRetry(provider, event)
	})
}

// SetDefault selects the adapter used when a call names neither a provider
// nor a model.
func (d *Dispatcher) SetDefault(kind providers.Kind) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.adapters[kind]; !ok {
		return &providers.ConfigError{
			Provider: string(kind),
			Field:    "default_provider",
			Message:  "provider is not initialized",
		}
	}
	d.defaultKind = kind
	return nil
}

// Default returns the default kind ("" when no adapter is registered).
func (d *Dispatcher) Default() providers.Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultKind
}

// Provider returns the adapter registered for kind.
func (d *Dispatcher) Provider(kind providers.Kind) (providers.Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.adapters[kind]
	return p, ok
}

// Providers returns the initialized kinds, sorted.
func (d *Dispatcher) Providers() []providers.Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()

	kinds := make([]providers.Kind, 0, len(d.adapters))
	for kind := range d.adapters {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ResolveKind picks the kind that serves a call:
//  1. explicit, when set
//  2. the catalog's provider for model
//  3. a guess from the model id's prefix (unknown ids go to local)
//  4. the default kind, when no model is given
func (d *Dispatcher) ResolveKind(model string, explicit providers.Kind) providers.Kind {
	switch {
	case explicit != "":
		return explicit
	case model != "":
		if kind, ok := d.catalog.ProviderFor(model); ok {
			return kind
		}
		return catalog.InferProvider(model)
	default:
		return d.Default()
	}
}

// Resolve returns the adapter that serves a call, or a *providers.NoProviderError
// when the resolved kind is not initialized.
func (d *Dispatcher) Resolve(model string, explicit providers.Kind) (providers.Provider, error) {
	kind := d.ResolveKind(model, explicit)

	if p, ok := d.Provider(kind); ok {
		return p, nil
	}
	return nil, &providers.NoProviderError{Model: model, Provider: kind}
}

// Complete forwards a completion to the resolved adapter. Adapter errors are
// returned unchanged.
func (d *Dispatcher) Complete(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (*providers.CompletionResponse, error) {
	p, err := d.Resolve(opts.Model, opts.Provider)
	if err != nil {
		return nil, err
	}

	c := d.newCall(p, opts, false)
	ctx = c.context(ctx)

	resp, err := p.Complete(ctx, messages, opts)

	c.duration = time.Since(c.start)
	c.err = err
	if resp != nil {
		c.usage = resp.Usage
		c.usageReported = true
		c.finishReason = resp.FinishReason
	}
	d.observe(ctx, c)

	return resp, err
}

// Stream forwards a streaming completion to the resolved adapter. Chunks are
// relayed unchanged and in order; the call is recorded once the adapter
// closes its channel or the consumer cancels ctx.
func (d *Dispatcher) Stream(ctx context.Context, messages []providers.Message, opts providers.CompletionOptions) (<-chan *providers.StreamChunk, error) {
	p, err := d.Resolve(opts.Model, opts.Provider)
	if err != nil {
		return nil, err
	}

	c := d.newCall(p, opts, true)
	ctx = c.context(ctx)

	in, err := p.Stream(ctx, messages, opts)
	if err != nil {
		c.duration = time.Since(c.start)
		c.err = err
		d.observe(ctx, c)
		return nil, err
	}

	out := make(chan *providers.StreamChunk)
	go d.relay(ctx, in, out, c)
	return out, nil
}

func (d *Dispatcher) relay(ctx context.Context, in <-chan *providers.StreamChunk, out chan<- *providers.StreamChunk, c *call) {
	defer close(out)

	for chunk := range in {
		if c.firstChunk == 0 {
			c.firstChunk = time.Since(c.start)
		}
		if chunk.Usage != nil {
			c.usage = *chunk.Usage
			c.usageReported = true
		}
		if chunk.FinishReason != "" {
			c.finishReason = chunk.FinishReason
		}
		if chunk.Error != nil {
			c.err = chunk.Error
		}

		if !providers.SendChunk(ctx, out, chunk) {
			c.err = ctx.Err()
			// the adapter stops on the same ctx and closes in
			for range in {
			}
			break
		}
	}

	c.duration = time.Since(c.start)
	d.observe(ctx, c)
}

// ListAllModels asks every adapter for its models. A failing adapter yields
// an empty list and never aborts the others.
func (d *Dispatcher) ListAllModels(ctx context.Context) map[providers.Kind][]string {
	result := make(map[providers.Kind][]string)
	var mu sync.Mutex

	d.each(func(kind providers.Kind, p providers.Provider) {
		models, err := p.ListModels(ctx)
		if err != nil {
			d.logger.Warn("failed to list models", "kind", kind, "error", err)
		}
		if err != nil || models == nil {
			models = []string{}
		}

		mu.Lock()
		result[kind] = models
		mu.Unlock()
	}, func(kind providers.Kind) {
		mu.Lock()
		result[kind] = []string{}
		mu.Unlock()
	})

	return result
}

// ValidateAllCredentials probes every adapter. A failing adapter yields false
// and never aborts the others.
func (d *Dispatcher) ValidateAllCredentials(ctx context.Context) map[providers.Kind]bool {
	result := make(map[providers.Kind]bool)
	var mu sync.Mutex

	d.each(func(kind providers.Kind, p providers.Provider) {
		valid := p.ValidateCredentials(ctx)

		mu.Lock()
		result[kind] = valid
		mu.Unlock()
	}, func(kind providers.Kind) {
		mu.Lock()
		result[kind] = false
		mu.Unlock()
	})

	return result
}

// each runs fn concurrently for every adapter. A panicking fn is logged and
// reported through failed.
func (d *Dispatcher) each(fn func(providers.Kind, providers.Provider), failed func(providers.Kind)) {
	d.mu.RLock()
	snapshot := make(map[providers.Kind]providers.Provider, len(d.adapters))
	for kind, p := range d.adapters {
		snapshot[kind] = p
	}
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for kind, p := range snapshot {
		wg.Add(1)
		go func(kind providers.Kind, p providers.Provider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("provider panicked", "kind", kind, "panic", r)
					failed(kind)
				}
			}()
			fn(kind, p)
		}(kind, p)
	}
	wg.Wait()
}

// Close closes every adapter and empties the dispatcher.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for kind, p := range d.adapters {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", kind, err))
		}
	}

	d.adapters = make(map[providers.Kind]providers.Provider)
	d.defaultKind = ""

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	d.logger.Info("dispatcher closed")
	return nil
}

// call tracks one forwarded completion or stream.
type call struct {
	id     string
	kind   providers.Kind
	model  string
	stream bool
	start  time.Time

	firstChunk    time.Duration
	duration      time.Duration
	usage         providers.TokenUsage
	usageReported bool
	finishReason  string
	err           error
}

func (d *Dispatcher) newCall(p providers.Provider, opts providers.CompletionOptions, stream bool) *call {
	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}
	return &call{
		id:     uuid.NewString(),
		kind:   p.Kind(),
		model:  model,
		stream: stream,
		start:  time.Now(),
	}
}

func (c *call) context(ctx context.Context) context.Context {
	if logging.GetRequestID(ctx) == "" {
		ctx = logging.WithRequestID(ctx, c.id)
	}
	ctx = logging.WithProvider(ctx, string(c.kind))
	return logging.WithModel(ctx, c.model)
}

// observe records metrics, a log line and a usage record for a finished call.
func (d *Dispatcher) observe(ctx context.Context, c *call) {
	provider := string(c.kind)
	status := usage.StatusSuccess
	if c.err != nil {
		status = usage.StatusError
		d.metrics.RecordProviderError(provider, c.err)
	}

	if c.stream {
		d.metrics.RecordStream(provider, c.model, status, c.firstChunk, c.duration, c.usage)
	} else {
		d.metrics.RecordRequest(provider, c.model, status, c.duration, c.usage)
	}

	var cost *float64
	if c.err == nil && c.usageReported {
		if v, ok := d.catalog.EstimateCost(c.model, c.usage.PromptTokens, c.usage.CompletionTokens); ok {
			cost = &v
			d.metrics.RecordCost(provider, c.model, v, c.usage.TotalTokens)
		} else {
			d.metrics.RecordUnpricedCall(provider, c.model)
		}
	}

	if c.err != nil {
		d.logger.WarnContext(ctx, "call failed",
			"stream", c.stream,
			"duration", c.duration,
			"error", c.err,
		)
	} else {
		d.logger.DebugContext(ctx, "call completed",
			"stream", c.stream,
			"duration", c.duration,
			"total_tokens", c.usage.TotalTokens,
			"finish_reason", c.finishReason,
		)
	}

	if d.usage == nil {
		return
	}

	rec := &usage.Record{
		ID:               c.id,
		Provider:         c.kind,
		Model:            c.model,
		Stream:           c.stream,
		Status:           status,
		ErrorType:        metrics.ErrorType(c.err),
		PromptTokens:     c.usage.PromptTokens,
		CompletionTokens: c.usage.CompletionTokens,
		TotalTokens:      c.usage.TotalTokens,
		CostUSD:          cost,
		LatencyMs:        c.duration.Milliseconds(),
		FinishReason:     c.finishReason,
	}
	if err := d.usage.Record(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.WarnContext(ctx, "failed to record usage", "error", err)
	}
}
