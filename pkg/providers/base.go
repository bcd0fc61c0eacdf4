package providers

import (
	"context"
	"log/slog"
	"time"
)

// Base carries the behavior shared by every adapter: default-model resolution,
// error wrapping, the adapter-tagged logger and the retry policy.
//
// Adapters embed Base and must not redefine its methods.
type Base struct {
	kind          Kind
	config        ProviderConfig
	fallbackModel string
	logger        *slog.Logger
	retry         RetryPolicy
}

// NewBase builds the shared adapter state. fallbackModel is the adapter's fixed
// default, used when config.DefaultModel is empty.
func NewBase(kind Kind, config ProviderConfig, fallbackModel string) Base {
	if config.Name == "" {
		config.Name = string(kind)
	}

	logger := slog.Default().With("provider", config.Name)

	retry := DefaultRetryPolicy()
	if config.MaxRetries > 0 {
		retry.MaxAttempts = config.MaxRetries
	}
	retry.Logger = logger

	return Base{
		kind:          kind,
		config:        config,
		fallbackModel: fallbackModel,
		logger:        logger,
		retry:         retry,
	}
}

// Kind returns the adapter family.
func (b *Base) Kind() Kind {
	return b.kind
}

// Name returns the adapter's configured name.
func (b *Base) Name() string {
	return b.config.Name
}

// Config returns the adapter configuration.
func (b *Base) Config() ProviderConfig {
	return b.config
}

// Logger returns the adapter-tagged logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// DefaultModel returns config.DefaultModel if set, else the adapter's fixed default.
func (b *Base) DefaultModel() string {
	if b.config.DefaultModel != "" {
		return b.config.DefaultModel
	}
	return b.fallbackModel
}

// ResolveModel returns opts.Model when set, else DefaultModel.
func (b *Base) ResolveModel(opts CompletionOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return b.DefaultModel()
}

// RetryPolicy returns the policy used for non-streaming calls.
func (b *Base) RetryPolicy() RetryPolicy {
	return b.retry
}

// SetRetryPolicy replaces the retry policy. The adapter logger is kept when
// the new policy has none.
func (b *Base) SetRetryPolicy(p RetryPolicy) {
	if p.Logger == nil {
		p.Logger = b.logger
	}
	b.retry = p
}

// SetRetryHook installs a callback invoked before each retry wait.
func (b *Base) SetRetryHook(fn func(RetryEvent)) {
	b.retry.OnRetry = fn
}

// HandleError normalizes anything surfaced by an adapter into an error.
// Values that are not errors (for example recovered panics) are wrapped in a
// *PanicError.
func (b *Base) HandleError(v interface{}) error {
	switch e := v.(type) {
	case nil:
		return nil
	case error:
		return e
	default:
		return &PanicError{Provider: b.config.Name, Value: v}
	}
}

// CallContext derives the context for a single call, applying opts.Timeout or,
// when that is unset, fallback.
func CallContext(ctx context.Context, opts CompletionOptions, fallback time.Duration) (context.Context, context.CancelFunc) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = fallback
	}
	return WithTimeout(ctx, timeout)
}

// WithTimeout is context.WithTimeout that treats d <= 0 as no deadline.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// SendChunk delivers chunk unless ctx is done first. It reports whether the
// chunk was delivered; producers stop on false.
func SendChunk(ctx context.Context, out chan<- *StreamChunk, chunk *StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
