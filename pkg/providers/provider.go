package providers

import "context"

// Provider is the contract every backend adapter implements.
//
// All blocking methods accept a context.Context for cancellation. Concurrent
// calls against one adapter are independent; they share only the adapter's
// lazily built transport client.
//
// Example usage:
//
//	p, err := openai.NewProvider(providers.ProviderConfig{APIKey: key})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	resp, err := p.Complete(ctx, []providers.Message{
//	    {Role: providers.RoleUser, Content: "Hello!"},
//	}, providers.CompletionOptions{})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Content)
type Provider interface {
	// Kind returns the adapter family (openai, anthropic, local).
	Kind() Kind

	// Name returns the adapter's configured name.
	Name() string

	// IsReady reports whether the local configuration is sufficient to make
	// calls. It never performs network I/O.
	IsReady() bool

	// DefaultModel returns the configured default model, or the adapter's
	// built-in default when none is configured.
	DefaultModel() string

	// ListModels returns the model identifiers the vendor exposes for this adapter.
	ListModels(ctx context.Context) ([]string, error)

	// Complete sends a non-streaming completion. Transport failures are retried
	// with exponential backoff; malformed responses are not.
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*CompletionResponse, error)

	// Stream sends a streaming completion and returns a channel of chunks in
	// transport order. The channel is closed when the stream ends. A failure
	// after the stream was opened is delivered as the Error of the last chunk.
	// Cancelling ctx stops delivery and releases the connection.
	//
	// Example:
	//
	//  chunks, err := p.Stream(ctx, msgs, opts)
	//  if err != nil {
	//      return err
	//  }
	//  for chunk := range chunks {
	//      if chunk.Error != nil {
	//          return chunk.Error
	//      }
	//      fmt.Print(chunk.Content)
	//  }
	Stream(ctx context.Context, messages []Message, opts CompletionOptions) (<-chan *StreamChunk, error)

	// ValidateCredentials performs one minimal network probe. Any failure
	// yields false; it never returns an error.
	ValidateCredentials(ctx context.Context) bool

	// Close releases idle connections. The adapter must not be used afterwards.
	Close() error
}
