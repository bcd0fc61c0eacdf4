// Package providers defines the provider-agnostic contract shared by every
// LLM backend adapter, together with the pieces adapters build on.
//
// # Overview
//
// The package normalizes three different vendor wire formats behind one
// interface. Callers send a list of Messages with CompletionOptions and get
// back a CompletionResponse, or a channel of StreamChunks for streaming calls.
// The concrete adapters live in subpackages:
//
//  1. openai - OpenAI chat completions API
//  2. anthropic - Anthropic messages API
//  3. local - any OpenAI-compatible local server (Ollama, LM Studio, vLLM)
//
// The dispatcher package selects an adapter per request; this package only
// knows about a single adapter at a time.
//
// # Basic Usage
//
//	p, err := openai.NewProvider(providers.ProviderConfig{
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	    Timeout: 60 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	resp, err := p.Complete(ctx, []providers.Message{
//	    {Role: providers.RoleUser, Content: "Hello!"},
//	}, providers.CompletionOptions{Temperature: providers.Float(0.2)})
//
// # Streaming
//
//	chunks, err := p.Stream(ctx, msgs, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for chunk := range chunks {
//	    if chunk.Error != nil {
//	        log.Fatal(chunk.Error)
//	    }
//	    fmt.Print(chunk.Content)
//	}
//
// Collect folds a whole stream into a CompletionResponse, merging tool call
// fragments with a ToolCallAccumulator.
//
// # Retry Logic
//
// Non-streaming calls go through WithRetry: up to three attempts, waiting
// 1s then 2s. Errors whose message names an authentication, authorization,
// not-found or invalid-request condition fail immediately. Parsing happens
// after the retried call, so a malformed response is never retried.
// Streams are never retried.
//
// # Error Handling
//
// The package defines specific error types for common failure scenarios:
//
//   - ProviderError: transport failure with status and body
//   - AuthError: HTTP 401/403
//   - RateLimitError: HTTP 429
//   - TimeoutError: deadline exceeded or call cancelled
//   - ParseError: malformed vendor response
//   - StreamError: failure after a stream was opened
//   - ValidationError: invalid request, detected before any I/O
//   - ConfigError: invalid adapter configuration
//   - NoProviderError: no initialized adapter for a request
//
// # Thread Safety
//
// Adapters are safe for concurrent use. The only shared mutable state is the
// HTTPTransport, whose client is built once on first use.
package providers
