// Package anthropic implements the Anthropic messages API adapter.
//
// The adapter satisfies providers.Provider. Neutral messages are folded into
// the messages API shape before sending:
//
//   - the first system message becomes the top-level system prompt and later
//     ones are dropped
//   - tool messages become user messages carrying a tool_result block
//   - assistant tool calls become tool_use blocks
//
// max_tokens is required by the API and defaults to DefaultMaxTokens.
//
// # Basic Usage
//
//	provider, err := anthropic.NewProvider(providers.ProviderConfig{
//	    APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
//	    Timeout: 60 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	resp, err := provider.Complete(ctx, []providers.Message{
//	    {Role: providers.RoleSystem, Content: "You are terse."},
//	    {Role: providers.RoleUser, Content: "Hello"},
//	}, providers.CompletionOptions{})
//
// # Streaming
//
// The vendor event stream is parsed by an emitter goroutine that reports text
// deltas and a final accumulated message. A queue bridges those callbacks to
// the returned channel so the emitter never blocks on a slow consumer. The
// channel carries one chunk per text delta followed by a terminal chunk with
// the finish reason, usage and complete tool calls. A stream that ends without
// message_stop, or that carries an error event, ends with a chunk whose Error
// is a *providers.StreamError.
package anthropic
