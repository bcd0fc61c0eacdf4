// Package local implements an adapter for self-hosted, OpenAI-compatible
// servers such as Ollama, LM Studio and vLLM.
//
// Requests use the chat completions format under {base}/v1. The API key is
// optional and sent as a bearer token only when configured, and the base URL
// defaults to http://localhost:11434.
//
// # Example
//
//	provider, err := local.NewProvider(providers.ProviderConfig{
//	    BaseURL: "http://localhost:1234",
//	    Timeout: 120 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	resp, err := provider.Complete(ctx, []providers.Message{
//	    {Role: providers.RoleUser, Content: "Tell me about Go"},
//	}, providers.CompletionOptions{Model: "llama3.1"})
//
// # Streaming
//
// Self-hosted servers frame events loosely, so the stream body is read in raw
// blocks and split into lines by hand. A line cut across two reads is held
// until its newline arrives. Only "data: " lines carry events. "[DONE]" ends
// the stream at once and anything after it is ignored. Lines whose payload is
// not JSON are skipped rather than failing the stream.
//
// Compatibility varies between servers: tool calling, usage reporting and some
// sampling options may be ignored by the backend.
package local
