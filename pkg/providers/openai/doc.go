// Package openai implements the OpenAI chat completions adapter.
//
// It supports:
//
//   - Chat completions with retry on transient failures
//   - Streaming responses (Server-Sent Events), one chunk per item
//   - Function/tool calling, including streamed tool call fragments
//   - Token usage, including the trailing usage item of a stream
//
// # Basic Usage
//
//	provider, err := openai.NewProvider(providers.ProviderConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	resp, err := provider.Complete(ctx, []providers.Message{
//	    {Role: providers.RoleUser, Content: "Hello!"},
//	}, providers.CompletionOptions{Model: "gpt-4o-mini"})
//
// The wire types, BuildRequest, ParseResponse and ChunkFromStream are exported
// so adapters for OpenAI-compatible servers can reuse them.
package openai
