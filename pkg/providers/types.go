package providers

import "time"

// Kind identifies a provider adapter family.
type Kind string

// Supported provider kinds.
const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindLocal     Kind = "local"
)

// Message represents a single message in a conversation.
// It is provider-agnostic and is only read by adapters when building vendor payloads.
type Message struct {
	// Role identifies the message sender (system, user, assistant, tool)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`

	// ToolCallID references the tool call a tool-role message answers
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls contains function calls made by the assistant
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall represents a complete function call requested by the model.
// Function.Arguments is always a syntactically valid JSON document.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string `json:"id"`

	// Type is the type of tool call (currently always "function")
	Type string `json:"type"`

	// Function contains the function name and arguments
	Function FunctionCall `json:"function"`
}

// FunctionCall represents a specific function invocation.
type FunctionCall struct {
	// Name is the function name to call
	Name string `json:"name"`

	// Arguments is a JSON string containing the function arguments
	Arguments string `json:"arguments"`
}

// ToolCallDelta is a partial tool call fragment as emitted by a stream.
// Arguments may be an incomplete JSON document; fragments are keyed by Index.
type ToolCallDelta struct {
	Index    int          `json:"index"`
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// Tool represents a tool/function definition that the model can call.
type Tool struct {
	// Type is the type of tool (currently always "function")
	Type string `json:"type"`

	// Function contains the function definition
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition defines a callable function.
type FunctionDefinition struct {
	// Name is the function name
	Name string `json:"name"`

	// Description explains what the function does
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object describing the function parameters
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewTokenUsage builds a TokenUsage whose total is always prompt + completion.
// Negative vendor values are clamped to zero.
func NewTokenUsage(prompt, completion int) TokenUsage {
	if prompt < 0 {
		prompt = 0
	}
	if completion < 0 {
		completion = 0
	}
	return TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// CompletionOptions configures a single completion call.
//
// Pointer and slice fields left nil are never forwarded to a vendor: adapters
// omit the corresponding key instead of sending null or a default value.
type CompletionOptions struct {
	// Model overrides the adapter's default model
	Model string `json:"model,omitempty"`

	// Provider selects an adapter explicitly. It is consumed by the dispatcher
	// and never sent to a vendor.
	Provider Kind `json:"-"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate (> 0)
	MaxTokens *int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP *float64 `json:"top_p,omitempty"`

	// FrequencyPenalty reduces repetition based on frequency (-2.0 to 2.0)
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// PresencePenalty reduces repetition (-2.0 to 2.0)
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	// Stop sequences that will halt generation
	Stop []string `json:"stop,omitempty"`

	// Tools is a list of tools the model can call
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice controls which tools can be called.
	// Can be "none", "auto", "required" or a vendor-shaped object.
	ToolChoice interface{} `json:"tool_choice,omitempty"`

	// ResponseFormat is passed through to vendors that support it
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`

	// Timeout bounds the whole call when non-zero
	Timeout time.Duration `json:"-"`
}

// Float returns a pointer to v. It is a convenience for setting optional options.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// CompletionResponse represents a provider-agnostic completion response.
type CompletionResponse struct {
	// ID is the unique response identifier
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Content is the generated text content
	Content string `json:"content"`

	// FinishReason indicates why generation stopped
	FinishReason string `json:"finish_reason"`

	// ToolCalls contains any tool calls made by the model (nil when none)
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Usage contains token consumption information
	Usage TokenUsage `json:"usage"`

	// Latency spans payload construction to parsed-result availability
	Latency time.Duration `json:"-"`
}

// LatencyMs returns the measured latency in milliseconds.
func (r *CompletionResponse) LatencyMs() int64 {
	return r.Latency.Milliseconds()
}

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model,omitempty"`

	// Content is the incremental text in this chunk (may be empty)
	Content string `json:"content"`

	// FinishReason is set only on terminal chunks
	FinishReason string `json:"finish_reason,omitempty"`

	// ToolCalls contains partial tool call fragments
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`

	// Usage is included in the final chunk when the vendor reports it
	Usage *TokenUsage `json:"usage,omitempty"`

	// Error is set on the last chunk if the stream failed
	Error error `json:"-"`
}

// ProviderConfig contains configuration for a single adapter instance.
type ProviderConfig struct {
	// Name is the adapter's display name; defaults to its kind
	Name string

	// APIKey is the static credential passed through to the vendor
	APIKey string

	// BaseURL is the API endpoint base URL
	BaseURL string

	// Organization is sent to vendors that scope keys by organization
	Organization string

	// DefaultModel overrides the adapter's built-in default model
	DefaultModel string

	// Timeout is the request timeout duration
	Timeout time.Duration

	// MaxRetries is the number of attempts made by the retry engine
	MaxRetries int

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
	FinishReasonError         = "error"
)

// Tool type constants
const (
	ToolTypeFunction = "function"
)
