package openai

import (
	"encoding/json"
	"fmt"

	"mercator-hq/conduit/pkg/providers"
)

// Chat completions wire types. They are shared with other adapters that speak
// the same OpenAI-compatible shape.

// ChatRequest is a chat completions request body. Optional fields are pointers
// or slices tagged omitempty so unset options never reach the wire.
type ChatRequest struct {
	Model            string                 `json:"model"`
	Messages         []ChatMessage          `json:"messages"`
	Temperature      *float64               `json:"temperature,omitempty"`
	MaxTokens        *int                   `json:"max_tokens,omitempty"`
	TopP             *float64               `json:"top_p,omitempty"`
	FrequencyPenalty *float64               `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64               `json:"presence_penalty,omitempty"`
	Stop             []string               `json:"stop,omitempty"`
	Tools            []ChatTool             `json:"tools,omitempty"`
	ToolChoice       interface{}            `json:"tool_choice,omitempty"`
	ResponseFormat   map[string]interface{} `json:"response_format,omitempty"`
	Stream           bool                   `json:"stream,omitempty"`
	StreamOptions    *StreamOptions         `json:"stream_options,omitempty"`
}

// StreamOptions asks the server to append a usage-only item to the stream.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage is a message in chat completions format.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
}

// ChatToolCall is a complete tool call.
type ChatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ChatFunctionCall `json:"function"`
}

// ChatFunctionCall is the function part of a tool call.
type ChatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatTool is a tool definition.
type ChatTool struct {
	Type     string                 `json:"type"`
	Function ChatFunctionDefinition `json:"function"`
}

// ChatFunctionDefinition describes a callable function.
type ChatFunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ChatResponse is a non-streaming chat completions response.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *ChatUsage   `json:"usage"`
}

// ChatChoice is one completion choice.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage is token usage in chat completions format.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamItem is one SSE data item of a streamed chat completion.
type StreamItem struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *ChatUsage     `json:"usage,omitempty"`
}

// StreamChoice is a choice inside a stream item. FinishReason is null until
// the terminal item.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// StreamDelta is the incremental content of a stream choice.
type StreamDelta struct {
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []StreamToolCall `json:"tool_calls,omitempty"`
}

// StreamToolCall is a tool call fragment keyed by Index.
type StreamToolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ChatFunctionCall `json:"function"`
}

// FormatMessages maps neutral messages to chat completions messages.
// name, tool_call_id and tool_calls are only emitted when present.
func FormatMessages(messages []providers.Message) []ChatMessage {
	out := make([]ChatMessage, len(messages))
	for i, msg := range messages {
		out[i] = ChatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		if len(msg.ToolCalls) > 0 {
			out[i].ToolCalls = make([]ChatToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				out[i].ToolCalls[j] = ChatToolCall{
					ID:   tc.ID,
					Type: toolType(tc.Type),
					Function: ChatFunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				}
			}
		}
	}
	return out
}

// BuildRequest assembles the request body for model. Only options that are set
// are copied.
func BuildRequest(model string, messages []providers.Message, opts providers.CompletionOptions) *ChatRequest {
	req := &ChatRequest{
		Model:            model,
		Messages:         FormatMessages(messages),
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxTokens,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
		ToolChoice:       opts.ToolChoice,
		ResponseFormat:   opts.ResponseFormat,
	}
	if len(opts.Stop) > 0 {
		req.Stop = opts.Stop
	}

	if len(opts.Tools) > 0 {
		req.Tools = make([]ChatTool, len(opts.Tools))
		for i, tool := range opts.Tools {
			req.Tools[i] = ChatTool{
				Type: toolType(tool.Type),
				Function: ChatFunctionDefinition{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  tool.Function.Parameters,
				},
			}
		}
	}

	return req
}

// ParseResponse decodes a chat completions body and normalizes its first choice.
// A body that does not decode or has no choices yields a *providers.ParseError.
// A missing usage block leaves all counts at zero.
func ParseResponse(provider string, raw []byte) (*providers.CompletionResponse, error) {
	var resp ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &providers.ParseError{
			Provider:    provider,
			RawResponse: string(raw),
			Cause:       fmt.Errorf("failed to decode response: %w", err),
		}
	}
	if len(resp.Choices) == 0 {
		return nil, &providers.ParseError{
			Provider:    provider,
			RawResponse: string(raw),
			Cause:       fmt.Errorf("no choices in response"),
		}
	}

	choice := resp.Choices[0]
	result := &providers.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: NormalizeFinishReason(choice.FinishReason),
	}
	if resp.Usage != nil {
		result.Usage = providers.NewTokenUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	if len(choice.Message.ToolCalls) > 0 {
		result.ToolCalls = make([]providers.ToolCall, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			args := tc.Function.Arguments
			if args == "" {
				args = "{}"
			}
			result.ToolCalls[i] = providers.ToolCall{
				ID:   tc.ID,
				Type: toolType(tc.Type),
				Function: providers.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: args,
				},
			}
		}
	}

	return result, nil
}

// ChunkFromStream converts one stream item into a chunk using its first choice.
// Items without choices (the trailing usage item) yield a chunk carrying only
// identity and usage.
func ChunkFromStream(item *StreamItem) *providers.StreamChunk {
	chunk := &providers.StreamChunk{
		ID:    item.ID,
		Model: item.Model,
	}
	if item.Usage != nil {
		usage := providers.NewTokenUsage(item.Usage.PromptTokens, item.Usage.CompletionTokens)
		chunk.Usage = &usage
	}
	if len(item.Choices) == 0 {
		return chunk
	}

	choice := item.Choices[0]
	chunk.Content = choice.Delta.Content
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		chunk.FinishReason = NormalizeFinishReason(*choice.FinishReason)
	}

	if len(choice.Delta.ToolCalls) > 0 {
		chunk.ToolCalls = make([]providers.ToolCallDelta, len(choice.Delta.ToolCalls))
		for i, tc := range choice.Delta.ToolCalls {
			chunk.ToolCalls[i] = providers.ToolCallDelta{
				Index: tc.Index,
				ID:    tc.ID,
				Type:  tc.Type,
				Function: providers.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}
	return chunk
}

// NormalizeFinishReason maps chat completions finish reasons to neutral values.
// Unrecognized reasons become stop.
func NormalizeFinishReason(reason string) string {
	switch reason {
	case "length":
		return providers.FinishReasonLength
	case "tool_calls", "function_call":
		return providers.FinishReasonToolCalls
	case "content_filter":
		return providers.FinishReasonContentFilter
	default:
		return providers.FinishReasonStop
	}
}

func toolType(t string) string {
	if t == "" {
		return providers.ToolTypeFunction
	}
	return t
}
