package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mercator-hq/conduit/pkg/providers"
)

// DefaultMaxTokens is sent when the caller does not set MaxTokens; the
// messages API requires the field.
const DefaultMaxTokens = 4096

// MessagesRequest is a messages API request body.
type MessagesRequest struct {
	Model         string      `json:"model"`
	Messages      []Message   `json:"messages"`
	System        string      `json:"system,omitempty"`
	MaxTokens     int         `json:"max_tokens"`
	Temperature   *float64    `json:"temperature,omitempty"`
	TopP          *float64    `json:"top_p,omitempty"`
	StopSequences []string    `json:"stop_sequences,omitempty"`
	Tools         []Tool      `json:"tools,omitempty"`
	ToolChoice    interface{} `json:"tool_choice,omitempty"`
	Stream        bool        `json:"stream,omitempty"`
}

// Message is a messages API message. Content is either a string or a slice of
// ContentBlock.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentBlock is a typed block of message content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Tool is a tool definition.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// MessagesResponse is a messages API response, also used for the accumulated
// message of a stream.
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Usage is token usage in messages API format.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// formatMessages folds neutral messages into the messages API shape.
//
// The first system message becomes the top-level system prompt; later system
// messages are dropped and counted. Tool results become user messages holding a
// tool_result block, and assistant tool calls become tool_use blocks.
func formatMessages(messages []providers.Message) (system string, out []Message, dropped int, err error) {
	out = make([]Message, 0, len(messages))
	seenSystem := false

	for i, msg := range messages {
		switch msg.Role {
		case providers.RoleSystem:
			if seenSystem {
				dropped++
				continue
			}
			seenSystem = true
			system = msg.Content

		case providers.RoleTool:
			out = append(out, Message{
				Role: providers.RoleUser,
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		case providers.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, Message{Role: msg.Role, Content: msg.Content})
				continue
			}

			blocks := make([]ContentBlock, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Function.Arguments
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				if !json.Valid([]byte(args)) {
					return "", nil, 0, &providers.ValidationError{
						Field:   "messages",
						Message: fmt.Sprintf("message %d: tool call %q has invalid JSON arguments", i, tc.ID),
					}
				}
				blocks = append(blocks, ContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: json.RawMessage(args),
				})
			}
			out = append(out, Message{Role: msg.Role, Content: blocks})

		default:
			out = append(out, Message{Role: msg.Role, Content: msg.Content})
		}
	}

	return system, out, dropped, nil
}

// buildRequest assembles the request body. max_tokens is always present.
// Options the messages API has no field for (penalties, response format) are
// not forwarded.
func buildRequest(model string, system string, messages []Message, opts providers.CompletionOptions) *MessagesRequest {
	req := &MessagesRequest{
		Model:       model,
		Messages:    messages,
		System:      system,
		MaxTokens:   DefaultMaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		ToolChoice:  mapToolChoice(opts.ToolChoice),
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		req.StopSequences = opts.Stop
	}

	if len(opts.Tools) > 0 {
		req.Tools = make([]Tool, len(opts.Tools))
		for i, tool := range opts.Tools {
			schema := tool.Function.Parameters
			if schema == nil {
				schema = map[string]interface{}{"type": "object"}
			}
			req.Tools[i] = Tool{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				InputSchema: schema,
			}
		}
	}

	return req
}

// mapToolChoice translates chat-completions style tool choices. Objects are
// passed through unchanged.
func mapToolChoice(choice interface{}) interface{} {
	switch v := choice.(type) {
	case nil:
		return nil
	case string:
		switch v {
		case "auto":
			return map[string]string{"type": "auto"}
		case "required", "any":
			return map[string]string{"type": "any"}
		case "none":
			return map[string]string{"type": "none"}
		default:
			return map[string]string{"type": "tool", "name": v}
		}
	default:
		return v
	}
}

// parseResponse decodes a messages API body.
func parseResponse(provider string, raw []byte) (*providers.CompletionResponse, error) {
	var resp MessagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &providers.ParseError{
			Provider:    provider,
			RawResponse: string(raw),
			Cause:       fmt.Errorf("failed to decode response: %w", err),
		}
	}
	if resp.Type != "" && resp.Type != "message" {
		return nil, &providers.ParseError{
			Provider:    provider,
			RawResponse: string(raw),
			Cause:       fmt.Errorf("unexpected response type %q", resp.Type),
		}
	}
	return toCompletion(&resp), nil
}

// toCompletion concatenates text blocks in order and extracts tool_use blocks.
func toCompletion(resp *MessagesResponse) *providers.CompletionResponse {
	var content strings.Builder
	var toolCalls []providers.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			toolCalls = append(toolCalls, providers.ToolCall{
				ID:   block.ID,
				Type: providers.ToolTypeFunction,
				Function: providers.FunctionCall{
					Name:      block.Name,
					Arguments: compactJSON(block.Input),
				},
			})
		}
	}

	return &providers.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      content.String(),
		FinishReason: normalizeStopReason(resp.StopReason),
		ToolCalls:    toolCalls,
		Usage:        providers.NewTokenUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}
}

// normalizeStopReason maps messages API stop reasons to neutral values.
// Unrecognized reasons become stop.
func normalizeStopReason(reason string) string {
	switch reason {
	case "max_tokens":
		return providers.FinishReasonLength
	case "tool_use":
		return providers.FinishReasonToolCalls
	case "refusal":
		return providers.FinishReasonContentFilter
	default:
		return providers.FinishReasonStop
	}
}

func compactJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
