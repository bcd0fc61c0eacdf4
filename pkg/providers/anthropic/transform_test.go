package anthropic

import (
	"encoding/json"
	"errors"
	"testing"

	"mercator-hq/conduit/pkg/providers"
)

func TestFormatMessages_SystemFolding(t *testing.T) {
	system, msgs, dropped, err := formatMessages([]providers.Message{
		{Role: providers.RoleSystem, Content: "A"},
		{Role: providers.RoleUser, Content: "B"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if system != "A" {
		t.Errorf("expected system %q, got %q", "A", system)
	}
	if dropped != 0 {
		t.Errorf("expected nothing dropped, got %d", dropped)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != providers.RoleUser || msgs[0].Content != "B" {
		t.Errorf("unexpected message %+v", msgs[0])
	}
}

func TestFormatMessages_FirstSystemWins(t *testing.T) {
	system, msgs, dropped, err := formatMessages([]providers.Message{
		{Role: providers.RoleSystem, Content: "first"},
		{Role: providers.RoleUser, Content: "hi"},
		{Role: providers.RoleSystem, Content: "second"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if system != "first" {
		t.Errorf("expected first system prompt, got %q", system)
	}
	if dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", dropped)
	}
	if len(msgs) != 1 {
		t.Errorf("expected system messages removed from array, got %d messages", len(msgs))
	}
}

func TestFormatMessages_ToolResultFolding(t *testing.T) {
	_, msgs, _, err := formatMessages([]providers.Message{
		{Role: providers.RoleTool, Content: "r", ToolCallID: "x"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != providers.RoleUser {
		t.Errorf("expected user role, got %q", msgs[0].Role)
	}

	blocks, ok := msgs[0].Content.([]ContentBlock)
	if !ok || len(blocks) != 1 {
		t.Fatalf("expected one content block, got %#v", msgs[0].Content)
	}
	if blocks[0].Type != "tool_result" || blocks[0].ToolUseID != "x" || blocks[0].Content != "r" {
		t.Errorf("unexpected tool_result block %+v", blocks[0])
	}
}

func TestFormatMessages_AssistantToolCalls(t *testing.T) {
	_, msgs, _, err := formatMessages([]providers.Message{
		{Role: providers.RoleUser, Content: "weather?"},
		{Role: providers.RoleAssistant, Content: "Checking.", ToolCalls: []providers.ToolCall{{
			ID:       "toolu_1",
			Type:     providers.ToolTypeFunction,
			Function: providers.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`},
		}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocks := msgs[1].Content.([]ContentBlock)
	if len(blocks) != 2 {
		t.Fatalf("expected text + tool_use blocks, got %d", len(blocks))
	}
	if blocks[0].Type != "text" || blocks[0].Text != "Checking." {
		t.Errorf("unexpected text block %+v", blocks[0])
	}
	if blocks[1].Type != "tool_use" || blocks[1].ID != "toolu_1" || string(blocks[1].Input) != `{"city":"Paris"}` {
		t.Errorf("unexpected tool_use block %+v", blocks[1])
	}

	t.Run("invalid arguments", func(t *testing.T) {
		_, _, _, err := formatMessages([]providers.Message{
			{Role: providers.RoleAssistant, ToolCalls: []providers.ToolCall{{
				ID:       "toolu_2",
				Function: providers.FunctionCall{Name: "f", Arguments: `{"a":`},
			}}},
		})
		var verr *providers.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %T: %v", err, err)
		}
	})
}

func TestBuildRequest(t *testing.T) {
	msgs := []Message{{Role: providers.RoleUser, Content: "hi"}}

	t.Run("defaults", func(t *testing.T) {
		data, err := json.Marshal(buildRequest("claude-3-5-haiku-20241022", "", msgs, providers.CompletionOptions{}))
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var body map[string]interface{}
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		if body["max_tokens"] != float64(DefaultMaxTokens) {
			t.Errorf("expected default max_tokens, got %v", body["max_tokens"])
		}
		for _, key := range []string{"system", "temperature", "top_p", "stop_sequences", "tools", "tool_choice", "stream"} {
			if _, ok := body[key]; ok {
				t.Errorf("expected %q to be omitted", key)
			}
		}
	})

	t.Run("options", func(t *testing.T) {
		req := buildRequest("m", "be brief", msgs, providers.CompletionOptions{
			MaxTokens:        providers.Int(50),
			Temperature:      providers.Float(0.3),
			Stop:             []string{"END"},
			FrequencyPenalty: providers.Float(1),
			ToolChoice:       "required",
			Tools: []providers.Tool{{
				Type:     providers.ToolTypeFunction,
				Function: providers.FunctionDefinition{Name: "lookup"},
			}},
		})

		if req.MaxTokens != 50 || req.System != "be brief" {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.StopSequences) != 1 || req.StopSequences[0] != "END" {
			t.Errorf("expected stop sequences, got %v", req.StopSequences)
		}
		if req.Tools[0].InputSchema["type"] != "object" {
			t.Errorf("expected default object schema, got %v", req.Tools[0].InputSchema)
		}
		choice, ok := req.ToolChoice.(map[string]string)
		if !ok || choice["type"] != "any" {
			t.Errorf("expected tool_choice any, got %v", req.ToolChoice)
		}
	})
}

func TestParseResponse_ContentBlocks(t *testing.T) {
	raw := []byte(`{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-sonnet-20241022",
		"content": [
			{"type": "text", "text": "Hello, "},
			{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Paris"}},
			{"type": "text", "text": "world"}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 11, "output_tokens": 9}
	}`)

	resp, err := parseResponse("anthropic", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "Hello, world" {
		t.Errorf("expected concatenated text, got %q", resp.Content)
	}
	if resp.FinishReason != providers.FinishReasonToolCalls {
		t.Errorf("expected tool_calls, got %q", resp.FinishReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("expected 20 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	_, err := parseResponse("anthropic", []byte(`{"content": [`))

	var perr *providers.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
}

func TestNormalizeStopReason(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"end_turn", providers.FinishReasonStop},
		{"stop_sequence", providers.FinishReasonStop},
		{"max_tokens", providers.FinishReasonLength},
		{"tool_use", providers.FinishReasonToolCalls},
		{"refusal", providers.FinishReasonContentFilter},
		{"pause_turn", providers.FinishReasonStop},
	}

	for _, tt := range tests {
		if got := normalizeStopReason(tt.in); got != tt.want {
			t.Errorf("normalizeStopReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
