package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	testhelpers "mercator-hq/conduit/internal/providers"
	"mercator-hq/conduit/pkg/providers"
)

func newTestProvider(t *testing.T, mock *testhelpers.MockServer) *Provider {
	t.Helper()

	provider, err := NewProvider(testhelpers.TestConfigWithURL("openai", mock.URL()+"/v1"))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	testhelpers.NoWait(provider)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestOpenAIProvider_Complete(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testhelpers.MockOpenAIResponse("Hello, world!", "gpt-4o"),
	})

	provider := newTestProvider(t, mock)

	resp, err := provider.Complete(context.Background(), testhelpers.UserMessage("Hello"), providers.CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.ID != "chatcmpl-123" {
		t.Errorf("expected id chatcmpl-123, got %s", resp.ID)
	}
	if resp.Content != "Hello, world!" {
		t.Errorf("expected content %q, got %q", "Hello, world!", resp.Content)
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("expected total tokens 30, got %d", resp.Usage.TotalTokens)
	}
	if resp.FinishReason != providers.FinishReasonStop {
		t.Errorf("expected finish reason %q, got %q", providers.FinishReasonStop, resp.FinishReason)
	}
	if resp.ToolCalls != nil {
		t.Errorf("expected nil tool calls, got %v", resp.ToolCalls)
	}
	if resp.Latency <= 0 {
		t.Error("expected latency to be measured")
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if err := testhelpers.ExpectHeader(reqs[0], "Authorization", "Bearer test-key"); err != nil {
		t.Error(err)
	}
}

func TestOpenAIProvider_PayloadOmitsUnsetOptions(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		Body: testhelpers.MockOpenAIResponse("ok", "gpt-4o"),
	})

	provider := newTestProvider(t, mock)

	t.Run("nothing set", func(t *testing.T) {
		_, err := provider.Complete(context.Background(), testhelpers.UserMessage("hi"), providers.CompletionOptions{})
		testhelpers.AssertNoError(t, err)

		body, err := mock.LastRequestJSON()
		testhelpers.AssertNoError(t, err)

		if len(body) != 2 {
			t.Errorf("expected only model and messages, got %v", body)
		}
		if body["model"] != DefaultModel {
			t.Errorf("expected default model %q, got %v", DefaultModel, body["model"])
		}

		msg := body["messages"].([]interface{})[0].(map[string]interface{})
		for _, key := range []string{"name", "tool_call_id", "tool_calls"} {
			if _, ok := msg[key]; ok {
				t.Errorf("expected message key %q to be omitted", key)
			}
		}
	})

	t.Run("only set options forwarded", func(t *testing.T) {
		opts := providers.CompletionOptions{
			Model:       "gpt-4o-mini",
			Temperature: providers.Float(0),
			MaxTokens:   providers.Int(64),
		}
		_, err := provider.Complete(context.Background(), testhelpers.UserMessage("hi"), opts)
		testhelpers.AssertNoError(t, err)

		body, err := mock.LastRequestJSON()
		testhelpers.AssertNoError(t, err)

		if body["temperature"] != float64(0) {
			t.Errorf("expected explicit zero temperature, got %v", body["temperature"])
		}
		if body["max_tokens"] != float64(64) {
			t.Errorf("expected max_tokens 64, got %v", body["max_tokens"])
		}
		for _, key := range []string{"top_p", "stop", "tools", "frequency_penalty", "presence_penalty", "stream"} {
			if _, ok := body[key]; ok {
				t.Errorf("expected %q to be omitted", key)
			}
		}
		if body["model"] != "gpt-4o-mini" {
			t.Errorf("expected model override, got %v", body["model"])
		}
	})
}

func TestOpenAIProvider_ToolCalls(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		Body: testhelpers.MockOpenAIToolCallResponse("gpt-4o", "call_1", "get_weather", `{"city":"Paris"}`),
	})

	provider := newTestProvider(t, mock)

	resp, err := provider.Complete(context.Background(), testhelpers.UserMessage("weather?"), providers.CompletionOptions{
		Tools: []providers.Tool{{
			Type:     providers.ToolTypeFunction,
			Function: providers.FunctionDefinition{Name: "get_weather"},
		}},
	})
	testhelpers.AssertNoError(t, err)

	if resp.FinishReason != providers.FinishReasonToolCalls {
		t.Errorf("expected tool_calls, got %q", resp.FinishReason)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "get_weather" || call.Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("unexpected tool call %+v", call)
	}
	if resp.Content != "" {
		t.Errorf("expected empty content, got %q", resp.Content)
	}
}

func TestOpenAIProvider_RetriesTransientErrors(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetSequence("/v1/chat/completions",
		testhelpers.MockServerError(),
		testhelpers.MockRateLimitError(1),
	)
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		Body: testhelpers.MockOpenAIResponse("third time", "gpt-4o"),
	})

	cfg := testhelpers.TestConfigWithURL("openai", mock.URL()+"/v1")
	cfg.MaxRetries = 3
	provider, err := NewProvider(cfg)
	testhelpers.AssertNoError(t, err)
	testhelpers.NoWait(provider)
	defer provider.Close()

	var retries int
	provider.SetRetryHook(func(providers.RetryEvent) { retries++ })

	resp, err := provider.Complete(context.Background(), testhelpers.UserMessage("hi"), providers.CompletionOptions{})
	testhelpers.AssertNoError(t, err)

	if resp.Content != "third time" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("expected 3 requests, got %d", mock.GetRequestCount())
	}
	if retries != 2 {
		t.Errorf("expected 2 retries, got %d", retries)
	}
}

func TestOpenAIProvider_AuthErrorNotRetried(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockAuthError())

	provider := newTestProvider(t, mock)

	_, err := provider.Complete(context.Background(), testhelpers.UserMessage("hi"), providers.CompletionOptions{})

	var authErr *providers.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", authErr.StatusCode)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("expected 1 request, got %d", mock.GetRequestCount())
	}
}

func TestOpenAIProvider_MalformedResponseNotRetried(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"invalid json", "{not json"},
		{"no choices", map[string]interface{}{"id": "x", "choices": []interface{}{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testhelpers.NewMockServer()
			defer mock.Close()

			mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{Body: tt.body})
			provider := newTestProvider(t, mock)

			_, err := provider.Complete(context.Background(), testhelpers.UserMessage("hi"), providers.CompletionOptions{})

			var parseErr *providers.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %T: %v", err, err)
			}
			if mock.GetRequestCount() != 1 {
				t.Errorf("expected 1 request, got %d", mock.GetRequestCount())
			}
		})
	}
}

func TestOpenAIProvider_ValidationAndReadiness(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	t.Run("invalid options", func(t *testing.T) {
		provider := newTestProvider(t, mock)
		_, err := provider.Complete(context.Background(), testhelpers.UserMessage("hi"), providers.CompletionOptions{
			Temperature: providers.Float(3),
		})

		var verr *providers.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %T: %v", err, err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		config := testhelpers.TestConfigWithURL("openai", mock.URL()+"/v1")
		config.APIKey = ""
		provider, err := NewProvider(config)
		testhelpers.AssertNoError(t, err)

		if provider.IsReady() {
			t.Error("expected provider without key to be not ready")
		}

		_, err = provider.Complete(context.Background(), testhelpers.UserMessage("hi"), providers.CompletionOptions{})
		var cerr *providers.ConfigError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected ConfigError, got %T: %v", err, err)
		}
		if provider.ValidateCredentials(context.Background()) {
			t.Error("expected credential validation to fail without a key")
		}
	})

	if mock.GetRequestCount() != 0 {
		t.Errorf("expected no requests, got %d", mock.GetRequestCount())
	}
}

func TestOpenAIProvider_ListModels(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/models", testhelpers.MockResponse{
		Body: testhelpers.MockModelList("whisper-1", "gpt-4o", "o1-mini", "dall-e-3", "gpt-3.5-turbo", "text-embedding-3-small"),
	})

	provider := newTestProvider(t, mock)

	models, err := provider.ListModels(context.Background())
	testhelpers.AssertNoError(t, err)

	want := []string{"gpt-3.5-turbo", "gpt-4o", "o1-mini"}
	if len(models) != len(want) {
		t.Fatalf("expected %v, got %v", want, models)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Errorf("model %d: expected %q, got %q", i, want[i], models[i])
		}
	}

	if !provider.ValidateCredentials(context.Background()) {
		t.Error("expected credentials to validate")
	}
}

func TestOpenAIProvider_ValidateCredentialsFailure(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/models", testhelpers.MockAuthError())

	provider := newTestProvider(t, mock)

	if provider.ValidateCredentials(context.Background()) {
		t.Error("expected credential validation to fail")
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"stop", providers.FinishReasonStop},
		{"length", providers.FinishReasonLength},
		{"tool_calls", providers.FinishReasonToolCalls},
		{"function_call", providers.FinishReasonToolCalls},
		{"content_filter", providers.FinishReasonContentFilter},
		{"something_new", providers.FinishReasonStop},
		{"", providers.FinishReasonStop},
	}

	for _, tt := range tests {
		if got := NormalizeFinishReason(tt.in); got != tt.want {
			t.Errorf("NormalizeFinishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMessages(t *testing.T) {
	msgs := []providers.Message{
		{Role: providers.RoleUser, Content: "hi", Name: "alice"},
		{Role: providers.RoleAssistant, ToolCalls: []providers.ToolCall{{
			ID:       "call_1",
			Function: providers.FunctionCall{Name: "f", Arguments: "{}"},
		}}},
		{Role: providers.RoleTool, Content: "42", ToolCallID: "call_1"},
	}

	data, err := json.Marshal(FormatMessages(msgs))
	testhelpers.AssertNoError(t, err)

	var decoded []map[string]interface{}
	testhelpers.AssertNoError(t, json.Unmarshal(data, &decoded))

	if decoded[0]["name"] != "alice" {
		t.Errorf("expected name to be forwarded, got %v", decoded[0])
	}
	if _, ok := decoded[0]["tool_calls"]; ok {
		t.Error("expected tool_calls omitted on user message")
	}
	calls := decoded[1]["tool_calls"].([]interface{})
	if calls[0].(map[string]interface{})["type"] != "function" {
		t.Errorf("expected default function type, got %v", calls[0])
	}
	if decoded[2]["tool_call_id"] != "call_1" {
		t.Errorf("expected tool_call_id, got %v", decoded[2])
	}
}
