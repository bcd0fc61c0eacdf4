package providers

import (
	"errors"
	"testing"
	"time"
)

func TestCompletionOptions_Validate(t *testing.T) {
	tests := []struct {
		name      string
		opts      CompletionOptions
		wantField string
	}{
		{name: "empty is valid", opts: CompletionOptions{}},
		{name: "in range", opts: CompletionOptions{Temperature: Float(2), TopP: Float(0), MaxTokens: Int(1)}},
		{name: "temperature too high", opts: CompletionOptions{Temperature: Float(2.1)}, wantField: "temperature"},
		{name: "temperature negative", opts: CompletionOptions{Temperature: Float(-0.1)}, wantField: "temperature"},
		{name: "top_p too high", opts: CompletionOptions{TopP: Float(1.5)}, wantField: "top_p"},
		{name: "frequency penalty", opts: CompletionOptions{FrequencyPenalty: Float(-3)}, wantField: "frequency_penalty"},
		{name: "presence penalty", opts: CompletionOptions{PresencePenalty: Float(2.5)}, wantField: "presence_penalty"},
		{name: "max tokens zero", opts: CompletionOptions{MaxTokens: Int(0)}, wantField: "max_tokens"},
		{name: "negative timeout", opts: CompletionOptions{Timeout: -time.Second}, wantField: "timeout"},
		{
			name:      "tool without name",
			opts:      CompletionOptions{Tools: []Tool{{Type: ToolTypeFunction}}},
			wantField: "tools",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	t.Run("no messages", func(t *testing.T) {
		err := ValidateRequest(nil, CompletionOptions{})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "messages" {
			t.Fatalf("expected messages validation error, got %v", err)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		err := ValidateRequest([]Message{{Role: "narrator", Content: "x"}}, CompletionOptions{})
		if err == nil {
			t.Fatal("expected error for unknown role")
		}
	})

	t.Run("valid", func(t *testing.T) {
		msgs := []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hi"},
		}
		if err := ValidateRequest(msgs, CompletionOptions{Temperature: Float(0.5)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
