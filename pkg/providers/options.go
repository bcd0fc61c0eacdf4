package providers

import "fmt"

// Validate checks the recognized option ranges. Unset options are always valid.
func (o CompletionOptions) Validate() error {
	if err := checkRange("temperature", o.Temperature, 0, 2); err != nil {
		return err
	}
	if err := checkRange("top_p", o.TopP, 0, 1); err != nil {
		return err
	}
	if err := checkRange("frequency_penalty", o.FrequencyPenalty, -2, 2); err != nil {
		return err
	}
	if err := checkRange("presence_penalty", o.PresencePenalty, -2, 2); err != nil {
		return err
	}
	if o.MaxTokens != nil && *o.MaxTokens <= 0 {
		return &ValidationError{
			Field:   "max_tokens",
			Message: fmt.Sprintf("must be greater than 0, got %d", *o.MaxTokens),
		}
	}
	if o.Timeout < 0 {
		return &ValidationError{Field: "timeout", Message: "must not be negative"}
	}
	for i, tool := range o.Tools {
		if tool.Function.Name == "" {
			return &ValidationError{
				Field:   "tools",
				Message: fmt.Sprintf("tool %d has no function name", i),
			}
		}
	}
	return nil
}

func checkRange(field string, v *float64, lo, hi float64) error {
	if v == nil {
		return nil
	}
	if *v < lo || *v > hi {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %g and %g, got %g", lo, hi, *v),
		}
	}
	return nil
}

// ValidateRequest validates messages and options before a vendor call.
func ValidateRequest(messages []Message, opts CompletionOptions) error {
	if len(messages) == 0 {
		return &ValidationError{
			Field:   "messages",
			Message: "at least one message is required",
		}
	}
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		default:
			return &ValidationError{
				Field:   "messages",
				Message: fmt.Sprintf("message %d has unknown role %q", i, msg.Role),
			}
		}
	}
	return opts.Validate()
}
