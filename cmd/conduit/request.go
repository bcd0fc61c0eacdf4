package main

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/providers"
)

// requestOptions are the flags shared by complete and stream.
type requestOptions struct {
	model       string
	provider    string
	system      string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func (o *requestOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.model, "model", "m", "", "model id (default: the provider's default model)")
	f.StringVarP(&o.provider, "provider", "p", "", "provider kind: openai, anthropic or local (default: resolved from the model)")
	f.StringVarP(&o.system, "system", "s", "", "system prompt")
	f.Float64Var(&o.temperature, "temperature", 0, "sampling temperature (0-2)")
	f.IntVar(&o.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	f.DurationVar(&o.timeout, "timeout", 0, "abort the request after this long (default: provider timeout)")
}

// build turns the flags and prompt into a conversation and call options.
// Temperature and max tokens are only forwarded when set explicitly.
func (o *requestOptions) build(cmd *cobra.Command, args []string) ([]providers.Message, providers.CompletionOptions, error) {
	prompt, err := readPrompt(cmd, args)
	if err != nil {
		return nil, providers.CompletionOptions{}, err
	}

	var messages []providers.Message
	if o.system != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: o.system})
	}
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: prompt})

	opts := providers.CompletionOptions{
		Model:    o.model,
		Provider: providers.Kind(o.provider),
		Timeout:  o.timeout,
	}
	if cmd.Flags().Changed("temperature") {
		opts.Temperature = providers.Float(o.temperature)
	}
	if cmd.Flags().Changed("max-tokens") {
		opts.MaxTokens = providers.Int(o.maxTokens)
	}
	return messages, opts, nil
}

// readPrompt takes the prompt from the first argument, or stdin when absent.
func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	var prompt string
	if len(args) > 0 {
		prompt = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		prompt = string(data)
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", cli.NewConfigError("prompt", "empty prompt: pass it as an argument or on stdin")
	}
	return prompt, nil
}
