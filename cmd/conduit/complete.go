package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/providers"
)

type completionResult struct {
	Provider providers.Kind `json:"provider"`
	*providers.CompletionResponse
	LatencyMs int64 `json:"latency_ms"`

	// CostUSD is absent when the catalog has no pricing for the model
	CostUSD *float64 `json:"cost_usd,omitempty"`
}

func (r completionResult) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, r.Content); err != nil {
		return err
	}
	for _, tc := range r.ToolCalls {
		if _, err := fmt.Fprintf(w, "tool call %s: %s(%s)\n", tc.ID, tc.Function.Name, tc.Function.Arguments); err != nil {
			return err
		}
	}
	return nil
}

// summaryLine is the usage line written to stderr after a text result.
func summaryLine(provider providers.Kind, model, finish string, usage providers.TokenUsage, cost *float64) string {
	line := fmt.Sprintf("[%s/%s] finish=%s tokens=%d (prompt %d, completion %d)",
		provider, model, finish, usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)
	if cost != nil {
		line += fmt.Sprintf(" cost=$%.6f", *cost)
	}
	return line
}

func newCompleteCmd(g *globalOptions) *cobra.Command {
	opts := &requestOptions{}

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send one completion request",
		Long: `Send a single completion request and print the response.

The provider is chosen by --provider, else by the model's catalog entry or
name prefix (gpt-*, o1/o3/o4 -> openai, claude* -> anthropic, others -> local),
else the default provider. Transient failures are retried with backoff.

The prompt is read from the arguments, or from stdin when none are given.

Examples:
  # Route by model name
  conduit complete --model gpt-4o "Explain HTTP/2 server push"

  # Explicit provider, system prompt, JSON output
  conduit complete -p anthropic -s "Answer tersely" -o json "What is a monad?"

  # Prompt from a file
  conduit complete --model llama3.1 < prompt.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd, g, opts, args)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runComplete(cmd *cobra.Command, g *globalOptions, opts *requestOptions, args []string) error {
	format, err := g.format()
	if err != nil {
		return err
	}
	messages, callOpts, err := opts.build(cmd, args)
	if err != nil {
		return err
	}

	a, err := g.setup(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	kind := a.dispatcher.ResolveKind(callOpts.Model, callOpts.Provider)
	resp, err := a.dispatcher.Complete(ctx, messages, callOpts)
	if err != nil {
		return cli.NewCommandError("complete", err)
	}

	result := completionResult{
		Provider:           kind,
		CompletionResponse: resp,
		LatencyMs:          resp.LatencyMs(),
	}
	if cost, ok := a.catalog.EstimateCost(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
		result.CostUSD = &cost
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintln(cmd.ErrOrStderr(), summaryLine(kind, resp.Model, resp.FinishReason, resp.Usage, result.CostUSD))
	}
	return nil
}
