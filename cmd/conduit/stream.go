package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/providers"
)

// streamEvent is one line of --output json stream output.
type streamEvent struct {
	*providers.StreamChunk
	Error string `json:"error,omitempty"`
}

func newStreamCmd(g *globalOptions) *cobra.Command {
	opts := &requestOptions{}

	cmd := &cobra.Command{
		Use:   "stream [prompt]",
		Short: "Stream a completion as it is generated",
		Long: `Stream a completion and print text deltas as they arrive.

Routing and flags match "conduit complete". Streams are not retried: a failure
after the first byte ends the stream with an error. Ctrl-C cancels the request
and releases the connection.

With --output json every chunk is printed as one JSON object per line.

Examples:
  conduit stream --model claude-3-5-sonnet-20241022 "Tell me a story"
  echo "Count to ten" | conduit stream -p local -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd, g, opts, args)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runStream(cmd *cobra.Command, g *globalOptions, opts *requestOptions, args []string) error {
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
	chunks, err := a.dispatcher.Stream(ctx, messages, callOpts)
	if err != nil {
		return cli.NewCommandError("stream", err)
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	acc := providers.NewToolCallAccumulator()

	var (
		model, finish string
		usage         providers.TokenUsage
		streamErr     error
	)
	for chunk := range chunks {
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if chunk.Error != nil {
			streamErr = chunk.Error
		}

		if format == cli.FormatJSON {
			ev := streamEvent{StreamChunk: chunk}
			if chunk.Error != nil {
				ev.Error = chunk.Error.Error()
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
			continue
		}

		acc.Add(chunk.ToolCalls)
		if chunk.Content != "" {
			fmt.Fprint(out, chunk.Content)
		}
	}

	if format == cli.FormatText {
		fmt.Fprintln(out)
		calls, err := acc.ToolCalls()
		if err != nil {
			return cli.NewCommandError("stream", err)
		}
		for _, tc := range calls {
			fmt.Fprintf(out, "tool call %s: %s(%s)\n", tc.ID, tc.Function.Name, tc.Function.Arguments)
		}
	}

	if streamErr != nil {
		return cli.NewCommandError("stream", streamErr)
	}
	if ctx.Err() != nil {
		return cli.NewCommandError("stream", ctx.Err())
	}

	if format == cli.FormatText {
		var cost *float64
		if c, ok := a.catalog.EstimateCost(model, usage.PromptTokens, usage.CompletionTokens); ok && usage.TotalTokens > 0 {
			cost = &c
		}
		fmt.Fprintln(cmd.ErrOrStderr(), summaryLine(kind, model, finish, usage, cost))
	}
	return nil
}
