package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/usage"
)

type usageOptions struct {
	since    time.Duration
	records  int
	provider string
}

type usageReport struct {
	*usage.Summary
	Records []*usage.Record `json:"records,omitempty"`
}

func (r usageReport) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Usage since %s\n", r.Since.Format(time.RFC3339))
	fmt.Fprintf(w, "  requests: %d (%d errors)\n", r.Requests, r.Errors)
	fmt.Fprintf(w, "  tokens:   %d (prompt %d, completion %d)\n", r.TotalTokens, r.PromptTokens, r.CompletionTokens)
	fmt.Fprintf(w, "  cost:     $%.6f", r.CostUSD)
	if r.Unpriced > 0 {
		fmt.Fprintf(w, " (%d unpriced)", r.Unpriced)
	}
	fmt.Fprintln(w)

	if len(r.ByModel) > 0 {
		fmt.Fprintln(w)
		t := cli.NewTable(w, "PROVIDER", "MODEL", "REQUESTS", "ERRORS", "TOKENS", "COST")
		for _, m := range r.ByModel {
			t.Row(string(m.Provider), m.Model, strconv.Itoa(m.Requests), strconv.Itoa(m.Errors),
				strconv.Itoa(m.TotalTokens), fmt.Sprintf("$%.6f", m.CostUSD))
		}
		if err := t.Flush(); err != nil {
			return err
		}
	}

	if len(r.Records) > 0 {
		fmt.Fprintln(w)
		t := cli.NewTable(w, "TIME", "PROVIDER", "MODEL", "STATUS", "TOKENS", "LATENCY")
		for _, rec := range r.Records {
			status := rec.Status
			if rec.ErrorType != "" {
				status += " (" + rec.ErrorType + ")"
			}
			t.Row(rec.Timestamp.Local().Format(time.DateTime), string(rec.Provider), rec.Model, status,
				strconv.Itoa(rec.TotalTokens), strconv.FormatInt(rec.LatencyMs, 10)+"ms")
		}
		return t.Flush()
	}
	return nil
}

func newUsageCmd(g *globalOptions) *cobra.Command {
	opts := &usageOptions{}

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize recorded token usage and cost",
		Long: `Summarize the usage ledger: requests, errors, tokens and cost per
provider and model.

The ledger is written by complete, stream and monitor when usage.enabled is
set. Use the sqlite backend to keep records between runs; the memory backend
only lives as long as one process.

Examples:
  conduit usage
  conduit usage --since 168h --records 20
  conduit usage --provider openai -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsage(cmd, g, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.since, "since", 24*time.Hour, "summarize records newer than this")
	cmd.Flags().IntVarP(&opts.records, "records", "n", 0, "also list the newest N records")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "only list records of this provider kind")
	return cmd
}

func runUsage(cmd *cobra.Command, g *globalOptions, opts *usageOptions) error {
	format, err := g.format()
	if err != nil {
		return err
	}
	if opts.since <= 0 {
		return cli.NewConfigError("since", "must be positive")
	}

	a, err := g.setup(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.usage == nil {
		return cli.NewConfigError("usage.enabled", "the usage ledger is disabled")
	}
	if a.cfg.Usage.Backend == "memory" {
		a.logger.Warn("usage backend is memory; records from other runs are not available")
	}

	since := time.Now().Add(-opts.since)
	summary, err := a.usage.Summary(cmd.Context(), since)
	if err != nil {
		return cli.NewCommandError("usage", err)
	}

	report := usageReport{Summary: summary}
	if opts.records > 0 {
		report.Records, err = a.usage.List(cmd.Context(), usage.Filter{
			Since:    since,
			Provider: providers.Kind(opts.provider),
			Limit:    opts.records,
		})
		if err != nil {
			return cli.NewCommandError("usage", err)
		}
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report)
}
