package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	cfgFile string
	verbose bool
	output  string
}

func (g *globalOptions) format() (cli.OutputFormat, error) {
	return cli.ParseOutputFormat(g.output)
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "conduit",
		Short: "Conduit - one client for many LLM providers",
		Long: `Conduit normalizes access to OpenAI, Anthropic and self-hosted
OpenAI-compatible servers (Ollama, vLLM, LM Studio) behind one request and
streaming contract.

Requests are routed to a provider by explicit choice, by the model catalog or
by model name prefix. Every call is measured: latency, tokens, cost from the
catalog pricing and retries are exported as Prometheus metrics and can be
recorded in a usage ledger.

Configuration is read from a YAML file (--config) and CONDUIT_* environment
variables, e.g. CONDUIT_OPENAI_API_KEY.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.cfgFile, "config", "c", "", "config file path (default: environment only)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVarP(&g.output, "output", "o", "text", "output format: text or json")

	cmd.AddCommand(
		newCompleteCmd(g),
		newStreamCmd(g),
		newModelsCmd(g),
		newValidateCmd(g),
		newUsageCmd(g),
		newMonitorCmd(g),
		newVersionCmd(g),
	)
	return cmd
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
