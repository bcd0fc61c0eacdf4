package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/catalog"
	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/providers"
)

type modelsOptions struct {
	provider string
	remote   bool
}

// catalogListing renders catalog entries.
type catalogListing []catalog.ModelInfo

func (l catalogListing) RenderText(w io.Writer) error {
	t := cli.NewTable(w, "MODEL", "PROVIDER", "CONTEXT", "MAX OUTPUT", "$/1K IN", "$/1K OUT", "TOOLS")
	for _, m := range l {
		t.Row(m.ID, string(m.Provider), strconv.Itoa(m.ContextWindow), strconv.Itoa(m.MaxOutputTokens),
			formatPrice(m.CostPer1kInput), formatPrice(m.CostPer1kOutput), strconv.FormatBool(m.SupportsTools))
	}
	return t.Flush()
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

// remoteListing renders the models each vendor reports.
type remoteListing map[providers.Kind][]string

func (l remoteListing) RenderText(w io.Writer) error {
	kinds := make([]providers.Kind, 0, len(l))
	for kind := range l {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	t := cli.NewTable(w, "PROVIDER", "MODEL")
	for _, kind := range kinds {
		if len(l[kind]) == 0 {
			t.Row(string(kind), "(unavailable)")
			continue
		}
		for _, id := range l[kind] {
			t.Row(string(kind), id)
		}
	}
	return t.Flush()
}

func newModelsCmd(g *globalOptions) *cobra.Command {
	opts := &modelsOptions{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known models",
		Long: `List the model catalog: context window, output limit and pricing.

Entries from catalog.file in the configuration override the built-in ones.
With --remote, every configured provider is asked for the models it serves
instead; a provider that fails to answer is shown as unavailable.

Examples:
  conduit models
  conduit models --provider anthropic -o json
  conduit models --remote`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd, g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "only list models of this provider kind")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "query the configured providers instead of the catalog")
	return cmd
}

func runModels(cmd *cobra.Command, g *globalOptions, opts *modelsOptions) error {
	format, err := g.format()
	if err != nil {
		return err
	}
	kind := providers.Kind(opts.provider)

	if !opts.remote {
		c := catalog.NewDefault()
		// the catalog file is optional here, so a missing config is fine
		if g.cfgFile != "" {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Catalog.File != "" {
				if _, err := c.LoadFile(cfg.Catalog.File); err != nil {
					return cli.NewConfigError("catalog.file", err.Error())
				}
			}
		}

		models := c.List()
		if kind != "" {
			models = c.ListByProvider(kind)
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), catalogListing(models))
	}

	a, err := g.setup(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var listing remoteListing
	if kind != "" {
		p, ok := a.dispatcher.Provider(kind)
		if !ok {
			return cli.NewCommandError("models", &providers.NoProviderError{Provider: kind})
		}
		ids, err := p.ListModels(cmd.Context())
		if err != nil {
			return cli.NewCommandError("models", err)
		}
		listing = remoteListing{kind: ids}
	} else {
		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Telemetry.Health.ProbeTimeout)
		defer cancel()
		listing = a.dispatcher.ListAllModels(ctx)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), listing); err != nil {
		return fmt.Errorf("failed to write model list: %w", err)
	}
	return nil
}
