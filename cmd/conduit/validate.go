package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/providers"
)

type validateOptions struct {
	offline bool
}

type validationReport struct {
	ConfigFile      string                  `json:"config_file,omitempty"`
	DefaultProvider string                  `json:"default_provider"`
	Providers       []providers.Kind        `json:"providers"`
	CatalogModels   int                     `json:"catalog_models"`
	Credentials     map[providers.Kind]bool `json:"credentials,omitempty"`
}

func (r validationReport) RenderText(w io.Writer) error {
	source := r.ConfigFile
	if source == "" {
		source = "environment"
	}
	kinds := make([]string, len(r.Providers))
	for i, k := range r.Providers {
		kinds[i] = string(k)
	}
	fmt.Fprintf(w, "Configuration OK (%s)\n", source)
	fmt.Fprintf(w, "  providers: %s (default %s)\n", strings.Join(kinds, ", "), r.DefaultProvider)
	fmt.Fprintf(w, "  catalog:   %d models\n", r.CatalogModels)

	if r.Credentials == nil {
		return nil
	}
	t := cli.NewTable(w, "PROVIDER", "CREDENTIALS")
	for _, k := range r.Providers {
		status := "rejected"
		if r.Credentials[k] {
			status = "ok"
		}
		t.Row(string(k), status)
	}
	return t.Flush()
}

// rejected returns the kinds whose credentials failed, sorted.
func (r validationReport) rejected() []string {
	var out []string
	for k, ok := range r.Credentials {
		if !ok {
			out = append(out, string(k))
		}
	}
	sort.Strings(out)
	return out
}

func newValidateCmd(g *globalOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and provider credentials",
		Long: `Validate the configuration file and environment overrides, load the
catalog file, then probe every configured provider with its credentials.

Credential probes list the vendor's models; a rejected key, an unreachable
server or any other failure marks the provider as rejected.

Exit codes:
  0  configuration valid and every credential accepted
  1  at least one provider rejected its credentials
  2  invalid configuration

Examples:
  conduit validate --config conduit.yaml
  conduit validate --offline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.offline, "offline", false, "skip credential probes")
	return cmd
}

func runValidate(cmd *cobra.Command, g *globalOptions, opts *validateOptions) error {
	format, err := g.format()
	if err != nil {
		return err
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	a, err := g.setupWith(cmd, cfg, !opts.offline)
	if err != nil {
		return err
	}
	defer a.Close()

	report := validationReport{
		ConfigFile:      g.cfgFile,
		DefaultProvider: cfg.DefaultProvider,
		Providers:       cfg.Kinds(),
		CatalogModels:   a.catalog.Len(),
	}

	if !opts.offline {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Telemetry.Health.ProbeTimeout)
		defer cancel()
		report.Credentials = a.dispatcher.ValidateAllCredentials(ctx)
		report.DefaultProvider = string(a.dispatcher.Default())
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if rejected := report.rejected(); len(rejected) > 0 {
		return cli.NewCommandError("validate", fmt.Errorf("credentials rejected by %s", strings.Join(rejected, ", ")))
	}
	return nil
}
