package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/catalog"
	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/telemetry/health"
	"mercator-hq/conduit/pkg/usage"
)

const shutdownTimeout = 10 * time.Second

type monitorOptions struct {
	address  string
	noHealth bool
}

func newMonitorCmd(g *globalOptions) *cobra.Command {
	opts := &monitorOptions{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve metrics and health endpoints",
		Long: `Run the long-lived side of conduit until interrupted:

  - Prometheus metrics on telemetry.metrics.address at telemetry.metrics.path
  - /health (liveness), /ready (latest credential probes) and /version
  - credential probes on the telemetry.health.schedule cron schedule
  - reloading of catalog.file on change when catalog.watch is set
  - pruning of usage records older than usage.retention_days

Examples:
  conduit monitor --config conduit.yaml
  conduit monitor --address :9100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "", "listen address (default: telemetry.metrics.address)")
	cmd.Flags().BoolVar(&opts.noHealth, "no-health", false, "disable scheduled credential probes")
	return cmd
}

// newMonitorMux routes the metrics handler and the health endpoints.
func newMonitorMux(a *app, monitor *health.Monitor) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Telemetry.Metrics.Path, a.metrics.Handler())
	monitor.RegisterHandlers(mux, Version, GitCommit, BuildDate)
	return mux
}

func runMonitor(cmd *cobra.Command, g *globalOptions, opts *monitorOptions) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	// the endpoint is the point of this command
	cfg.Telemetry.Metrics.Enabled = true
	if opts.address != "" {
		cfg.Telemetry.Metrics.Address = opts.address
	}

	a, err := g.setupWith(cmd, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	monitor := health.NewMonitor(a.dispatcher, a.metrics, cfg.Telemetry.Health)
	if !opts.noHealth {
		if err := monitor.Start(ctx); err != nil {
			return cli.NewCommandError("monitor", err)
		}
		defer monitor.Stop()
	}

	if cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(a.catalog, cfg.Catalog.File, cfg.Catalog.Debounce, a.logger)
		if err != nil {
			return cli.NewCommandError("monitor", err)
		}
		watcher.OnReload = func(_ int, err error) { a.metrics.RecordCatalogReload(err) }
		go func() {
			if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("catalog watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	if a.usage != nil {
		pruner := usage.NewPruner(a.usage, cfg.Usage.RetentionDays, cfg.Usage.PruneSchedule)
		if err := pruner.Start(ctx); err != nil {
			return cli.NewCommandError("monitor", err)
		}
		defer pruner.Stop()
	}

	server := &http.Server{
		Addr:              cfg.Telemetry.Metrics.Address,
		Handler:           newMonitorMux(a, monitor),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("monitor listening",
			"address", server.Addr,
			"metrics_path", cfg.Telemetry.Metrics.Path,
			"providers", len(a.dispatcher.Providers()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-cli.WaitForShutdown():
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	case err := <-serverErr:
		return cli.NewCommandError("monitor", fmt.Errorf("server failed: %w", err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return cli.NewCommandError("monitor", fmt.Errorf("shutdown: %w", err))
	}
	a.logger.Info("monitor stopped")
	return nil
}
