package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/catalog"
	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/dispatcher"
	"mercator-hq/conduit/pkg/telemetry/logging"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/usage"
)

// app is the wiring shared by the subcommands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	catalog    *catalog.Catalog
	metrics    *metrics.Collector
	usage      usage.Store
	dispatcher *dispatcher.Dispatcher
}

// loadConfig reads the config file (if any) and CONDUIT_* overrides.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(g.cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	return cfg, nil
}

// setup loads the configuration, installs the logger and builds the catalog,
// metrics collector, usage store and (when withDispatcher is set) every
// configured adapter.
func (g *globalOptions) setup(cmd *cobra.Command, withDispatcher bool) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return g.setupWith(cmd, cfg, withDispatcher)
}

func (g *globalOptions) setupWith(cmd *cobra.Command, cfg *config.Config, withDispatcher bool) (*app, error) {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if g.verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, catalog: catalog.NewDefault()}

	if cfg.Catalog.File != "" {
		n, err := a.catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			return nil, cli.NewConfigError("catalog.file", err.Error())
		}
		logger.Debug("catalog file loaded", "path", cfg.Catalog.File, "models", n)
	}

	if cfg.Telemetry.Metrics.Enabled {
		a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	if cfg.Usage.Enabled {
		a.usage, err = usage.NewStore(cfg.Usage)
		if err != nil {
			return nil, fmt.Errorf("failed to open usage store: %w", err)
		}
	}

	if withDispatcher {
		a.dispatcher, err = dispatcher.NewFromConfig(cfg, dispatcher.Config{
			Catalog: a.catalog,
			Metrics: a.metrics,
			Usage:   a.usage,
			Logger:  logger.With("component", "dispatcher"),
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// Close releases the adapters and the usage store.
func (a *app) Close() error {
	var errs []error
	if a.dispatcher != nil {
		errs = append(errs, a.dispatcher.Close())
	}
	if a.usage != nil {
		errs = append(errs, a.usage.Close())
	}
	return errors.Join(errs...)
}
