// Package telemetry groups conduit's observability packages.
//
// # Components
//
//   - logging: slog logger with credential redaction and request context attrs
//   - metrics: Prometheus collectors for provider calls, retries, cost and health
//   - health: cron-scheduled credential probes and /health, /ready, /version
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	d, err := dispatcher.NewFromConfig(cfg, dispatcher.Config{Metrics: collector})
//
//	monitor := health.NewMonitor(d, collector, cfg.Telemetry.Health)
//	monitor.Start(ctx)
//
// Every collector method is a no-op on a nil *metrics.Collector, so callers
// that run without metrics pass nil instead of branching.
//
// # Redaction
//
// Redaction is on by default. Attribute keys such as api_key, authorization
// and token are replaced wholesale, and values that look like vendor keys
// (sk-..., sk-ant-...) or bearer tokens are masked wherever they appear:
//
//   - sk-abc123def456 → sk-***
//   - Bearer eyJhbGci... → Bearer ***
package telemetry
