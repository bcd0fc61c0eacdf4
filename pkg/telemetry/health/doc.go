// Package health tracks whether each initialized provider still accepts its
// credentials.
//
// A Monitor runs Dispatcher.ValidateAllCredentials on a cron schedule
// (robfig/cron syntax, e.g. "@every 5m" or "*/10 * * * *"), keeps the latest
// Snapshot and updates the provider_health gauge for every adapter. Probes
// are cheap vendor calls (a model listing), so schedules of a few minutes are
// typical.
//
//	monitor := health.NewMonitor(d, collector, cfg.Telemetry.Health)
//	if err := monitor.Start(ctx); err != nil {
//	    return err
//	}
//	defer monitor.Stop()
//
// # Endpoints
//
//   - /health: Liveness probe, always 200 while the process serves HTTP
//   - /ready: The latest snapshot; 503 when any provider failed its probe
//   - /version: Build information
//
// /ready never probes on request; it reports what the schedule last saw. A
// monitor that has not probed yet reports status "unknown" with 200.
package health
