// Package metrics records Prometheus metrics for provider calls.
//
// # Metrics Categories
//
//   - Request Metrics: completion and stream counts, durations and tokens
//   - Adapter Metrics: credential probes, latency, errors, retries and backoff
//   - Cost Metrics: estimated spend, and calls the catalog could not price
//   - Catalog reloads by result
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//
//	collector.RecordRequest("openai", "gpt-4o", "success", time.Second, resp.Usage)
//	collector.RecordCost("openai", "gpt-4o", 0.0125, resp.Usage.TotalTokens)
//	collector.RecordProviderError("anthropic", err)
//	collector.UpdateProviderHealth("local", false)
//
// A nil *Collector records nothing.
//
// # Cardinality Management
//
// Model labels come from callers. Once 10,000 unique label combinations have
// been seen, new models are recorded under the model label "other".
//
// # Prometheus Endpoint
//
// Handler exposes the collector's registry in the Prometheus exposition
// format; "conduit monitor" serves it on telemetry.metrics.address.
package metrics
