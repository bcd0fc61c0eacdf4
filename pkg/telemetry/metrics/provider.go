package metrics

import (
	"time"

	"mercator-hq/conduit/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// adapterMetrics tracks per-adapter behaviour below the request level:
// credential probes, failures, retries and raw call latency.
//
// Metrics:
//   - conduit_llm_provider_health: last credential probe (1=healthy, 0=unhealthy)
//   - conduit_llm_provider_health_checked_timestamp_seconds: when that probe ran
//   - conduit_llm_provider_errors_total: failed calls by error type
//   - conduit_llm_provider_retries_total: retries scheduled by the retry engine
//   - conduit_llm_provider_retry_delay_seconds: backoff before each retry
//   - conduit_llm_provider_latency_seconds: completion latency, retries included
type adapterMetrics struct {
	health     *prometheus.GaugeVec
	checkedAt  *prometheus.GaugeVec
	errors     *prometheus.CounterVec
	retries    *prometheus.CounterVec
	retryDelay *prometheus.HistogramVec
	latency    *prometheus.HistogramVec
}

func newAdapterMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *adapterMetrics {
	m := &adapterMetrics{
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "provider_health",
			Help:      "Provider credential probe status (1=healthy, 0=unhealthy)",
		}, []string{"provider"}),
		checkedAt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "provider_health_checked_timestamp_seconds",
			Help:      "Unix time of the last credential probe",
		}, []string{"provider"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "provider_errors_total",
			Help:      "Total number of provider errors by type",
		}, []string{"provider", "error_type"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "provider_retries_total",
			Help:      "Total number of retried provider calls by error type",
		}, []string{"provider", "error_type"}),
		retryDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "provider_retry_delay_seconds",
			Help:      "Backoff waited before a retry",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"provider"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "provider_latency_seconds",
			Help:      "Provider API call latency in seconds",
			Buckets:   cfg.RequestDurationBuckets,
		}, []string{"provider", "model"}),
	}

	registry.MustRegister(m.health, m.checkedAt, m.errors, m.retries, m.retryDelay, m.latency)
	return m
}

func (m *adapterMetrics) setHealth(provider string, healthy bool, at time.Time) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.health.WithLabelValues(provider).Set(value)
	m.checkedAt.WithLabelValues(provider).Set(float64(at.Unix()))
}

func (m *adapterMetrics) observeRetry(provider, errorType string, delay time.Duration) {
	m.retries.WithLabelValues(provider, errorType).Inc()
	m.retryDelay.WithLabelValues(provider).Observe(delay.Seconds())
}
