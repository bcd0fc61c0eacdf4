package metrics

import (
	"fmt"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"

	"github.com/prometheus/client_golang/prometheus"
)

// otherModel replaces model labels once the cardinality limit is reached.
const otherModel = "other"

// Collector owns every Prometheus metric conduit records and registers them
// on one registry.
//
// A nil *Collector is valid and records nothing, so components can take an
// optional collector without checking for nil.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	adapters       *adapterMetrics
	cost           *costMetrics
	catalogReloads *prometheus.CounterVec

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = append([]float64(nil), config.DefaultRequestDurationBuckets...)
	}
	if len(cfg.TokenCountBuckets) == 0 {
		cfg.TokenCountBuckets = append([]float64(nil), config.DefaultTokenCountBuckets...)
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(10000),
	}

	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.adapters = newAdapterMetrics(cfg, registry)
	c.cost = newCostMetrics(cfg, registry)

	c.catalogReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "catalog_reloads_total",
			Help:      "Total number of catalog file reloads by result",
		},
		[]string{"result"},
	)
	registry.MustRegister(c.catalogReloads)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// limitModel folds model labels into "other" once too many label sets exist.
func (c *Collector) limitModel(kind, provider, model string) string {
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("%s:%s:%s", kind, provider, model)) {
		return otherModel
	}
	return model
}

// RecordRequest records a finished completion call.
//
// Parameters:
//   - provider: adapter kind (e.g., "openai", "anthropic")
//   - model: model name (e.g., "gpt-4o")
//   - status: "success" or "error"
//   - duration: total call duration, retries included
//   - usage: token usage reported by the vendor
//
// Example:
//
//	collector.RecordRequest("openai", "gpt-4o", "success", 1200*time.Millisecond, resp.Usage)
func (c *Collector) RecordRequest(provider, model, status string, duration time.Duration, usage providers.TokenUsage) {
	if !c.enabled() {
		return
	}

	model = c.limitModel("request", provider, model)

	c.requestMetrics.RecordRequest(provider, model, status, duration)
	c.requestMetrics.RecordTokens(provider, model, usage.PromptTokens, usage.CompletionTokens)
	c.adapters.latency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordStream records a finished stream. firstChunk is the time until the
// first chunk arrived; zero when none did.
func (c *Collector) RecordStream(provider, model, status string, firstChunk, duration time.Duration, usage providers.TokenUsage) {
	if !c.enabled() {
		return
	}

	model = c.limitModel("stream", provider, model)

	c.requestMetrics.RecordStream(provider, model, status, firstChunk, duration)
	c.requestMetrics.RecordTokens(provider, model, usage.PromptTokens, usage.CompletionTokens)
}

// RecordCost records the estimated USD cost of one call that used tokens
// tokens in total.
func (c *Collector) RecordCost(provider, model string, costUSD float64, tokens int) {
	if !c.enabled() {
		return
	}

	c.cost.observe(provider, c.limitModel("cost", provider, model), costUSD, tokens)
}

// RecordUnpricedCall counts a successful call the catalog has no pricing for.
func (c *Collector) RecordUnpricedCall(provider, model string) {
	if !c.enabled() {
		return
	}

	c.cost.observeUnpriced(provider, c.limitModel("cost", provider, model))
}

// RecordProviderError records a failed call, labelled by ErrorType(err).
func (c *Collector) RecordProviderError(provider string, err error) {
	if !c.enabled() || err == nil {
		return
	}

	c.adapters.errors.WithLabelValues(provider, ErrorType(err)).Inc()
}

// RecordRetry records one retry scheduled by the retry engine.
func (c *Collector) RecordRetry(provider string, event providers.RetryEvent) {
	if !c.enabled() {
		return
	}

	c.adapters.observeRetry(provider, ErrorType(event.Err), event.Delay)
}

// UpdateProviderHealth stores the result of a credential probe that ran now.
func (c *Collector) UpdateProviderHealth(provider string, healthy bool) {
	if !c.enabled() {
		return
	}

	c.adapters.setHealth(provider, healthy, time.Now())
}

// RecordCatalogReload counts one catalog reload attempt.
func (c *Collector) RecordCatalogReload(err error) {
	if !c.enabled() {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
	}
	c.catalogReloads.WithLabelValues(result).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
