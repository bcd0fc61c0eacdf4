package metrics

import (
	"mercator-hq/conduit/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// costMetrics tracks spend estimated from catalog pricing. Calls to models
// without pricing are counted separately instead of being recorded as free.
//
// Metrics:
//   - conduit_llm_cost_usd_total: estimated spend by provider and model
//   - conduit_llm_call_cost_usd: per-call spend distribution
//   - conduit_llm_cost_per_1k_tokens_usd: blended price of the last priced call
//   - conduit_llm_unpriced_calls_total: successful calls the catalog could not price
type costMetrics struct {
	spendTotal   *prometheus.CounterVec
	spendPerCall *prometheus.HistogramVec
	per1kTokens  *prometheus.GaugeVec
	unpriced     *prometheus.CounterVec
}

// callCostBuckets spans one hundredth of a cent to one dollar per call.
var callCostBuckets = prometheus.ExponentialBucketsRange(0.00001, 1, 11)

func newCostMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *costMetrics {
	labels := []string{"provider", "model"}

	m := &costMetrics{
		spendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cost_usd_total",
			Help:      "Estimated spend in USD by provider and model",
		}, labels),
		spendPerCall: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "call_cost_usd",
			Help:      "Estimated spend per call in USD",
			Buckets:   callCostBuckets,
		}, labels),
		per1kTokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cost_per_1k_tokens_usd",
			Help:      "Blended USD price per 1000 tokens of the last priced call",
		}, labels),
		unpriced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "unpriced_calls_total",
			Help:      "Successful calls whose model has no catalog pricing",
		}, labels),
	}

	registry.MustRegister(m.spendTotal, m.spendPerCall, m.per1kTokens, m.unpriced)
	return m
}

// observe records one priced call. A zero cost still counts towards the
// histogram; local models are often priced at zero on purpose.
func (m *costMetrics) observe(provider, model string, costUSD float64, tokens int) {
	if costUSD < 0 {
		return
	}
	m.spendTotal.WithLabelValues(provider, model).Add(costUSD)
	m.spendPerCall.WithLabelValues(provider, model).Observe(costUSD)
	if tokens > 0 {
		m.per1kTokens.WithLabelValues(provider, model).Set(costUSD / float64(tokens) * 1000)
	}
}

func (m *costMetrics) observeUnpriced(provider, model string) {
	m.unpriced.WithLabelValues(provider, model).Inc()
}
