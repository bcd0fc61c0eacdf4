package metrics

import (
	"time"

	"mercator-hq/conduit/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks completion and stream calls made through the dispatcher.
//
// Metrics:
//   - conduit_llm_requests_total: completion count by provider, model, status
//   - conduit_llm_request_duration_seconds: completion duration histogram
//   - conduit_llm_request_tokens_total: tokens by provider, model, type
//   - conduit_llm_request_tokens: per-call total token histogram
//   - conduit_llm_streams_total: stream count by provider, model, status
//   - conduit_llm_stream_first_chunk_seconds: time to first chunk
//   - conduit_llm_stream_duration_seconds: full stream duration
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	tokensPerCall   *prometheus.HistogramVec

	streamsTotal     *prometheus.CounterVec
	streamFirstChunk *prometheus.HistogramVec
	streamDuration   *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of completion requests",
			},
			[]string{"provider", "model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of completion requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens processed",
			},
			[]string{"provider", "model", "type"},
		),

		tokensPerCall: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_tokens",
				Help:      "Total tokens per call",
				Buckets:   cfg.TokenCountBuckets,
			},
			[]string{"provider", "model"},
		),

		streamsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "streams_total",
				Help:      "Total number of streaming requests",
			},
			[]string{"provider", "model", "status"},
		),

		streamFirstChunk: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_first_chunk_seconds",
				Help:      "Time from stream request to first chunk in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),

		streamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_duration_seconds",
				Help:      "Duration of streaming requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
		rm.tokensPerCall,
		rm.streamsTotal,
		rm.streamFirstChunk,
		rm.streamDuration,
	)

	return rm
}

// RecordRequest records a finished completion request.
func (rm *RequestMetrics) RecordRequest(provider, model, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(provider, model, status).Inc()
	rm.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordStream records a finished stream.
func (rm *RequestMetrics) RecordStream(provider, model, status string, firstChunk, duration time.Duration) {
	rm.streamsTotal.WithLabelValues(provider, model, status).Inc()
	if firstChunk > 0 {
		rm.streamFirstChunk.WithLabelValues(provider, model).Observe(firstChunk.Seconds())
	}
	rm.streamDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens records token counts separately for prompt and completion.
func (rm *RequestMetrics) RecordTokens(provider, model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
	if total := promptTokens + completionTokens; total > 0 {
		rm.tokensPerCall.WithLabelValues(provider, model).Observe(float64(total))
	}
}
