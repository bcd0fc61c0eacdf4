package config

import "time"

// Default values for configuration fields.
const (
	// Provider defaults
	DefaultProviderTimeout             = 60 * time.Second
	DefaultProviderMaxRetries          = 3
	DefaultProviderMaxIdleConns        = 100
	DefaultProviderMaxIdleConnsPerHost = 10
	DefaultProviderIdleConnTimeout     = 90 * time.Second

	// Catalog defaults
	DefaultCatalogDebounce = 100 * time.Millisecond

	// Usage defaults
	DefaultUsageBackend     = "memory"
	DefaultUsagePath        = "data/usage.db"
	DefaultUsageBusyTimeout = 5 * time.Second
	DefaultUsageRetention   = 90
	DefaultUsageSchedule    = "0 3 * * *"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Metrics defaults
	DefaultMetricsAddress   = "127.0.0.1:9090"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "conduit"
	DefaultMetricsSubsystem = "llm"

	// Health defaults
	DefaultHealthSchedule     = "@every 5m"
	DefaultHealthProbeTimeout = 30 * time.Second
)

// DefaultRequestDurationBuckets covers LLM latencies from 100ms to 30s.
var DefaultRequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}

// DefaultTokenCountBuckets covers token counts from 100 to 100K.
var DefaultTokenCountBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000}

// ApplyDefaults fills every unset field with its default value. It is
// idempotent and never overrides values that are already set.
func ApplyDefaults(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for name, p := range cfg.Providers {
		if p.Name == "" {
			p.Name = name
		}
		if p.Timeout == 0 {
			p.Timeout = DefaultProviderTimeout
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = DefaultProviderMaxRetries
		}
		if p.MaxIdleConns == 0 {
			p.MaxIdleConns = DefaultProviderMaxIdleConns
		}
		if p.MaxIdleConnsPerHost == 0 {
			p.MaxIdleConnsPerHost = DefaultProviderMaxIdleConnsPerHost
		}
		if p.IdleConnTimeout == 0 {
			p.IdleConnTimeout = DefaultProviderIdleConnTimeout
		}
		cfg.Providers[name] = p
	}

	if cfg.DefaultProvider == "" {
		for _, k := range knownKinds {
			if _, ok := cfg.Providers[string(k)]; ok {
				cfg.DefaultProvider = string(k)
				break
			}
		}
	}

	if cfg.Catalog.Debounce == 0 {
		cfg.Catalog.Debounce = DefaultCatalogDebounce
	}

	if cfg.Usage.Backend == "" {
		cfg.Usage.Backend = DefaultUsageBackend
	}
	if cfg.Usage.Path == "" {
		cfg.Usage.Path = DefaultUsagePath
	}
	if cfg.Usage.BusyTimeout == 0 {
		cfg.Usage.BusyTimeout = DefaultUsageBusyTimeout
	}
	if cfg.Usage.RetentionDays == 0 {
		cfg.Usage.RetentionDays = DefaultUsageRetention
	}
	if cfg.Usage.PruneSchedule == "" {
		cfg.Usage.PruneSchedule = DefaultUsageSchedule
	}

	logging := &cfg.Telemetry.Logging
	if logging.Level == "" {
		logging.Level = DefaultLogLevel
	}
	if logging.Format == "" {
		logging.Format = DefaultLogFormat
	}

	metrics := &cfg.Telemetry.Metrics
	if metrics.Address == "" {
		metrics.Address = DefaultMetricsAddress
	}
	if metrics.Path == "" {
		metrics.Path = DefaultMetricsPath
	}
	if metrics.Namespace == "" {
		metrics.Namespace = DefaultMetricsNamespace
	}
	if metrics.Subsystem == "" {
		metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(metrics.RequestDurationBuckets) == 0 {
		metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if len(metrics.TokenCountBuckets) == 0 {
		metrics.TokenCountBuckets = append([]float64(nil), DefaultTokenCountBuckets...)
	}

	health := &cfg.Telemetry.Health
	if health.Schedule == "" {
		health.Schedule = DefaultHealthSchedule
	}
	if health.ProbeTimeout == 0 {
		health.ProbeTimeout = DefaultHealthProbeTimeout
	}
}
