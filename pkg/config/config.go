package config

import (
	"sort"
	"time"

	"mercator-hq/conduit/pkg/providers"
)

// Config is the root configuration for conduit.
//
// Example YAML:
//
//	default_provider: openai
//	providers:
//	  openai:
//	    api_key: sk-...
//	    timeout: 60s
//	  local:
//	    base_url: http://localhost:11434
//	catalog:
//	  file: ./models.yaml
//	  watch: true
//	usage:
//	  enabled: true
//	  backend: sqlite
//	  path: data/usage.db
type Config struct {
	// DefaultProvider is the adapter kind used when a request names no model
	// and no provider. Defaults to the first configured of openai, anthropic, local.
	DefaultProvider string `yaml:"default_provider"`

	// Providers maps an adapter kind (openai, anthropic, local) to its settings.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Catalog contains model catalog settings.
	Catalog CatalogConfig `yaml:"catalog"`

	// Usage contains usage ledger settings.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry contains logging, metrics and health monitoring settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProviderConfig contains settings for one adapter.
type ProviderConfig struct {
	// Name is a display name used in logs. Default: the kind.
	Name string `yaml:"name"`

	// BaseURL overrides the vendor endpoint. Empty uses the adapter's default.
	BaseURL string `yaml:"base_url"`

	// APIKey is the vendor credential. Optional for local.
	APIKey string `yaml:"api_key"`

	// Organization is sent to OpenAI as OpenAI-Organization.
	Organization string `yaml:"organization"`

	// DefaultModel overrides the adapter's built-in default model.
	DefaultModel string `yaml:"default_model"`

	// Timeout bounds each attempt.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of attempts made by the retry engine.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// MaxIdleConns is the connection pool size.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the per-host connection pool size.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout closes pooled connections after this long.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// CatalogConfig contains model catalog settings.
type CatalogConfig struct {
	// File is an optional YAML file of extra or overriding model entries.
	File string `yaml:"file"`

	// Watch reloads File when it changes.
	Watch bool `yaml:"watch"`

	// Debounce collapses bursts of file events.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}

// UsageConfig contains usage ledger settings.
type UsageConfig struct {
	// Enabled records one usage entry per completion.
	Enabled bool `yaml:"enabled"`

	// Backend selects the store.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	// Default: "data/usage.db"
	Path string `yaml:"path"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// RetentionDays removes records older than this many days; -1 keeps them forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig groups the observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// DisableRedaction turns off secret redaction. Redaction is on by default.
	DisableRedaction bool `yaml:"disable_redaction"`

	// RedactKeys adds attribute keys whose values are always redacted.
	RedactKeys []string `yaml:"redact_keys"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded.
	Enabled bool `yaml:"enabled"`

	// Address is the listen address of the metrics endpoint served by
	// "conduit monitor".
	// Default: "127.0.0.1:9090"
	Address string `yaml:"address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "conduit"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "llm"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// TokenCountBuckets defines histogram buckets for token counts.
	// Default: [100, 500, 1000, 5000, 10000, 50000, 100000]
	TokenCountBuckets []float64 `yaml:"token_count_buckets"`
}

// HealthConfig contains the credential probe schedule.
type HealthConfig struct {
	// Enabled runs scheduled credential probes.
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard 5-field cron expression or a descriptor such as
	// "@every 5m".
	// Default: "@every 5m"
	Schedule string `yaml:"schedule"`

	// ProbeTimeout bounds one round of probes.
	// Default: 30s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// knownKinds lists the adapter kinds in default-provider preference order.
var knownKinds = []providers.Kind{
	providers.KindOpenAI,
	providers.KindAnthropic,
	providers.KindLocal,
}

// IsKnownKind reports whether name is an adapter kind conduit can build.
func IsKnownKind(name string) bool {
	for _, k := range knownKinds {
		if string(k) == name {
			return true
		}
	}
	return false
}

// Kinds returns the configured adapter kinds in sorted order.
func (c *Config) Kinds() []providers.Kind {
	kinds := make([]providers.Kind, 0, len(c.Providers))
	for name := range c.Providers {
		kinds = append(kinds, providers.Kind(name))
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ProviderConfig returns the adapter configuration for kind. The second
// result is false when the kind is not configured.
func (c *Config) ProviderConfig(kind providers.Kind) (providers.ProviderConfig, bool) {
	p, ok := c.Providers[string(kind)]
	if !ok {
		return providers.ProviderConfig{}, false
	}
	return providers.ProviderConfig{
		Name:                p.Name,
		APIKey:              p.APIKey,
		BaseURL:             p.BaseURL,
		Organization:        p.Organization,
		DefaultModel:        p.DefaultModel,
		Timeout:             p.Timeout,
		MaxRetries:          p.MaxRetries,
		MaxIdleConns:        p.MaxIdleConns,
		MaxIdleConnsPerHost: p.MaxIdleConnsPerHost,
		IdleConnTimeout:     p.IdleConnTimeout,
	}, true
}
