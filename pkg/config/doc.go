// Package config loads conduit's YAML configuration.
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("conduit.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("conduit.yaml")
//
// # Environment Variable Overrides
//
// Provider settings are overridden per kind with CONDUIT_<KIND>_API_KEY,
// CONDUIT_<KIND>_BASE_URL, CONDUIT_<KIND>_DEFAULT_MODEL,
// CONDUIT_<KIND>_ORGANIZATION, CONDUIT_<KIND>_TIMEOUT and
// CONDUIT_<KIND>_MAX_RETRIES, where KIND is OPENAI, ANTHROPIC or LOCAL.
// Setting any of them adds the provider when the file does not configure it.
//
// Other overrides: CONDUIT_DEFAULT_PROVIDER, CONDUIT_LOG_LEVEL,
// CONDUIT_LOG_FORMAT, CONDUIT_CATALOG_FILE, CONDUIT_CATALOG_WATCH,
// CONDUIT_USAGE_PATH (also enables the sqlite usage backend),
// CONDUIT_METRICS_ENABLED and CONDUIT_HEALTH_SCHEDULE.
//
// # Configuration Precedence
//
//  1. Values from YAML file
//  2. Environment variable overrides
//  3. Default values for anything still unset (defined in defaults.go)
//  4. Validation (fails fast if invalid)
//
// Validation collects every problem into a single ValidationError.
package config
