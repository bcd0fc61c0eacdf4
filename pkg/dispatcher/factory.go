package dispatcher

import (
	"fmt"
	"log/slog"

	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/providers/anthropic"
	"mercator-hq/conduit/pkg/providers/local"
	"mercator-hq/conduit/pkg/providers/openai"
)

// NewProvider creates the adapter for kind.
//
// Supported kinds:
//   - "openai": OpenAI chat completions API
//   - "anthropic": Anthropic Messages API
//   - "local": self-hosted OpenAI-compatible servers (Ollama, LM Studio, vLLM)
//
// Adapters are constructed without network I/O; a missing credential shows up
// as IsReady() == false rather than as an error here.
//
// Example:
//
//	p, err := NewProvider(providers.KindOpenAI, providers.ProviderConfig{
//	    APIKey: "sk-...",
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
func NewProvider(kind providers.Kind, config providers.ProviderConfig) (providers.Provider, error) {
	if config.Name == "" {
		config.Name = string(kind)
	}

	slog.Debug("creating provider",
		"name", config.Name,
		"kind", kind,
		"base_url", config.BaseURL,
	)

	var (
		provider providers.Provider
		err      error
	)

	switch kind {
	case providers.KindOpenAI:
		provider, err = openai.NewProvider(config)

	case providers.KindAnthropic:
		provider, err = anthropic.NewProvider(config)

	case providers.KindLocal:
		provider, err = local.NewProvider(config)

	default:
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "kind",
			Message:  fmt.Sprintf("unsupported provider kind: %q (supported: openai, anthropic, local)", kind),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", config.Name, err)
	}

	slog.Info("provider created successfully",
		"name", config.Name,
		"kind", kind,
		"ready", provider.IsReady(),
	)

	return provider, nil
}
