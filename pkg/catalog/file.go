package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mercator-hq/conduit/pkg/providers"
)

// File is the on-disk catalog format:
//
//	models:
//	  - id: my-finetune
//	    provider: openai
//	    context_window: 128000
//	    max_output_tokens: 4096
//	    supports_tools: true
//	    cost_per_1k_input: 0.003
//	    cost_per_1k_output: 0.012
type File struct {
	Models []ModelInfo `yaml:"models"`
}

// LoadFile reads a catalog file and registers every entry in it, overwriting
// entries with the same id. Nothing is registered if any entry is invalid.
// It returns the number of entries registered.
func (c *Catalog) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	for i, m := range file.Models {
		if err := validateEntry(m); err != nil {
			return 0, fmt.Errorf("catalog file %s: model %d: %w", path, i, err)
		}
	}

	for _, m := range file.Models {
		c.Register(m)
	}
	return len(file.Models), nil
}

func validateEntry(m ModelInfo) error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch m.Provider {
	case providers.KindOpenAI, providers.KindAnthropic, providers.KindLocal:
	default:
		return fmt.Errorf("unknown provider %q for %s", m.Provider, m.ID)
	}
	if m.ContextWindow <= 0 {
		return fmt.Errorf("context_window must be positive for %s", m.ID)
	}
	if m.CostPer1kInput != nil && *m.CostPer1kInput < 0 {
		return fmt.Errorf("cost_per_1k_input must not be negative for %s", m.ID)
	}
	if m.CostPer1kOutput != nil && *m.CostPer1kOutput < 0 {
		return fmt.Errorf("cost_per_1k_output must not be negative for %s", m.ID)
	}
	return nil
}
