package catalog

import (
	"sort"
	"strings"
	"sync"

	"mercator-hq/conduit/pkg/providers"
)

// ModelInfo describes a model's capabilities, context window and pricing.
// Nil cost fields mean pricing is unknown.
type ModelInfo struct {
	// ID is the model identifier sent to the vendor.
	ID string `yaml:"id" json:"id"`

	// Provider is the adapter kind that serves the model.
	Provider providers.Kind `yaml:"provider" json:"provider"`

	// ContextWindow is the total token capacity of a request.
	ContextWindow int `yaml:"context_window" json:"context_window"`

	// MaxOutputTokens is the most tokens the model generates in one response.
	MaxOutputTokens int `yaml:"max_output_tokens" json:"max_output_tokens"`

	SupportsTools  bool `yaml:"supports_tools" json:"supports_tools"`
	SupportsVision bool `yaml:"supports_vision" json:"supports_vision"`

	DefaultTemperature float64 `yaml:"default_temperature" json:"default_temperature"`

	// CostPer1kInput is the USD price of 1000 prompt tokens.
	CostPer1kInput *float64 `yaml:"cost_per_1k_input,omitempty" json:"cost_per_1k_input,omitempty"`

	// CostPer1kOutput is the USD price of 1000 completion tokens.
	CostPer1kOutput *float64 `yaml:"cost_per_1k_output,omitempty" json:"cost_per_1k_output,omitempty"`
}

// Catalog is a registry of model metadata. It is safe for concurrent use.
// Construct one and pass it to whoever needs it; there is no global instance.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]ModelInfo
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{models: make(map[string]ModelInfo)}
}

// NewDefault returns a catalog seeded with the built-in models.
func NewDefault() *Catalog {
	c := New()
	for _, m := range builtinModels() {
		c.Register(m)
	}
	return c
}

// Register adds or replaces the entry for info.ID. The last registration
// wins; fields are not merged.
func (c *Catalog) Register(info ModelInfo) {
	info.CostPer1kInput = copyFloat(info.CostPer1kInput)
	info.CostPer1kOutput = copyFloat(info.CostPer1kOutput)

	c.mu.Lock()
	c.models[info.ID] = info
	c.mu.Unlock()
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.models[id]
	return info, ok
}

// ProviderFor returns the kind registered for id.
func (c *Catalog) ProviderFor(id string) (providers.Kind, bool) {
	info, ok := c.Get(id)
	if !ok {
		return "", false
	}
	return info.Provider, true
}

// List returns every entry sorted by ID.
func (c *Catalog) List() []ModelInfo {
	c.mu.RLock()
	out := make([]ModelInfo, 0, len(c.models))
	for _, info := range c.models {
		out = append(out, info)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByProvider returns the entries served by kind, sorted by ID.
func (c *Catalog) ListByProvider(kind providers.Kind) []ModelInfo {
	var out []ModelInfo
	for _, info := range c.List() {
		if info.Provider == kind {
			out = append(out, info)
		}
	}
	return out
}

// Len returns the number of registered models.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// EstimateCost returns the USD cost of a call. The second result is false when
// the model or its pricing is unknown; a zero cost is never reported in that
// case.
func (c *Catalog) EstimateCost(id string, inputTokens, outputTokens int) (float64, bool) {
	info, ok := c.Get(id)
	if !ok || info.CostPer1kInput == nil || info.CostPer1kOutput == nil {
		return 0, false
	}

	return tokenCost(inputTokens, *info.CostPer1kInput) + tokenCost(outputTokens, *info.CostPer1kOutput), true
}

// FitsInContext reports whether tokens is strictly below the model's context
// window. Unknown models never fit.
func (c *Catalog) FitsInContext(id string, tokens int) bool {
	info, ok := c.Get(id)
	if !ok {
		return false
	}
	return tokens < info.ContextWindow
}

// InferProvider guesses the adapter kind from a model id's prefix. It is the
// fallback for ids the catalog does not know.
func InferProvider(id string) providers.Kind {
	lower := strings.ToLower(id)
	for _, prefix := range []string{"gpt-", "o1", "o3", "o4", "chatgpt-", "text-"} {
		if strings.HasPrefix(lower, prefix) {
			return providers.KindOpenAI
		}
	}
	if strings.HasPrefix(lower, "claude") {
		return providers.KindAnthropic
	}
	return providers.KindLocal
}

func tokenCost(tokens int, costPer1k float64) float64 {
	if tokens <= 0 {
		return 0
	}
	return float64(tokens) / 1000 * costPer1k
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
