package catalog

import "mercator-hq/conduit/pkg/providers"

func price(v float64) *float64 { return &v }

// builtinModels is the seed table for NewDefault. Self-hosted models carry no
// pricing.
func builtinModels() []ModelInfo {
	return []ModelInfo{
		// OpenAI
		{ID: "gpt-4o", Provider: providers.KindOpenAI, ContextWindow: 128000, MaxOutputTokens: 16384,
			SupportsTools: true, SupportsVision: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.005), CostPer1kOutput: price(0.015)},
		{ID: "gpt-4o-mini", Provider: providers.KindOpenAI, ContextWindow: 128000, MaxOutputTokens: 16384,
			SupportsTools: true, SupportsVision: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.00015), CostPer1kOutput: price(0.0006)},
		{ID: "gpt-4-turbo", Provider: providers.KindOpenAI, ContextWindow: 128000, MaxOutputTokens: 4096,
			SupportsTools: true, SupportsVision: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.01), CostPer1kOutput: price(0.03)},
		{ID: "gpt-3.5-turbo", Provider: providers.KindOpenAI, ContextWindow: 16385, MaxOutputTokens: 4096,
			SupportsTools: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.0005), CostPer1kOutput: price(0.0015)},
		{ID: "o1", Provider: providers.KindOpenAI, ContextWindow: 200000, MaxOutputTokens: 100000,
			SupportsTools: true, SupportsVision: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.015), CostPer1kOutput: price(0.06)},
		{ID: "o3-mini", Provider: providers.KindOpenAI, ContextWindow: 200000, MaxOutputTokens: 100000,
			SupportsTools: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.0011), CostPer1kOutput: price(0.0044)},

		// Anthropic
		{ID: "claude-3-5-sonnet-20241022", Provider: providers.KindAnthropic, ContextWindow: 200000, MaxOutputTokens: 8192,
			SupportsTools: true, SupportsVision: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.003), CostPer1kOutput: price(0.015)},
		{ID: "claude-3-5-haiku-20241022", Provider: providers.KindAnthropic, ContextWindow: 200000, MaxOutputTokens: 8192,
			SupportsTools: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.0008), CostPer1kOutput: price(0.004)},
		{ID: "claude-3-opus-20240229", Provider: providers.KindAnthropic, ContextWindow: 200000, MaxOutputTokens: 4096,
			SupportsTools: true, SupportsVision: true, DefaultTemperature: 1,
			CostPer1kInput: price(0.015), CostPer1kOutput: price(0.075)},

		// Self-hosted
		{ID: "llama3.1", Provider: providers.KindLocal, ContextWindow: 128000, MaxOutputTokens: 4096,
			SupportsTools: true, DefaultTemperature: 0.8},
		{ID: "mistral", Provider: providers.KindLocal, ContextWindow: 32768, MaxOutputTokens: 4096,
			SupportsTools: true, DefaultTemperature: 0.8},
		{ID: "qwen2.5", Provider: providers.KindLocal, ContextWindow: 32768, MaxOutputTokens: 8192,
			SupportsTools: true, DefaultTemperature: 0.8},
	}
}
