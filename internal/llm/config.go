// Package llm provides the language model clients used for candidate
// summaries and skill specificity judgments.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short structured answers such as specificity ratings
	TierLite ModelTier = "lite"
	// TierStandard is for candidate summaries
	TierStandard ModelTier = "standard"
	// TierAdvanced is reserved for long, multi-document reasoning
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Config selects models per tier and the generation settings shared by
// every request of a client
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// System is sent as the system instruction of every request
	System          string
	Temperature     float32
	MaxOutputTokens int32
	// BaseURL overrides the OpenAI endpoint for compatible gateways
	BaseURL string
}

// recruiterSystem keeps every answer grounded in the supplied profile
const recruiterSystem = "You assist recruiters screening job applications. " +
	"Only use facts present in the input. Never infer age, gender, ethnicity or other protected attributes."

// DefaultConfig returns the Gemini configuration
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		System:          recruiterSystem,
		Temperature:     0.1,
		MaxOutputTokens: 2048,
	}
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o-mini",
			TierAdvanced: "gpt-4o",
		},
		System:          recruiterSystem,
		Temperature:     0.1,
		MaxOutputTokens: 2048,
	}
}

// ConfigFor returns the default configuration of a provider. Unknown
// providers get Gemini.
func ConfigFor(provider Provider) *Config {
	if provider == ProviderOpenAI {
		return DefaultOpenAIConfig()
	}
	return DefaultGeminiConfig()
}

// GetModel returns the model of tier, falling back to standard and then
// lite. It returns "" when nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model, ok := c.Models[t]; ok && model != "" {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of c using model for tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	cp := *c
	cp.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		cp.Models[k] = v
	}
	cp.Models[tier] = model
	return &cp
}
