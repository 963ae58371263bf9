package providers

import (
	"os"
)

// TestConfig holds provider settings loaded from environment variables so
// integration tests use the same configuration pattern as production.
type TestConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

// LoadTestConfig reads QUOTIENT_TEST_LLM_BASE_URL, QUOTIENT_TEST_LLM_MODEL
// and OPENAI_API_KEY.
func LoadTestConfig() TestConfig {
	return TestConfig{
		BaseURL: os.Getenv("QUOTIENT_TEST_LLM_BASE_URL"),
		Model:   os.Getenv("QUOTIENT_TEST_LLM_MODEL"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
	}
}

// HasLLM returns true if a live backend is configured.
func (c TestConfig) HasLLM() bool {
	return c.BaseURL != "" || c.APIKey != ""
}

// NewClient creates a client from test config. Returns nil if not configured.
func (c TestConfig) NewClient() *OpenAIClient {
	if !c.HasLLM() {
		return nil
	}
	return NewOpenAIClient(OpenAIConfig{
		Name:         "test",
		APIKey:       c.APIKey,
		BaseURL:      c.BaseURL,
		DefaultModel: c.Model,
	})
}

// ToRegistryConfig converts test config to a RegistryConfig.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{LLMProviders: make(map[string]LLMProviderConfig)}
	switch {
	case c.BaseURL != "":
		cfg.LLMProviders["local"] = LLMProviderConfig{
			Type:    TypeOpenAICompatible,
			BaseURL: c.BaseURL,
			Model:   c.Model,
			APIKey:  c.APIKey,
			Enabled: true,
		}
	case c.APIKey != "":
		cfg.LLMProviders["openai"] = LLMProviderConfig{
			Type:    TypeOpenAI,
			Model:   c.Model,
			APIKey:  c.APIKey,
			Enabled: true,
		}
	}
	return cfg
}
