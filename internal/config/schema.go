package config

import (
	"time"

	"github.com/quotient-labs/quotient/internal/batch"
	"github.com/quotient-labs/quotient/internal/extraction"
	"github.com/quotient-labs/quotient/internal/hardware"
	"github.com/quotient-labs/quotient/internal/ingest"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/preprocess"
)

// Config holds quotient configuration.
// Stored at: ./config.yaml or ~/.quotient/config.yaml
type Config struct {
	Model        ModelCfg                  `mapstructure:"model" yaml:"model"`
	Hardware     HardwareCfg               `mapstructure:"hardware" yaml:"hardware"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Extraction   ExtractionCfg             `mapstructure:"extraction" yaml:"extraction"`
	Preprocess   PreprocessCfg             `mapstructure:"preprocess" yaml:"preprocess"`
	Ingest       IngestCfg                 `mapstructure:"ingest" yaml:"ingest"`
	Output       OutputCfg                 `mapstructure:"output" yaml:"output"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	LogLevel     string                    `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// ModelCfg selects the model.
type ModelCfg struct {
	ID          string `mapstructure:"id" yaml:"id"`                     // Hugging Face style model ID
	LocalPath   string `mapstructure:"local_path" yaml:"local_path"`     // Optional GGUF file
	Provider    string `mapstructure:"provider" yaml:"provider"`         // llm_providers entry to run it on; empty picks the first enabled
	HealthCheck bool   `mapstructure:"health_check" yaml:"health_check"` // Probe the provider before first use
}

// HardwareCfg tunes detection and the memory ceiling.
type HardwareCfg struct {
	UseCUDA         bool    `mapstructure:"use_cuda" yaml:"use_cuda"`
	UseMPS          bool    `mapstructure:"use_mps" yaml:"use_mps"`
	MaxMemoryGB     float64 `mapstructure:"max_memory_gb" yaml:"max_memory_gb"`         // 0 = 80% of available
	AssumedMemoryGB float64 `mapstructure:"assumed_memory_gb" yaml:"assumed_memory_gb"` // Reported when memory cannot be probed
}

// LLMProviderCfg configures an OpenAI-compatible chat endpoint.
type LLMProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"`             // "openai" or "openai-compatible"
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`     // Required for openai-compatible
	Model     string `mapstructure:"model" yaml:"model"`           // Served model name; empty uses model.id
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Timeout   int    `mapstructure:"timeout" yaml:"timeout"`       // Seconds
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ExtractionCfg tunes the extraction engine.
type ExtractionCfg struct {
	Timeout       int     `mapstructure:"timeout" yaml:"timeout"` // Seconds
	MaxInputChars int     `mapstructure:"max_input_chars" yaml:"max_input_chars"`
	Temperature   float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Fallback      bool    `mapstructure:"fallback" yaml:"fallback"` // Rule extraction when the model fails
	Deduplicate   bool    `mapstructure:"deduplicate" yaml:"deduplicate"`
}

// PreprocessCfg selects preprocessing stages.
type PreprocessCfg struct {
	SkipNormalize    bool `mapstructure:"skip_normalize" yaml:"skip_normalize"`
	SkipCanonicalize bool `mapstructure:"skip_canonicalize" yaml:"skip_canonicalize"`
	SkipSegment      bool `mapstructure:"skip_segment" yaml:"skip_segment"`
	Timeout          int  `mapstructure:"timeout" yaml:"timeout"` // Seconds per stage
	MaxTokens        int  `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// IngestCfg limits accepted documents.
type IngestCfg struct {
	MaxFileSizeMB    int      `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb"`
	SupportedFormats []string `mapstructure:"supported_formats" yaml:"supported_formats"`
	BatchSize        int      `mapstructure:"batch_size" yaml:"batch_size"` // Documents processed concurrently by `process a b c`
}

// OutputCfg sets export defaults.
type OutputCfg struct {
	Format string `mapstructure:"format" yaml:"format"` // json, yaml, csv, xlsx
	Dir    string `mapstructure:"dir" yaml:"dir"`       // Relative paths resolve under the home directory
}

// ServerCfg configures `quotient serve`.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelCfg{
			ID: modelcfg.DefaultModel,
		},
		Hardware: HardwareCfg{
			UseCUDA:         true,
			UseMPS:          true,
			AssumedMemoryGB: hardware.DefaultAssumedMemoryGB,
		},
		LLMProviders: map[string]LLMProviderCfg{
			"local": {
				Type:    "openai-compatible",
				BaseURL: "http://127.0.0.1:8081/v1",
				Timeout: 120,
				Enabled: true,
			},
			"huggingface": {
				Type:      "openai-compatible",
				BaseURL:   "https://router.huggingface.co/v1",
				APIKey:    "${HF_TOKEN}",
				RateLimit: 60,
				Timeout:   60,
				Enabled:   false,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Timeout:   60,
				Enabled:   false,
			},
		},
		Extraction: ExtractionCfg{
			Timeout:       int(extraction.DefaultTimeout / time.Second),
			MaxInputChars: extraction.DefaultMaxInputChars,
			Temperature:   extraction.DefaultTemperature,
			MaxTokens:     extraction.DefaultMaxTokens,
			Fallback:      true,
		},
		Preprocess: PreprocessCfg{
			Timeout:   int(preprocess.DefaultStageTimeout / time.Second),
			MaxTokens: preprocess.DefaultMaxTokens,
		},
		Ingest: IngestCfg{
			MaxFileSizeMB:    ingest.DefaultMaxFileSizeMB,
			SupportedFormats: ingest.DefaultFormats,
			BatchSize:        batch.DefaultWorkers,
		},
		Output: OutputCfg{
			Format: "json",
			Dir:    "output",
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		LogLevel: "info",
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
