package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/quotient-labs/quotient/internal/babbage"
	"github.com/quotient-labs/quotient/internal/extraction"
	"github.com/quotient-labs/quotient/internal/hardware"
	"github.com/quotient-labs/quotient/internal/inference"
	"github.com/quotient-labs/quotient/internal/ingest"
	"github.com/quotient-labs/quotient/internal/inventory"
	"github.com/quotient-labs/quotient/internal/metrics"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/preprocess"
	"github.com/quotient-labs/quotient/internal/prompts"
	"github.com/quotient-labs/quotient/internal/providers"
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.Model.ID) == "" && c.Model.LocalPath == "" {
		return fmt.Errorf("model.id must not be empty")
	}
	if c.Model.Provider != "" {
		if _, ok := c.LLMProviders[c.Model.Provider]; !ok {
			return fmt.Errorf("model.provider %q is not listed in llm_providers", c.Model.Provider)
		}
	}
	for name, p := range c.LLMProviders {
		switch p.Type {
		case providers.TypeOpenAI, providers.TypeOpenAICompatible:
		default:
			return fmt.Errorf("llm_providers.%s: unknown type %q", name, p.Type)
		}
		if p.Timeout < 0 || p.RateLimit < 0 {
			return fmt.Errorf("llm_providers.%s: timeout and rate_limit must not be negative", name)
		}
	}
	if c.Hardware.MaxMemoryGB < 0 {
		return fmt.Errorf("hardware.max_memory_gb must not be negative")
	}
	if c.Ingest.MaxFileSizeMB < 0 {
		return fmt.Errorf("ingest.max_file_size_mb must not be negative")
	}
	if c.Extraction.Temperature < 0 || c.Extraction.Temperature > 2 {
		return fmt.Errorf("extraction.temperature must be between 0 and 2")
	}
	if c.Ingest.BatchSize < 0 {
		return fmt.Errorf("ingest.batch_size must not be negative")
	}
	if _, err := inventory.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", s)
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// HardwareConfig returns detector settings.
func (c *Config) HardwareConfig(logger *slog.Logger) hardware.Config {
	return hardware.Config{
		DisableCUDA:     !c.Hardware.UseCUDA,
		DisableMPS:      !c.Hardware.UseMPS,
		AssumedMemoryGB: c.Hardware.AssumedMemoryGB,
		Logger:          logger,
	}
}

// MaxMemory returns the configured memory ceiling, or nil for automatic.
func (c *Config) MaxMemory() *float64 {
	if c.Hardware.MaxMemoryGB <= 0 {
		return nil
	}
	v := c.Hardware.MaxMemoryGB
	return &v
}

// SelectorOptions returns model selector settings.
func (c *Config) SelectorOptions(logger *slog.Logger) modelcfg.Options {
	return modelcfg.Options{
		DefaultModel: c.Model.ID,
		LocalPath:    c.Model.LocalPath,
		Logger:       logger,
	}
}

// ExtractionConfig returns engine settings. The caller supplies the
// inferencer and prompt resolver.
func (c *Config) ExtractionConfig() extraction.Config {
	temperature := c.Extraction.Temperature
	return extraction.Config{
		Timeout:         seconds(c.Extraction.Timeout),
		MaxInputChars:   c.Extraction.MaxInputChars,
		Temperature:     &temperature,
		MaxTokens:       c.Extraction.MaxTokens,
		DisableFallback: !c.Extraction.Fallback,
	}
}

// PreprocessOptions returns preprocessing stage settings.
func (c *Config) PreprocessOptions() preprocess.Options {
	return preprocess.Options{
		SkipNormalize:    c.Preprocess.SkipNormalize,
		SkipCanonicalize: c.Preprocess.SkipCanonicalize,
		SkipSegment:      c.Preprocess.SkipSegment,
		StageTimeout:     seconds(c.Preprocess.Timeout),
		MaxTokens:        c.Preprocess.MaxTokens,
	}
}

// IngestConfig returns document reader settings.
func (c *Config) IngestConfig(logger *slog.Logger) ingest.Config {
	return ingest.Config{
		MaxFileSizeMB:    c.Ingest.MaxFileSizeMB,
		SupportedFormats: c.Ingest.SupportedFormats,
		Logger:           logger,
	}
}

// ModelProvider returns the llm_providers entry that serves the model:
// model.provider when set, otherwise the first enabled entry by name.
func (c *Config) ModelProvider() (string, bool) {
	if c.Model.Provider != "" {
		_, ok := c.LLMProviders[c.Model.Provider]
		return c.Model.Provider, ok
	}
	enabled := c.EnabledLLMProviders()
	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

// ProviderLoader returns a model loader bound to the model's provider.
func (c *Config) ProviderLoader(registry *providers.Registry, recorder *metrics.Recorder, logger *slog.Logger) *inference.ProviderLoader {
	loader := &inference.ProviderLoader{
		Registry:    registry,
		HealthCheck: c.Model.HealthCheck,
		Recorder:    recorder,
		Logger:      logger,
	}
	if name, ok := c.ModelProvider(); ok {
		p := c.LLMProviders[name]
		loader.Provider = name
		loader.Model = p.Model
		loader.Timeout = seconds(p.Timeout)
	}
	return loader
}

// ServiceConfig returns processing service settings around the shared
// hardware cache, inferencer and prompt resolver.
func (c *Config) ServiceConfig(cache *hardware.Cache, inf inference.Inferencer, resolver *prompts.Resolver, logger *slog.Logger) babbage.Config {
	return babbage.Config{
		Reader:      ingest.NewReader(c.IngestConfig(logger)),
		Hardware:    cache,
		Selector:    modelcfg.NewSelector(c.SelectorOptions(logger)),
		Model:       c.Model.ID,
		MaxMemoryGB: c.MaxMemory(),
		Inferencer:  inf,
		Prompts:     resolver,
		Preprocess:  c.PreprocessOptions(),
		Extraction:  c.ExtractionConfig(),
		Deduplicate: c.Extraction.Deduplicate,
		Logger:      logger,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
