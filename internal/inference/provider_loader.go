package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quotient-labs/quotient/internal/metrics"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/providers"
)

// ProviderLoader loads models served by an LLM provider from the registry.
type ProviderLoader struct {
	Registry *providers.Registry

	// Provider names the registry entry. Empty uses the first registered
	// provider in name order.
	Provider string

	// Model overrides the model name sent to the provider. Empty sends
	// the configuration's model ID. A configuration with a valid local
	// GGUF source sends the file path instead, for llama.cpp-style servers
	// that load the model named in the request.
	Model string

	// HealthCheck probes the provider before the model is reported loaded.
	HealthCheck bool

	// Timeout bounds each generation when the caller's context has no
	// deadline. Zero means no bound.
	Timeout time.Duration

	Recorder *metrics.Recorder
	Logger   *slog.Logger
}

// Load resolves the provider and returns a handle bound to it.
func (l *ProviderLoader) Load(ctx context.Context, cfg modelcfg.Config) (Model, error) {
	if l.Registry == nil {
		return nil, ErrNoBackend
	}

	name := l.Provider
	if name == "" {
		names := l.Registry.ListLLM()
		if len(names) == 0 {
			return nil, ErrNoBackend
		}
		name = names[0]
	}

	client, err := l.Registry.GetLLM(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}

	if l.HealthCheck {
		if hc, ok := client.(providers.HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				return nil, fmt.Errorf("provider %s health check: %w", name, err)
			}
		}
	}

	model := l.Model
	switch {
	case cfg.Source.Kind == modelcfg.SourceLocal && cfg.Source.Path != "":
		model = cfg.Source.Path
	case model == "":
		model = cfg.ModelID
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &providerModel{
		client:   client,
		model:    model,
		timeout:  l.Timeout,
		recorder: l.Recorder,
		logger:   logger.With("component", "inference", "provider", name),
	}, nil
}

type providerModel struct {
	client   providers.LLMClient
	model    string
	timeout  time.Duration
	recorder *metrics.Recorder
	logger   *slog.Logger
}

func (p *providerModel) Generate(ctx context.Context, prompt string, gen Generation) (string, error) {
	req := &providers.ChatRequest{
		Messages:    providers.SystemUser(gen.System, prompt),
		Model:       p.model,
		Temperature: &gen.Temperature,
		MaxTokens:   gen.MaxTokens,
	}
	if _, ok := ctx.Deadline(); !ok {
		req.Timeout = p.timeout
	}

	result, err := p.client.Chat(ctx, req)
	p.record(ctx, result)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.client.Name(), err)
	}
	if result == nil {
		return "", fmt.Errorf("%s: empty result", p.client.Name())
	}

	p.logger.Debug("generation complete",
		"stage", metrics.StageFrom(ctx),
		"model", result.ModelUsed,
		"tokens", result.TotalTokens,
		"duration", result.TotalTime)
	return result.Content, nil
}

func (p *providerModel) record(ctx context.Context, result *providers.ChatResult) {
	if p.recorder == nil || result == nil {
		return
	}
	if _, err := p.recorder.RecordLLMCall(metrics.RecordOpts{Stage: metrics.StageFrom(ctx)}, result); err != nil {
		p.logger.Warn("failed to record metrics", "error", err)
	}
}

func (p *providerModel) Close() error {
	return nil
}

var _ Loader = (*ProviderLoader)(nil)
