package extraction

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/quotient-labs/quotient/internal/inference"
	"github.com/quotient-labs/quotient/internal/metrics"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/prompts"
)

// Defaults for the model tier.
const (
	DefaultTimeout       = 60 * time.Second
	DefaultMaxInputChars = 3000
	DefaultTemperature   = 0.1
	DefaultMaxTokens     = 2000
)

// Stage attributes model calls in metrics.
const Stage = "extract"

// Config configures an Engine.
type Config struct {
	// Inferencer runs the model tier. Nil disables it; every call then
	// goes straight to the fallback as if the model failed to load.
	Inferencer inference.Inferencer

	// Prompts resolves prompt overrides. Nil uses the embedded prompts.
	Prompts *prompts.Resolver

	Timeout       time.Duration
	MaxInputChars int
	// Temperature is the sampling temperature; nil uses
	// DefaultTemperature and zero requests greedy decoding.
	Temperature *float64
	MaxTokens   int

	// DisableFallback makes model tier failures terminal.
	DisableFallback bool

	Logger *slog.Logger
}

// Engine extracts items from text.
type Engine struct {
	inferencer inference.Inferencer
	prompts    *prompts.Resolver
	rules      RuleExtractor

	timeout       time.Duration
	maxInputChars int
	temperature   float64
	maxTokens     int
	fallback      bool

	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		inferencer:    cfg.Inferencer,
		prompts:       cfg.Prompts,
		timeout:       cfg.Timeout,
		maxInputChars: cfg.MaxInputChars,
		temperature:   temperature,
		maxTokens:     cfg.MaxTokens,
		fallback:      !cfg.DisableFallback,
		logger:        logger.With("component", "extraction"),
	}
}

// Input is the text handed to each tier. The model sees Text; the rules
// see RawText, or Text when RawText is empty.
type Input struct {
	Text    string
	RawText string
}

// Extract extracts items from text with the model described by cfg.
func (e *Engine) Extract(ctx context.Context, text string, cfg modelcfg.Config) ([]Item, error) {
	return e.ExtractFrom(ctx, Input{Text: text}, cfg)
}

// ExtractFrom extracts items, falling back to the rules when the model
// tier fails. Errors are terminal: a NoOutputError, or the context error
// when ctx itself is done.
func (e *Engine) ExtractFrom(ctx context.Context, in Input, cfg modelcfg.Config) ([]Item, error) {
	raw := in.RawText
	if raw == "" {
		raw = in.Text
	}
	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(raw) == "" {
		return []Item{}, nil
	}

	start := time.Now()
	items, err := e.extractLLM(ctx, in.Text, cfg)
	if err == nil {
		e.logger.Info("extracted items", "tier", TierLLM, "count", len(items), "model", cfg.ModelID, "duration", time.Since(start))
		return items, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !e.fallback {
		e.logger.Warn("model extraction failed", "model", cfg.ModelID, "error", err)
		return nil, &NoOutputError{Cause: err, FallbackDisabled: true}
	}

	e.logger.Warn("model extraction failed, using rules", "model", cfg.ModelID, "reason", failureKind(err), "error", err)
	items = e.rules.Extract(raw)
	if len(items) == 0 {
		return nil, &NoOutputError{Cause: err}
	}
	e.logger.Info("extracted items", "tier", TierRules, "count", len(items), "duration", time.Since(start))
	return items, nil
}

func (e *Engine) extractLLM(ctx context.Context, text string, cfg modelcfg.Config) ([]Item, error) {
	if e.inferencer == nil {
		return nil, &inference.ModelLoadError{ModelID: cfg.ModelID, Key: cfg.Key(), Err: inference.ErrNoBackend}
	}

	maxChars, maxTokens := cfg.FitContext(e.maxInputChars, e.maxTokens)
	system, user, err := e.prompt(truncate(text, maxChars))
	if err != nil {
		return nil, &InferenceError{Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	callCtx = metrics.WithStage(callCtx, Stage)
	callCtx = inference.WithGeneration(callCtx, inference.Generation{
		System:      system,
		Temperature: e.temperature,
		MaxTokens:   maxTokens,
	})

	out, err := e.infer(callCtx, user, cfg)
	if err != nil {
		switch {
		case inference.IsModelLoadError(err):
			return nil, err
		case ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return nil, &ExtractionTimeoutError{Timeout: e.timeout}
		default:
			return nil, &InferenceError{Err: err}
		}
	}

	items, dropped, err := parseItems(out)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		e.logger.Warn("dropped malformed entries", "dropped", dropped, "kept", len(items))
	}
	return items, nil
}

// infer returns when the inferencer does or when ctx is done. A backend
// that ignores ctx is abandoned at the deadline and its reply discarded.
func (e *Engine) infer(ctx context.Context, prompt string, cfg modelcfg.Config) (string, error) {
	type reply struct {
		out string
		err error
	}
	done := make(chan reply, 1)
	go func() {
		out, err := e.inferencer.Infer(ctx, prompt, cfg)
		done <- reply{out: out, err: err}
	}()
	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func failureKind(err error) string {
	var (
		timeout   *ExtractionTimeoutError
		malformed *MalformedOutputError
	)
	switch {
	case inference.IsModelLoadError(err):
		return "model_load"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &malformed):
		return "malformed_output"
	default:
		return "inference"
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
