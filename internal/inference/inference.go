// Package inference runs prompts against loaded models.
//
// The Manager owns model lifetimes. It loads one handle per model
// configuration on first use and serializes calls on each handle, so a
// loaded model never runs two generations at once. Callers depend on the
// narrow Inferencer interface, which keeps the extraction and
// preprocessing code testable without a model backend.
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/quotient-labs/quotient/internal/modelcfg"
)

// ErrNoBackend is returned when no loader or provider is available.
var ErrNoBackend = errors.New("no inference backend configured")

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("inference manager closed")

// Inferencer generates a completion for a prompt with the given model.
type Inferencer interface {
	Infer(ctx context.Context, prompt string, cfg modelcfg.Config) (string, error)
}

// InferencerFunc adapts a function to the Inferencer interface.
type InferencerFunc func(ctx context.Context, prompt string, cfg modelcfg.Config) (string, error)

// Infer calls f.
func (f InferencerFunc) Infer(ctx context.Context, prompt string, cfg modelcfg.Config) (string, error) {
	return f(ctx, prompt, cfg)
}

// Model is a loaded model handle.
type Model interface {
	Generate(ctx context.Context, prompt string, gen Generation) (string, error)
	Close() error
}

// Loader loads a model for a configuration.
type Loader interface {
	Load(ctx context.Context, cfg modelcfg.Config) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, cfg modelcfg.Config) (Model, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, cfg modelcfg.Config) (Model, error) {
	return f(ctx, cfg)
}

// Generation holds per-call sampling settings.
type Generation struct {
	System      string
	Temperature float64
	MaxTokens   int
}

type generationKey struct{}

// WithGeneration attaches generation settings to ctx.
func WithGeneration(ctx context.Context, gen Generation) context.Context {
	return context.WithValue(ctx, generationKey{}, gen)
}

// GenerationFrom returns the settings attached by WithGeneration.
func GenerationFrom(ctx context.Context) (Generation, bool) {
	gen, ok := ctx.Value(generationKey{}).(Generation)
	return gen, ok
}

// ModelLoadError reports a model that could not be loaded.
type ModelLoadError struct {
	ModelID string
	Key     string
	Err     error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.ModelID, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// IsModelLoadError reports whether err wraps a ModelLoadError.
func IsModelLoadError(err error) bool {
	var target *ModelLoadError
	return errors.As(err, &target)
}
