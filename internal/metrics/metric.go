// Package metrics provides in-memory usage tracking for LLM calls.
package metrics

import (
	"context"
	"time"
)

// Metric represents a single recorded LLM call.
type Metric struct {
	ID string `json:"id"`

	// Attribution
	RequestID string `json:"request_id,omitempty"`
	Stage     string `json:"stage,omitempty"` // e.g., "extract", "canonicalize"
	Source    string `json:"source,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	QueueSeconds     float64 `json:"queue_seconds,omitempty"`
	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`
	TotalSeconds     float64 `json:"total_seconds,omitempty"`

	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type stageKey struct{}

// WithStage attributes LLM calls made under ctx to stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage set by WithStage, or "".
func StageFrom(ctx context.Context) string {
	s, _ := ctx.Value(stageKey{}).(string)
	return s
}
