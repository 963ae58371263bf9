package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quotient-labs/quotient/internal/providers"
)

// DefaultCapacity bounds how many metrics a Recorder keeps.
const DefaultCapacity = 10000

// Recorder keeps the most recent metrics in memory.
type Recorder struct {
	mu       sync.RWMutex
	metrics  []Metric
	capacity int
	dropped  int64
}

// NewRecorder creates a recorder keeping at most capacity metrics.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{capacity: capacity}
}

// RecordOpts provides context for a metric recording.
type RecordOpts struct {
	RequestID string
	Stage     string
	Source    string
}

// Record stores a single metric and returns its ID. The oldest metric is
// evicted when the recorder is full.
func (r *Recorder) Record(m Metric) string {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.metrics) >= r.capacity {
		r.metrics = r.metrics[1:]
		r.dropped++
	}
	r.metrics = append(r.metrics, m)
	return m.ID
}

// RecordLLMCall records metrics from an LLM chat result.
func (r *Recorder) RecordLLMCall(opts RecordOpts, result *providers.ChatResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nil chat result")
	}

	requestID := opts.RequestID
	if requestID == "" {
		requestID = result.RequestID
	}

	return r.Record(Metric{
		RequestID: requestID,
		Stage:     opts.Stage,
		Source:    opts.Source,

		Provider: result.Provider,
		Model:    result.ModelUsed,

		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,

		QueueSeconds:     result.QueueTime.Seconds(),
		ExecutionSeconds: result.ExecutionTime.Seconds(),
		TotalSeconds:     result.TotalTime.Seconds(),

		Success:   result.Success,
		ErrorType: result.ErrorType,
	}), nil
}

// RecordError records a failed call that produced no chat result.
func (r *Recorder) RecordError(opts RecordOpts, provider, model, errorType string, duration time.Duration) string {
	return r.Record(Metric{
		RequestID:    opts.RequestID,
		Stage:        opts.Stage,
		Source:       opts.Source,
		Provider:     provider,
		Model:        model,
		TotalSeconds: duration.Seconds(),
		Success:      false,
		ErrorType:    errorType,
	})
}

// Len returns the number of stored metrics.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.metrics)
}

// Dropped returns how many metrics were evicted.
func (r *Recorder) Dropped() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Reset discards all metrics.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = nil
	r.dropped = 0
}
