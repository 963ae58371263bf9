package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of processing one document or text.
type Result struct {
	ID          string        `json:"id" yaml:"id"`
	Source      string        `json:"source" yaml:"source"`
	SourceType  string        `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	ProcessedAt time.Time     `json:"processed_at" yaml:"processed_at"`
	Items       []Item        `json:"items" yaml:"items"`
	Errors      []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings    []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Confidence  float64       `json:"extraction_confidence" yaml:"extraction_confidence"`
	Duration    time.Duration `json:"-" yaml:"-"`
	// DurationSeconds mirrors Duration for serialized output.
	DurationSeconds float64 `json:"processing_time" yaml:"processing_time"`
	Summary         Summary `json:"summary" yaml:"summary"`
}

// Summary counts the items of a Result.
type Summary struct {
	TotalItems      int     `json:"total_items" yaml:"total_items"`
	CompleteItems   int     `json:"complete_items" yaml:"complete_items"`
	IncompleteItems int     `json:"incomplete_items" yaml:"incomplete_items"`
	LowConfidence   int     `json:"low_confidence_items" yaml:"low_confidence_items"`
	CompletionRate  float64 `json:"completion_rate" yaml:"completion_rate"`
	Confidence      float64 `json:"extraction_confidence" yaml:"extraction_confidence"`
	ProcessingTime  float64 `json:"processing_time" yaml:"processing_time"`
	ErrorCount      int     `json:"error_count" yaml:"error_count"`
	WarningCount    int     `json:"warning_count" yaml:"warning_count"`
}

// NewResult starts a result for source.
func NewResult(source, sourceType string) *Result {
	return &Result{
		ID:          uuid.New().String(),
		Source:      source,
		SourceType:  sourceType,
		ProcessedAt: time.Now(),
		Items:       []Item{},
	}
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddWarning records a recoverable problem.
func (r *Result) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Finish sets the duration and computes confidence and the summary.
func (r *Result) Finish(elapsed time.Duration) {
	r.Duration = elapsed
	r.DurationSeconds = elapsed.Seconds()

	var sum float64
	for _, it := range r.Items {
		sum += it.Confidence
	}
	r.Confidence = 0
	if len(r.Items) > 0 {
		r.Confidence = sum / float64(len(r.Items))
	}
	r.Summary = r.summarize()
}

func (r *Result) summarize() Summary {
	s := Summary{
		TotalItems:     len(r.Items),
		Confidence:     r.Confidence,
		ProcessingTime: r.DurationSeconds,
		ErrorCount:     len(r.Errors),
		WarningCount:   len(r.Warnings),
	}
	for _, it := range r.Items {
		if it.IsComplete() {
			s.CompleteItems++
		}
		if it.LowConfidence {
			s.LowConfidence++
		}
	}
	s.IncompleteItems = s.TotalItems - s.CompleteItems
	if s.TotalItems > 0 {
		s.CompletionRate = float64(s.CompleteItems) / float64(s.TotalItems)
	}
	return s
}
