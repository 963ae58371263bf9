package extraction

import (
	"context"
	"fmt"
	"time"
)

// ExtractionTimeoutError reports a model call that exceeded its deadline.
type ExtractionTimeoutError struct {
	Timeout time.Duration
}

func (e *ExtractionTimeoutError) Error() string {
	return fmt.Sprintf("extraction timed out after %s", e.Timeout)
}

func (e *ExtractionTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// MalformedOutputError reports model output that could not be parsed into
// items.
type MalformedOutputError struct {
	Reason string
	// Output is a prefix of the offending response.
	Output string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model output: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed model output: %s", e.Reason)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// InferenceError reports a model call that failed for reasons other than
// loading or timing out.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// NoOutputError is returned when the model tier failed and no fallback
// produced items.
type NoOutputError struct {
	Cause            error
	FallbackDisabled bool
}

func (e *NoOutputError) Error() string {
	if e.FallbackDisabled {
		return fmt.Sprintf("no items extracted (fallback disabled): %v", e.Cause)
	}
	return fmt.Sprintf("no items extracted: model tier failed (%v) and rules found nothing", e.Cause)
}

func (e *NoOutputError) Unwrap() error {
	return e.Cause
}

func snippet(s string) string {
	const limit = 200
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
