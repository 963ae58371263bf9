package hardware

import "fmt"

// HardwareDetectionError is returned when no usable compute device could be
// identified. A CPU-only host is never an error.
type HardwareDetectionError struct {
	Reason string
	Err    error
}

func (e *HardwareDetectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hardware detection failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("hardware detection failed: %s", e.Reason)
}

func (e *HardwareDetectionError) Unwrap() error {
	return e.Err
}

// Hint suggests how to recover from the failure.
func (e *HardwareDetectionError) Hint() string {
	return "check that system memory and CPU information are readable by this process, then retry with refresh=true"
}
