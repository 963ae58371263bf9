// Package hardware probes the execution environment for compute devices
// and memory. Profiles are immutable values; callers that want reuse hold
// them in a Cache.
package hardware

import (
	"fmt"
	"strings"
	"time"
)

// DeviceKind identifies the compute backend a model runs on.
type DeviceKind string

// String returns the string representation of a DeviceKind.
func (d DeviceKind) String() string {
	return string(d)
}

// Device kinds.
const (
	DeviceCUDA DeviceKind = "cuda" // NVIDIA discrete GPU
	DeviceMPS  DeviceKind = "mps"  // Apple unified-memory silicon
	DeviceCPU  DeviceKind = "cpu"  // CPU only
)

// ParseDeviceKind parses a device name, accepting case variations.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cuda", "gpu":
		return DeviceCUDA, nil
	case "mps", "metal":
		return DeviceMPS, nil
	case "cpu":
		return DeviceCPU, nil
	default:
		return "", fmt.Errorf("unknown device kind: %q", s)
	}
}

// Profile is a snapshot of the hardware a model will be planned against.
type Profile struct {
	Device DeviceKind `json:"device" yaml:"device"`

	// AvailableMemoryGB is free VRAM for cuda, and free system memory otherwise.
	AvailableMemoryGB float64 `json:"available_memory_gb" yaml:"available_memory_gb"`
	TotalMemoryGB     float64 `json:"total_memory_gb,omitempty" yaml:"total_memory_gb,omitempty"`

	// Set only for cuda.
	ComputeCapability string `json:"compute_capability,omitempty" yaml:"compute_capability,omitempty"`
	GPUName           string `json:"gpu_name,omitempty" yaml:"gpu_name,omitempty"`

	CPUCores int `json:"cpu_cores,omitempty" yaml:"cpu_cores,omitempty"`

	// MemoryAssumed is true when the memory probe failed and the configured
	// fallback figure was used instead.
	MemoryAssumed bool `json:"memory_assumed,omitempty" yaml:"memory_assumed,omitempty"`

	DetectedAt time.Time `json:"detected_at" yaml:"detected_at"`
}

// IsAccelerated returns true for GPU-backed profiles.
func (p Profile) IsAccelerated() bool {
	return p.Device == DeviceCUDA || p.Device == DeviceMPS
}

// Describe returns human-readable diagnostics for a profile.
func Describe(p Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Device:           %s\n", p.Device)
	switch p.Device {
	case DeviceCUDA:
		name := p.GPUName
		if name == "" {
			name = "unknown NVIDIA GPU"
		}
		fmt.Fprintf(&b, "GPU:              %s\n", name)
		if p.ComputeCapability != "" {
			fmt.Fprintf(&b, "Compute:          sm_%s\n", strings.ReplaceAll(p.ComputeCapability, ".", ""))
		}
		fmt.Fprintf(&b, "VRAM available:   %.1f GB", p.AvailableMemoryGB)
		if p.TotalMemoryGB > 0 {
			fmt.Fprintf(&b, " of %.1f GB", p.TotalMemoryGB)
		}
		b.WriteString("\n")
	case DeviceMPS:
		fmt.Fprintf(&b, "Unified memory:   %.1f GB available", p.AvailableMemoryGB)
		if p.TotalMemoryGB > 0 {
			fmt.Fprintf(&b, " of %.1f GB", p.TotalMemoryGB)
		}
		b.WriteString("\n")
		b.WriteString("Notes:            float32 only, no quantization kernels\n")
	default:
		fmt.Fprintf(&b, "Memory available: %.1f GB", p.AvailableMemoryGB)
		if p.TotalMemoryGB > 0 {
			fmt.Fprintf(&b, " of %.1f GB", p.TotalMemoryGB)
		}
		b.WriteString("\n")
	}
	if p.CPUCores > 0 {
		fmt.Fprintf(&b, "CPU cores:        %d\n", p.CPUCores)
	}
	if p.MemoryAssumed {
		b.WriteString("Warning:          memory probe failed, using assumed figure\n")
	}
	return b.String()
}
