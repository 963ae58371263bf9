// Package modelcfg maps a hardware profile and a requested model to a
// concrete inference configuration.
package modelcfg

import (
	"fmt"

	"github.com/quotient-labs/quotient/internal/hardware"
)

// Precision is the numeric format used for activations and unquantized weights.
type Precision string

// String returns the string representation of a Precision.
func (p Precision) String() string {
	return string(p)
}

// Precisions.
const (
	PrecisionFloat32  Precision = "float32"
	PrecisionFloat16  Precision = "float16"
	PrecisionBFloat16 Precision = "bfloat16"
)

// BytesPerWeight returns the storage cost of an unquantized weight.
func (p Precision) BytesPerWeight() float64 {
	switch p {
	case PrecisionFloat16, PrecisionBFloat16:
		return 2
	default:
		return 4
	}
}

// Quantization is the weight quantization level.
type Quantization string

// String returns the string representation of a Quantization.
func (q Quantization) String() string {
	return string(q)
}

// Quantization levels, ordered from least to most aggressive.
const (
	QuantizationNone Quantization = "none"
	Quantization8Bit Quantization = "8-bit"
	Quantization4Bit Quantization = "4-bit"
)

// Bits returns the weight width, or 0 for unquantized.
func (q Quantization) Bits() int {
	switch q {
	case Quantization8Bit:
		return 8
	case Quantization4Bit:
		return 4
	default:
		return 0
	}
}

// Config is a concrete inference configuration. It is a value: a new
// profile or request produces a new Config.
type Config struct {
	ModelID      string       `json:"model_id" yaml:"model_id"`
	Precision    Precision    `json:"precision" yaml:"precision"`
	Quantization Quantization `json:"quantization" yaml:"quantization"`

	// Device is the placement target ("cuda:0", "mps", "cpu").
	Device     string              `json:"device" yaml:"device"`
	DeviceKind hardware.DeviceKind `json:"device_kind" yaml:"device_kind"`

	MaxContextLength int     `json:"max_context_length" yaml:"max_context_length"`
	MaxMemoryGB      float64 `json:"max_memory_gb" yaml:"max_memory_gb"`

	// ParamsB is the parameter count in billions; zero when unknown.
	ParamsB float64 `json:"params_b,omitempty" yaml:"params_b,omitempty"`
	// FootprintGB is the estimated resident size; zero when unknown.
	FootprintGB float64 `json:"footprint_gb,omitempty" yaml:"footprint_gb,omitempty"`

	Source Source `json:"source" yaml:"source"`
}

// Key identifies a loaded model instance. Configs with the same key can
// share weights.
func (c Config) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", c.ModelID, c.Device, c.Precision, c.Quantization)
}

// Summary is a one-line description for logs and CLI output.
func (c Config) Summary() string {
	s := fmt.Sprintf("%s on %s (%s, quantization %s, ctx %d, budget %.1f GB)",
		c.ModelID, c.Device, c.Precision, c.Quantization, c.MaxContextLength, c.MaxMemoryGB)
	if c.FootprintGB > 0 {
		s += fmt.Sprintf(", est. %.1f GB", c.FootprintGB)
	}
	return s
}

// charsPerToken approximates prompt size in tokens from its length.
const charsPerToken = 4

// FitContext bounds a prompt length in characters and a completion length
// in tokens to the context window. The completion gets at most half of the
// window and the prompt the rest. A zero MaxContextLength leaves both as
// given.
func (c Config) FitContext(maxInputChars, maxTokens int) (int, int) {
	if c.MaxContextLength <= 0 {
		return maxInputChars, maxTokens
	}
	maxTokens = min(maxTokens, c.MaxContextLength/2)
	maxInputChars = min(maxInputChars, (c.MaxContextLength-maxTokens)*charsPerToken)
	return maxInputChars, maxTokens
}
