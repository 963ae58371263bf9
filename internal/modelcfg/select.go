package modelcfg

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/quotient-labs/quotient/internal/hardware"
)

const (
	// DefaultModel is used when no model is requested or configured.
	DefaultModel = "meta-llama/Llama-2-7b-chat-hf"

	// DefaultCeilingFraction of available memory is used when no explicit
	// ceiling is supplied.
	DefaultCeilingFraction = 0.8

	// DefaultSafetyMarginGB is always left free for the OS and runtime.
	DefaultSafetyMarginGB = 1.0

	cudaFullPrecisionGB = 20.0
	cudaEightBitGB      = 8.0

	// cpuQuantizeAboveB is the parameter count (billions) above which CPU
	// inference is 4-bit quantized.
	cpuQuantizeAboveB = 1.0

	cpuMaxContextLength = 2048
)

// Options configures a Selector.
type Options struct {
	Catalog         *Catalog
	DefaultModel    string
	SafetyMarginGB  float64
	CeilingFraction float64
	// LocalPath is an optional GGUF file to load instead of the remote ID.
	LocalPath string
	Logger    *slog.Logger
}

// Selector derives model configs. It is stateless apart from its catalog.
type Selector struct {
	catalog         *Catalog
	defaultModel    string
	safetyMarginGB  float64
	ceilingFraction float64
	localPath       string
	logger          *slog.Logger
}

// NewSelector creates a selector, applying defaults for unset options.
func NewSelector(opts Options) *Selector {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = DefaultModel
	}
	if opts.SafetyMarginGB <= 0 {
		opts.SafetyMarginGB = DefaultSafetyMarginGB
	}
	if opts.CeilingFraction <= 0 || opts.CeilingFraction > 1 {
		opts.CeilingFraction = DefaultCeilingFraction
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Selector{
		catalog:         opts.Catalog,
		defaultModel:    opts.DefaultModel,
		safetyMarginGB:  opts.SafetyMarginGB,
		ceilingFraction: opts.CeilingFraction,
		localPath:       opts.LocalPath,
		logger:          opts.Logger.With("component", "modelcfg"),
	}
}

// Select derives a config using the default selector.
func Select(profile hardware.Profile, requestedModel string, maxMemoryGB *float64) (Config, error) {
	return NewSelector(Options{}).Select(profile, requestedModel, maxMemoryGB)
}

// Select maps a profile and requested model to a config. maxMemoryGB, when
// non-nil, is a hard ceiling; otherwise the ceiling is a fraction of
// available memory. The ceiling never exceeds available memory minus the
// safety margin.
func (s *Selector) Select(profile hardware.Profile, requestedModel string, maxMemoryGB *float64) (Config, error) {
	modelID := strings.TrimSpace(requestedModel)
	if modelID == "" {
		modelID = s.defaultModel
	}

	budget, err := s.budget(profile, modelID, maxMemoryGB)
	if err != nil {
		return Config{}, err
	}

	info, known := s.catalog.Lookup(modelID)
	cfg := Config{
		ModelID:          modelID,
		DeviceKind:       profile.Device,
		Device:           placement(profile.Device),
		Precision:        precisionFor(profile.Device),
		MaxContextLength: info.ContextLength,
		MaxMemoryGB:      budget,
		Source:           ResolveSource(s.localPath),
	}
	if known {
		cfg.ParamsB = info.ParamsB
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = DefaultContextLength
	}
	if profile.Device == hardware.DeviceCPU && cfg.MaxContextLength > cpuMaxContextLength {
		cfg.MaxContextLength = cpuMaxContextLength
	}

	q, err := s.quantization(profile.Device, budget, info, known)
	if err != nil {
		return Config{}, err
	}
	cfg.Quantization = q
	if known {
		cfg.FootprintGB = EstimateFootprintGB(info.ParamsB, q, cfg.Precision)
	}

	if cfg.Source.Kind == SourceLocalMissing {
		s.logger.Warn("local model unusable, falling back to remote id",
			"path", cfg.Source.Path, "reason", cfg.Source.Reason, "model", modelID)
	}
	s.logger.Debug("selected model config", "config", cfg.Summary(), "known_size", known)
	return cfg, nil
}

// budget computes the memory ceiling in GB.
func (s *Selector) budget(profile hardware.Profile, modelID string, maxMemoryGB *float64) (float64, error) {
	ceiling := profile.AvailableMemoryGB * s.ceilingFraction
	if maxMemoryGB != nil {
		if *maxMemoryGB <= 0 {
			return 0, fmt.Errorf("max memory must be positive, got %.2f GB", *maxMemoryGB)
		}
		ceiling = *maxMemoryGB
	}

	limit := profile.AvailableMemoryGB - s.safetyMarginGB
	if limit < 0 {
		limit = 0
	}
	if ceiling > limit {
		ceiling = limit
	}
	if ceiling <= 0 {
		return 0, &UnsupportedModelError{
			ModelID:      modelID,
			Device:       profile.Device,
			Quantization: Quantization4Bit,
			BudgetGB:     0,
		}
	}
	return ceiling, nil
}

func (s *Selector) quantization(device hardware.DeviceKind, budget float64, info ModelInfo, known bool) (Quantization, error) {
	precision := precisionFor(device)

	var candidates []Quantization
	switch device {
	case hardware.DeviceCUDA:
		switch {
		case budget < cudaEightBitGB:
			candidates = []Quantization{Quantization4Bit}
		case !known && budget < cudaFullPrecisionGB:
			candidates = []Quantization{Quantization8Bit}
		case !known:
			candidates = []Quantization{QuantizationNone}
		default:
			candidates = []Quantization{QuantizationNone, Quantization8Bit, Quantization4Bit}
		}
	case hardware.DeviceMPS:
		// Compute stays float32. Weights that do not fit unquantized are
		// loaded from their GGUF 8-bit or 4-bit form.
		candidates = []Quantization{QuantizationNone, Quantization8Bit, Quantization4Bit}
	default:
		if !known || info.ParamsB > cpuQuantizeAboveB {
			candidates = []Quantization{Quantization4Bit}
		} else {
			candidates = []Quantization{QuantizationNone, Quantization4Bit}
		}
	}

	if !known {
		return candidates[0], nil
	}

	for _, q := range candidates {
		if EstimateFootprintGB(info.ParamsB, q, precision) <= budget {
			return q, nil
		}
	}

	last := candidates[len(candidates)-1]
	return "", &UnsupportedModelError{
		ModelID:      info.ID,
		Device:       device,
		Quantization: last,
		FootprintGB:  EstimateFootprintGB(info.ParamsB, last, precision),
		BudgetGB:     budget,
	}
}

// precisionFor never returns float16 for cpu or mps.
func precisionFor(device hardware.DeviceKind) Precision {
	if device == hardware.DeviceCUDA {
		return PrecisionFloat16
	}
	return PrecisionFloat32
}

func placement(device hardware.DeviceKind) string {
	switch device {
	case hardware.DeviceCUDA:
		return "cuda:0"
	case hardware.DeviceMPS:
		return "mps"
	default:
		return "cpu"
	}
}
