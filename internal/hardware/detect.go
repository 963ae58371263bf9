package hardware

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// DefaultAssumedMemoryGB is used when the memory probe fails.
const DefaultAssumedMemoryGB = 8.0

// DefaultProbeTimeout bounds each external probe (e.g. nvidia-smi).
const DefaultProbeTimeout = 5 * time.Second

// Config configures a Detector.
type Config struct {
	// DisableCUDA and DisableMPS skip the corresponding probes.
	DisableCUDA bool
	DisableMPS  bool

	// AssumedMemoryGB is reported when memory cannot be probed.
	// Zero uses DefaultAssumedMemoryGB; negative disables the fallback.
	AssumedMemoryGB float64

	ProbeTimeout time.Duration

	// Overridable for tests.
	Runner Runner
	Memory MemoryProbe
	Cores  func(ctx context.Context) int
	GOOS   string
	GOARCH string
	Now    func() time.Time

	Logger *slog.Logger
}

// Detector probes the environment. It holds no detected state.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// NewDetector creates a detector, applying defaults for unset fields.
func NewDetector(cfg Config) *Detector {
	if cfg.AssumedMemoryGB == 0 {
		cfg.AssumedMemoryGB = DefaultAssumedMemoryGB
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.Memory == nil {
		cfg.Memory = SystemProbe{}
	}
	if cfg.Cores == nil {
		cfg.Cores = SystemProbe{}.Cores
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.GOARCH == "" {
		cfg.GOARCH = runtime.GOARCH
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Detector{cfg: cfg, logger: cfg.Logger.With("component", "hardware")}
}

// Detect probes CUDA, then Apple silicon, then falls back to CPU.
func Detect(ctx context.Context) (Profile, error) {
	return NewDetector(Config{}).Detect(ctx)
}

// Detect probes the environment and returns a fresh profile.
func (d *Detector) Detect(ctx context.Context) (Profile, error) {
	cores := d.cfg.Cores(ctx)

	if !d.cfg.DisableCUDA {
		if p, ok := d.probeCUDA(ctx); ok {
			p.CPUCores = cores
			p.DetectedAt = d.cfg.Now()
			d.logger.Info("detected cuda device", "gpu", p.GPUName, "available_gb", p.AvailableMemoryGB)
			return p, nil
		}
	}

	memStat, assumed, err := d.probeMemory(ctx)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		Device:            DeviceCPU,
		AvailableMemoryGB: memStat.AvailableGB,
		TotalMemoryGB:     memStat.TotalGB,
		CPUCores:          cores,
		MemoryAssumed:     assumed,
		DetectedAt:        d.cfg.Now(),
	}
	if !d.cfg.DisableMPS && d.cfg.GOOS == "darwin" && d.cfg.GOARCH == "arm64" {
		p.Device = DeviceMPS
	}

	d.logger.Info("detected device", "device", p.Device, "available_gb", p.AvailableMemoryGB, "assumed", assumed)
	return p, nil
}

func (d *Detector) probeCUDA(ctx context.Context) (Profile, bool) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()

	out, err := d.cfg.Runner.Run(ctx, "nvidia-smi", nvidiaSMIArgs...)
	if err != nil {
		d.logger.Debug("cuda probe unavailable", "error", err)
		return Profile{}, false
	}
	gpus, err := parseNvidiaSMI(out)
	if err != nil {
		d.logger.Debug("cuda probe returned no devices", "error", err)
		return Profile{}, false
	}

	g := gpus[0]
	free := (g.TotalMB - g.UsedMB) / 1024
	if free <= 0 {
		d.logger.Warn("cuda device has no free memory", "gpu", g.Name)
		return Profile{}, false
	}
	return Profile{
		Device:            DeviceCUDA,
		AvailableMemoryGB: free,
		TotalMemoryGB:     g.TotalMB / 1024,
		ComputeCapability: g.ComputeCapability,
		GPUName:           g.Name,
	}, true
}

// probeMemory returns system memory, falling back to the assumed figure.
func (d *Detector) probeMemory(ctx context.Context) (MemoryStat, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()

	stat, err := d.cfg.Memory.Memory(ctx)
	if err == nil && stat.AvailableGB > 0 {
		return stat, false, nil
	}

	if d.cfg.AssumedMemoryGB < 0 {
		if err == nil {
			return MemoryStat{}, false, &HardwareDetectionError{Reason: "memory probe reported no available memory"}
		}
		return MemoryStat{}, false, &HardwareDetectionError{Reason: "memory probe failed", Err: err}
	}

	d.logger.Warn("memory probe failed, using assumed memory", "assumed_gb", d.cfg.AssumedMemoryGB, "error", err)
	return MemoryStat{
		TotalGB:     d.cfg.AssumedMemoryGB,
		AvailableGB: d.cfg.AssumedMemoryGB,
	}, true, nil
}
