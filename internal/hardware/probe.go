package hardware

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

const bytesPerGB = 1024 * 1024 * 1024

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// MemoryStat reports system memory in gigabytes.
type MemoryStat struct {
	TotalGB     float64
	AvailableGB float64
}

// MemoryProbe reads system memory.
type MemoryProbe interface {
	Memory(ctx context.Context) (MemoryStat, error)
}

// SystemProbe reads memory and CPU counts via gopsutil.
type SystemProbe struct{}

// Memory implements MemoryProbe.
func (SystemProbe) Memory(ctx context.Context) (MemoryStat, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStat{}, err
	}
	return MemoryStat{
		TotalGB:     float64(vm.Total) / bytesPerGB,
		AvailableGB: float64(vm.Available) / bytesPerGB,
	}, nil
}

// Cores returns the logical CPU count, or 0 if it cannot be read.
func (SystemProbe) Cores(ctx context.Context) int {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0
	}
	return n
}

// gpuInfo is one row of nvidia-smi output.
type gpuInfo struct {
	Name              string
	TotalMB           float64
	UsedMB            float64
	ComputeCapability string
}

var nvidiaSMIArgs = []string{
	"--query-gpu=name,memory.total,memory.used,compute_cap",
	"--format=csv,noheader,nounits",
}

// parseNvidiaSMI parses `nvidia-smi --query-gpu=... --format=csv,noheader,nounits` output.
// Lines that cannot be parsed are skipped.
func parseNvidiaSMI(out []byte) ([]gpuInfo, error) {
	var gpus []gpuInfo
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		total, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		used, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			used = 0
		}

		g := gpuInfo{Name: fields[0], TotalMB: total, UsedMB: used}
		if len(fields) > 3 && fields[3] != "" && !strings.Contains(fields[3], "N/A") {
			g.ComputeCapability = fields[3]
		}
		gpus = append(gpus, g)
	}
	if len(gpus) == 0 {
		return nil, fmt.Errorf("no GPUs in nvidia-smi output")
	}
	return gpus, nil
}
