package modelcfg

import (
	"fmt"

	"github.com/quotient-labs/quotient/internal/hardware"
)

// UnsupportedModelError is returned when a model cannot fit the memory
// budget even at the device's most aggressive quantization.
type UnsupportedModelError struct {
	ModelID      string
	Device       hardware.DeviceKind
	Quantization Quantization
	FootprintGB  float64
	BudgetGB     float64
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("model %s needs ~%.1f GB on %s at %s quantization but the budget is %.1f GB",
		e.ModelID, e.FootprintGB, e.Device, e.Quantization, e.BudgetGB)
}

// Hint suggests how to make the request fit.
func (e *UnsupportedModelError) Hint() string {
	maxParams := e.BudgetGB / EstimateFootprintGB(1, e.Quantization, precisionFor(e.Device))
	if maxParams < 0.1 {
		return "free memory or raise max_memory_gb; no model of useful size fits this budget"
	}
	return fmt.Sprintf("choose a smaller model (about %.1fB parameters or fewer fits %.1f GB), or raise max_memory_gb",
		maxParams, e.BudgetGB)
}
