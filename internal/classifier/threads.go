package classifier

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// determineThreadCount returns the interpreter thread count. Zero means one
// thread per physical core; explicit values are capped at the CPU count.
func determineThreadCount(configured int) int {
	systemCPUs := runtime.NumCPU()

	if configured <= 0 {
		if cores := cpuid.CPU.PhysicalCores; cores > 0 {
			return min(cores, systemCPUs)
		}
		return systemCPUs
	}

	return min(configured, systemCPUs)
}
