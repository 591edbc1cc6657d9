package hostconfig

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// EffectiveCores reports the number of logical CPUs available to the host,
// used for spec.md §4.3 rule 4's "2·effectiveCores + 2" MaxWorkerCount
// default. It prefers gopsutil's cpu.Counts (which, unlike
// runtime.NumCPU, accounts for container CPU quotas on some platforms),
// falling back to runtime.NumCPU on error — grounded directly on
// cmd/agent's use of gopsutil/v3/cpu in the teacher.
func EffectiveCores() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// DefaultMaxWorkerCount computes spec.md §4.3 rule 4's fallback.
func DefaultMaxWorkerCount() int {
	return 2*EffectiveCores() + 2
}
