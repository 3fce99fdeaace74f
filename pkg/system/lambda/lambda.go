// Package lambda derives the fractional CPU share of a metered Lambda
// environment from its memory allocation and detects the environment the
// current process runs in.
package lambda

import (
	"os"
	"strconv"
)

// MemoryPerFullCoreMB is the memory allocation at which the platform grants
// one full vCPU. Allocations below it receive a proportional slice of each
// scheduling quantum.
const MemoryPerFullCoreMB = 1769

// CPUShare returns the fraction of one CPU core granted to an environment
// with the given memory allocation. Shares above 1.0 (multi-core tiers) are
// returned as-is; non-positive allocations yield 0.
func CPUShare(memoryMB int) float64 {
	if memoryMB <= 0 {
		return 0
	}
	return float64(memoryMB) / float64(MemoryPerFullCoreMB)
}

// Env describes the detected execution environment.
type Env struct {
	FunctionName string
	MemoryMB     int
	Region       string
}

// CPUShare returns the environment's fractional CPU share.
func (e Env) CPUShare() float64 { return CPUShare(e.MemoryMB) }

// Detect reads the standard runtime environment variables. The second return
// is false outside a Lambda environment (or when the memory size variable is
// absent or malformed).
func Detect() (Env, bool) {
	raw := os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")
	if raw == "" {
		return Env{}, false
	}
	mb, err := strconv.Atoi(raw)
	if err != nil || mb <= 0 {
		return Env{}, false
	}
	return Env{
		FunctionName: os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
		MemoryMB:     mb,
		Region:       os.Getenv("AWS_REGION"),
	}, true
}
