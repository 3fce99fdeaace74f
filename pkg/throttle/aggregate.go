package throttle

import (
	"github.com/samber/lo"

	"github.com/pwrdrvr/lambda-throttling/pkg/system/util"
)

// IsThrottled classifies one iteration. Without an external baseline the
// test is an absolute overrun of the quantum; with one it is relative to the
// baseline's expected wall time. Pass baselineWallMs <= 0 for "no baseline".
func IsThrottled(rec IterationRecord, quantumMs, overrunFactor, baselineWallMs float64) bool {
	if baselineWallMs > 0 {
		return rec.WallMs > baselineWallMs*overrunFactor
	}
	return rec.WallMs > quantumMs*overrunFactor
}

// ThrottleEvents returns the records classified as throttled, in execution
// order.
func ThrottleEvents(records []IterationRecord, cfg *Config, baselineWallMs float64) []IterationRecord {
	cfg = NewConfig(cfg)
	return lo.Filter(records, func(r IterationRecord, _ int) bool {
		return IsThrottled(r, cfg.QuantumMs, cfg.OverrunFactor, baselineWallMs)
	})
}

// Aggregate reduces a completed run's records to summary statistics. It is a
// pure function of its inputs; an empty record set yields a zero summary
// with Iterations == 0, which callers must check before interpreting stats.
func Aggregate(records []IterationRecord, plan Plan, cfg *Config, baselineWallMs float64) Summary {
	cfg = NewConfig(cfg)
	if len(records) == 0 {
		return Summary{}
	}

	walls := lo.Map(records, func(r IterationRecord, _ int) float64 { return r.WallMs })
	cpus := lo.Map(records, func(r IterationRecord, _ int) float64 { return r.CPUMs })

	minWall, maxWall := util.MinMax(walls)
	minCPU, maxCPU := util.MinMax(cpus)
	avgCPU := util.Mean(cpus)

	throttled := lo.CountBy(records, func(r IterationRecord) bool {
		return IsThrottled(r, cfg.QuantumMs, cfg.OverrunFactor, baselineWallMs)
	})

	return Summary{
		Iterations:     len(records),
		TotalWallMs:    lo.Sum(walls),
		TotalCPUMs:     lo.Sum(cpus),
		AvgWallMs:      util.Mean(walls),
		MinWallMs:      minWall,
		MaxWallMs:      maxWall,
		AvgCPUMs:       avgCPU,
		MinCPUMs:       minCPU,
		MaxCPUMs:       maxCPU,
		UtilizationPct: util.SafeDiv(avgCPU, plan.AllowedCPUMsPerQuantum) * 100,
		ThrottleEvents: throttled,
	}
}
