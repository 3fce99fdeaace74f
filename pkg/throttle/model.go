// Package throttle measures and compensates for CPU time-slicing in metered
// compute environments. It calibrates an unthrottled CPU-time baseline for a
// reference workload, sizes the workload to fit the CPU budget of one
// scheduling quantum for a given fractional CPU share, executes iterations
// aligned to quantum boundaries, and classifies iterations that the host
// paused as throttling events.
package throttle

import (
	"time"

	"github.com/pwrdrvr/lambda-throttling/pkg/system/cputime"
	"github.com/pwrdrvr/lambda-throttling/pkg/types"
)

// Clock is the timing source shared by the calibrator and the scheduler.
// *cputime.Clock satisfies it.
type Clock interface {
	Mark() cputime.Mark
	WallMillis(cputime.Mark) float64
	CPUMillis(cputime.Mark) (float64, error)
	SupportsCPUTime() bool
}

// Config holds the scheduling and calibration knobs. All durations are in
// milliseconds. The safety-factor thresholds and the overrun factor are
// empirically tuned defaults, not derived values; treat them as tunables.
type Config struct {
	// QuantumMs is the host's enforced time-slicing period.
	QuantumMs float64

	// LowShareCutoff splits environments into high-jitter (low share) and
	// low-jitter regimes; below it SafetyFactorLow applies, otherwise
	// SafetyFactorHigh.
	LowShareCutoff   float64
	SafetyFactorLow  float64
	SafetyFactorHigh float64

	// OverrunFactor is the wall-time multiple (of the quantum, or of an
	// external baseline when one is supplied) beyond which an iteration
	// counts as throttled.
	OverrunFactor float64

	// TargetUtilization and the refine band control the one-shot plan
	// refinement after the first live iteration.
	TargetUtilization float64
	RefineBandLow     float64
	RefineBandHigh    float64

	// Calibration phase lengths and the reference workload size.
	WarmupIterations  int
	MeasureIterations int
	ReferenceSize     types.Bytes

	// FallbackCPUMsPerReference substitutes for a missing or unreliable
	// calibration baseline (CPU ms per ReferenceSize execution).
	FallbackCPUMsPerReference float64

	// SettleDelay separates consecutive tier runs to avoid cross-run
	// interference from the shared resource pool.
	SettleDelay time.Duration
}

func _defaultConfig() *Config {
	return &Config{
		QuantumMs:                 20,
		LowShareCutoff:            0.3,
		SafetyFactorLow:           0.55,
		SafetyFactorHigh:          0.85,
		OverrunFactor:             1.5,
		TargetUtilization:         0.8,
		RefineBandLow:             0.7,
		RefineBandHigh:            1.3,
		WarmupIterations:          50,
		MeasureIterations:         500,
		ReferenceSize:             100 * 1024,
		FallbackCPUMsPerReference: 3.6,
		SettleDelay:               2 * time.Second,
	}
}

// NewConfig merges cfg over defaults. Fields > 0 in cfg override; zero or
// negative fields keep the default. A nil cfg yields the defaults as-is.
func NewConfig(cfg *Config) *Config {
	base := _defaultConfig()
	if cfg == nil {
		return base
	}

	merged := *base
	if cfg.QuantumMs > 0 {
		merged.QuantumMs = cfg.QuantumMs
	}
	if cfg.LowShareCutoff > 0 {
		merged.LowShareCutoff = cfg.LowShareCutoff
	}
	if cfg.SafetyFactorLow > 0 {
		merged.SafetyFactorLow = cfg.SafetyFactorLow
	}
	if cfg.SafetyFactorHigh > 0 {
		merged.SafetyFactorHigh = cfg.SafetyFactorHigh
	}
	if cfg.OverrunFactor > 0 {
		merged.OverrunFactor = cfg.OverrunFactor
	}
	if cfg.TargetUtilization > 0 {
		merged.TargetUtilization = cfg.TargetUtilization
	}
	if cfg.RefineBandLow > 0 {
		merged.RefineBandLow = cfg.RefineBandLow
	}
	if cfg.RefineBandHigh > 0 {
		merged.RefineBandHigh = cfg.RefineBandHigh
	}
	if cfg.WarmupIterations > 0 {
		merged.WarmupIterations = cfg.WarmupIterations
	}
	if cfg.MeasureIterations > 0 {
		merged.MeasureIterations = cfg.MeasureIterations
	}
	if cfg.ReferenceSize > 0 {
		merged.ReferenceSize = cfg.ReferenceSize
	}
	if cfg.FallbackCPUMsPerReference > 0 {
		merged.FallbackCPUMsPerReference = cfg.FallbackCPUMsPerReference
	}
	if cfg.SettleDelay > 0 {
		merged.SettleDelay = cfg.SettleDelay
	}

	// Keep the band ordered so an inverted override cannot make every
	// first iteration look out of band.
	if merged.RefineBandHigh < merged.RefineBandLow {
		merged.RefineBandHigh = merged.RefineBandLow
	}

	return &merged
}

// Baseline is the calibration result: average CPU (and wall) milliseconds
// per execution of the reference-sized workload on an unthrottled
// environment. Computed once per calibration run, immutable afterward.
type Baseline struct {
	ReferenceSize types.Bytes
	CPUMsPerUnit  float64
	WallMsPerUnit float64
	MinCPUMs      float64
	MaxCPUMs      float64
	Samples       int

	// Unreliable marks a baseline taken with no samples or on an
	// environment whose CPU share is below 1.0; consumers should prefer
	// FallbackBaseline over an unreliable reading.
	Unreliable bool
}

// FallbackBaseline returns the documented constant baseline used when no
// reliable calibration is available.
func FallbackBaseline(cfg *Config) Baseline {
	cfg = NewConfig(cfg)
	return Baseline{
		ReferenceSize: cfg.ReferenceSize,
		CPUMsPerUnit:  cfg.FallbackCPUMsPerReference,
		WallMsPerUnit: cfg.FallbackCPUMsPerReference,
		Unreliable:    true,
	}
}

// IterationRecord is one executed workload unit. Records are append-only,
// ordered by execution, and owned by the Scheduler until the run completes.
type IterationRecord struct {
	Index         int
	StartOffsetMs float64
	WallMs        float64
	CPUMs         float64
	Size          types.Bytes
}

// Summary aggregates a completed run. Created once at run completion,
// read-only thereafter.
type Summary struct {
	Iterations  int
	TotalWallMs float64
	TotalCPUMs  float64

	AvgWallMs float64
	MinWallMs float64
	MaxWallMs float64
	AvgCPUMs  float64
	MinCPUMs  float64
	MaxCPUMs  float64

	// UtilizationPct is 100 * AvgCPUMs / the plan's allowed CPU budget.
	UtilizationPct float64
	ThrottleEvents int
}
