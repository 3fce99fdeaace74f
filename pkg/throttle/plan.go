package throttle

import (
	"math"

	"github.com/pwrdrvr/lambda-throttling/pkg/system/util"
	"github.com/pwrdrvr/lambda-throttling/pkg/types"
)

type planState int

const (
	planInitial planState = iota
	planRefined
)

// Plan is the adaptive sizing decision for one run: how much CPU time one
// quantum allows and the workload size that should fit inside it. It is
// derived once per run and shared read-only by the scheduler and the
// aggregator; the only mutation is the one-shot Initial -> Refined
// transition driven by the first live iteration.
type Plan struct {
	CPUShare               float64
	SafetyFactor           float64
	AllowedCPUMsPerQuantum float64
	CalibratedSize         types.Bytes

	state planState
	cfg   *Config
}

// NewPlan scales the calibration's reference size by the ratio of the CPU
// time this environment may spend per quantum to the CPU time the reference
// environment needed per unit:
//
//	allowed = cpuShare * quantum * safetyFactor
//	sizeKB  = max(1, floor(allowed / baselineCPUMs * referenceKB))
//
// The calibrated size is never below one kilobyte. Low-share environments
// get the larger safety margin because their relative timing jitter is
// higher.
func NewPlan(cpuShare float64, base Baseline, cfg *Config) Plan {
	cfg = NewConfig(cfg)

	sf := cfg.SafetyFactorHigh
	if cpuShare < cfg.LowShareCutoff {
		sf = cfg.SafetyFactorLow
	}
	allowed := cpuShare * cfg.QuantumMs * sf

	sizeKB := math.Floor(util.SafeDiv(allowed, base.CPUMsPerUnit) * base.ReferenceSize.KB())
	if sizeKB < 1 {
		sizeKB = 1
	}

	return Plan{
		CPUShare:               cpuShare,
		SafetyFactor:           sf,
		AllowedCPUMsPerQuantum: allowed,
		CalibratedSize:         types.FromKB(sizeKB),
		cfg:                    cfg,
	}
}

// Refined reports whether the one-shot refinement check already ran.
func (p *Plan) Refined() bool { return p.state == planRefined }

// RefineOnce consumes the first live iteration's observed CPU time. If the
// observation falls outside the configured band around the utilization
// target, the calibrated size is rescaled by the observed ratio; either way
// the plan transitions to Refined and never rescales again. Returns whether
// the size changed.
func (p *Plan) RefineOnce(observedCPUMs float64) bool {
	if p.state == planRefined || p.cfg == nil {
		p.state = planRefined
		return false
	}
	p.state = planRefined

	target := p.AllowedCPUMsPerQuantum * p.cfg.TargetUtilization
	if target <= 0 || observedCPUMs <= 0 {
		return false
	}
	ratio := observedCPUMs / target
	if ratio >= p.cfg.RefineBandLow && ratio <= p.cfg.RefineBandHigh {
		return false
	}

	sizeKB := math.Floor(p.CalibratedSize.KB() / ratio)
	if sizeKB < 1 {
		sizeKB = 1
	}
	p.CalibratedSize = types.FromKB(sizeKB)
	return true
}
