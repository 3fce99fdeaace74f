package throttle

import (
	"fmt"
	"math"

	"github.com/pwrdrvr/lambda-throttling/pkg/workload"
)

// Calibrator establishes the unthrottled CPU-time baseline for the reference
// workload size: a warmup phase whose timing is discarded, then a measurement
// phase with no inter-iteration delay.
type Calibrator struct {
	cfg   *Config
	clock Clock
	work  workload.Runner
}

// NewCalibrator returns a calibrator using cfg merged over defaults.
func NewCalibrator(cfg *Config, clock Clock, work workload.Runner) *Calibrator {
	return &Calibrator{cfg: NewConfig(cfg), clock: clock, work: work}
}

// Run executes the calibration. cpuShare is the share of the environment the
// calibration runs on; a share below 1.0 means the measurement phase itself
// gets throttled, so the baseline is returned flagged Unreliable rather than
// failing the run. A workload execution failure is the only fatal error.
//
// The measurement phase deliberately never sleeps: it must saturate the CPU
// to read a clean unthrottled cost per unit.
func (c *Calibrator) Run(cpuShare float64) (Baseline, error) {
	for i := 0; i < c.cfg.WarmupIterations; i++ {
		if _, err := c.work.Run(c.cfg.ReferenceSize); err != nil {
			return Baseline{}, fmt.Errorf("calibrate: warmup iteration %d: %w", i, err)
		}
	}

	var (
		sumWall, sumCPU float64
		minCPU          = math.Inf(1)
		maxCPU          float64
		n               int
	)
	for i := 0; i < c.cfg.MeasureIterations; i++ {
		m := c.clock.Mark()
		if _, err := c.work.Run(c.cfg.ReferenceSize); err != nil {
			return Baseline{}, fmt.Errorf("calibrate: measure iteration %d: %w", i, err)
		}
		wall := c.clock.WallMillis(m)
		cpu, err := c.clock.CPUMillis(m)
		if err != nil {
			// No CPU accounting on this host; during saturation wall time
			// is the closest available stand-in.
			cpu = wall
		}

		sumWall += wall
		sumCPU += cpu
		n++
		if cpu < minCPU {
			minCPU = cpu
		}
		if cpu > maxCPU {
			maxCPU = cpu
		}
	}

	if n == 0 {
		return FallbackBaseline(c.cfg), nil
	}

	return Baseline{
		ReferenceSize: c.cfg.ReferenceSize,
		CPUMsPerUnit:  sumCPU / float64(n),
		WallMsPerUnit: sumWall / float64(n),
		MinCPUMs:      minCPU,
		MaxCPUMs:      maxCPU,
		Samples:       n,
		Unreliable:    cpuShare < 1.0,
	}, nil
}
