package throttle

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pwrdrvr/lambda-throttling/pkg/workload"
)

// ErrNotIdle indicates Run was called on a scheduler that already ran.
var ErrNotIdle = errors.New("throttle: scheduler is not idle")

// State is the scheduler lifecycle: Idle -> Running -> Completed.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Scheduler executes one workload unit per scheduling quantum, aligned to
// quantum boundaries, and records wall and CPU time per iteration. A
// Scheduler runs exactly once.
type Scheduler struct {
	cfg   *Config
	clock Clock
	work  workload.Runner
	plan  *Plan

	state   State
	records []IterationRecord
	sleep   func(time.Duration)
}

// NewScheduler returns an idle scheduler for the given plan.
func NewScheduler(cfg *Config, clock Clock, work workload.Runner, plan *Plan) *Scheduler {
	return &Scheduler{
		cfg:   NewConfig(cfg),
		clock: clock,
		work:  work,
		plan:  plan,
		sleep: time.Sleep,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return s.state }

// IterationsFor derives an iteration count from a total run duration.
func IterationsFor(totalDurationMs, quantumMs float64) int {
	if totalDurationMs <= 0 || quantumMs <= 0 {
		return 0
	}
	return int(math.Floor(totalDurationMs / quantumMs))
}

// remainingInQuantum returns the milliseconds left until the next quantum
// boundary. An elapsed time that is an exact multiple of the quantum yields
// 0, not a full quantum, so an on-time iteration never sleeps through an
// extra slice.
func remainingInQuantum(elapsedMs, quantumMs float64) float64 {
	r := math.Mod(elapsedMs, quantumMs)
	if r == 0 {
		return 0
	}
	return quantumMs - r
}

// Run executes iterations workload units, one per quantum, and returns the
// iteration records, transferring their ownership to the caller. The sleep
// between iterations is a true cooperative wait sized to the next quantum
// boundary relative to the run start, so an iteration that overruns its
// quantum (the phenomenon under study) does not push later iterations out of
// phase with the host's scheduling boundaries.
//
// The only fatal error is a workload execution failure; partial records are
// returned alongside it.
func (s *Scheduler) Run(iterations int) ([]IterationRecord, error) {
	if s.state != StateIdle {
		return nil, ErrNotIdle
	}
	s.state = StateRunning
	defer func() { s.state = StateCompleted }()

	runStart := s.clock.Mark()
	for i := 0; i < iterations; i++ {
		startOffset := s.clock.WallMillis(runStart)

		m := s.clock.Mark()
		if _, err := s.work.Run(s.plan.CalibratedSize); err != nil {
			return s.takeRecords(), fmt.Errorf("schedule: iteration %d: %w", i, err)
		}
		wall := s.clock.WallMillis(m)
		cpu, err := s.clock.CPUMillis(m)
		if err != nil {
			// Wall-clock-only degradation; throttle detection still works.
			cpu = 0
		}

		s.records = append(s.records, IterationRecord{
			Index:         i,
			StartOffsetMs: startOffset,
			WallMs:        wall,
			CPUMs:         cpu,
			Size:          s.plan.CalibratedSize,
		})

		if i == 0 {
			s.plan.RefineOnce(cpu)
		}
		if i == iterations-1 {
			break
		}

		elapsed := s.clock.WallMillis(runStart)
		if remaining := remainingInQuantum(elapsed, s.cfg.QuantumMs); remaining > 0 {
			s.sleep(time.Duration(remaining * float64(time.Millisecond)))
		}
	}

	return s.takeRecords(), nil
}

func (s *Scheduler) takeRecords() []IterationRecord {
	recs := s.records
	s.records = nil
	return recs
}
