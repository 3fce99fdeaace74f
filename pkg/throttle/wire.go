package throttle

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/pwrdrvr/lambda-throttling/pkg/types"
)

// Request is the invocation payload understood by a test run. Field names
// match the documents already stored by existing report tooling; do not
// rename them.
type Request struct {
	IsCalibration         bool        `json:"isCalibration"`
	TestDurationMs        float64     `json:"testDurationMs"`
	WarmupIterations      int         `json:"warmupIterations"`
	CalibrationIterations int         `json:"calibrationIterations"`
	DataSize              types.Bytes `json:"dataSize"`

	// Optional externally supplied baselines; when present they enable live
	// throttle detection and replace a local calibration run.
	BaselineIterationTimeMs       float64 `json:"baselineIterationTimeMs,omitempty"`
	BaselineCPUTimePerIterationMs float64 `json:"baselineCpuTimePerIterationMs,omitempty"`
	CalibrationCPUTimeFor100KBMs  float64 `json:"calibrationCpuTimeFor100KBMs,omitempty"`
	CalibrationDataSizeKB         float64 `json:"calibrationDataSizeKB,omitempty"`
}

// Normalize fills unset fields with the documented defaults.
func (r *Request) Normalize() {
	if r.TestDurationMs <= 0 {
		if r.IsCalibration {
			r.TestDurationMs = 10000
		} else {
			r.TestDurationMs = 5000
		}
	}
	if r.WarmupIterations <= 0 {
		r.WarmupIterations = 50
	}
	if r.CalibrationIterations <= 0 {
		r.CalibrationIterations = 500
	}
	if r.DataSize <= 0 {
		r.DataSize = 102400
	}
	if r.CalibrationDataSizeKB <= 0 {
		r.CalibrationDataSizeKB = 100
	}
}

// EngineConfig maps the request to engine knobs. Fields the request does
// not carry defer to the engine defaults.
func (r Request) EngineConfig() *Config {
	rr := r
	rr.Normalize()
	return &Config{
		WarmupIterations:  rr.WarmupIterations,
		MeasureIterations: rr.CalibrationIterations,
		ReferenceSize:     rr.DataSize,
	}
}

// ExternalBaseline returns the calibration baseline carried in the request,
// if any. Adaptive runs use it in place of running their own calibration.
// A reference-size calibration baseline wins; otherwise the per-iteration
// baseline fields serve, denominated at the request's data size.
func (r Request) ExternalBaseline() (Baseline, bool) {
	switch {
	case r.CalibrationCPUTimeFor100KBMs > 0:
		kb := r.CalibrationDataSizeKB
		if kb <= 0 {
			kb = 100
		}
		wall := r.BaselineIterationTimeMs
		if wall <= 0 {
			wall = r.CalibrationCPUTimeFor100KBMs
		}
		return Baseline{
			ReferenceSize: types.FromKB(kb),
			CPUMsPerUnit:  r.CalibrationCPUTimeFor100KBMs,
			WallMsPerUnit: wall,
		}, true
	case r.BaselineCPUTimePerIterationMs > 0:
		size := r.DataSize
		if size <= 0 {
			size = 102400
		}
		wall := r.BaselineIterationTimeMs
		if wall <= 0 {
			wall = r.BaselineCPUTimePerIterationMs
		}
		return Baseline{
			ReferenceSize: size,
			CPUMsPerUnit:  r.BaselineCPUTimePerIterationMs,
			WallMsPerUnit: wall,
		}, true
	}
	return Baseline{}, false
}

// ThrottlingEvent is one throttled iteration in the wire document.
type ThrottlingEvent struct {
	Iteration       int     `json:"iteration"`
	OffsetMs        float64 `json:"offsetMs"`
	IterationTimeMs float64 `json:"iterationTimeMs"`
	ExpectedTimeMs  float64 `json:"expectedTimeMs"`
}

// CalibrationResults carries the baseline of a calibration run.
type CalibrationResults struct {
	AverageIterationTimeMs       float64 `json:"averageIterationTimeMs"`
	AverageCPUTimePerIterationMs float64 `json:"averageCpuTimePerIterationMs"`
}

// ResultStats is the derived statistics block of a run result.
type ResultStats struct {
	AvgCPUTime                float64 `json:"avgCpuTime"`
	MinCPUTime                float64 `json:"minCpuTime"`
	MaxCPUTime                float64 `json:"maxCpuTime"`
	AvgWallClockTime          float64 `json:"avgWallClockTime"`
	MinWallClockTime          float64 `json:"minWallClockTime"`
	MaxWallClockTime          float64 `json:"maxWallClockTime"`
	PotentialThrottlingEvents int     `json:"potentialThrottlingEvents"`
	CPUUtilizationPercent     float64 `json:"cpuUtilizationPercent"`
	CalibratedDataSizeKB      float64 `json:"calibratedDataSizeKB"`
}

// Result is the run output document.
type Result struct {
	StartTime          string              `json:"startTime"`
	EndTime            string              `json:"endTime"`
	TotalWallClockTime float64             `json:"totalWallClockTime"`
	TotalCPUTime       float64             `json:"totalCpuTime"`
	TotalIterations    int                 `json:"totalIterations"`
	ThrottlingEvents   []ThrottlingEvent   `json:"throttlingEvents,omitempty"`
	CalibrationResults *CalibrationResults `json:"calibrationResults,omitempty"`
	MemorySize         int                 `json:"memorySize"`
	CPUAllocation      float64             `json:"cpuAllocation"`
	Stats              *ResultStats        `json:"stats,omitempty"`
}

// Stored result documents nest the result as a JSON-encoded string under
// "body"; the envelope preserves that shape.
type envelope struct {
	Body string `json:"body"`
}

// MarshalEnvelope serializes r in the body-nested document shape.
func (r Result) MarshalEnvelope() ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Body: string(body)})
}

// ParseEnvelope parses a body-nested document back into a Result.
func ParseEnvelope(data []byte) (Result, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Result{}, err
	}
	var r Result
	if err := json.Unmarshal([]byte(env.Body), &r); err != nil {
		return Result{}, err
	}
	return r, nil
}

// NewResult assembles the wire document from a completed scheduler run.
func NewResult(records []IterationRecord, sum Summary, plan Plan, cfg *Config,
	memoryMB int, start, end time.Time, baselineWallMs float64) Result {

	cfg = NewConfig(cfg)
	expected := cfg.QuantumMs * cfg.OverrunFactor
	if baselineWallMs > 0 {
		expected = baselineWallMs * cfg.OverrunFactor
	}
	events := lo.Map(ThrottleEvents(records, cfg, baselineWallMs),
		func(r IterationRecord, _ int) ThrottlingEvent {
			return ThrottlingEvent{
				Iteration:       r.Index,
				OffsetMs:        r.StartOffsetMs,
				IterationTimeMs: r.WallMs,
				ExpectedTimeMs:  expected,
			}
		})

	return Result{
		StartTime:          start.UTC().Format(time.RFC3339Nano),
		EndTime:            end.UTC().Format(time.RFC3339Nano),
		TotalWallClockTime: sum.TotalWallMs,
		TotalCPUTime:       sum.TotalCPUMs,
		TotalIterations:    sum.Iterations,
		ThrottlingEvents:   events,
		MemorySize:         memoryMB,
		CPUAllocation:      plan.CPUShare,
		Stats: &ResultStats{
			AvgCPUTime:                sum.AvgCPUMs,
			MinCPUTime:                sum.MinCPUMs,
			MaxCPUTime:                sum.MaxCPUMs,
			AvgWallClockTime:          sum.AvgWallMs,
			MinWallClockTime:          sum.MinWallMs,
			MaxWallClockTime:          sum.MaxWallMs,
			PotentialThrottlingEvents: sum.ThrottleEvents,
			CPUUtilizationPercent:     sum.UtilizationPct,
			CalibratedDataSizeKB:      plan.CalibratedSize.KB(),
		},
	}
}

// NewCalibrationResult assembles the wire document for a calibration run.
func NewCalibrationResult(base Baseline, memoryMB int, cpuShare float64, start, end time.Time) Result {
	return Result{
		StartTime:       start.UTC().Format(time.RFC3339Nano),
		EndTime:         end.UTC().Format(time.RFC3339Nano),
		TotalIterations: base.Samples,
		CalibrationResults: &CalibrationResults{
			AverageIterationTimeMs:       base.WallMsPerUnit,
			AverageCPUTimePerIterationMs: base.CPUMsPerUnit,
		},
		MemorySize:    memoryMB,
		CPUAllocation: cpuShare,
	}
}
