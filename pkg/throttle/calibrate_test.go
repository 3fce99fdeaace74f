package throttle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrator_BaselineIsExactMean(t *testing.T) {
	clock := newStubClock()
	// Two warmup executions (discarded) followed by four measurements.
	wall := []float64{1, 1, 4, 5, 6, 5}
	cpu := []float64{1, 1, 3.5, 4.5, 5.5, 4.5}
	work := newScriptedWork(clock, wall, cpu)

	cal := NewCalibrator(&Config{WarmupIterations: 2, MeasureIterations: 4}, clock, work)
	base, err := cal.Run(1.0)
	require.NoError(t, err)

	assert.Equal(t, 6, work.calls)
	assert.Equal(t, 4, base.Samples)
	require.InDelta(t, 4.5, base.CPUMsPerUnit, 1e-9)
	require.InDelta(t, 5.0, base.WallMsPerUnit, 1e-9)
	require.InDelta(t, 3.5, base.MinCPUMs, 1e-9)
	require.InDelta(t, 5.5, base.MaxCPUMs, 1e-9)
	assert.False(t, base.Unreliable)

	// All executions ran at the reference size.
	for _, size := range work.sizes {
		assert.InDelta(t, 100, size.KB(), 1e-9)
	}
}

func TestCalibrator_FractionalShareIsUnreliable(t *testing.T) {
	clock := newStubClock()
	work := newScriptedWork(clock, []float64{5}, []float64{4})

	cal := NewCalibrator(&Config{WarmupIterations: 1, MeasureIterations: 3}, clock, work)
	base, err := cal.Run(0.5)
	require.NoError(t, err)

	// The result still comes back, just flagged; callers substitute the
	// fallback constant instead of aborting the dependent run.
	assert.True(t, base.Unreliable)
	require.InDelta(t, 4, base.CPUMsPerUnit, 1e-9)
}

func TestCalibrator_NoCPUAccountingFallsBackToWall(t *testing.T) {
	clock := newStubClock()
	clock.cpuErr = errors.New("no accounting")
	work := newScriptedWork(clock, []float64{5}, nil)

	cal := NewCalibrator(&Config{WarmupIterations: 1, MeasureIterations: 4}, clock, work)
	base, err := cal.Run(1.0)
	require.NoError(t, err)

	require.InDelta(t, base.WallMsPerUnit, base.CPUMsPerUnit, 1e-9)
	require.InDelta(t, 5, base.CPUMsPerUnit, 1e-9)
}

func TestCalibrator_WorkloadFailureAborts(t *testing.T) {
	clock := newStubClock()
	work := newScriptedWork(clock, []float64{5}, []float64{4})
	boom := errors.New("out of memory")
	work.failAt, work.err = 0, boom

	cal := NewCalibrator(&Config{WarmupIterations: 1, MeasureIterations: 3}, clock, work)
	_, err := cal.Run(1.0)
	require.ErrorIs(t, err, boom)
}

func TestFallbackBaseline(t *testing.T) {
	base := FallbackBaseline(nil)
	assert.True(t, base.Unreliable)
	assert.Equal(t, 0, base.Samples)
	require.InDelta(t, 3.6, base.CPUMsPerUnit, 1e-12)
	require.InDelta(t, 100, base.ReferenceSize.KB(), 1e-9)

	// The constant follows the configured reference size.
	base = FallbackBaseline(&Config{FallbackCPUMsPerReference: 7.2})
	require.InDelta(t, 7.2, base.CPUMsPerUnit, 1e-12)
}
