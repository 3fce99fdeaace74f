package throttle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []IterationRecord {
	return []IterationRecord{
		{Index: 0, StartOffsetMs: 0, WallMs: 18, CPUMs: 8, Size: 472 * 1024},
		{Index: 1, StartOffsetMs: 20, WallMs: 19, CPUMs: 10, Size: 472 * 1024},
		{Index: 2, StartOffsetMs: 40, WallMs: 35, CPUMs: 12, Size: 472 * 1024},
	}
}

func TestAggregate_UtilizationIsExact(t *testing.T) {
	plan := Plan{CPUShare: 1.0, AllowedCPUMsPerQuantum: 17}
	sum := Aggregate(sampleRecords(), plan, nil, 0)

	require.Equal(t, 3, sum.Iterations)
	require.InDelta(t, 72, sum.TotalWallMs, 1e-9)
	require.InDelta(t, 30, sum.TotalCPUMs, 1e-9)
	require.InDelta(t, 24, sum.AvgWallMs, 1e-9)
	require.InDelta(t, 18, sum.MinWallMs, 1e-9)
	require.InDelta(t, 35, sum.MaxWallMs, 1e-9)
	require.InDelta(t, 10, sum.AvgCPUMs, 1e-9)
	require.InDelta(t, 8, sum.MinCPUMs, 1e-9)
	require.InDelta(t, 12, sum.MaxCPUMs, 1e-9)

	// utilizationPercent = 100 * avgCpu / allowed, exactly.
	require.InDelta(t, 100*10.0/17.0, sum.UtilizationPct, 1e-9)

	// 35 > 20*1.5 is the only overrun.
	assert.Equal(t, 1, sum.ThrottleEvents)
}

func TestAggregate_EmptyInput(t *testing.T) {
	sum := Aggregate(nil, Plan{AllowedCPUMsPerQuantum: 17}, nil, 0)
	assert.Equal(t, Summary{}, sum)
	assert.Equal(t, 0, sum.Iterations)
}

func TestIsThrottled_QuantumOverrun(t *testing.T) {
	// No baseline: absolute test against quantum * overrunFactor.
	assert.False(t, IsThrottled(IterationRecord{WallMs: 30}, 20, 1.5, 0))
	assert.True(t, IsThrottled(IterationRecord{WallMs: 30.01}, 20, 1.5, 0))
	assert.True(t, IsThrottled(IterationRecord{WallMs: 35}, 20, 1.5, 0))
}

func TestIsThrottled_AgainstBaseline(t *testing.T) {
	// With a baseline the test is relative to expected iteration time.
	assert.False(t, IsThrottled(IterationRecord{WallMs: 7}, 20, 1.5, 5))
	assert.True(t, IsThrottled(IterationRecord{WallMs: 7.6}, 20, 1.5, 5))
}

func TestThrottleEvents_OrderPreserved(t *testing.T) {
	records := []IterationRecord{
		{Index: 0, WallMs: 40},
		{Index: 1, WallMs: 10},
		{Index: 2, WallMs: 31},
	}
	events := ThrottleEvents(records, nil, 0)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Index)
	assert.Equal(t, 2, events[1].Index)
}
