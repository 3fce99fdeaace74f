package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}

func TestSafeDiv(t *testing.T) {
	assert.Equal(t, 2.0, SafeDiv(4, 2))
	assert.Equal(t, 0.0, SafeDiv(4, 0))
	assert.Equal(t, 0.0, SafeDiv(4, 1e-15))
}

func TestMean(t *testing.T) {
	require.InDelta(t, 4.5, Mean([]float64{3.5, 4.5, 5.5, 4.5}), 1e-12)
	assert.Equal(t, 0.0, Mean(nil))
}

func TestMinMax(t *testing.T) {
	lo, hi := MinMax([]float64{5, 3.5, 5.5, 4.5})
	assert.Equal(t, 3.5, lo)
	assert.Equal(t, 5.5, hi)

	lo, hi = MinMax([]float64{7})
	assert.Equal(t, 7.0, lo)
	assert.Equal(t, 7.0, hi)

	lo, hi = MinMax(nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)
}

func TestFmtFloat(t *testing.T) {
	assert.Equal(t, "3.6", FmtFloat(3.6))
	assert.Equal(t, "0", FmtFloat(0))
	assert.Equal(t, "472", FmtFloat(472))
}

func TestParseMemorySizes(t *testing.T) {
	got, err := ParseMemorySizes([]string{"128", "256,512", " 1024 "})
	require.NoError(t, err)
	assert.Equal(t, []int{128, 256, 512, 1024}, got)

	_, err = ParseMemorySizes([]string{"128", "abc"})
	require.Error(t, err)

	_, err = ParseMemorySizes([]string{"-5"})
	require.Error(t, err)

	got, err = ParseMemorySizes(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
