package cputime

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_WallMillisAdvances(t *testing.T) {
	c := New()
	m := c.Mark()

	// Burn a little CPU so both clocks move.
	buf := make([]byte, 64*1024)
	for c.WallMillis(m) < 25 {
		_ = sha256.Sum256(buf)
	}

	wall := c.WallMillis(m)
	require.GreaterOrEqual(t, wall, 25.0)

	// Later marks never run backwards.
	m2 := c.Mark()
	assert.GreaterOrEqual(t, c.WallMillis(m), c.WallMillis(m2))
}

func TestClock_CPUMillisCountsBusyWork(t *testing.T) {
	c := New()
	if !c.SupportsCPUTime() {
		t.Skip("no process cpu accounting on this host")
	}

	m := c.Mark()
	require.True(t, m.CPUOK)

	buf := make([]byte, 64*1024)
	for c.WallMillis(m) < 30 {
		_ = sha256.Sum256(buf)
	}

	cpu, err := c.CPUMillis(m)
	require.NoError(t, err)
	assert.Greater(t, cpu, 0.0)
	t.Logf("busy loop: wall=%.2fms cpu=%.2fms", c.WallMillis(m), cpu)
}

func TestClock_CPUMillisRejectsForeignMark(t *testing.T) {
	c := New()
	if !c.SupportsCPUTime() {
		t.Skip("no process cpu accounting on this host")
	}

	// A mark without a CPU reading cannot produce a CPU delta.
	_, err := c.CPUMillis(Mark{})
	require.ErrorIs(t, err, ErrNoCPUAccounting)
}
