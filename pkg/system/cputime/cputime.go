package cputime

import "time"

// Mark is a point captured on both the wall clock and the process CPU clock.
type Mark struct {
	Wall  time.Time
	CPU   time.Duration
	CPUOK bool
}

// Clock reads elapsed wall and CPU time since a Mark. The zero value is not
// usable; construct with New.
type Clock struct {
	cpuOK bool
}

// New probes CPU-time accounting once and returns a ready Clock. A Clock on
// a host without accounting still works for wall time; CPUMillis will return
// ErrNoCPUAccounting.
func New() *Clock {
	_, err := processCPUTime()
	return &Clock{cpuOK: err == nil}
}

// SupportsCPUTime reports whether CPUMillis can return real readings.
func (c *Clock) SupportsCPUTime() bool { return c.cpuOK }

// Mark captures the current instant on both clocks.
func (c *Clock) Mark() Mark {
	m := Mark{Wall: time.Now()}
	if c.cpuOK {
		if cpu, err := processCPUTime(); err == nil {
			m.CPU = cpu
			m.CPUOK = true
		}
	}
	return m
}

// WallMillis returns monotonic wall-clock milliseconds elapsed since m.
func (c *Clock) WallMillis(m Mark) float64 {
	return float64(time.Since(m.Wall)) / float64(time.Millisecond)
}

// CPUMillis returns process CPU milliseconds (user+system) consumed since m.
func (c *Clock) CPUMillis(m Mark) (float64, error) {
	if !c.cpuOK || !m.CPUOK {
		return 0, ErrNoCPUAccounting
	}
	now, err := processCPUTime()
	if err != nil {
		return 0, err
	}
	d := now - m.CPU
	if d < 0 {
		d = 0
	}
	return float64(d) / float64(time.Millisecond), nil
}
