package throttle

import (
	"time"

	"github.com/pwrdrvr/lambda-throttling/pkg/system/cputime"
	"github.com/pwrdrvr/lambda-throttling/pkg/types"
	"github.com/pwrdrvr/lambda-throttling/pkg/workload"
)

// stubClock is a deterministic clock advanced explicitly by the scripted
// workload and the injected sleep.
type stubClock struct {
	epoch  time.Time
	nowMs  float64
	cpuMs  float64
	cpuErr error
}

func newStubClock() *stubClock {
	return &stubClock{epoch: time.Unix(0, 0)}
}

func (c *stubClock) advance(wallMs, cpuMs float64) {
	c.nowMs += wallMs
	c.cpuMs += cpuMs
}

func (c *stubClock) Mark() cputime.Mark {
	return cputime.Mark{
		Wall:  c.epoch.Add(time.Duration(c.nowMs * float64(time.Millisecond))),
		CPU:   time.Duration(c.cpuMs * float64(time.Millisecond)),
		CPUOK: true,
	}
}

func (c *stubClock) WallMillis(m cputime.Mark) float64 {
	return c.nowMs - float64(m.Wall.Sub(c.epoch))/float64(time.Millisecond)
}

func (c *stubClock) CPUMillis(m cputime.Mark) (float64, error) {
	if c.cpuErr != nil {
		return 0, c.cpuErr
	}
	return c.cpuMs - float64(m.CPU)/float64(time.Millisecond), nil
}

func (c *stubClock) SupportsCPUTime() bool { return c.cpuErr == nil }

// scriptedWork advances the stub clock by a scripted wall/CPU cost per call.
// The last script entry repeats when calls outnumber entries.
type scriptedWork struct {
	clock  *stubClock
	wall   []float64
	cpu    []float64
	calls  int
	sizes  []types.Bytes
	failAt int // call index that errors; -1 disables
	err    error
}

func newScriptedWork(clock *stubClock, wall, cpu []float64) *scriptedWork {
	return &scriptedWork{clock: clock, wall: wall, cpu: cpu, failAt: -1}
}

func (w *scriptedWork) Run(size types.Bytes) (workload.Digest, error) {
	i := w.calls
	w.calls++
	if i == w.failAt {
		return 0, w.err
	}
	w.sizes = append(w.sizes, size)

	at := func(vs []float64) float64 {
		if len(vs) == 0 {
			return 0
		}
		if i < len(vs) {
			return vs[i]
		}
		return vs[len(vs)-1]
	}
	w.clock.advance(at(w.wall), at(w.cpu))
	return 0, nil
}
