package cputime

import "errors"

var (
	// ErrNoCPUAccounting indicates the host exposes no per-process CPU time
	// counter; only wall-clock measurements are available.
	ErrNoCPUAccounting = errors.New("cputime: no process cpu accounting")
)
