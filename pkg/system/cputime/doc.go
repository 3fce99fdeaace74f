// Package cputime couples Go's monotonic wall clock with process-level CPU
// time accounting, exposing both as millisecond deltas since a Mark.
//
//   - Mark() captures a point on both clocks.
//   - WallMillis(m) is monotonic wall time elapsed since m; it is immune to
//     wall-clock adjustments because it rides time.Time's monotonic reading.
//   - CPUMillis(m) is user+system CPU time the whole process consumed since
//     m, read from getrusage(RUSAGE_SELF). It does not advance while the
//     process is suspended, which is exactly what makes it useful for
//     telling "we were descheduled" apart from "we were slow".
//
// On platforms without rusage accounting CPUMillis returns
// ErrNoCPUAccounting; callers are expected to fall back to wall-clock-only
// heuristics rather than fail.
//
// Package import path: github.com/pwrdrvr/lambda-throttling/pkg/system/cputime
package cputime
