package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func SafeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	// guard against NaN
	if math.IsNaN(x) {
		return 0
	}
	return x
}

// Mean returns the arithmetic mean of vs, or 0 for an empty slice.
func Mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// MinMax returns the smallest and largest values in vs, or (0, 0) for an
// empty slice.
func MinMax(vs []float64) (lo, hi float64) {
	if len(vs) == 0 {
		return 0, 0
	}
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// FmtFloat formats a float with the shortest representation that round-trips.
func FmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseMemorySizes parses CLI args into a list of memory tiers in MB.
// Each arg may be a single value ("128") or a comma-separated list
// ("128,256,512"). Values must be positive integers.
func ParseMemorySizes(args []string) ([]int, error) {
	var out []int
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			mb, err := strconv.Atoi(part)
			if err != nil || mb <= 0 {
				return nil, fmt.Errorf("invalid memory size %q", part)
			}
			out = append(out, mb)
		}
	}
	return out, nil
}
