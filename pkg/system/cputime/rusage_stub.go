//go:build !linux

package cputime

import "time"

func processCPUTime() (time.Duration, error) {
	return 0, ErrNoCPUAccounting
}
