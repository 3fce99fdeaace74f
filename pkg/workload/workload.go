// Package workload provides the fixed CPU-bound unit of work driven by the
// calibration and scheduling loops: a deterministic buffer is hashed and
// compressed, so CPU cost scales with the single size parameter.
package workload

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/pwrdrvr/lambda-throttling/pkg/types"
)

// ErrZeroSize indicates a workload execution was requested with no data.
var ErrZeroSize = errors.New("workload: zero size")

// Digest is the checksum of one execution, returned so the compiler cannot
// eliminate the work.
type Digest uint64

// Runner executes one unit of CPU-bound work at a given size. Implementations
// must be pure functions of size with no side effect besides CPU consumption.
type Runner interface {
	Run(size types.Bytes) (Digest, error)
}

// HashCompress is the default workload: fill a pseudo-random buffer,
// SHA-256 it, gzip it.
type HashCompress struct{}

// New returns the default workload.
func New() *HashCompress { return &HashCompress{} }

// Run executes one unit of work at the given size. Identical sizes produce
// identical digests.
func (HashCompress) Run(size types.Bytes) (Digest, error) {
	if size == 0 {
		return 0, ErrZeroSize
	}
	buf := fill(int(size))
	sum := sha256.Sum256(buf)

	var cw countingWriter
	zw, err := gzip.NewWriterLevel(&cw, gzip.BestSpeed)
	if err != nil {
		return 0, err
	}
	if _, err := zw.Write(buf); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}

	return Digest(binary.BigEndian.Uint64(sum[:8]) ^ uint64(cw.n)), nil
}

// fill produces a deterministic buffer via xorshift64. The content is
// incompressible enough that gzip does real work instead of short-circuiting
// on runs of zeros.
func fill(n int) []byte {
	buf := make([]byte, n)
	x := uint64(n)*2654435761 + 1
	for i := range buf {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		buf[i] = byte(x)
	}
	return buf
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
