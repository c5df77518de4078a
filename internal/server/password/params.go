package password

import (
	"fmt"
	"math"
	"runtime"
)

// Params controls the Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultParams is a baseline for interactive logins: 64 MiB, 3 passes,
// parallelism clamped to [1..4] so resource use stays predictable in containers.
func DefaultParams() Params {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped above.
		KeyLength:   32,
	}
}

// Validate rejects parameter sets argon2 would panic on or that produce
// digests too short to be useful.
func (p Params) Validate() error {
	if p.Iterations < 1 {
		return fmt.Errorf("argon2 iterations must be >= 1, got %d", p.Iterations)
	}
	if p.Parallelism < 1 {
		return fmt.Errorf("argon2 parallelism must be >= 1, got %d", p.Parallelism)
	}
	if p.MemoryKiB < 8*uint32(p.Parallelism) {
		return fmt.Errorf("argon2 memory must be >= 8*parallelism KiB, got %d", p.MemoryKiB)
	}
	if p.KeyLength < 16 || p.KeyLength > 128 {
		return fmt.Errorf("argon2 key length out of range [16..128], got %d", p.KeyLength)
	}
	return nil
}

// ParallelismFromInt converts a configured thread count, guarding the uint8 range.
func ParallelismFromInt(n int) (uint8, error) {
	if n < 1 || n > math.MaxUint8 {
		return 0, fmt.Errorf("parallelism out of range [1..%d]", math.MaxUint8)
	}
	return uint8(n), nil
}
