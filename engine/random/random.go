// Package random provides a small deterministic hash-based random number generator.
// Every draw is a pure function of an explicit 32-bit state, so independent values
// (per transformation, per spline knot, per axis) can be derived without any shared state.
package random

import (
	"math/bits"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// K is the odd multiplier of the mixing step, roughly (2^32 - 1) / pi.
	K uint32 = 0x517c_c1b7
	// L is the input mixed in by every extraction, roughly (2^32 - 1) / e.
	L uint32 = 0x5e2d_58d8
)

var (
	epochOnce sync.Once
	epoch     time.Time
)

// Hash mixes input into state and returns the new state.
// The mixing step is rotate_left(state, 5) XOR input, then a wrapping multiply by K.
//
// Parameters:
//   - state: the current 32-bit state
//   - input: the value to mix in
//
// Returns:
//   - uint32: the mixed state
func Hash(state, input uint32) uint32 {
	return (bits.RotateLeft32(state, 5) ^ input) * K
}

// Rng is a value-typed generator whose whole state is a single uint32.
// Copying an Rng forks it; the copy and the original produce identical sequences.
type Rng struct {
	seed uint32
}

// New creates an Rng seeded from the time elapsed since the first call to New in this process.
//
// Returns:
//   - Rng: a time-seeded generator
func New() Rng {
	epochOnce.Do(func() {
		epoch = time.Now()
	})
	return WithSeed(uint32(time.Since(epoch).Nanoseconds()))
}

// WithSeed creates an Rng with an explicit seed.
//
// Parameters:
//   - seed: the initial state
//
// Returns:
//   - Rng: the seeded generator
func WithSeed(seed uint32) Rng {
	return Rng{seed: seed}
}

// Seed returns the current state.
func (r Rng) Seed() uint32 {
	return r.seed
}

// Hash mixes input into the state in place and returns the receiver so calls can be chained.
//
// Parameters:
//   - input: the value to mix in
//
// Returns:
//   - *Rng: the receiver
func (r *Rng) Hash(input uint32) *Rng {
	r.seed = Hash(r.seed, input)
	return r
}

// Uint32 extracts a 32-bit value by mixing L into the state.
func (r *Rng) Uint32() uint32 {
	return r.Hash(L).seed
}

// Float32 draws a value in [0, 1] from the low 16 bits of a Uint32 draw.
func (r *Rng) Float32() float32 {
	return float32(uint16(r.Uint32())) / float32(^uint16(0))
}

// Vec2 draws two independent Float32 values, x first.
func (r *Rng) Vec2() mgl32.Vec2 {
	x := r.Float32()
	y := r.Float32()
	return mgl32.Vec2{x, y}
}
