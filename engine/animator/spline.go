// Package animator turns integer-indexed control values into continuous animation curves.
//
// Knots are never stored. A KnotFunc regenerates any knot on demand from its index, so a
// curve is infinite, stateless and can be sampled at any time (negative or far in the future)
// without accumulated error.
package animator

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Interpolable is the set of vector-space values a curve can be built from.
// mgl32.Vec2, mgl32.Vec3, mgl32.Vec4 and Scalar all satisfy it.
type Interpolable[T any] interface {
	Add(T) T
	Sub(T) T
	Mul(float32) T
}

// Scalar is a float32 that satisfies Interpolable.
type Scalar float32

func (s Scalar) Add(o Scalar) Scalar  { return s + o }
func (s Scalar) Sub(o Scalar) Scalar  { return s - o }
func (s Scalar) Mul(c float32) Scalar { return s * Scalar(c) }
func (s Scalar) Float32() float32     { return float32(s) }

var (
	_ Interpolable[Scalar]     = Scalar(0)
	_ Interpolable[mgl32.Vec2] = mgl32.Vec2{}
	_ Interpolable[mgl32.Vec4] = mgl32.Vec4{}
)

// KnotFunc produces the control value for a knot index.
type KnotFunc[T any] func(index int32) T

// Cubic evaluates a Catmull-Rom cubic Hermite spline with unit-spaced knots at time t.
//
// With i = floor(t) the knots f(i-1), f(i), f(i+1), f(i+2) are sampled, the tangents at i and i+1
// are the central differences (f(i+1)-f(i-1))/2 and (f(i+2)-f(i))/2, and the Hermite basis is
// evaluated at u = t - i. At integer t the result is exactly f(t).
//
// Reference: https://en.wikipedia.org/wiki/Cubic_Hermite_spline#Catmull%E2%80%93Rom_spline
//
// Parameters:
//   - f: the knot generator
//   - t: the time at which to sample the curve
//
// Returns:
//   - T: the interpolated value
func Cubic[T Interpolable[T]](f KnotFunc[T], t float32) T {
	fi := float32(math.Floor(float64(t)))
	i := int32(fi)

	aa := f(i - 1)
	a := f(i)
	b := f(i + 1)
	bb := f(i + 2)

	u := t - fi
	if u == 0 {
		return a
	}

	da := b.Sub(aa).Mul(0.5)
	db := bb.Sub(a).Mul(0.5)

	u2 := u * u
	u3 := u2 * u

	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2

	return a.Mul(h00).Add(da.Mul(h10)).Add(b.Mul(h01)).Add(db.Mul(h11))
}
