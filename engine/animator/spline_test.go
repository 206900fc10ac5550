package animator

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Debaug/particle-dance/engine/random"
)

func hashedScalar(seed uint32) KnotFunc[Scalar] {
	return func(i int32) Scalar {
		r := random.WithSeed(seed)
		return Scalar(r.Hash(uint32(i)).Float32())
	}
}

func TestCubicPassesThroughKnots(t *testing.T) {
	f := hashedScalar(17)
	for k := int32(-20); k <= 20; k++ {
		assert.Equal(t, f(k), Cubic(f, float32(k)), "knot %d", k)
	}
}

func TestCubicPassesThroughVectorKnots(t *testing.T) {
	f := func(i int32) mgl32.Vec2 {
		r := random.WithSeed(3)
		return r.Hash(uint32(i)).Vec2()
	}
	for k := int32(-5); k <= 5; k++ {
		assert.Equal(t, f(k), Cubic(f, float32(k)))
	}
}

func TestCubicReproducesLinearFunctions(t *testing.T) {
	// Catmull-Rom reproduces polynomials up to degree one exactly.
	f := func(i int32) Scalar { return Scalar(2*float32(i) + 1) }
	for _, x := range []float32{-3.75, -1.5, -0.25, 0, 0.3, 1.5, 7.9} {
		assert.InDelta(t, 2*x+1, Cubic(f, x).Float32(), 1e-4, "t=%v", x)
	}
}

func TestCubicIsContinuousAcrossZero(t *testing.T) {
	f := hashedScalar(5)
	const eps = 1e-4
	left := Cubic(f, -eps).Float32()
	right := Cubic(f, eps).Float32()
	assert.InDelta(t, float64(left), float64(right), 1e-2)
}

func TestCubicIsContinuousAcrossKnots(t *testing.T) {
	f := hashedScalar(11)
	for k := int32(-4); k <= 4; k++ {
		at := Cubic(f, float32(k)).Float32()
		before := Cubic(f, float32(k)-1e-3).Float32()
		after := Cubic(f, float32(k)+1e-3).Float32()
		assert.InDelta(t, float64(at), float64(before), 1e-2)
		assert.InDelta(t, float64(at), float64(after), 1e-2)
	}
}

func TestCubicIsDeterministic(t *testing.T) {
	f := hashedScalar(23)
	for _, x := range []float32{-100.5, 0.1, 42.42, 1e4 + 0.5} {
		require.Equal(t, Cubic(f, x), Cubic(f, x))
	}
}

func TestCubicStaysNearKnotRange(t *testing.T) {
	// Catmull-Rom can overshoot, but for knots in [0,1] never beyond [-0.25, 1.25].
	f := hashedScalar(29)
	for x := float32(-10); x < 10; x += 0.037 {
		v := Cubic(f, x).Float32()
		require.False(t, math.IsNaN(float64(v)))
		require.GreaterOrEqual(t, v, float32(-0.25))
		require.LessOrEqual(t, v, float32(1.25))
	}
}

func TestTrackScalesTime(t *testing.T) {
	f := hashedScalar(31)
	tr := NewTrack(f, 0.5)
	assert.Equal(t, f(1), tr.At(2))
	assert.Equal(t, Cubic(f, 0.25), tr.At(0.5))
	assert.Equal(t, float32(1), NewTrack(f, 0).TimeScale())
}
