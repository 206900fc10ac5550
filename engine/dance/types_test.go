package dance

import (
	"math"
	"testing"
	"unsafe"

	"github.com/Debaug/particle-dance/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutsMatchShaders(t *testing.T) {
	assert.Equal(t, uintptr(8), unsafe.Sizeof(Point{}))
	assert.Equal(t, uintptr(32), unsafe.Sizeof(Transformation{}))
	assert.Equal(t, uintptr(80), unsafe.Sizeof(ComputedTransformation{}))

	sim, err := shader.LoadShader("sim", shader.ShaderTypeCompute, shaderFS, "shaders/sim.wgsl")
	require.NoError(t, err)
	render, err := shader.LoadShader("render", shader.ShaderTypeVertex, shaderFS, "shaders/render.wgsl")
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		size uintptr
	}{
		{"Point", unsafe.Sizeof(Point{})},
		{"Transformation", unsafe.Sizeof(Transformation{})},
		{"ComputedTransformation", unsafe.Sizeof(ComputedTransformation{})},
	} {
		size, _, ok := sim.StructLayout(tc.name)
		require.True(t, ok, tc.name)
		assert.Equal(t, uint64(tc.size), size, tc.name)
	}

	size, _, ok := render.StructLayout("ComputedTransformation")
	require.True(t, ok)
	assert.Equal(t, uint64(unsafe.Sizeof(ComputedTransformation{})), size)

	assert.Equal(t, [3]uint32{64, 1, 1}, sim.WorkgroupSize())
	assert.Equal(t, "simulate", sim.EntryPoint())
	require.Len(t, render.VertexLayouts(), 1)
	assert.Equal(t, PointSize, render.VertexLayouts()[0].ArrayStride)
}

func TestComputedTransformationFixesCenter(t *testing.T) {
	tr := Transformation{Center: mgl32.Vec2{0.3, -0.2}, Scale: 0.5, Angle: 1.1}
	ct := NewComputedTransformation(tr)
	assert.True(t, ct.Apply(tr.Center).ApproxEqualThreshold(tr.Center, 1e-6))
	assert.Equal(t, tr, ct.Transformation)
}

func TestComputedTransformationScalesDistances(t *testing.T) {
	tr := Transformation{Center: mgl32.Vec2{-0.4, 0.1}, Scale: 0.7, Angle: -2.3}
	ct := NewComputedTransformation(tr)
	for _, p := range []mgl32.Vec2{{1, 1}, {-1, 0.5}, {0, 0}, {0.25, -0.75}} {
		want := p.Sub(tr.Center).Len() * tr.Scale
		got := ct.Apply(p).Sub(tr.Center).Len()
		assert.InDelta(t, want, got, 1e-5)
	}
}

func TestComputedTransformationRotates(t *testing.T) {
	ct := NewComputedTransformation(Transformation{Scale: 1, Angle: math.Pi / 2})
	assert.True(t, ct.Apply(mgl32.Vec2{1, 0}).ApproxEqualThreshold(mgl32.Vec2{0, 1}, 1e-6))
}

func TestApplyMatchesMatrixProduct(t *testing.T) {
	ct := NewComputedTransformation(Transformation{Center: mgl32.Vec2{0.2, 0.6}, Scale: 0.4, Angle: 0.8})
	p := mgl32.Vec2{-0.3, 0.9}
	want := ct.Mat3().Mul3x1(mgl32.Vec3{p[0], p[1], 1}).Vec2()
	assert.True(t, ct.Apply(p).ApproxEqualThreshold(want, 1e-6))
	for c := range 3 {
		assert.Zero(t, ct.Matrix[c][3])
	}
}
