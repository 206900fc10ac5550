package dance

import (
	"testing"

	"github.com/Debaug/particle-dance/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestSelectByPositionStaysInRange(t *testing.T) {
	counts := make([]int, 5)
	for _, p := range SeedPoints(17, 10_000, 2) {
		j := SelectByPosition(p.Pos, 5)
		assert.Less(t, j, uint32(5))
		counts[j]++
	}
	for i, c := range counts {
		assert.Greater(t, c, 1000, "transformation %d is rarely selected", i)
	}
	assert.Equal(t, SelectByPosition(mgl32.Vec2{0.1, 0.2}, 3), SelectByPosition(mgl32.Vec2{0.1, 0.2}, 3))
	assert.Less(t, SelectByPosition(mgl32.Vec2{1, 1}, MaxTransformations), uint32(MaxTransformations))
}

func TestSimulateKernelBoundsChecks(t *testing.T) {
	ts := ComputeAll([]Transformation{{Center: mgl32.Vec2{0.5, 0.5}, Scale: 0.5}})
	pts := []Point{{mgl32.Vec2{1, 1}}, {mgl32.Vec2{-1, -1}}, {mgl32.Vec2{0, 0}}}
	regions := map[int][]byte{
		bindingTransformations: common.SliceToBytes(ts),
		bindingPoints:          common.SliceToBytes(pts),
	}

	kernel := simulateKernel(SelectByPosition)
	kernel(regions, 0, 2)
	kernel(regions, 1, 2)
	kernel(regions, 7, 2)

	assert.True(t, pts[0].Pos.ApproxEqual(mgl32.Vec2{0.75, 0.75}))
	assert.True(t, pts[1].Pos.ApproxEqual(mgl32.Vec2{-0.25, -0.25}))
	assert.True(t, pts[2].Pos.ApproxEqual(mgl32.Vec2{0.25, 0.25}))
}

func TestSimulateKernelUsesSelector(t *testing.T) {
	ts := ComputeAll([]Transformation{
		{Center: mgl32.Vec2{0, 0}, Scale: 0},
		{Center: mgl32.Vec2{1, 1}, Scale: 0},
	})
	pts := []Point{{mgl32.Vec2{0.3, 0.3}}}
	regions := map[int][]byte{
		bindingTransformations: common.SliceToBytes(ts),
		bindingPoints:          common.SliceToBytes(pts),
	}
	simulateKernel(func(mgl32.Vec2, uint32) uint32 { return 1 })(regions, 0, 64)
	assert.True(t, pts[0].Pos.ApproxEqual(mgl32.Vec2{1, 1}))
}

func TestRenderVertexColorsBySelection(t *testing.T) {
	red, blue := mgl32.Vec4{1, 0, 0, 1}, mgl32.Vec4{0, 0, 1, 1}
	ts := ComputeAll([]Transformation{{Color: red}, {Color: blue}})
	p := []Point{{mgl32.Vec2{0.5, -0.5}}}

	vs := renderVertex(func(mgl32.Vec2, uint32) uint32 { return 1 })
	clip, color := vs(common.SliceToBytes(p), map[int][]byte{bindingTransformations: common.SliceToBytes(ts)})
	assert.Equal(t, p[0].Pos, clip)
	assert.Equal(t, blue, color)

	_, color = vs(common.SliceToBytes(p), map[int][]byte{})
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, color)
}
