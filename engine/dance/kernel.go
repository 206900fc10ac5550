package dance

import (
	"math"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/random"
	"github.com/Debaug/particle-dance/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	bindingTransformations = 0
	bindingPoints          = 1
)

// Selector picks which of n transformations a point at pos is mapped through next.
// It must return a value below n.
type Selector func(pos mgl32.Vec2, n uint32) uint32

// SelectByPosition hashes the bit patterns of pos.x and pos.y and scales the upper half of the
// hash onto [0, n). The compute and render shaders implement the same function, so for n below
// MaxTransformations the host and device choose identically.
//
// Parameters:
//   - pos: the point's position
//   - n: the number of transformations
//
// Returns:
//   - uint32: the selected index
func SelectByPosition(pos mgl32.Vec2, n uint32) uint32 {
	h := random.Hash(random.Hash(0, math.Float32bits(pos[0])), math.Float32bits(pos[1]))
	return ((h >> 16) * n) >> 16
}

// simulateKernel maps every point of a workgroup through its selected transformation.
// Invocations past the end of the bound points region do nothing.
func simulateKernel(selector Selector) pipeline.HostKernel {
	return func(regions map[int][]byte, workgroupID, workgroupSize uint32) {
		ts := common.BytesToSlice[ComputedTransformation](regions[bindingTransformations])
		pts := common.BytesToSlice[Point](regions[bindingPoints])
		n := uint32(len(ts))
		if n == 0 {
			return
		}
		first := uint64(workgroupID) * uint64(workgroupSize)
		for i := first; i < first+uint64(workgroupSize) && i < uint64(len(pts)); i++ {
			p := &pts[i]
			p.Pos = ts[selector(p.Pos, n)%n].Apply(p.Pos)
		}
	}
}

// renderVertex places a point at its position and colors it with the transformation it will be
// mapped through next.
func renderVertex(selector Selector) pipeline.HostVertexShader {
	white := mgl32.Vec4{1, 1, 1, 1}
	return func(vertex []byte, regions map[int][]byte) (mgl32.Vec2, mgl32.Vec4) {
		pos := common.BytesToSlice[Point](vertex)[0].Pos
		ts := common.BytesToSlice[ComputedTransformation](regions[bindingTransformations])
		n := uint32(len(ts))
		if n == 0 {
			return pos, white
		}
		return pos, ts[selector(pos, n)%n].Color
	}
}
