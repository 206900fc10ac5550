// Package dance animates a chaos-game iterated function system over millions of points.
//
// Every frame a TransformationGenerator produces a smoothly varying set of contracting affine maps,
// a Simulator maps each point through one of them on the compute device, and the point cloud is
// drawn as-is. Over many frames the cloud converges to the attractor of the current maps and
// follows it as the maps drift.
package dance

import (
	"github.com/Debaug/particle-dance/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Point is one particle. Its layout matches the WGSL struct Point (8 bytes).
type Point struct {
	Pos mgl32.Vec2
}

// Transformation rotates by Angle and scales by Scale about Center. Color tints the points
// the transformation selects. Its layout matches the WGSL struct Transformation (32 bytes).
type Transformation struct {
	Center mgl32.Vec2
	Scale  float32
	Angle  float32
	Color  mgl32.Vec4
}

// ComputedTransformation pairs a Transformation with the homogeneous matrix it implies, stored as
// three 16-byte columns like a WGSL mat3x3<f32>. Its layout matches the WGSL struct
// ComputedTransformation (80 bytes).
type ComputedTransformation struct {
	Transformation
	Matrix [3][4]float32
}

// NewComputedTransformation computes M = T(center) * R(angle) * S(scale) * T(-center) for t.
//
// Parameters:
//   - t: the transformation parameters
//
// Returns:
//   - ComputedTransformation: t with its matrix
func NewComputedTransformation(t Transformation) ComputedTransformation {
	m := mgl32.Translate2D(t.Center.X(), t.Center.Y()).
		Mul3(mgl32.HomogRotate2D(t.Angle)).
		Mul3(mgl32.Scale2D(t.Scale, t.Scale)).
		Mul3(mgl32.Translate2D(-t.Center.X(), -t.Center.Y()))
	return ComputedTransformation{
		Transformation: t,
		Matrix:         common.Mat3ToColumns(m),
	}
}

// Mat3 returns the matrix as an mgl32.Mat3.
func (c ComputedTransformation) Mat3() mgl32.Mat3 {
	return common.ColumnsToMat3(c.Matrix)
}

// Apply maps p through the matrix, as the compute kernel does.
func (c ComputedTransformation) Apply(p mgl32.Vec2) mgl32.Vec2 {
	m := &c.Matrix
	return mgl32.Vec2{
		m[0][0]*p[0] + m[1][0]*p[1] + m[2][0],
		m[0][1]*p[0] + m[1][1]*p[1] + m[2][1],
	}
}

// ComputeAll pairs every transformation with its matrix, preserving order.
func ComputeAll(ts []Transformation) []ComputedTransformation {
	out := make([]ComputedTransformation, len(ts))
	for i, t := range ts {
		out[i] = NewComputedTransformation(t)
	}
	return out
}
