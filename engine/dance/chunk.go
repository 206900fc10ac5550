package dance

import "unsafe"

// PointSize is the size of a Point in bytes.
const PointSize = uint64(unsafe.Sizeof(Point{}))

// ChunkPlan splits a point buffer into dispatches that each fit the device's workgroup limit.
// FullChunks*ChunkLen + Remainder == Points always holds.
type ChunkPlan struct {
	Points        uint32
	WorkgroupSize uint32
	ChunkLen      uint32
	FullChunks    uint32
	Remainder     uint32
}

// Dispatch is one compute dispatch over a contiguous range of points.
type Dispatch struct {
	Index      int
	FirstPoint uint32
	Len        uint32
	ByteOffset uint64
	Workgroups uint32
	// Remainder is true for the trailing dispatch shorter than a full chunk.
	Remainder bool
}

// PlanChunks computes how n points are covered by dispatches of at most m workgroups of g
// invocations each. A zero g or m is treated as 1.
//
// Parameters:
//   - n: the number of points
//   - g: the compute shader's workgroup size
//   - m: the maximum number of workgroups per dispatch
//
// Returns:
//   - ChunkPlan: the full chunk count and the remainder
func PlanChunks(n, g, m uint32) ChunkPlan {
	g, m = max(g, 1), max(m, 1)
	chunk := uint64(g) * uint64(m)
	if chunk > uint64(^uint32(0)) {
		chunk = uint64(^uint32(0)) / uint64(g) * uint64(g)
	}
	return ChunkPlan{
		Points:        n,
		WorkgroupSize: g,
		ChunkLen:      uint32(chunk),
		FullChunks:    uint32(uint64(n) / chunk),
		Remainder:     uint32(uint64(n) % chunk),
	}
}

// ChunkBytes returns the byte size of a full chunk of points.
func (p ChunkPlan) ChunkBytes() uint64 {
	return uint64(p.ChunkLen) * PointSize
}

// Len returns the number of dispatches the plan issues.
func (p ChunkPlan) Len() int {
	n := int(p.FullChunks)
	if p.Remainder > 0 {
		n++
	}
	return n
}

// Dispatches lists the plan's dispatches in buffer order: every full chunk, then the remainder.
// The ranges are disjoint and together cover every point exactly once.
func (p ChunkPlan) Dispatches() []Dispatch {
	out := make([]Dispatch, 0, p.Len())
	for k := range p.FullChunks {
		first := k * p.ChunkLen
		out = append(out, Dispatch{
			Index:      int(k),
			FirstPoint: first,
			Len:        p.ChunkLen,
			ByteOffset: uint64(first) * PointSize,
			Workgroups: p.workgroups(p.ChunkLen),
		})
	}
	if p.Remainder > 0 {
		first := p.FullChunks * p.ChunkLen
		out = append(out, Dispatch{
			Index:      int(p.FullChunks),
			FirstPoint: first,
			Len:        p.Remainder,
			ByteOffset: uint64(first) * PointSize,
			Workgroups: p.workgroups(p.Remainder),
			Remainder:  true,
		})
	}
	return out
}

func (p ChunkPlan) workgroups(points uint32) uint32 {
	return uint32((uint64(points) + uint64(p.WorkgroupSize) - 1) / uint64(p.WorkgroupSize))
}
