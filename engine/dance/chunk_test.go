package dance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanChunksFiveMillion(t *testing.T) {
	p := PlanChunks(5_000_000, 64, 65535)
	assert.Equal(t, uint32(4_194_240), p.ChunkLen)
	assert.Equal(t, uint32(1), p.FullChunks)
	assert.Equal(t, uint32(805_760), p.Remainder)
	assert.Zero(t, p.ChunkBytes()%256)

	ds := p.Dispatches()
	require.Len(t, ds, 2)
	assert.Equal(t, Dispatch{Index: 0, FirstPoint: 0, Len: 4_194_240, ByteOffset: 0, Workgroups: 65535}, ds[0])
	assert.Equal(t, Dispatch{
		Index:      1,
		FirstPoint: 4_194_240,
		Len:        805_760,
		ByteOffset: 4_194_240 * 8,
		Workgroups: 12_590,
		Remainder:  true,
	}, ds[1])
}

func TestPlanChunksTwoMillion(t *testing.T) {
	p := PlanChunks(2_000_000, 64, 65535)
	assert.Equal(t, uint32(0), p.FullChunks)
	assert.Equal(t, uint32(2_000_000), p.Remainder)

	ds := p.Dispatches()
	require.Len(t, ds, 1)
	assert.Equal(t, uint64(0), ds[0].ByteOffset)
	assert.Equal(t, uint32(31_250), ds[0].Workgroups)
}

func TestPlanChunksEmpty(t *testing.T) {
	p := PlanChunks(0, 64, 65535)
	assert.Zero(t, p.Len())
	assert.Empty(t, p.Dispatches())
}

func TestPlanChunksExactMultiple(t *testing.T) {
	p := PlanChunks(3*256, 64, 4)
	assert.Equal(t, uint32(3), p.FullChunks)
	assert.Zero(t, p.Remainder)
	assert.Len(t, p.Dispatches(), 3)
}

func TestPlanChunksRemainderNotMultipleOfWorkgroup(t *testing.T) {
	p := PlanChunks(100, 64, 65535)
	ds := p.Dispatches()
	require.Len(t, ds, 1)
	assert.Equal(t, uint32(2), ds[0].Workgroups)
}

func TestPlanChunksCoverEveryPointOnce(t *testing.T) {
	for _, tc := range []struct{ n, g, m uint32 }{
		{1, 64, 65535},
		{1000, 64, 4},
		{1024, 64, 4},
		{12345, 32, 7},
		{5_000_000, 64, 65535},
		{9_000_001, 256, 65535},
	} {
		p := PlanChunks(tc.n, tc.g, tc.m)
		assert.Equal(t, uint64(tc.n), uint64(p.FullChunks)*uint64(p.ChunkLen)+uint64(p.Remainder))

		var next uint32
		for i, d := range p.Dispatches() {
			assert.Equal(t, i, d.Index)
			assert.Equal(t, next, d.FirstPoint, "dispatches must be contiguous")
			assert.Equal(t, uint64(d.FirstPoint)*PointSize, d.ByteOffset)
			assert.LessOrEqual(t, d.Workgroups, tc.m)
			assert.GreaterOrEqual(t, uint64(d.Workgroups)*uint64(tc.g), uint64(d.Len))
			next += d.Len
		}
		assert.Equal(t, tc.n, next)
	}
}

func TestPlanChunksClampsZeroLimits(t *testing.T) {
	p := PlanChunks(10, 0, 0)
	assert.Equal(t, uint32(1), p.ChunkLen)
	assert.Equal(t, uint32(10), p.FullChunks)
}
