package dance

import (
	"math"
	"testing"
	"time"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/renderer"
	"github.com/Debaug/particle-dance/engine/renderer/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallLimits makes a chunk 4 workgroups of 64 points (2048 bytes) so a few thousand points span
// several dispatches.
var smallLimits = renderer.Limits{
	MaxComputeWorkgroupsPerDimension: 4,
	MinStorageBufferOffsetAlignment:  256,
	MaxStorageBufferBindingSize:      1 << 20,
	MaxBufferSize:                    1 << 24,
}

func newTestRenderer(t *testing.T, limits renderer.Limits) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeCPU,
		renderer.WithWorkers(3),
		renderer.WithLimits(limits),
		renderer.WithFrameSize(32, 32),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func testConfig(n int) Config {
	seed := uint32(2024)
	cfg := DefaultConfig()
	cfg.NPoints = n
	cfg.Seed = &seed
	cfg.Workers = 2
	return cfg
}

func hostPoints(d *Dance) []Point {
	return common.BytesToSlice[Point](d.PointBuffer().Raw().(*buffer.Host).Bytes())
}

func TestSeedPointsIgnoresWorkerCount(t *testing.T) {
	n := 3*SeedBatchSize + 17
	a := SeedPoints(9, n, 1)
	b := SeedPoints(9, n, 8)
	require.Len(t, a, n)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, SeedPoints(10, n, 4))
	for _, p := range a {
		assert.GreaterOrEqual(t, p.Pos.X(), float32(-1))
		assert.LessOrEqual(t, p.Pos.X(), float32(1))
		assert.GreaterOrEqual(t, p.Pos.Y(), float32(-1))
		assert.LessOrEqual(t, p.Pos.Y(), float32(1))
	}
	assert.Empty(t, SeedPoints(9, 0, 4))
}

func TestNewDanceRejectsBadPointCounts(t *testing.T) {
	r := newTestRenderer(t, smallLimits)
	for _, n := range []int{0, -5, 1 << 22} {
		_, err := NewDance(r, testConfig(n))
		assert.ErrorIs(t, err, ErrInvalidPointCount, "n=%d", n)
	}
}

func TestNewDanceRejectsNoColors(t *testing.T) {
	r := newTestRenderer(t, smallLimits)
	cfg := testConfig(100)
	cfg.TransformationColors = nil
	_, err := NewDance(r, cfg)
	assert.ErrorIs(t, err, ErrNoTransformations)
}

func TestNewDanceRejectsUnalignedChunks(t *testing.T) {
	limits := smallLimits
	limits.MinStorageBufferOffsetAlignment = 4096
	r := newTestRenderer(t, limits)

	_, err := NewDance(r, testConfig(1000))
	assert.ErrorIs(t, err, ErrUnalignedChunk)

	// A single dispatch never uses a non-zero offset.
	d, err := NewDance(newTestRenderer(t, limits), testConfig(200))
	require.NoError(t, err)
	d.Release()
}

func TestStepMatchesHostReference(t *testing.T) {
	const n = 1000
	r := newTestRenderer(t, smallLimits)
	d, err := NewDance(r, testConfig(n))
	require.NoError(t, err)
	t.Cleanup(d.Release)

	plan := d.simulator.Plan()
	assert.Equal(t, uint32(256), plan.ChunkLen)
	assert.Equal(t, uint32(3), plan.FullChunks)
	assert.Equal(t, uint32(232), plan.Remainder)
	assert.Equal(t, 4, d.DispatchesPerStep())
	assert.Equal(t, n, d.Points())

	want := append([]Point(nil), hostPoints(d)...)
	for step := range 3 {
		elapsed := time.Duration(step) * 500 * time.Millisecond
		ts := d.Generator().GenerateComputed(float32(elapsed.Seconds()) * d.Generator().TimeScale())
		for i := range want {
			j := SelectByPosition(want[i].Pos, uint32(len(ts)))
			want[i].Pos = ts[j].Apply(want[i].Pos)
		}

		require.NoError(t, d.Update(elapsed))
		assert.Equal(t, want, hostPoints(d), "step %d", step)
	}
}

func TestRepeatedStepsStayFinite(t *testing.T) {
	r := newTestRenderer(t, smallLimits)
	d, err := NewDance(r, testConfig(2048))
	require.NoError(t, err)
	t.Cleanup(d.Release)

	before := append([]Point(nil), hostPoints(d)...)
	for i := range 20 {
		require.NoError(t, d.Update(time.Duration(i)*10*time.Millisecond))
	}
	after := hostPoints(d)
	assert.NotEqual(t, before, after)
	for _, p := range after {
		assert.False(t, math.IsNaN(float64(p.Pos.X())) || math.IsInf(float64(p.Pos.X()), 0))
		assert.False(t, math.IsNaN(float64(p.Pos.Y())) || math.IsInf(float64(p.Pos.Y()), 0))
	}
}

func TestRenderDrawsPoints(t *testing.T) {
	r := newTestRenderer(t, smallLimits)
	d, err := NewDance(r, testConfig(4096))
	require.NoError(t, err)
	t.Cleanup(d.Release)

	assert.ErrorIs(t, d.Render(), renderer.ErrNoFrame)

	require.NoError(t, d.Update(0))
	require.NoError(t, r.BeginFrame())
	require.NoError(t, d.Render())
	require.NoError(t, r.EndFrame())

	img, err := r.Capture()
	require.NoError(t, err)

	lit := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 || img.Pix[i+1] != 0 || img.Pix[i+2] != 0 {
			lit++
		}
	}
	assert.Greater(t, lit, 0)
}

func TestAdditiveRenderAccumulatesOverlaps(t *testing.T) {
	brightness := func(additive bool) []int {
		r := newTestRenderer(t, smallLimits)
		cfg := testConfig(4096)
		cfg.Additive = additive
		d, err := NewDance(r, cfg)
		require.NoError(t, err)
		t.Cleanup(d.Release)

		require.NoError(t, d.Update(0))
		require.NoError(t, r.BeginFrame())
		require.NoError(t, d.Render())
		require.NoError(t, r.EndFrame())
		img, err := r.Capture()
		require.NoError(t, err)

		out := make([]int, len(img.Pix)/4)
		for i := range out {
			out[i] = int(img.Pix[4*i]) + int(img.Pix[4*i+1]) + int(img.Pix[4*i+2])
		}
		return out
	}

	replaced := brightness(false)
	added := brightness(true)
	var replacedSum, addedSum int
	for i := range replaced {
		assert.GreaterOrEqual(t, added[i], replaced[i], "pixel %d", i)
		replacedSum += replaced[i]
		addedSum += added[i]
	}
	// 4096 points on a 32x32 frame must overlap somewhere.
	assert.Greater(t, addedSum, replacedSum)
}

func TestSimulatorWithoutPointsDispatchesNothing(t *testing.T) {
	plan := PlanChunks(0, 64, 4)
	s := &Simulator{plan: plan, dispatches: plan.Dispatches()}
	assert.NoError(t, s.Step())
}
