package engine

import (
	"testing"
	"time"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/dance"
	"github.com/Debaug/particle-dance/engine/profiler"
	"github.com/Debaug/particle-dance/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newHeadless(t *testing.T, opts ...EngineBuilderOption) (Engine, *dance.Dance) {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeCPU, renderer.WithFrameSize(48, 48), renderer.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(r.Release)

	seed := uint32(77)
	cfg := dance.DefaultConfig()
	cfg.NPoints = 5000
	cfg.Seed = &seed
	d, err := dance.NewDance(r, cfg)
	require.NoError(t, err)
	t.Cleanup(d.Release)

	e, err := NewEngine(append([]EngineBuilderOption{WithRenderer(r), WithSubApps(Dance(d))}, opts...)...)
	require.NoError(t, err)
	return e, d
}

func TestNewEngineNeedsRenderer(t *testing.T) {
	_, err := NewEngine()
	assert.Error(t, err)
}

func TestRunNeedsWindow(t *testing.T) {
	e, _ := newHeadless(t)
	assert.Error(t, e.Run())
	assert.Nil(t, e.Window())
}

func TestRunFramesRendersAndProfiles(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	common.SetLogger(zap.New(core))
	t.Cleanup(func() { common.SetLogger(nil) })

	p := profiler.NewProfiler(profiler.WithInterval(time.Hour))
	e, _ := newHeadless(t, WithProfiler(p), WithFrameInterval(20*time.Millisecond))
	e.AddSubApp(NewLogSubApp(2))

	require.NoError(t, e.RunFrames(5))
	assert.Equal(t, uint64(5), e.Frames())

	frames := logs.FilterMessage("frame").All()
	require.Len(t, frames, 3)
	assert.Equal(t, uint64(4), frames[2].ContextMap()["frame"])
	assert.Equal(t, 80*time.Millisecond, frames[2].ContextMap()["elapsed"])

	img, err := e.Renderer().Capture()
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
}

func TestHeadlessRunsAreReproducible(t *testing.T) {
	capture := func() []byte {
		e, _ := newHeadless(t)
		require.NoError(t, e.RunFrames(4))
		img, err := e.Renderer().Capture()
		require.NoError(t, err)
		return img.Pix
	}
	assert.Equal(t, capture(), capture())
}

func TestQuitStopsRunFrames(t *testing.T) {
	e, _ := newHeadless(t)
	e.Quit()
	require.NoError(t, e.RunFrames(3))
	assert.Zero(t, e.Frames())
}
