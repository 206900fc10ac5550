package profiler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Debaug/particle-dance/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestTickLogsOncePerInterval(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	common.SetLogger(zap.New(core))
	t.Cleanup(func() { common.SetLogger(nil) })

	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second))

	for range 9 {
		clock.t = clock.t.Add(100 * time.Millisecond)
		assert.False(t, p.Tick(FrameStats{Dispatches: 2, Points: 1000}))
	}
	clock.t = clock.t.Add(100 * time.Millisecond)
	assert.True(t, p.Tick(FrameStats{Dispatches: 2, Points: 1000}))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "frame stats", entry.Message)
	assert.InDelta(t, 10.0, entry.ContextMap()["fps"], 1e-9)

	metrics := scrape(t, p)
	assert.Contains(t, metrics, "particle_dance_frames_total 10")
	assert.Contains(t, metrics, "particle_dance_fps 10")
	assert.Contains(t, metrics, "particle_dance_dispatches_per_frame 2")
	assert.Contains(t, metrics, "particle_dance_points 1000")
}

func scrape(t *testing.T, p *Profiler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	NewServer("", p.Registry()).Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestServerExposesRegistry(t *testing.T) {
	p := NewProfiler()
	p.Tick(FrameStats{Dispatches: 1, Points: 64})

	srv := httptest.NewServer(NewServer("", p.Registry()).Handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "particle_dance_frames_total 1")
	assert.Contains(t, string(body), "particle_dance_points 64")
}
