package profiler

import (
	"runtime"
	"time"

	"github.com/Debaug/particle-dance/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// FrameStats describes the work of one frame.
type FrameStats struct {
	// Dispatches is the number of compute dispatches issued.
	Dispatches int
	// Points is the number of points simulated and drawn.
	Points int
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Every frame updates the Prometheus collectors; a summary is logged once per interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	now            func() time.Time

	registry   *prometheus.Registry
	frames     prometheus.Counter
	fps        prometheus.Gauge
	dispatches prometheus.Gauge
	points     prometheus.Gauge
	heap       *prometheus.GaugeVec
}

// ProfilerOption is a functional option for configuring a Profiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often the summary is logged and the rate gauges are refreshed.
//
// Parameters:
//   - d: the interval; non-positive values are ignored
//
// Returns:
//   - ProfilerOption: option function to apply
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces the wall clock, for deterministic frame timing.
//
// Parameters:
//   - now: the time source
//
// Returns:
//   - ProfilerOption: option function to apply
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler creates a new Profiler with its own Prometheus registry.
// Update interval defaults to 1 second.
//
// Parameters:
//   - opts: functional options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(opts ...ProfilerOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		registry:       prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastTime = p.now()

	factory := promauto.With(p.registry)
	p.frames = factory.NewCounter(prometheus.CounterOpts{
		Name: "particle_dance_frames_total",
		Help: "Frames rendered",
	})
	p.fps = factory.NewGauge(prometheus.GaugeOpts{
		Name: "particle_dance_fps",
		Help: "Frames per second over the last interval",
	})
	p.dispatches = factory.NewGauge(prometheus.GaugeOpts{
		Name: "particle_dance_dispatches_per_frame",
		Help: "Compute dispatches issued by the last frame",
	})
	p.points = factory.NewGauge(prometheus.GaugeOpts{
		Name: "particle_dance_points",
		Help: "Points simulated per frame",
	})
	p.heap = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "particle_dance_heap_bytes",
		Help: "Heap memory statistics",
	}, []string{"type"})
	return p
}

// Registry returns the registry holding the profiler's collectors.
func (p *Profiler) Registry() *prometheus.Registry {
	return p.registry
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Parameters:
//   - stats: the work done by the frame
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats FrameStats) bool {
	p.frameCount++
	p.frames.Inc()
	p.dispatches.Set(float64(stats.Dispatches))
	p.points.Set(float64(stats.Points))

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	p.fps.Set(fps)

	runtime.ReadMemStats(&p.memStats)
	p.heap.WithLabelValues("alloc").Set(float64(p.memStats.HeapAlloc))
	p.heap.WithLabelValues("sys").Set(float64(p.memStats.HeapSys))
	p.heap.WithLabelValues("inuse").Set(float64(p.memStats.HeapInuse))

	// TotalAlloc only grows, so its delta is the allocation churn since the last interval.
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPause, maxPause time.Duration
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		lastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	common.Logger().Info("frame stats",
		zap.Float64("fps", fps),
		zap.Int("dispatches", stats.Dispatches),
		zap.Int("points", stats.Points),
		zap.Float64("heapMB", float64(p.memStats.Alloc)/1024/1024),
		zap.Float64("allocRateMBps", allocRateMB),
		zap.Uint32("gc", gcCount),
		zap.Duration("lastPause", lastPause),
		zap.Duration("maxPause", maxPause),
		zap.Float64("sysMB", float64(p.memStats.Sys)/1024/1024),
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
