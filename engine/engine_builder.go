package engine

import (
	"time"

	"github.com/Debaug/particle-dance/engine/profiler"
	"github.com/Debaug/particle-dance/engine/renderer"
	"github.com/Debaug/particle-dance/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithRenderer sets the renderer frames are drawn with.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithWindow sets the window whose message loop drives Run.
//
// Parameters:
//   - w: an open Window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithProfiler reports every frame to p.
//
// Parameters:
//   - p: the profiler, or nil to disable profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithFrameInterval sets the minimum wall time per windowed frame and the simulated time per
// headless frame. Values <= 0 keep the default of 10ms.
//
// Parameters:
//   - d: the frame interval
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameInterval(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		if d > 0 {
			e.frameInterval = d
		}
	}
}

// WithSubApps appends sub-apps during construction.
//
// Parameters:
//   - apps: the sub-apps, in update order
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSubApps(apps ...SubApp) EngineBuilderOption {
	return func(e *engine) {
		e.subApps = append(e.subApps, apps...)
	}
}
