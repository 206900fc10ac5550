package renderer

import (
	"github.com/Debaug/particle-dance/engine/window"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithWindow sets the window whose surface the wgpu backend presents to. Its size becomes the frame size.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - RendererBuilderOption: a function that applies the window option to a renderer
func WithWindow(w window.Window) RendererBuilderOption {
	return func(r *renderer) {
		r.window = w
	}
}

// WithFrameSize sets the size of the in-memory frame of headless backends. Defaults to 800x800.
//
// Parameters:
//   - width: the frame width in pixels
//   - height: the frame height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the frame size option to a renderer
func WithFrameSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.frameWidth = width
		r.frameHeight = height
	}
}

// WithWorkers sets how many workers the CPU backend runs workgroups on. Zero means one per CPU.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker count option to a renderer
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.workers = n
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithLimits overrides the limits the CPU backend reports. Other backends report the device's own.
//
// Parameters:
//   - limits: the limits to report
//
// Returns:
//   - RendererBuilderOption: a function that applies the limits option to a renderer
func WithLimits(limits Limits) RendererBuilderOption {
	return func(r *renderer) {
		r.limits = &limits
	}
}
