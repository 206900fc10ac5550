package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/profiler"
	"github.com/Debaug/particle-dance/engine/renderer"
	"github.com/Debaug/particle-dance/engine/window"
	"go.uber.org/zap"
)

// engine implements the Engine interface.
// Every frame runs on the calling goroutine: update every sub-app, then draw every sub-app.
type engine struct {
	window   window.Window
	renderer renderer.Renderer

	profiler *profiler.Profiler

	subApps []SubApp

	// frameInterval is the minimum wall time per windowed frame and the simulated time per headless frame.
	frameInterval time.Duration
	frames        uint64
	last          time.Duration
	start         time.Time

	quit    bool
	lastErr error
}

// Engine drives the frame loop of a set of sub-apps on one renderer.
type Engine interface {
	// Renderer returns the renderer frames are drawn with.
	Renderer() renderer.Renderer

	// Window returns the window, or nil when running headless.
	Window() window.Window

	// AddSubApp appends a sub-app. Sub-apps update and draw in the order they were added.
	//
	// Parameters:
	//   - app: the sub-app to add
	AddSubApp(app SubApp)

	// Run processes window messages and renders one frame per iteration until the window closes,
	// Quit is called or a frame fails.
	//
	// Returns:
	//   - error: the error that stopped the loop, or nil
	Run() error

	// RunFrames renders n frames without a window. Frame k sees Elapsed = k * frame interval,
	// so headless output depends only on the sub-apps' seeds.
	//
	// Parameters:
	//   - n: the number of frames
	//
	// Returns:
	//   - error: the first frame error, or nil
	RunFrames(n int) error

	// Frames returns the number of frames rendered so far.
	Frames() uint64

	// Quit stops Run after the current frame.
	Quit()
}

// NewEngine creates an Engine. WithRenderer is required.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if no renderer was given
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		frameInterval: 10 * time.Millisecond,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.renderer == nil {
		return nil, errors.New("engine: a renderer is required")
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.renderer.Resize(width, height)
		})
	}
	return e, nil
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) AddSubApp(app SubApp) {
	e.subApps = append(e.subApps, app)
}

func (e *engine) Frames() uint64 {
	return e.frames
}

func (e *engine) Quit() {
	e.quit = true
}

func (e *engine) Run() error {
	if e.window == nil {
		return errors.New("engine: Run needs a window, use RunFrames when headless")
	}
	e.start = time.Now()
	e.window.SetUpdateCallback(func() {
		if e.quit {
			_ = e.window.Close()
			return
		}
		frameStart := time.Now()
		if err := e.frame(time.Since(e.start)); err != nil {
			e.lastErr = err
			e.quit = true
			return
		}
		e.renderer.Present()
		if remaining := e.frameInterval - time.Since(frameStart); remaining > 0 {
			time.Sleep(remaining)
		}
	})
	e.window.ProcessMessages()
	return e.lastErr
}

func (e *engine) RunFrames(n int) error {
	for range n {
		if e.quit {
			break
		}
		if err := e.frame(time.Duration(e.frames) * e.frameInterval); err != nil {
			return err
		}
	}
	return nil
}

// frame updates and draws every sub-app. Panics raised by a sub-app are logged and returned as errors.
func (e *engine) frame(elapsed time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("frame panicked", zap.Uint64("frame", e.frames), zap.Any("panic", r))
			err = fmt.Errorf("frame %d panicked: %v", e.frames, r)
		}
	}()

	t := Time{Elapsed: elapsed, Delta: elapsed - e.last, Frame: e.frames}
	stats := profiler.FrameStats{}

	for _, app := range e.subApps {
		switch a := app.(type) {
		case danceApp:
			if err := a.dance.Update(t.Elapsed); err != nil {
				return fmt.Errorf("frame %d: %w", t.Frame, err)
			}
			stats.Dispatches += a.dance.DispatchesPerStep()
			stats.Points += a.dance.Points()
		case *LogSubApp:
			a.update(t)
		}
	}

	if err := e.renderer.BeginFrame(); err != nil {
		return fmt.Errorf("frame %d: %w", t.Frame, err)
	}
	for _, app := range e.subApps {
		if a, ok := app.(danceApp); ok {
			if err := a.dance.Render(); err != nil {
				return fmt.Errorf("frame %d: %w", t.Frame, err)
			}
		}
	}
	if err := e.renderer.EndFrame(); err != nil {
		return fmt.Errorf("frame %d: %w", t.Frame, err)
	}

	e.last = elapsed
	e.frames++
	if e.profiler != nil {
		e.profiler.Tick(stats)
	}
	return nil
}
