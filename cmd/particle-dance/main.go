// Command particle-dance animates a chaos-game fractal over millions of points.
//
// With a GPU it opens a window and runs until Escape is pressed. With -headless it renders a fixed
// number of frames on the CPU and writes the last one as a PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"math"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine"
	"github.com/Debaug/particle-dance/engine/dance"
	"github.com/Debaug/particle-dance/engine/profiler"
	"github.com/Debaug/particle-dance/engine/renderer"
	"github.com/Debaug/particle-dance/engine/window"
	"go.uber.org/zap"
)

// GLFW and most windowing systems must be driven from the process's main thread.
func init() {
	runtime.LockOSThread()
}

type options struct {
	points      int
	backend     string
	headless    bool
	frames      int
	out         string
	seed        int64
	size        int
	timeScale   float64
	workers     int
	interval    time.Duration
	metricsAddr string
	software    bool
	uncapped    bool
	verbose     bool
	additive    bool
}

// errSeedRange is returned for seeds that do not fit the 32-bit generator seed.
var errSeedRange = errors.New("seed out of range [0, 4294967295]")

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.IntVar(&o.points, "points", dance.DefaultPointCount, "number of particles")
	fs.StringVar(&o.backend, "backend", "", "renderer backend: wgpu or cpu (default wgpu, cpu when -headless)")
	fs.BoolVar(&o.headless, "headless", false, "render without a window and write the last frame to -out")
	fs.IntVar(&o.frames, "frames", 200, "frames to render when headless")
	fs.StringVar(&o.out, "out", "", "PNG path for the last headless frame (default particle-dance.png)")
	fs.Int64Var(&o.seed, "seed", -1, "seed for points and transformations; negative seeds from the clock")
	fs.IntVar(&o.size, "size", 1080, "window or image size in pixels")
	fs.Float64Var(&o.timeScale, "time-scale", float64(dance.DefaultTimeScale), "animation speed in spline knots per second")
	fs.IntVar(&o.workers, "workers", 0, "cpu workers (0 = one per CPU)")
	fs.DurationVar(&o.interval, "interval", 10*time.Millisecond, "frame interval")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&o.software, "software", false, "force the fallback wgpu adapter")
	fs.BoolVar(&o.uncapped, "uncapped", false, "disable vsync")
	fs.BoolVar(&o.verbose, "verbose", false, "log per-frame details")
	fs.BoolVar(&o.additive, "additive", false, "accumulate overlapping points instead of overwriting them")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.seed > math.MaxUint32 {
		return o, fmt.Errorf("%w: got %d", errSeedRange, o.seed)
	}
	return o, nil
}

// danceSeed returns the fixed seed, or nil when the clock should seed the dance.
func (o options) danceSeed() *uint32 {
	if o.seed < 0 {
		return nil
	}
	seed := uint32(o.seed)
	return &seed
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "particle-dance: %v\n", err)
		os.Exit(2)
	}

	logConfig := zap.NewProductionConfig()
	if o.verbose {
		logConfig = zap.NewDevelopmentConfig()
	}
	logger, err := logConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	common.SetLogger(logger)

	if err := run(o); err != nil {
		logger.Error("particle-dance failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(o options) error {
	logger := common.Logger()

	backendName := common.Coalesce(o.backend, "wgpu")
	if o.headless {
		backendName = common.Coalesce(o.backend, "cpu")
	}
	backendType, err := renderer.ParseBackendType(backendName)
	if err != nil {
		return err
	}

	rendererOpts := []renderer.RendererBuilderOption{
		renderer.WithWorkers(o.workers),
		renderer.WithFrameSize(o.size, o.size),
		renderer.WithForceSoftwareRenderer(o.software),
	}
	if o.uncapped {
		rendererOpts = append(rendererOpts, renderer.WithPresentMode(renderer.PresentModeUncapped))
	}

	var win window.Window
	if !o.headless {
		if backendType != renderer.BackendTypeWGPU {
			return fmt.Errorf("the %s backend can only run with -headless", backendType)
		}
		win = window.NewWindow(window.WithTitle("particle dance"), window.WithSize(o.size, o.size))
		defer func() { _ = win.Close() }()
		rendererOpts = append(rendererOpts, renderer.WithWindow(win))
	}

	r, err := renderer.NewRenderer(backendType, rendererOpts...)
	if err != nil {
		return err
	}
	defer r.Release()

	cfg := dance.DefaultConfig()
	cfg.NPoints = o.points
	cfg.TimeScale = float32(o.timeScale)
	cfg.Workers = o.workers
	cfg.Seed = o.danceSeed()
	cfg.Additive = o.additive
	d, err := dance.NewDance(r, cfg)
	if err != nil {
		return err
	}
	defer d.Release()

	prof := profiler.NewProfiler()
	if o.metricsAddr != "" {
		srv := profiler.NewServer(o.metricsAddr, prof.Registry())
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		logger.Info("serving metrics", zap.String("addr", o.metricsAddr))
	}

	engineOpts := []engine.EngineBuilderOption{
		engine.WithRenderer(r),
		engine.WithProfiler(prof),
		engine.WithFrameInterval(o.interval),
		engine.WithSubApps(engine.NewLogSubApp(100), engine.Dance(d)),
	}
	if win != nil {
		engineOpts = append(engineOpts, engine.WithWindow(win))
	}
	e, err := engine.NewEngine(engineOpts...)
	if err != nil {
		return err
	}

	if !o.headless {
		return e.Run()
	}

	if err := e.RunFrames(o.frames); err != nil {
		return err
	}
	return writeFrame(r, common.Coalesce(o.out, "particle-dance.png"))
}

func writeFrame(r renderer.Renderer, path string) error {
	img, err := r.Capture()
	if err != nil {
		return fmt.Errorf("failed to capture frame: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	common.Logger().Info("frame written", zap.String("path", path))
	return nil
}
