package dance

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/random"
	"github.com/Debaug/particle-dance/engine/renderer"
	"github.com/Debaug/particle-dance/engine/renderer/bind_group_provider"
	"github.com/Debaug/particle-dance/engine/renderer/buffer"
	"github.com/Debaug/particle-dance/engine/renderer/pipeline"
	"github.com/Debaug/particle-dance/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ErrInvalidPointCount is returned when the point count is not positive or the point buffer would
// not fit on the device.
var ErrInvalidPointCount = errors.New("invalid point count")

// DefaultPointCount is the number of points used when Config.NPoints is zero.
const DefaultPointCount = 2_000_000

// Config holds the construction-time parameters of a Dance.
type Config struct {
	// NPoints is the number of particles.
	NPoints int
	// TransformationColors holds one color per transformation.
	TransformationColors []mgl32.Vec4
	// Seed makes points and transformations reproducible. Nil seeds from the clock.
	Seed *uint32
	// TimeScale is the number of spline knots per second. Zero uses DefaultTimeScale.
	TimeScale float32
	// Workers bounds the goroutines seeding the points. Zero uses one per CPU.
	Workers int
	// Selector overrides the host kernel's selection policy.
	Selector Selector
	// Additive accumulates overlapping points instead of drawing the last one on top.
	Additive bool
}

// DefaultConfig returns two million points animated by the default colors.
func DefaultConfig() Config {
	return Config{
		NPoints:              DefaultPointCount,
		TransformationColors: DefaultTransformationColors(),
		TimeScale:            DefaultTimeScale,
	}
}

// Dance owns the point and transformation buffers and runs one simulation step per update.
type Dance struct {
	renderer  renderer.Renderer
	generator *TransformationGenerator
	simulator *Simulator

	points          *buffer.Typed[Point]
	transformations *buffer.Typed[ComputedTransformation]
	renderView      bind_group_provider.BindGroupProvider
}

// NewDance seeds the points, uploads the transformations at time zero and prepares the simulation
// and render pipelines.
//
// Parameters:
//   - r: the renderer the buffers are allocated on
//   - cfg: the construction parameters
//
// Returns:
//   - *Dance: the new dance
//   - error: ErrInvalidPointCount, ErrNoTransformations, ErrUnalignedChunk or a wrapped device error
func NewDance(r renderer.Renderer, cfg Config) (_ *Dance, err error) {
	if cfg.NPoints <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPointCount, cfg.NPoints)
	}
	bytes := uint64(cfg.NPoints) * PointSize
	if bytes > math.MaxUint32 || bytes > r.Limits().MaxBufferSize {
		return nil, fmt.Errorf("%w: %d points need %d bytes", ErrInvalidPointCount, cfg.NPoints, bytes)
	}

	seed := random.New().Seed()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	generator, err := NewTransformationGenerator(cfg.TransformationColors,
		WithSeed(seed),
		WithTimeScale(cfg.TimeScale),
	)
	if err != nil {
		return nil, err
	}

	d := &Dance{renderer: r, generator: generator}
	defer func() {
		if err != nil {
			d.Release()
		}
	}()

	d.points, err = buffer.NewTypedWithData(r, "dance.points",
		SeedPoints(seed, cfg.NPoints, cfg.Workers),
		buffer.UsageStorage|buffer.UsageVertex)
	if err != nil {
		return nil, fmt.Errorf("failed to create point buffer: %w", err)
	}
	d.transformations, err = buffer.NewTypedWithData(r, "dance.transformations",
		generator.GenerateComputed(0),
		buffer.UsageStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create transformation buffer: %w", err)
	}

	selector := SelectByPosition
	if cfg.Selector != nil {
		selector = cfg.Selector
	}
	if d.simulator, err = NewSimulator(r, d.points, d.transformations, WithSelector(selector)); err != nil {
		return nil, err
	}
	if err = d.initRender(selector, cfg.Additive); err != nil {
		return nil, err
	}

	common.Logger().Info("dance created",
		zap.Int("points", cfg.NPoints),
		zap.Int("transformations", generator.Len()),
		zap.Uint32("seed", seed),
		zap.Uint64("pointBytes", d.points.Size()),
	)
	return d, nil
}

func (d *Dance) initRender(selector Selector, additive bool) error {
	vs, err := shader.LoadShader(renderPipelineKey, shader.ShaderTypeVertex, shaderFS, "shaders/render.wgsl")
	if err != nil {
		return err
	}
	fs, err := shader.LoadShader(renderPipelineKey, shader.ShaderTypeFragment, shaderFS, "shaders/render.wgsl")
	if err != nil {
		return err
	}
	err = d.renderer.RegisterPipelines(pipeline.NewPipeline(renderPipelineKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithHostVertexShader(renderVertex(selector)),
		pipeline.WithTopology(wgpu.PrimitiveTopologyPointList),
		pipeline.WithBlendEnabled(additive),
	))
	if err != nil {
		return err
	}

	d.renderView = bind_group_provider.NewBindGroupProvider("dance.render", bind_group_provider.WithBinding(
		bind_group_provider.Binding{Binding: bindingTransformations, Buffer: d.transformations.Raw()},
	))
	return d.renderer.InitBindGroup(renderPipelineKey, d.renderView)
}

// Update regenerates the transformations for the elapsed time, uploads them and steps every point.
//
// Parameters:
//   - elapsed: the time since the dance started
//
// Returns:
//   - error: a wrapped device error, or nil
func (d *Dance) Update(elapsed time.Duration) error {
	t := float32(elapsed.Seconds()) * d.generator.TimeScale()
	if err := d.transformations.Write(d.generator.GenerateComputed(t)); err != nil {
		return fmt.Errorf("failed to upload transformations: %w", err)
	}
	return d.simulator.Step()
}

// Render draws every point. It must be called inside a renderer frame.
func (d *Dance) Render() error {
	err := d.renderer.DrawPoints(renderPipelineKey, d.points.Raw(), uint32(d.points.Len()),
		[]bind_group_provider.BindGroupProvider{d.renderView})
	if err != nil {
		return fmt.Errorf("failed to draw points: %w", err)
	}
	return nil
}

// Points returns the number of points.
func (d *Dance) Points() int {
	return d.points.Len()
}

// DispatchesPerStep returns the number of compute dispatches one Update issues.
func (d *Dance) DispatchesPerStep() int {
	return d.simulator.Plan().Len()
}

// Generator returns the transformation generator.
func (d *Dance) Generator() *TransformationGenerator {
	return d.generator
}

// PointBuffer returns the point buffer.
func (d *Dance) PointBuffer() *buffer.Typed[Point] {
	return d.points
}

// Release releases the bind groups and buffers.
func (d *Dance) Release() {
	if d.simulator != nil {
		d.simulator.Release()
	}
	if d.renderView != nil {
		d.renderView.Release()
	}
	if d.transformations != nil {
		d.transformations.Release()
	}
	if d.points != nil {
		d.points.Release()
	}
}
