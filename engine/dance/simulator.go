package dance

import (
	"embed"
	"errors"
	"fmt"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/renderer"
	"github.com/Debaug/particle-dance/engine/renderer/bind_group_provider"
	"github.com/Debaug/particle-dance/engine/renderer/buffer"
	"github.com/Debaug/particle-dance/engine/renderer/pipeline"
	"github.com/Debaug/particle-dance/engine/renderer/shader"
	"go.uber.org/zap"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

const (
	simulatePipelineKey = "dance.simulate"
	renderPipelineKey   = "dance.render"
)

// ErrUnalignedChunk is returned when a full chunk of points cannot start at a multiple of the
// device's storage buffer offset alignment.
var ErrUnalignedChunk = errors.New("chunk size is not a multiple of the storage offset alignment")

// Simulator steps every point of a point buffer through the chunked compute kernel.
type Simulator struct {
	renderer   renderer.Renderer
	plan       ChunkPlan
	dispatches []Dispatch

	full      bind_group_provider.BindGroupProvider
	remainder bind_group_provider.BindGroupProvider
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*simulatorConfig)

type simulatorConfig struct {
	selector Selector
}

// WithSelector replaces the host kernel's transformation selection policy.
// The device shader always uses SelectByPosition.
//
// Parameters:
//   - s: the selection policy
//
// Returns:
//   - SimulatorOption: a function that applies the policy
func WithSelector(s Selector) SimulatorOption {
	return func(c *simulatorConfig) {
		if s != nil {
			c.selector = s
		}
	}
}

// NewSimulator registers the simulation pipeline and binds one view sized to a full chunk and,
// if the point count is not a whole number of chunks, one view sized to the remainder.
//
// Parameters:
//   - r: the renderer owning both buffers
//   - points: the point buffer mutated in place
//   - transformations: the transformation buffer read by every dispatch
//   - opts: variadic list of SimulatorOption functions
//
// Returns:
//   - *Simulator: the new simulator
//   - error: ErrUnalignedChunk, or an error from pipeline registration or binding
func NewSimulator(
	r renderer.Renderer,
	points *buffer.Typed[Point],
	transformations *buffer.Typed[ComputedTransformation],
	opts ...SimulatorOption,
) (*Simulator, error) {
	cfg := &simulatorConfig{selector: SelectByPosition}
	for _, opt := range opts {
		opt(cfg)
	}

	cs, err := shader.LoadShader(simulatePipelineKey, shader.ShaderTypeCompute, shaderFS, "shaders/sim.wgsl")
	if err != nil {
		return nil, err
	}
	p := pipeline.NewPipeline(simulatePipelineKey, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(cs),
		pipeline.WithDynamicBinding(0, bindingPoints),
		pipeline.WithHostKernel(simulateKernel(cfg.selector)),
	)
	if err := r.RegisterPipelines(p); err != nil {
		return nil, err
	}

	limits := r.Limits()
	g := r.Pipeline(simulatePipelineKey).WorkgroupSize()
	m := limits.MaxComputeWorkgroupsPerDimension
	if maxBinding := limits.MaxStorageBufferBindingSize / (uint64(max(g, 1)) * PointSize); maxBinding < uint64(m) {
		m = uint32(maxBinding)
	}
	plan := PlanChunks(uint32(points.Len()), g, m)

	s := &Simulator{
		renderer:   r,
		plan:       plan,
		dispatches: plan.Dispatches(),
	}

	if plan.Len() > 1 && plan.ChunkBytes()%uint64(max(limits.MinStorageBufferOffsetAlignment, 1)) != 0 {
		return nil, fmt.Errorf("%w: %d bytes per chunk, alignment %d",
			ErrUnalignedChunk, plan.ChunkBytes(), limits.MinStorageBufferOffsetAlignment)
	}

	if plan.FullChunks > 0 {
		if s.full, err = s.bindView("dance.points.chunk", points, transformations, plan.ChunkLen); err != nil {
			return nil, err
		}
	}
	if plan.Remainder > 0 {
		if s.remainder, err = s.bindView("dance.points.remainder", points, transformations, plan.Remainder); err != nil {
			return nil, err
		}
	}

	common.Logger().Info("chunk plan",
		zap.Uint32("points", plan.Points),
		zap.Uint32("workgroupSize", plan.WorkgroupSize),
		zap.Uint32("chunkLen", plan.ChunkLen),
		zap.Uint32("fullChunks", plan.FullChunks),
		zap.Uint32("remainder", plan.Remainder),
	)
	return s, nil
}

// bindView creates a bind group whose points binding covers length points at a dynamic offset.
func (s *Simulator) bindView(
	label string,
	points *buffer.Typed[Point],
	transformations *buffer.Typed[ComputedTransformation],
	length uint32,
) (bind_group_provider.BindGroupProvider, error) {
	view := bind_group_provider.NewBindGroupProvider(label, bind_group_provider.WithBindings(
		bind_group_provider.Binding{Binding: bindingTransformations, Buffer: transformations.Raw()},
		bind_group_provider.Binding{
			Binding: bindingPoints,
			Buffer:  points.Raw(),
			Size:    uint64(length) * PointSize,
			Dynamic: true,
		},
	))
	if err := s.renderer.InitBindGroup(simulatePipelineKey, view); err != nil {
		return nil, err
	}
	return view, nil
}

// Plan returns the chunk plan the simulator dispatches.
func (s *Simulator) Plan() ChunkPlan {
	return s.plan
}

// Step maps every point through one transformation: every full chunk, then the remainder, in one
// compute frame.
//
// Returns:
//   - error: a wrapped device error, or nil
func (s *Simulator) Step() error {
	if len(s.dispatches) == 0 {
		return nil
	}
	if err := s.renderer.BeginComputeFrame(); err != nil {
		return fmt.Errorf("failed to begin simulation: %w", err)
	}
	for _, d := range s.dispatches {
		view := s.full
		if d.Remainder {
			view = s.remainder
		}
		if err := s.renderer.DispatchCompute(simulatePipelineKey, view, []uint32{uint32(d.ByteOffset)}, d.Workgroups); err != nil {
			return fmt.Errorf("failed to dispatch chunk %d: %w", d.Index, err)
		}
	}
	if err := s.renderer.EndComputeFrame(); err != nil {
		return fmt.Errorf("failed to run simulation: %w", err)
	}
	return nil
}

// Release releases the simulator's bind groups. The buffers belong to the caller.
func (s *Simulator) Release() {
	for _, v := range []bind_group_provider.BindGroupProvider{s.full, s.remainder} {
		if v != nil {
			v.Release()
		}
	}
}
