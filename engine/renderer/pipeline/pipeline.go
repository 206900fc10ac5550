package pipeline

import (
	"fmt"

	"github.com/Debaug/particle-dance/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// PipelineType identifies whether a pipeline draws or computes.
type PipelineType int

const (
	// PipelineTypeCompute is a pipeline with a single compute stage.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender is a pipeline with a vertex and a fragment stage.
	PipelineTypeRender
)

// HostKernel executes one workgroup of a compute pipeline on the host.
// regions holds the bytes each binding of group 0 covers for the dispatch, keyed by binding index.
// Invocation i of the workgroup is global invocation workgroupID*workgroupSize + i.
type HostKernel func(regions map[int][]byte, workgroupID, workgroupSize uint32)

// HostVertexShader maps one vertex of a point draw to a clip-space position and a color on the host.
// vertex is the vertex's bytes in the bound vertex buffer; regions are the draw's bound group 0 ranges.
type HostVertexShader func(vertex []byte, regions map[int][]byte) (clip mgl32.Vec2, color mgl32.Vec4)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string

	vertexShader, fragmentShader, computeShader shader.Shader

	// dynamic marks bindings that take a dynamic offset, keyed by group then binding.
	dynamic map[int]map[int]bool

	hostKernel HostKernel
	hostVertex HostVertexShader

	topology     wgpu.PrimitiveTopology
	blendEnabled bool

	// Back end objects, set by the wgpu back end on registration.
	renderPipeline   *wgpu.RenderPipeline
	computePipeline  *wgpu.ComputePipeline
	bindGroupLayouts []*wgpu.BindGroupLayout
}

// Pipeline describes a compute or render pipeline: its shaders, which bindings take dynamic offsets,
// and the host implementations used by back ends that do not run WGSL.
type Pipeline interface {
	// Type returns whether this is a compute or render pipeline.
	//
	// Returns:
	//   - PipelineType: PipelineTypeCompute or PipelineTypeRender
	Type() PipelineType

	// PipelineKey returns the unique key the renderer caches this pipeline under.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// Shader returns the shader bound to the given stage, or nil.
	//
	// Parameters:
	//   - shaderType: the stage
	//
	// Returns:
	//   - shader.Shader: the stage's shader or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// DynamicBindings returns the bindings of a group that take a dynamic offset.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - map[int]bool: binding indices marked dynamic (nil if none)
	DynamicBindings(group int) map[int]bool

	// WorkgroupSize returns the x dimension of the compute shader's @workgroup_size, or 0 for render pipelines.
	//
	// Returns:
	//   - uint32: invocations per workgroup
	WorkgroupSize() uint32

	// HostKernel returns the host implementation of the compute stage, or nil.
	//
	// Returns:
	//   - HostKernel: the host kernel
	HostKernel() HostKernel

	// HostVertexShader returns the host implementation of the vertex stage, or nil.
	//
	// Returns:
	//   - HostVertexShader: the host vertex shader
	HostVertexShader() HostVertexShader

	// Topology returns the primitive topology of a render pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the topology
	Topology() wgpu.PrimitiveTopology

	// BlendEnabled reports whether fragments are alpha blended.
	//
	// Returns:
	//   - bool: true if blending is enabled
	BlendEnabled() bool

	// Validate checks that the shaders required by the pipeline type are present.
	//
	// Returns:
	//   - error: an error naming the missing stage
	Validate() error

	RenderPipeline() *wgpu.RenderPipeline
	ComputePipeline() *wgpu.ComputePipeline
	BindGroupLayouts() []*wgpu.BindGroupLayout

	SetRenderPipeline(p *wgpu.RenderPipeline)
	SetComputePipeline(p *wgpu.ComputePipeline)
	SetBindGroupLayouts(layouts []*wgpu.BindGroupLayout)

	// Release frees back end objects owned by the pipeline.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a new Pipeline. Render pipelines default to a point list topology.
//
// Parameters:
//   - pipelineKey: the unique identifier for the pipeline
//   - pipelineType: compute or render
//   - opts: variadic list of PipelineBuilderOption functions
//
// Returns:
//   - Pipeline: the new pipeline
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		dynamic:      make(map[int]map[int]bool),
		topology:     wgpu.PrimitiveTopologyPointList,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) DynamicBindings(group int) map[int]bool {
	return p.dynamic[group]
}

func (p *pipeline) WorkgroupSize() uint32 {
	if p.computeShader == nil {
		return 0
	}
	return p.computeShader.WorkgroupSize()[0]
}

func (p *pipeline) HostKernel() HostKernel {
	return p.hostKernel
}

func (p *pipeline) HostVertexShader() HostVertexShader {
	return p.hostVertex
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) Validate() error {
	switch p.pipelineType {
	case PipelineTypeCompute:
		if p.computeShader == nil {
			return fmt.Errorf("pipeline %q: missing compute shader", p.pipelineKey)
		}
	case PipelineTypeRender:
		if p.vertexShader == nil || p.fragmentShader == nil {
			return fmt.Errorf("pipeline %q: render pipelines need a vertex and a fragment shader", p.pipelineKey)
		}
	default:
		return fmt.Errorf("pipeline %q: unknown pipeline type %d", p.pipelineKey, p.pipelineType)
	}
	return nil
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) ComputePipeline() *wgpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) BindGroupLayouts() []*wgpu.BindGroupLayout {
	return p.bindGroupLayouts
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}

func (p *pipeline) SetBindGroupLayouts(layouts []*wgpu.BindGroupLayout) {
	p.bindGroupLayouts = layouts
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	for _, l := range p.bindGroupLayouts {
		l.Release()
	}
	p.bindGroupLayouts = nil
}
