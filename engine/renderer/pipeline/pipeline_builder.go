package pipeline

import (
	"github.com/Debaug/particle-dance/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexShader sets the vertex shader for this pipeline.
//
// Parameters:
//   - s: the vertex shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex shader for this pipeline
func WithVertexShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment shader for this pipeline.
//
// Parameters:
//   - s: the fragment shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment shader for this pipeline
func WithFragmentShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentShader = s
	}
}

// WithComputeShader sets the compute shader for this pipeline.
//
// Parameters:
//   - s: the compute shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader for this pipeline
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeShader = s
	}
}

// WithDynamicBinding marks a binding as taking a dynamic offset at bind time.
//
// Parameters:
//   - group: the @group index
//   - binding: the @binding index
//
// Returns:
//   - PipelineBuilderOption: a function that marks the binding dynamic for this pipeline
func WithDynamicBinding(group, binding int) PipelineBuilderOption {
	return func(p *pipeline) {
		if p.dynamic[group] == nil {
			p.dynamic[group] = make(map[int]bool)
		}
		p.dynamic[group][binding] = true
	}
}

// WithHostKernel sets the host implementation of the compute stage, run by the CPU back end.
//
// Parameters:
//   - k: the host kernel
//
// Returns:
//   - PipelineBuilderOption: a function that sets the host kernel for this pipeline
func WithHostKernel(k HostKernel) PipelineBuilderOption {
	return func(p *pipeline) {
		p.hostKernel = k
	}
}

// WithHostVertexShader sets the host implementation of the vertex stage, run by the CPU back end.
//
// Parameters:
//   - v: the host vertex shader
//
// Returns:
//   - PipelineBuilderOption: a function that sets the host vertex shader for this pipeline
func WithHostVertexShader(v HostVertexShader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.hostVertex = v
	}
}

// WithBlendEnabled sets whether alpha blending is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether blending should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend enabled state for this pipeline
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithTopology sets the primitive topology for this pipeline.
//
// Parameters:
//   - topology: the primitive topology to use
//
// Returns:
//   - PipelineBuilderOption: a function that sets the topology for this pipeline
func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topology = topology
	}
}
