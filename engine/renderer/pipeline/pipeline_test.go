package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Debaug/particle-dance/engine/renderer/shader"
)

const kernelSource = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(32)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func TestComputePipeline(t *testing.T) {
	cs, err := shader.NewShader("k", shader.ShaderTypeCompute, kernelSource)
	require.NoError(t, err)

	called := false
	p := NewPipeline("k", PipelineTypeCompute,
		WithComputeShader(cs),
		WithDynamicBinding(0, 0),
		WithHostKernel(func(map[int][]byte, uint32, uint32) { called = true }),
	)

	require.NoError(t, p.Validate())
	assert.Equal(t, uint32(32), p.WorkgroupSize())
	assert.True(t, p.DynamicBindings(0)[0])
	assert.Nil(t, p.DynamicBindings(1))
	assert.Equal(t, cs, p.Shader(shader.ShaderTypeCompute))
	assert.Nil(t, p.Shader(shader.ShaderTypeVertex))

	p.HostKernel()(nil, 0, 32)
	assert.True(t, called)
}

func TestValidateRejectsMissingStages(t *testing.T) {
	assert.Error(t, NewPipeline("c", PipelineTypeCompute).Validate())
	assert.Error(t, NewPipeline("r", PipelineTypeRender).Validate())
}

func TestRenderDefaults(t *testing.T) {
	p := NewPipeline("r", PipelineTypeRender)
	assert.Equal(t, wgpu.PrimitiveTopologyPointList, p.Topology())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, uint32(0), p.WorkgroupSize())
	p.Release()
}
