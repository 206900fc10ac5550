package bind_group_provider

import (
	"fmt"
	"slices"

	"github.com/Debaug/particle-dance/engine/renderer/buffer"
	"github.com/cogentcore/webgpu/wgpu"
)

// Binding describes one buffer entry of a bind group: which buffer, which byte range of it,
// and whether the range start is supplied per dispatch as a dynamic offset.
type Binding struct {
	// Binding is the @binding index in the shader.
	Binding int
	// Buffer is the buffer bound at this index.
	Buffer buffer.Buffer
	// Offset is the static byte offset of the bound range.
	Offset uint64
	// Size is the byte size of the bound range. Zero means the rest of the buffer from Offset.
	Size uint64
	// Dynamic marks a binding whose offset is added per dispatch.
	Dynamic bool
}

// Region is a resolved byte range of a buffer.
type Region struct {
	Buffer buffer.Buffer
	Offset uint64
	Size   uint64
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string
	// group is the @group index the bind group is set at.
	group uint32

	// bindings are kept sorted by binding index.
	bindings []Binding

	// bindGroup is the GPU bind group created by the wgpu back end, or nil on other back ends.
	bindGroup *wgpu.BindGroup
}

// BindGroupProvider describes a bind group as a set of views over buffer ranges.
// The dispatch scheduler builds one provider per view size and selects the chunk to operate on
// at dispatch time through dynamic offsets.
//
// Usage pattern:
//  1. Create a provider with NewBindGroupProvider and WithBinding options
//  2. Call Renderer.InitBindGroup(pipelineKey, provider) to create back end resources
//  3. Pass the provider to DispatchCompute or DrawPoints together with its dynamic offsets
type BindGroupProvider interface {
	// Release releases any GPU resources held by this provider. Bound buffers are not released.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Group returns the @group index this provider is bound at.
	//
	// Returns:
	//   - uint32: the group index
	Group() uint32

	// Bindings returns the buffer bindings sorted by binding index.
	//
	// Returns:
	//   - []Binding: the bindings
	Bindings() []Binding

	// DynamicCount returns how many bindings take a dynamic offset.
	//
	// Returns:
	//   - int: the number of dynamic bindings
	DynamicCount() int

	// Resolve computes the byte range each binding covers for the given dynamic offsets.
	// Dynamic offsets are consumed in binding order, as in WebGPU.
	//
	// Parameters:
	//   - dynamicOffsets: one offset per dynamic binding
	//
	// Returns:
	//   - map[int]Region: the resolved ranges keyed by binding index
	//   - error: an error if the offset count is wrong or a range leaves its buffer
	Resolve(dynamicOffsets []uint32) (map[int]Region, error)

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// SetBindGroup stores the GPU bind group created for this provider.
	//
	// Parameters:
	//   - bg: the bind group
	SetBindGroup(bg *wgpu.BindGroup)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a BindGroupProvider with the given label.
//
// Parameters:
//   - label: a debug label
//   - options: variadic list of BindGroupProviderOption functions
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label: label,
	}
	for _, opt := range options {
		opt(p)
	}
	slices.SortFunc(p.bindings, func(a, b Binding) int {
		return a.Binding - b.Binding
	})
	return p
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() uint32 {
	return p.group
}

func (p *bindGroupProvider) Bindings() []Binding {
	return p.bindings
}

func (p *bindGroupProvider) DynamicCount() int {
	n := 0
	for _, b := range p.bindings {
		if b.Dynamic {
			n++
		}
	}
	return n
}

func (p *bindGroupProvider) Resolve(dynamicOffsets []uint32) (map[int]Region, error) {
	if len(dynamicOffsets) != p.DynamicCount() {
		return nil, fmt.Errorf("bind group %q: expected %d dynamic offsets, got %d", p.label, p.DynamicCount(), len(dynamicOffsets))
	}

	regions := make(map[int]Region, len(p.bindings))
	next := 0
	for _, b := range p.bindings {
		offset := b.Offset
		if b.Dynamic {
			offset += uint64(dynamicOffsets[next])
			next++
		}
		size := b.Size
		if size == 0 {
			if b.Offset > b.Buffer.Size() {
				return nil, fmt.Errorf("bind group %q: binding %d offset %d past end of %q", p.label, b.Binding, b.Offset, b.Buffer.Label())
			}
			size = b.Buffer.Size() - b.Offset
		}
		if err := buffer.CheckWrite(b.Buffer, offset, size); err != nil {
			return nil, fmt.Errorf("bind group %q binding %d: %w", p.label, b.Binding, err)
		}
		regions[b.Binding] = Region{Buffer: b.Buffer, Offset: offset, Size: size}
	}
	return regions, nil
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}
