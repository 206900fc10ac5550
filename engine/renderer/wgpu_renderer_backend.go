package renderer

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sort"
	"sync"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/renderer/bind_group_provider"
	"github.com/Debaug/particle-dance/engine/renderer/buffer"
	"github.com/Debaug/particle-dance/engine/renderer/pipeline"
	"github.com/Debaug/particle-dance/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBuffer wraps a *wgpu.Buffer with the host-side bookkeeping of buffer.Buffer.
type wgpuBuffer struct {
	buf   *wgpu.Buffer
	label string
	size  uint64
	usage buffer.Usage
}

var _ buffer.Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string       { return b.label }
func (b *wgpuBuffer) Size() uint64        { return b.size }
func (b *wgpuBuffer) Usage() buffer.Usage { return b.usage }

func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	limits   Limits

	surfaceFormat        *wgpu.TextureFormat
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)

	// Frame state for batched rendering across multiple draw calls
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// Compute frame state for batching all compute dispatches into a single GPU submission
	computeFrameEncoder *wgpu.CommandEncoder
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend requests an adapter compatible with the surface and a device whose storage
// limits are raised to what the adapter supports. It panics if either request fails.
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) *wgpuRendererBackendImpl {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	// Point buffers run to hundreds of megabytes, well past the WebGPU default binding size.
	supported := a.GetLimits().Limits
	limits := wgpu.DefaultLimits()
	limits.MaxStorageBufferBindingSize = max(limits.MaxStorageBufferBindingSize, supported.MaxStorageBufferBindingSize)
	limits.MaxBufferSize = max(limits.MaxBufferSize, supported.MaxBufferSize)

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()
	w.limits = Limits{
		MaxComputeWorkgroupsPerDimension: limits.MaxComputeWorkgroupsPerDimension,
		MinStorageBufferOffsetAlignment:  limits.MinStorageBufferOffsetAlignment,
		MaxStorageBufferBindingSize:      limits.MaxStorageBufferBindingSize,
		MaxBufferSize:                    limits.MaxBufferSize,
	}
	return w
}

func (b *wgpuRendererBackendImpl) Limits() Limits {
	return b.limits
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, size uint64, usage buffer.Usage) (buffer.Buffer, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: toWGPUBufferUsage(usage),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buf: buf, label: label, size: size, usage: usage}, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf buffer.Buffer, offset uint64, data []byte) error {
	wb, err := asWGPUBuffer(buf)
	if err != nil {
		return err
	}
	if err := buffer.CheckWrite(buf, offset, uint64(len(data))); err != nil {
		return err
	}
	return writeQueue(b.queue, wb, offset, data)
}

type queueWriter interface {
	WriteBuffer(buffer *wgpu.Buffer, bufferOffset uint64, data []byte) error
}

func writeQueue(q queueWriter, wb *wgpuBuffer, offset uint64, data []byte) error {
	if err := q.WriteBuffer(wb.buf, offset, data); err != nil {
		return fmt.Errorf("failed to write %q: %w", wb.label, err)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	// View is set per frame to the swapchain view.
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	module, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}
	defer module.Release()

	layouts, err := b.createBindGroupLayouts(p, computeShader)
	if err != nil {
		return err
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetBindGroupLayouts(layouts)
	p.SetComputePipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return err
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return err
	}
	defer fs.Release()

	layouts, err := b.createBindGroupLayouts(p, vertexShader, fragmentShader)
	if err != nil {
		return err
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	target := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if p.BlendEnabled() {
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexShader.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	p.SetBindGroupLayouts(layouts)
	p.SetRenderPipeline(created)
	return nil
}

// createBindGroupLayouts creates one layout per group declared by any of the stages, merging
// entries declared by several stages and marking the pipeline's dynamic bindings.
func (b *wgpuRendererBackendImpl) createBindGroupLayouts(p pipeline.Pipeline, stages ...shader.Shader) ([]*wgpu.BindGroupLayout, error) {
	maxGroup := -1
	for _, s := range stages {
		for _, rb := range s.Bindings() {
			maxGroup = max(maxGroup, rb.Group)
		}
	}

	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := range layouts {
		descs := make([]wgpu.BindGroupLayoutDescriptor, 0, len(stages))
		for _, s := range stages {
			descs = append(descs, s.BindGroupLayoutDescriptor(g, p.DynamicBindings(g)))
		}
		desc := mergeBindGroupLayouts(descs...)
		desc.Label = fmt.Sprintf("%s group %d", p.PipelineKey(), g)

		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			for _, l := range layouts[:g] {
				l.Release()
			}
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		layouts[g] = layout
	}
	return layouts, nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	layouts := p.BindGroupLayouts()
	group := int(provider.Group())
	if group >= len(layouts) {
		return fmt.Errorf("pipeline %q declares no group %d", p.PipelineKey(), group)
	}

	bindings := provider.Bindings()
	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, binding := range bindings {
		wb, err := asWGPUBuffer(binding.Buffer)
		if err != nil {
			return err
		}
		size := binding.Size
		if size == 0 {
			size = wgpu.WholeSize
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(binding.Binding),
			Buffer:  wb.buf,
			Offset:  binding.Offset,
			Size:    size,
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layouts[group],
		Entries: entries,
	})
	if err != nil {
		return err
	}
	provider.SetBindGroup(bindGroup)
	return nil
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(
	p pipeline.Pipeline,
	provider bind_group_provider.BindGroupProvider,
	dynamicOffsets []uint32,
	workgroups uint32,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoComputeFrame
	}
	if provider.BindGroup() == nil {
		return fmt.Errorf("bind group %q not initialized", provider.Label())
	}
	if _, err := provider.Resolve(dynamicOffsets); err != nil {
		return err
	}

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(p.ComputePipeline())
	pass.SetBindGroup(provider.Group(), provider.BindGroup(), dynamicOffsets)
	pass.DispatchWorkgroups(workgroups, 1, 1)
	pass.End()
	return nil
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoComputeFrame
	}

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	if err != nil {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.computeFrameEncoder.Release()
	b.computeFrameEncoder = nil
	return nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Acquiring a second surface image before presenting the first is a validation error.
	if b.frameSurface != nil {
		return errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.renderPassDescriptor.ColorAttachments[0].View = view
	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuRendererBackendImpl) DrawPoints(
	p pipeline.Pipeline,
	vertexBuffer buffer.Buffer,
	count uint32,
	bindGroups []bind_group_provider.BindGroupProvider,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return ErrNoFrame
	}
	vb, err := asWGPUBuffer(vertexBuffer)
	if err != nil {
		return err
	}

	b.framePass.SetPipeline(p.RenderPipeline())
	for _, bg := range bindGroups {
		if bg.BindGroup() == nil {
			return fmt.Errorf("bind group %q not initialized", bg.Label())
		}
		b.framePass.SetBindGroup(bg.Group(), bg.BindGroup(), nil)
	}
	b.framePass.SetVertexBuffer(0, vb.buf, 0, wgpu.WholeSize)
	b.framePass.Draw(count, 1, 0, 0)
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return ErrNoFrame
	}
	b.framePass.End()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.frameSurface = nil
		b.frameView = nil
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuRendererBackendImpl) Capture() (*image.RGBA, error) {
	return nil, ErrCaptureUnsupported
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		b.queue.Release()
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
	common.Logger().Info("wgpu backend released")
}

func asWGPUBuffer(buf buffer.Buffer) (*wgpuBuffer, error) {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer %q was not created by the wgpu backend", buf.Label())
	}
	if wb.buf == nil {
		return nil, fmt.Errorf("%w: %q", buffer.ErrReleased, buf.Label())
	}
	return wb, nil
}

func toWGPUBufferUsage(u buffer.Usage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u.Has(buffer.UsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(buffer.UsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Has(buffer.UsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(buffer.UsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	if u.Has(buffer.UsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	return out
}

// mergeBindGroupLayouts combines the per-stage descriptors of one group. A binding declared by
// several stages keeps the first declaration and ORs the visibilities.
func mergeBindGroupLayouts(descs ...wgpu.BindGroupLayoutDescriptor) wgpu.BindGroupLayoutDescriptor {
	byBinding := make(map[uint32]wgpu.BindGroupLayoutEntry)
	for _, d := range descs {
		for _, e := range d.Entries {
			if existing, ok := byBinding[e.Binding]; ok {
				existing.Visibility |= e.Visibility
				byBinding[e.Binding] = existing
				continue
			}
			byBinding[e.Binding] = e
		}
	}

	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(byBinding))
	for _, e := range byBinding {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Binding < entries[j].Binding
	})
	return wgpu.BindGroupLayoutDescriptor{Entries: entries}
}
