package renderer

import (
	"fmt"
	"image"
	"sync"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/renderer/bind_group_provider"
	"github.com/Debaug/particle-dance/engine/renderer/buffer"
	"github.com/Debaug/particle-dance/engine/renderer/pipeline"
	"github.com/Debaug/particle-dance/engine/window"
	"go.uber.org/zap"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	window               window.Window
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	frameWidth           int
	frameHeight          int
	workers              int
	limits               *Limits
}

// Renderer is the host-side handle on a compute/draw device.
//
// It caches pipelines by key, hands out buffers (it is a buffer.Allocator), and forwards dispatches
// and draws to the selected backend. Dispatches are batched between BeginComputeFrame and
// EndComputeFrame; draws between BeginFrame and EndFrame.
type Renderer interface {
	buffer.Allocator

	// BackendType returns the backend the renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Limits returns the device limits.
	//
	// Returns:
	//   - Limits: the device limits
	Limits() Limits

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines validates and registers one or more pipelines with the backend, then caches them
	// by PipelineKey. Pipelines whose keys are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if validation or backend creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// InitBindGroup creates the backend bind group for provider using the layout of a cached pipeline.
	//
	// Parameters:
	//   - pipelineKey: the pipeline whose layout the provider will be bound with
	//   - provider: the buffer ranges to bind
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or creation fails
	InitBindGroup(pipelineKey string, provider bind_group_provider.BindGroupProvider) error

	// BeginComputeFrame creates a single command encoder for batching all compute dispatches
	// within a frame into one submission. Must be paired with EndComputeFrame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// DispatchCompute looks up the cached compute Pipeline by key and records one dispatch.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached compute Pipeline to use
	//   - provider: the bound buffer ranges
	//   - dynamicOffsets: one byte offset per dynamic binding of provider
	//   - workgroups: the number of workgroups along x
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or the backend rejects the dispatch
	DispatchCompute(pipelineKey string, provider bind_group_provider.BindGroupProvider, dynamicOffsets []uint32, workgroups uint32) error

	// EndComputeFrame submits the dispatches recorded since BeginComputeFrame.
	//
	// Returns:
	//   - error: an error if submission fails
	EndComputeFrame() error

	// BeginFrame acquires the render target and begins the main render pass.
	//
	// Returns:
	//   - error: an error if the render target could not be acquired
	BeginFrame() error

	// DrawPoints draws count points from vertexBuffer with a cached render Pipeline.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached render Pipeline to use
	//   - vertexBuffer: the buffer holding one vertex per point
	//   - count: the number of points
	//   - bindGroups: providers bound at their group indices
	//
	// Returns:
	//   - error: an error if the pipeline is not found or the backend rejects the draw
	DrawPoints(pipelineKey string, vertexBuffer buffer.Buffer, count uint32, bindGroups []bind_group_provider.BindGroupProvider) error

	// EndFrame ends the current render pass and submits it.
	//
	// Returns:
	//   - error: an error if submission fails
	EndFrame() error

	// Present presents the finished frame.
	Present()

	// Capture returns a copy of the last finished frame on backends that render to memory.
	//
	// Returns:
	//   - *image.RGBA: the frame
	//   - error: ErrCaptureUnsupported on surface-backed devices
	Capture() (*image.RGBA, error)

	// Resize configures the underlying backend to handle a new surface size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. A call to Resize is required after changing this.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// Release releases every cached pipeline and the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer with the specified backend.
// BackendTypeWGPU requires WithWindow; BackendTypeCPU renders into a WithFrameSize image.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the new renderer
//   - error: an error if the device could not be created
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (rr Renderer, err error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		frameWidth:    800,
		frameHeight:   800,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		if r.window == nil {
			return nil, fmt.Errorf("renderer: %s backend needs a window", backendType)
		}
		// The wgpu bindings panic when no adapter or device is available.
		defer func() {
			if rec := recover(); rec != nil {
				rr, err = nil, fmt.Errorf("renderer: failed to create %s device: %v", backendType, rec)
			}
		}()
		r.backend = newWGPURendererBackend(r.window.SurfaceDescriptor(), r.forceFallbackAdapter)
		r.frameWidth, r.frameHeight = r.window.Width(), r.window.Height()
	case BackendTypeCPU:
		r.backend = newCPURendererBackend(r.workers, r.limits)
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", backendType)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend.ConfigureSurface(r.frameWidth, r.frameHeight)

	limits := r.backend.Limits()
	common.Logger().Info("renderer created",
		zap.Stringer("backend", backendType),
		zap.Uint32("maxWorkgroupsPerDimension", limits.MaxComputeWorkgroupsPerDimension),
		zap.Uint32("storageOffsetAlignment", limits.MinStorageBufferOffsetAlignment),
		zap.Uint64("maxStorageBindingSize", limits.MaxStorageBufferBindingSize),
		zap.Uint64("maxBufferSize", limits.MaxBufferSize),
	)
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Limits() Limits {
	return r.backend.Limits()
}

func (r *renderer) CreateBuffer(label string, size uint64, usage buffer.Usage) (buffer.Buffer, error) {
	if size > r.backend.Limits().MaxBufferSize {
		return nil, fmt.Errorf("buffer %q of %d bytes exceeds device maximum of %d", label, size, r.backend.Limits().MaxBufferSize)
	}
	buf, err := r.backend.CreateBuffer(label, size, usage)
	if err != nil {
		return nil, err
	}
	common.Logger().Debug("buffer created", zap.String("label", label), zap.Uint64("size", size))
	return buf, nil
}

func (r *renderer) WriteBuffer(buf buffer.Buffer, offset uint64, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := p.Validate(); err != nil {
			return err
		}
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			if err := r.backend.RegisterComputePipeline(p); err != nil {
				return fmt.Errorf("failed to register compute pipeline %q: %w", key, err)
			}
		case pipeline.PipelineTypeRender:
			if err := r.backend.RegisterRenderPipeline(p); err != nil {
				return fmt.Errorf("failed to register render pipeline %q: %w", key, err)
			}
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) lookup(key string, want pipeline.PipelineType) (pipeline.Pipeline, error) {
	r.mu.Lock()
	p, exists := r.pipelineCache[key]
	r.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("pipeline %q not found in cache", key)
	}
	if p.Type() != want {
		return nil, fmt.Errorf("pipeline %q has the wrong type for this call", key)
	}
	return p, nil
}

func (r *renderer) InitBindGroup(pipelineKey string, provider bind_group_provider.BindGroupProvider) error {
	r.mu.Lock()
	p, exists := r.pipelineCache[pipelineKey]
	r.mu.Unlock()
	if !exists {
		return fmt.Errorf("pipeline %q not found in cache", pipelineKey)
	}
	if err := r.backend.InitBindGroup(p, provider); err != nil {
		return fmt.Errorf("failed to create bind group %q: %w", provider.Label(), err)
	}
	return nil
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, provider bind_group_provider.BindGroupProvider, dynamicOffsets []uint32, workgroups uint32) error {
	p, err := r.lookup(pipelineKey, pipeline.PipelineTypeCompute)
	if err != nil {
		return err
	}
	if workgroups > r.backend.Limits().MaxComputeWorkgroupsPerDimension {
		return fmt.Errorf("dispatch of %d workgroups exceeds device maximum of %d", workgroups, r.backend.Limits().MaxComputeWorkgroupsPerDimension)
	}
	return r.backend.DispatchCompute(p, provider, dynamicOffsets, workgroups)
}

func (r *renderer) EndComputeFrame() error {
	return r.backend.EndComputeFrame()
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) DrawPoints(pipelineKey string, vertexBuffer buffer.Buffer, count uint32, bindGroups []bind_group_provider.BindGroupProvider) error {
	p, err := r.lookup(pipelineKey, pipeline.PipelineTypeRender)
	if err != nil {
		return err
	}
	return r.backend.DrawPoints(p, vertexBuffer, count, bindGroups)
}

func (r *renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Capture() (*image.RGBA, error) {
	return r.backend.Capture()
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipelineCache {
		p.Release()
	}
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	r.backend.Release()
}
