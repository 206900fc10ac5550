package renderer

import (
	"errors"
	"fmt"
	"image"

	"github.com/Debaug/particle-dance/engine/renderer/bind_group_provider"
	"github.com/Debaug/particle-dance/engine/renderer/buffer"
	"github.com/Debaug/particle-dance/engine/renderer/pipeline"
)

// RendererBackendType identifies the device implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend. It requires a window.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeCPU selects the headless software backend. Compute pipelines run their host kernels
	// on a worker pool and point draws rasterize into an in-memory image.
	BackendTypeCPU
)

// String returns the flag spelling of the backend type.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeCPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// ParseBackendType maps "wgpu" or "cpu" to a RendererBackendType.
func ParseBackendType(s string) (RendererBackendType, error) {
	switch s {
	case "wgpu":
		return BackendTypeWGPU, nil
	case "cpu":
		return BackendTypeCPU, nil
	default:
		return 0, fmt.Errorf("unknown backend %q, want \"wgpu\" or \"cpu\"", s)
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Limits are the device limits the dispatch scheduler plans around.
type Limits struct {
	// MaxComputeWorkgroupsPerDimension is the largest workgroup count of a single dispatch dimension.
	MaxComputeWorkgroupsPerDimension uint32
	// MinStorageBufferOffsetAlignment is the alignment every storage binding offset must have.
	MinStorageBufferOffsetAlignment uint32
	// MaxStorageBufferBindingSize is the largest byte range a storage binding may cover.
	MaxStorageBufferBindingSize uint64
	// MaxBufferSize is the largest buffer the device can allocate.
	MaxBufferSize uint64
}

// DefaultLimits are the WebGPU default limits, which every conforming device supports.
var DefaultLimits = Limits{
	MaxComputeWorkgroupsPerDimension: 65535,
	MinStorageBufferOffsetAlignment:  256,
	MaxStorageBufferBindingSize:      128 << 20,
	MaxBufferSize:                    256 << 20,
}

var (
	// ErrNoFrame is returned when a draw is issued outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("renderer: no frame in progress")
	// ErrNoComputeFrame is returned when a dispatch is issued outside BeginComputeFrame/EndComputeFrame.
	ErrNoComputeFrame = errors.New("renderer: no compute frame in progress")
	// ErrCaptureUnsupported is returned by back ends that present to a surface instead of memory.
	ErrCaptureUnsupported = errors.New("renderer: frame capture not supported by this backend")
)

// RendererBackend is the device contract: allocate buffers, write to them, run a compute pipeline
// over bound buffer regions, and draw points from a buffer.
type RendererBackend interface {
	buffer.Allocator

	// Limits returns the limits of the device.
	//
	// Returns:
	//   - Limits: the device limits
	Limits() Limits

	// RegisterComputePipeline creates the back end objects for a compute pipeline.
	//
	// Parameters:
	//   - p: the pipeline
	//
	// Returns:
	//   - error: an error if the pipeline cannot run on this backend
	RegisterComputePipeline(p pipeline.Pipeline) error

	// RegisterRenderPipeline creates the back end objects for a render pipeline.
	//
	// Parameters:
	//   - p: the pipeline
	//
	// Returns:
	//   - error: an error if the pipeline cannot run on this backend
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// InitBindGroup creates the back end bind group for provider against the layout p declares.
	//
	// Parameters:
	//   - p: the pipeline whose layout the provider is bound with
	//   - provider: the provider describing the bound buffer ranges
	//
	// Returns:
	//   - error: an error if the bind group cannot be created
	InitBindGroup(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider) error

	// BeginComputeFrame starts batching dispatches into one submission.
	BeginComputeFrame() error

	// DispatchCompute records one dispatch of workgroups workgroups of p over provider's ranges.
	//
	// Parameters:
	//   - p: the compute pipeline
	//   - provider: the bound ranges
	//   - dynamicOffsets: one byte offset per dynamic binding of provider
	//   - workgroups: the number of workgroups along x
	//
	// Returns:
	//   - error: an error if no compute frame is open or the ranges are invalid
	DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, dynamicOffsets []uint32, workgroups uint32) error

	// EndComputeFrame submits the batched dispatches. Their effects are visible to later frames and draws.
	EndComputeFrame() error

	// BeginFrame starts a render pass that clears the frame.
	BeginFrame() error

	// DrawPoints draws count points whose vertices are read from vertexBuffer.
	//
	// Parameters:
	//   - p: the render pipeline
	//   - vertexBuffer: the buffer holding one vertex per point
	//   - count: the number of points
	//   - bindGroups: providers bound at their group indices
	//
	// Returns:
	//   - error: an error if no frame is open or the ranges are invalid
	DrawPoints(p pipeline.Pipeline, vertexBuffer buffer.Buffer, count uint32, bindGroups []bind_group_provider.BindGroupProvider) error

	// EndFrame ends the render pass and submits it.
	EndFrame() error

	// Present shows the finished frame.
	Present()

	// Capture returns a copy of the last finished frame.
	//
	// Returns:
	//   - *image.RGBA: the frame
	//   - error: ErrCaptureUnsupported on surface-backed devices
	Capture() (*image.RGBA, error)

	// ConfigureSurface resizes the render target.
	ConfigureSurface(width, height int)

	// SetPresentMode changes how frames are presented. Takes effect on the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// Release frees every device object held by the backend.
	Release()
}
