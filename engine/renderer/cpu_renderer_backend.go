package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/renderer/bind_group_provider"
	"github.com/Debaug/particle-dance/engine/renderer/buffer"
	"github.com/Debaug/particle-dance/engine/renderer/pipeline"
	"github.com/Debaug/particle-dance/engine/renderer/shader"
	"go.uber.org/zap"
)

// CPULimits are the limits reported by the CPU backend unless overridden with WithLimits.
var CPULimits = Limits{
	MaxComputeWorkgroupsPerDimension: 65535,
	MinStorageBufferOffsetAlignment:  256,
	MaxStorageBufferBindingSize:      1 << 31,
	MaxBufferSize:                    1 << 32,
}

// cpuDispatch is a dispatch recorded between BeginComputeFrame and EndComputeFrame.
type cpuDispatch struct {
	kernel        pipeline.HostKernel
	label         string
	regions       map[int][]byte
	workgroups    uint32
	workgroupSize uint32
}

// cpuRendererBackendImpl is a headless device. Buffers live in host memory, compute pipelines run
// their host kernels on a worker pool, and point draws rasterize into an RGBA image.
type cpuRendererBackendImpl struct {
	mu      *sync.Mutex
	pool    worker.DynamicWorkerPool
	workers int
	limits  Limits

	computeOpen bool
	pending     []cpuDispatch

	width, height int
	frame         *image.RGBA
	finished      *image.RGBA
}

var _ RendererBackend = &cpuRendererBackendImpl{}

func newCPURendererBackend(workers int, limits *Limits) *cpuRendererBackendImpl {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	b := &cpuRendererBackendImpl{
		mu:      &sync.Mutex{},
		pool:    worker.NewDynamicWorkerPool(workers, workers*4, time.Second),
		workers: workers,
		limits:  CPULimits,
	}
	if limits != nil {
		b.limits = *limits
	}
	return b
}

func (b *cpuRendererBackendImpl) Limits() Limits {
	return b.limits
}

func (b *cpuRendererBackendImpl) CreateBuffer(label string, size uint64, usage buffer.Usage) (buffer.Buffer, error) {
	return buffer.NewHost(label, size, usage), nil
}

func (b *cpuRendererBackendImpl) WriteBuffer(buf buffer.Buffer, offset uint64, data []byte) error {
	h, err := asHostBuffer(buf)
	if err != nil {
		return err
	}
	if err := buffer.CheckWrite(buf, offset, uint64(len(data))); err != nil {
		return err
	}
	copy(h.Bytes()[offset:], data)
	return nil
}

func (b *cpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.HostKernel() == nil {
		return errors.New("compute pipelines need a host kernel on the cpu backend")
	}
	if p.WorkgroupSize() == 0 {
		return errors.New("compute shader declares an empty workgroup")
	}
	return nil
}

func (b *cpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if p.HostVertexShader() == nil {
		return errors.New("render pipelines need a host vertex shader on the cpu backend")
	}
	if len(p.Shader(shader.ShaderTypeVertex).VertexLayouts()) == 0 {
		return errors.New("vertex shader declares no vertex input")
	}
	return nil
}

// InitBindGroup only checks that every bound buffer lives in host memory; regions are resolved per call.
func (b *cpuRendererBackendImpl) InitBindGroup(_ pipeline.Pipeline, provider bind_group_provider.BindGroupProvider) error {
	for _, binding := range provider.Bindings() {
		if _, err := asHostBuffer(binding.Buffer); err != nil {
			return err
		}
	}
	return nil
}

func (b *cpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.computeOpen = true
	b.pending = b.pending[:0]
	return nil
}

func (b *cpuRendererBackendImpl) DispatchCompute(
	p pipeline.Pipeline,
	provider bind_group_provider.BindGroupProvider,
	dynamicOffsets []uint32,
	workgroups uint32,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.computeOpen {
		return ErrNoComputeFrame
	}
	regions, err := hostRegions(provider, dynamicOffsets)
	if err != nil {
		return err
	}
	b.pending = append(b.pending, cpuDispatch{
		kernel:        p.HostKernel(),
		label:         p.PipelineKey(),
		regions:       regions,
		workgroups:    workgroups,
		workgroupSize: p.WorkgroupSize(),
	})
	return nil
}

// EndComputeFrame runs the recorded dispatches in order. The workgroups of one dispatch run
// concurrently on the pool; each dispatch completes before the next starts.
func (b *cpuRendererBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.computeOpen {
		return ErrNoComputeFrame
	}
	b.computeOpen = false

	for i, d := range b.pending {
		if err := b.run(d); err != nil {
			return fmt.Errorf("dispatch %d of %q: %w", i, d.label, err)
		}
	}
	b.pending = b.pending[:0]
	return nil
}

// run splits a dispatch into contiguous workgroup ranges, one task each, and waits for all of them.
func (b *cpuRendererBackendImpl) run(d cpuDispatch) error {
	tasks := uint32(b.workers * 4)
	per := max((d.workgroups+tasks-1)/tasks, 1)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	id := 0
	for start := uint32(0); start < d.workgroups; start += per {
		end := min(start+per, d.workgroups)
		wg.Add(1)
		b.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (_ any, err error) {
				defer wg.Done()
				defer func() {
					if rec := recover(); rec != nil {
						err = fmt.Errorf("host kernel panicked in workgroups [%d, %d): %v", start, end, rec)
						errMu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						errMu.Unlock()
					}
				}()
				for wgID := start; wgID < end; wgID++ {
					d.kernel(d.regions, wgID, d.workgroupSize)
				}
				return nil, nil
			},
		})
		id++
	}
	wg.Wait()
	return firstErr
}

func (b *cpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frame != nil {
		return errors.New("previous frame not yet ended")
	}
	b.frame = image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	black := color.RGBA{A: 255}
	for i := 0; i < len(b.frame.Pix); i += 4 {
		b.frame.Pix[i+0] = black.R
		b.frame.Pix[i+1] = black.G
		b.frame.Pix[i+2] = black.B
		b.frame.Pix[i+3] = black.A
	}
	return nil
}

func (b *cpuRendererBackendImpl) DrawPoints(
	p pipeline.Pipeline,
	vertexBuffer buffer.Buffer,
	count uint32,
	bindGroups []bind_group_provider.BindGroupProvider,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frame == nil {
		return ErrNoFrame
	}
	vb, err := asHostBuffer(vertexBuffer)
	if err != nil {
		return err
	}
	stride := p.Shader(shader.ShaderTypeVertex).VertexLayouts()[0].ArrayStride
	if uint64(count)*stride > vb.Size() {
		return fmt.Errorf("%w: %d vertices of %d bytes in %q", buffer.ErrOutOfRange, count, stride, vb.Label())
	}

	regions := map[int][]byte{}
	for _, bg := range bindGroups {
		if bg.Group() != 0 {
			continue
		}
		if regions, err = hostRegions(bg, nil); err != nil {
			return err
		}
	}

	vs := p.HostVertexShader()
	data := vb.Bytes()
	w, h := float32(b.width), float32(b.height)
	for i := uint64(0); i < uint64(count); i++ {
		clip, c := vs(data[i*stride:(i+1)*stride], regions)
		fx := (clip.X() + 1) * 0.5 * w
		fy := (1 - clip.Y()) * 0.5 * h
		// Bounds are checked after rounding: clip coordinates just inside the edge can land on w or h.
		if !(fx >= 0 && fx < w && fy >= 0 && fy < h) {
			continue
		}
		b.plot(int(fx), int(fy), c[0], c[1], c[2], c[3], p.BlendEnabled())
	}
	return nil
}

// plot writes one fragment. With blending the color is added scaled by its alpha, as the wgpu
// pipeline's additive blend state does.
func (b *cpuRendererBackendImpl) plot(x, y int, r, g, bl, a float32, blend bool) {
	off := b.frame.PixOffset(x, y)
	px := b.frame.Pix[off : off+4 : off+4]
	if !blend {
		px[0], px[1], px[2], px[3] = toByte(r), toByte(g), toByte(bl), toByte(a)
		return
	}
	px[0] = toByte(float32(px[0])/255 + r*a)
	px[1] = toByte(float32(px[1])/255 + g*a)
	px[2] = toByte(float32(px[2])/255 + bl*a)
	px[3] = 255
}

func toByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

func (b *cpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frame == nil {
		return ErrNoFrame
	}
	b.finished = b.frame
	b.frame = nil
	return nil
}

func (b *cpuRendererBackendImpl) Present() {}

func (b *cpuRendererBackendImpl) Capture() (*image.RGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished == nil {
		return nil, ErrNoFrame
	}
	out := image.NewRGBA(b.finished.Rect)
	copy(out.Pix, b.finished.Pix)
	return out, nil
}

func (b *cpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
}

func (b *cpuRendererBackendImpl) SetPresentMode(PresentMode) {}

func (b *cpuRendererBackendImpl) Release() {
	b.pool.Stop()
	common.Logger().Debug("cpu backend released", zap.Int("workers", b.workers))
}

func asHostBuffer(buf buffer.Buffer) (*buffer.Host, error) {
	h, ok := buf.(*buffer.Host)
	if !ok {
		return nil, fmt.Errorf("buffer %q was not created by the cpu backend", buf.Label())
	}
	if h.Released() {
		return nil, fmt.Errorf("%w: %q", buffer.ErrReleased, buf.Label())
	}
	return h, nil
}

// hostRegions resolves a provider's bindings to sub-slices of host memory.
func hostRegions(provider bind_group_provider.BindGroupProvider, dynamicOffsets []uint32) (map[int][]byte, error) {
	resolved, err := provider.Resolve(dynamicOffsets)
	if err != nil {
		return nil, err
	}
	regions := make(map[int][]byte, len(resolved))
	for binding, r := range resolved {
		h, err := asHostBuffer(r.Buffer)
		if err != nil {
			return nil, err
		}
		regions[binding] = h.Bytes()[r.Offset : r.Offset+r.Size : r.Offset+r.Size]
	}
	return regions, nil
}
