// Package software is an in-process, allocation-only implementation of
// gpuabi.Device/Queue/CommandEncoder backed by plain Go slices instead of a
// real GPU. It exists so the tiling and compositing pipelines can be
// exercised in tests and in environments without a GPU, mirroring the
// teacher's software.go CPU-fallback pattern (registered as a backend of
// last resort rather than a shader-accurate renderer).
//
// It does not rasterize anything: Draw/Dispatch calls are recorded but not
// executed against pixel data. Buffer and texture read/write round-trip
// their bytes, which is sufficient for exercising allocation, encoding, and
// pass-sequencing logic without a native backend.
package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/gg/gpuabi"
)

// Device is a software-only gpuabi.Device.
type Device struct {
	mu       sync.Mutex
	nextID   uint64
	buffers  map[gpuabi.BufferID][]byte
	textures map[gpuabi.TextureID]*texture
}

type texture struct {
	desc gpuabi.TextureDesc
	data []byte
}

// New creates a software device.
func New() *Device {
	return &Device{
		nextID:   1,
		buffers:  make(map[gpuabi.BufferID][]byte),
		textures: make(map[gpuabi.TextureID]*texture),
	}
}

func (d *Device) allocID() uint64 {
	id := d.nextID
	d.nextID++
	return id
}

// CreateBuffer allocates a zero-filled byte slice of the requested size.
func (d *Device) CreateBuffer(desc gpuabi.BufferDesc) (gpuabi.BufferID, error) {
	if desc.Size == 0 {
		return 0, fmt.Errorf("%w: zero-size buffer", gpuabi.ErrUnsupportedFormat)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.BufferID(d.allocID())
	d.buffers[id] = make([]byte, desc.Size)
	return id, nil
}

// CreateTexture allocates a zero-filled pixel buffer for the texture.
func (d *Device) CreateTexture(desc gpuabi.TextureDesc) (gpuabi.TextureID, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return 0, fmt.Errorf("%w: zero-size texture", gpuabi.ErrUnsupportedFormat)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.TextureID(d.allocID())
	size := int(desc.Width) * int(desc.Height) * desc.Format.BytesPerTexel()
	d.textures[id] = &texture{desc: desc, data: make([]byte, size)}
	return id, nil
}

// CreateSampler is a no-op descriptor allocation; samplers have no backing
// state in the software device.
func (d *Device) CreateSampler(gpuabi.SamplerDesc) (gpuabi.SamplerID, error) {
	return gpuabi.SamplerID(d.allocID()), nil
}

// CreateShaderModule treats shader bytes as opaque, per spec.md §1.
func (d *Device) CreateShaderModule(_ gpuabi.ShaderKind, _ string, bytes []byte) (gpuabi.ShaderModuleID, error) {
	if len(bytes) == 0 {
		return 0, fmt.Errorf("%w: empty shader module", gpuabi.ErrUnsupportedFormat)
	}
	return gpuabi.ShaderModuleID(d.allocID()), nil
}

// CreateRenderPass allocates a pass handle; the software device supports
// every format/load-op combination the ABI defines.
func (d *Device) CreateRenderPass(gpuabi.RenderPassDesc) (gpuabi.RenderPassID, error) {
	return gpuabi.RenderPassID(d.allocID()), nil
}

// CreateRenderPipeline allocates a pipeline handle.
func (d *Device) CreateRenderPipeline(gpuabi.RenderPipelineDesc) (gpuabi.RenderPipelineID, error) {
	return gpuabi.RenderPipelineID(d.allocID()), nil
}

// CreateComputePipeline allocates a pipeline handle.
func (d *Device) CreateComputePipeline(gpuabi.ShaderModuleID, string) (gpuabi.ComputePipeline, error) {
	return gpuabi.ComputePipeline(d.allocID()), nil
}

// CreateDescriptorSet allocates a descriptor set handle; bindings are not
// validated further since the software device never samples them.
func (d *Device) CreateDescriptorSet([]gpuabi.Binding) (gpuabi.DescriptorSetID, error) {
	return gpuabi.DescriptorSetID(d.allocID()), nil
}

// CreateCommandEncoder returns a new recording encoder.
func (d *Device) CreateCommandEncoder(label string) gpuabi.CommandEncoder {
	return &encoder{device: d, label: label}
}

// CreateFence allocates a fence handle.
func (d *Device) CreateFence() (gpuabi.FenceID, error) {
	return gpuabi.FenceID(d.allocID()), nil
}

// DestroyBuffer releases a buffer's backing storage.
func (d *Device) DestroyBuffer(id gpuabi.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// DestroyTexture releases a texture's backing storage.
func (d *Device) DestroyTexture(id gpuabi.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, id)
}

type encoder struct {
	device   *Device
	label    string
	finished bool
	callbacks []func()
}

func (e *encoder) checkOpen() error {
	if e.finished {
		return gpuabi.ErrEncoderFinished
	}
	return nil
}

func (e *encoder) BeginRenderPass(gpuabi.RenderPassID, gpuabi.TextureID, [4]float32, gpuabi.LoadOp) {}
func (e *encoder) SetViewport(float32, float32, float32, float32)                                  {}
func (e *encoder) BindRenderPipeline(gpuabi.RenderPipelineID)                                       {}
func (e *encoder) BindVertexBuffer(uint32, gpuabi.BufferID)                                          {}
func (e *encoder) BindDescriptorSet(uint32, gpuabi.DescriptorSetID)                                  {}
func (e *encoder) Draw(gpuabi.DrawCall)                                                              {}
func (e *encoder) EndRenderPass()                                                                    {}

func (e *encoder) BeginComputePass()                      {}
func (e *encoder) BindComputePipeline(gpuabi.ComputePipeline) {}
func (e *encoder) Dispatch(uint32, uint32, uint32)         {}
func (e *encoder) EndComputePass()                         {}

func (e *encoder) WriteBuffer(dst gpuabi.BufferID, offset uint64, data []byte) {
	e.device.mu.Lock()
	defer e.device.mu.Unlock()
	buf, ok := e.device.buffers[dst]
	if !ok {
		return
	}
	end := offset + uint64(len(data))
	if end > uint64(len(buf)) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
		e.device.buffers[dst] = buf
	}
	copy(buf[offset:end], data)
}

func (e *encoder) ReadBuffer(src gpuabi.BufferID, offset, size uint64) ([]byte, error) {
	e.device.mu.Lock()
	defer e.device.mu.Unlock()
	buf, ok := e.device.buffers[src]
	if !ok {
		return nil, fmt.Errorf("gpuabi/software: unknown buffer %d", src)
	}
	end := offset + size
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}
	if offset > end {
		offset = end
	}
	out := make([]byte, end-offset)
	copy(out, buf[offset:end])
	return out, nil
}

func (e *encoder) WriteTexture(dst gpuabi.TextureID, _, _, w, h uint32, data []byte) {
	e.device.mu.Lock()
	defer e.device.mu.Unlock()
	tex, ok := e.device.textures[dst]
	if !ok {
		return
	}
	n := int(w) * int(h) * tex.desc.Format.BytesPerTexel()
	if n > len(data) {
		n = len(data)
	}
	if n > len(tex.data) {
		n = len(tex.data)
	}
	copy(tex.data[:n], data[:n])
}

func (e *encoder) ReadTexture(src gpuabi.TextureID, _, _, w, h uint32) ([]byte, error) {
	e.device.mu.Lock()
	defer e.device.mu.Unlock()
	tex, ok := e.device.textures[src]
	if !ok {
		return nil, fmt.Errorf("gpuabi/software: unknown texture %d", src)
	}
	n := int(w) * int(h) * tex.desc.Format.BytesPerTexel()
	if n > len(tex.data) {
		n = len(tex.data)
	}
	out := make([]byte, n)
	copy(out, tex.data[:n])
	return out, nil
}

func (e *encoder) AddCallback(fn func()) {
	e.callbacks = append(e.callbacks, fn)
}

func (e *encoder) Finish() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.finished = true
	return nil
}

// Queue runs encoders' registered callbacks synchronously on submit, since
// there is no real device timeline to wait on.
type Queue struct{}

// NewQueue creates a software queue.
func NewQueue() *Queue { return &Queue{} }

// Submit runs the encoder's callbacks immediately and returns a dummy fence.
func (q *Queue) Submit(enc gpuabi.CommandEncoder) (gpuabi.FenceID, error) {
	se, ok := enc.(*encoder)
	if !ok {
		return 0, fmt.Errorf("gpuabi/software: foreign encoder type %T", enc)
	}
	for _, cb := range se.callbacks {
		cb()
	}
	return 1, nil
}

// SubmitAndWait is identical to Submit since execution is synchronous.
func (q *Queue) SubmitAndWait(enc gpuabi.CommandEncoder) error {
	_, err := q.Submit(enc)
	return err
}
