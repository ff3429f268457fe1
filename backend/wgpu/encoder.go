package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gg/gpuabi"
)

// encoder implements gpuabi.CommandEncoder over a hal command encoder.
// Buffer and texture writes go through the queue (the hal idiom for
// host-visible uploads); pass commands record into the hal encoder.
type encoder struct {
	device   *Device
	label    string
	hal      hal.CommandEncoder
	finished bool
	buffer   hal.CommandBuffer

	renderPass  *halRenderPass
	computePass hal.ComputePassEncoder

	callbacks []func()

	err error
}

type halRenderPass struct {
	pass hal.RenderPassEncoder
}

func newEncoder(d *Device, label string) *encoder {
	e := &encoder{device: d, label: label}
	halEnc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		e.err = err
		return e
	}
	if err := halEnc.BeginEncoding(label); err != nil {
		e.err = err
		return e
	}
	e.hal = halEnc
	return e
}

func (e *encoder) BeginRenderPass(pass gpuabi.RenderPassID, target gpuabi.TextureID, clear [4]float32, load gpuabi.LoadOp) {
	if e.err != nil || e.hal == nil {
		return
	}
	tex, ok := e.device.lookupTexture(target)
	if !ok {
		e.err = fmt.Errorf("wgpu: render target %d not found", target)
		return
	}
	loadOp := gputypes.LoadOpLoad
	if load == gpuabi.LoadOpClear {
		loadOp = gputypes.LoadOpClear
	}
	e.device.mu.Lock()
	if desc, ok := e.device.renderPasses[pass]; ok && desc.Load == gpuabi.LoadOpClear {
		loadOp = gputypes.LoadOpClear
	}
	e.device.mu.Unlock()

	rp := e.hal.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: e.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       tex.view,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: float64(clear[0]), G: float64(clear[1]), B: float64(clear[2]), A: float64(clear[3])},
		}},
	})
	e.renderPass = &halRenderPass{pass: rp}
}

// SetViewport is recorded for parity with the ABI; the hal render pass
// encoder draws to the full attachment, which matches how the renderer
// sizes its passes.
func (e *encoder) SetViewport(x, y, w, h float32) {}

func (e *encoder) BindRenderPipeline(id gpuabi.RenderPipelineID) {
	if e.renderPass == nil {
		return
	}
	e.device.mu.Lock()
	pipeline, ok := e.device.renderPipelines[id]
	e.device.mu.Unlock()
	if ok {
		e.renderPass.pass.SetPipeline(pipeline)
	}
}

func (e *encoder) BindVertexBuffer(slot uint32, buf gpuabi.BufferID) {
	if e.renderPass == nil {
		return
	}
	if entry, ok := e.device.lookupBuffer(buf); ok {
		e.renderPass.pass.SetVertexBuffer(slot, entry.buffer, 0)
	}
}

func (e *encoder) BindDescriptorSet(slot uint32, set gpuabi.DescriptorSetID) {
	e.device.mu.Lock()
	ds, ok := e.device.descriptorSets[set]
	e.device.mu.Unlock()
	if !ok {
		return
	}
	if e.renderPass != nil {
		e.renderPass.pass.SetBindGroup(slot, ds.group, nil)
	} else if e.computePass != nil {
		e.computePass.SetBindGroup(slot, ds.group, nil)
	}
}

func (e *encoder) Draw(call gpuabi.DrawCall) {
	if e.renderPass == nil {
		return
	}
	e.renderPass.pass.Draw(call.VertexCount, call.InstanceCount, 0, 0)
}

func (e *encoder) EndRenderPass() {
	if e.renderPass != nil {
		e.renderPass.pass.End()
		e.renderPass = nil
	}
}

func (e *encoder) BeginComputePass() {
	if e.err != nil || e.hal == nil {
		return
	}
	e.computePass = e.hal.BeginComputePass(&hal.ComputePassDescriptor{Label: e.label})
}

func (e *encoder) BindComputePipeline(id gpuabi.ComputePipeline) {
	if e.computePass == nil {
		return
	}
	e.device.mu.Lock()
	pipeline, ok := e.device.computePipelines[id]
	e.device.mu.Unlock()
	if ok {
		e.computePass.SetPipeline(pipeline)
	}
}

func (e *encoder) Dispatch(x, y, z uint32) {
	if e.computePass == nil {
		return
	}
	e.computePass.Dispatch(x, y, z)
}

func (e *encoder) EndComputePass() {
	if e.computePass != nil {
		e.computePass.End()
		e.computePass = nil
	}
}

func (e *encoder) WriteBuffer(dst gpuabi.BufferID, offset uint64, data []byte) {
	if entry, ok := e.device.lookupBuffer(dst); ok && len(data) > 0 {
		e.device.queue.WriteBuffer(entry.buffer, offset, data)
	}
}

// ReadBuffer copies the source range into a mappable staging buffer and
// waits for the copy. Mirrors the hal adapter's staging-readback pattern.
func (e *encoder) ReadBuffer(src gpuabi.BufferID, offset, size uint64) ([]byte, error) {
	entry, ok := e.device.lookupBuffer(src)
	if !ok {
		return nil, fmt.Errorf("wgpu: buffer %d not found", src)
	}

	staging, err := e.device.device.CreateBuffer(&hal.BufferDescriptor{
		Label:            "staging-readback",
		Size:             size,
		Usage:            gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: staging buffer: %w", err)
	}
	defer e.device.device.DestroyBuffer(staging)

	copyEnc, err := e.device.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "buffer-read"})
	if err != nil {
		return nil, err
	}
	if err := copyEnc.BeginEncoding("buffer-read"); err != nil {
		return nil, err
	}
	copyEnc.CopyBufferToBuffer(entry.buffer, staging, []hal.BufferCopy{{
		SrcOffset: offset,
		DstOffset: 0,
		Size:      size,
	}})
	cmd, err := copyEnc.EndEncoding()
	if err != nil {
		return nil, err
	}
	defer cmd.Destroy()

	fence, err := e.device.device.CreateFence()
	if err != nil {
		return nil, err
	}
	defer e.device.device.DestroyFence(fence)

	if err := e.device.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return nil, err
	}
	if _, err := e.device.device.Wait(fence, 1, readbackTimeoutNs); err != nil {
		return nil, err
	}

	out := make([]byte, size)
	readStagingBuffer(staging, out)
	return out, nil
}

const readbackTimeoutNs = 5_000_000_000

func (e *encoder) WriteTexture(dst gpuabi.TextureID, x, y, w, h uint32, data []byte) {
	tex, ok := e.device.lookupTexture(dst)
	if !ok || len(data) == 0 {
		return
	}
	bpt := uint32(tex.desc.Format.BytesPerTexel())
	e.device.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  tex.texture,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: x, Y: y, Z: 0},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  w * bpt,
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
}

func (e *encoder) ReadTexture(src gpuabi.TextureID, x, y, w, h uint32) ([]byte, error) {
	tex, ok := e.device.lookupTexture(src)
	if !ok {
		return nil, fmt.Errorf("wgpu: texture %d not found", src)
	}
	_ = tex
	// Texture readback needs a copy-to-buffer plus row-pitch dealignment;
	// the renderer core only reads textures in tests, which run on the
	// software device.
	return nil, fmt.Errorf("%w: texture readback", gpuabi.ErrUnsupportedFormat)
}

func (e *encoder) AddCallback(fn func()) {
	e.callbacks = append(e.callbacks, fn)
}

func (e *encoder) Finish() error {
	if e.finished {
		return gpuabi.ErrEncoderFinished
	}
	e.finished = true
	if e.err != nil {
		return e.err
	}
	if e.hal == nil {
		return nil
	}
	cmd, err := e.hal.EndEncoding()
	if err != nil {
		return err
	}
	e.buffer = cmd
	return nil
}
