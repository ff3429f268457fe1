// Package wgpu adapts a wgpu hal device to the renderer's gpuabi
// contract, so both rendering strategies can run on Vulkan, Metal, or
// DX12 through github.com/gogpu/wgpu. Shader modules arrive either as
// SPIR-V or as WGSL source, which is translated through github.com/gogpu/
// naga before module creation.
//
// The adapter owns the id-to-hal-resource tables; gpuabi handles are plain
// integers on the wire and resolve here at record time.
package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gg/gpuabi"
)

// Device implements gpuabi.Device over a hal device.
type Device struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue
	nextID uint64

	buffers          map[gpuabi.BufferID]*bufferEntry
	textures         map[gpuabi.TextureID]*textureEntry
	samplers         map[gpuabi.SamplerID]hal.Sampler
	shaders          map[gpuabi.ShaderModuleID]hal.ShaderModule
	renderPasses     map[gpuabi.RenderPassID]gpuabi.RenderPassDesc
	renderPipelines  map[gpuabi.RenderPipelineID]hal.RenderPipeline
	computePipelines map[gpuabi.ComputePipeline]hal.ComputePipeline
	descriptorSets   map[gpuabi.DescriptorSetID]*descriptorSet
	fences           map[gpuabi.FenceID]hal.Fence
}

type bufferEntry struct {
	buffer hal.Buffer
	size   uint64
}

type textureEntry struct {
	texture hal.Texture
	view    hal.TextureView
	desc    gpuabi.TextureDesc
}

type descriptorSet struct {
	layout hal.BindGroupLayout
	group  hal.BindGroup
}

// NewDevice wraps an already-opened hal device and queue. Most callers go
// through the backend registry instead; this constructor is the seam for
// embedders that share a device with the host application (the
// DeviceHandle path in provider.go).
func NewDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{
		device:           device,
		queue:            queue,
		nextID:           1,
		buffers:          make(map[gpuabi.BufferID]*bufferEntry),
		textures:         make(map[gpuabi.TextureID]*textureEntry),
		samplers:         make(map[gpuabi.SamplerID]hal.Sampler),
		shaders:          make(map[gpuabi.ShaderModuleID]hal.ShaderModule),
		renderPasses:     make(map[gpuabi.RenderPassID]gpuabi.RenderPassDesc),
		renderPipelines:  make(map[gpuabi.RenderPipelineID]hal.RenderPipeline),
		computePipelines: make(map[gpuabi.ComputePipeline]hal.ComputePipeline),
		descriptorSets:   make(map[gpuabi.DescriptorSetID]*descriptorSet),
		fences:           make(map[gpuabi.FenceID]hal.Fence),
	}
}

func (d *Device) allocID() uint64 {
	id := d.nextID
	d.nextID++
	return id
}

// CreateBuffer creates a GPU buffer whose usage covers every role the
// renderer's buffer kinds need (copy, bind, map for readback headers).
func (d *Device) CreateBuffer(desc gpuabi.BufferDesc) (gpuabi.BufferID, error) {
	if desc.Size == 0 {
		return 0, fmt.Errorf("%w: zero-size buffer", gpuabi.ErrUnsupportedFormat)
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: convertBufferUsage(desc.Kind, desc.Property),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrOutOfMemory, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.BufferID(d.allocID())
	d.buffers[id] = &bufferEntry{buffer: buf, size: desc.Size}
	return id, nil
}

// CreateTexture creates a texture plus its default 2D view, which render
// passes and bindings reference.
func (d *Device) CreateTexture(desc gpuabi.TextureDesc) (gpuabi.TextureID, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return 0, fmt.Errorf("%w: zero-size texture", gpuabi.ErrUnsupportedFormat)
	}
	format, err := convertTextureFormat(desc.Format)
	if err != nil {
		return 0, err
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageTextureBinding | gputypes.TextureUsageStorageBinding |
			gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrOutOfMemory, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + " view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrOutOfMemory, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.TextureID(d.allocID())
	d.textures[id] = &textureEntry{texture: tex, view: view, desc: desc}
	return id, nil
}

// CreateSampler creates a sampler from the min/mag filter and address
// modes.
func (d *Device) CreateSampler(desc gpuabi.SamplerDesc) (gpuabi.SamplerID, error) {
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: convertAddressMode(desc.AddressU),
		AddressModeV: convertAddressMode(desc.AddressV),
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    convertFilterMode(desc.MagFilter),
		MinFilter:    convertFilterMode(desc.MinFilter),
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrOutOfMemory, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.SamplerID(d.allocID())
	d.samplers[id] = s
	return id, nil
}

// CreateShaderModule accepts SPIR-V bytes directly or WGSL source, which
// is compiled through naga.
func (d *Device) CreateShaderModule(_ gpuabi.ShaderKind, name string, bytes []byte) (gpuabi.ShaderModuleID, error) {
	if len(bytes) == 0 {
		return 0, fmt.Errorf("%w: empty shader module %q", gpuabi.ErrUnsupportedFormat, name)
	}
	source, err := shaderSource(bytes)
	if err != nil {
		return 0, fmt.Errorf("shader %q: %w", name, err)
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: source,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: shader %q: %v", gpuabi.ErrUnsupportedFormat, name, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.ShaderModuleID(d.allocID())
	d.shaders[id] = module
	return id, nil
}

// CreateRenderPass records the pass description; hal has no standalone
// pass object, so the description resolves at BeginRenderPass time.
func (d *Device) CreateRenderPass(desc gpuabi.RenderPassDesc) (gpuabi.RenderPassID, error) {
	if _, err := convertTextureFormat(desc.ColorFormat); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.RenderPassID(d.allocID())
	d.renderPasses[id] = desc
	return id, nil
}

// CreateRenderPipeline builds a hal render pipeline from the descriptor's
// shaders, vertex layout, and blend state.
func (d *Device) CreateRenderPipeline(desc gpuabi.RenderPipelineDesc) (gpuabi.RenderPipelineID, error) {
	d.mu.Lock()
	vert, okV := d.shaders[desc.Vertex]
	frag, okF := d.shaders[desc.Fragment]
	passDesc, okP := d.renderPasses[desc.Pass]
	d.mu.Unlock()
	if !okV || !okF {
		return 0, fmt.Errorf("%w: unknown shader module", gpuabi.ErrUnsupportedFormat)
	}
	colorFormat := gpuabi.FormatRGBA8Unorm
	if okP {
		colorFormat = passDesc.ColorFormat
	}
	format, err := convertTextureFormat(colorFormat)
	if err != nil {
		return 0, err
	}

	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label: desc.Label,
		Vertex: hal.VertexState{
			Module:     vert,
			EntryPoint: "vs_main",
			Buffers:    convertVertexLayout(desc.Attributes),
		},
		Fragment: &hal.FragmentState{
			Module:     frag,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				Blend:     convertBlendState(desc.Blend),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrUnsupportedFormat, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.RenderPipelineID(d.allocID())
	d.renderPipelines[id] = pipeline
	return id, nil
}

// CreateComputePipeline builds a compute pipeline for one entry point. The
// bind group layout is derived per descriptor set at bind time, so the
// pipeline layout here is implicit (layout "auto" in WebGPU terms).
func (d *Device) CreateComputePipeline(shader gpuabi.ShaderModuleID, entryPoint string) (gpuabi.ComputePipeline, error) {
	d.mu.Lock()
	module, ok := d.shaders[shader]
	d.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: unknown shader module", gpuabi.ErrUnsupportedFormat)
	}
	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: entryPoint + " pipeline",
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrUnsupportedFormat, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.ComputePipeline(d.allocID())
	d.computePipelines[id] = pipeline
	return id, nil
}

// CreateDescriptorSet resolves the bindings into a hal bind group layout
// plus bind group.
func (d *Device) CreateDescriptorSet(bindings []gpuabi.Binding) (gpuabi.DescriptorSetID, error) {
	layoutEntries := make([]gputypes.BindGroupLayoutEntry, 0, len(bindings))
	groupEntries := make([]gputypes.BindGroupEntry, 0, len(bindings))

	d.mu.Lock()
	for _, b := range bindings {
		layoutEntries = append(layoutEntries, convertLayoutEntry(b))
		entry, err := d.convertGroupEntryLocked(b)
		if err != nil {
			d.mu.Unlock()
			return 0, err
		}
		groupEntries = append(groupEntries, entry)
	}
	d.mu.Unlock()

	layout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "descriptor set layout",
		Entries: layoutEntries,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrUnsupportedFormat, err)
	}
	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "descriptor set",
		Layout:  layout,
		Entries: groupEntries,
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(layout)
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrUnsupportedFormat, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.DescriptorSetID(d.allocID())
	d.descriptorSets[id] = &descriptorSet{layout: layout, group: group}
	return id, nil
}

func (d *Device) convertGroupEntryLocked(b gpuabi.Binding) (gputypes.BindGroupEntry, error) {
	entry := gputypes.BindGroupEntry{Binding: b.Index}
	switch b.Kind {
	case gpuabi.BindingUniformBuffer, gpuabi.BindingStorageBuffer:
		buf, ok := d.buffers[b.Buffer]
		if !ok {
			return entry, fmt.Errorf("wgpu: buffer %d not found", b.Buffer)
		}
		entry.Resource = gputypes.BufferBinding{
			Buffer: buf.buffer.NativeHandle(),
			Offset: 0,
			Size:   buf.size,
		}
	case gpuabi.BindingSampler, gpuabi.BindingStorageImage:
		if _, ok := d.textures[b.Texture]; !ok {
			return entry, fmt.Errorf("wgpu: texture %d not found", b.Texture)
		}
		// hal does not yet expose texture view handles directly; the
		// adapter-side id doubles as the handle, resolved by the hal
		// bind-group implementation.
		entry.Resource = gputypes.TextureViewBinding{
			TextureView: gputypes.TextureViewHandle(b.Texture),
		}
	}
	return entry, nil
}

// CreateCommandEncoder returns a recording encoder over a hal encoder.
func (d *Device) CreateCommandEncoder(label string) gpuabi.CommandEncoder {
	return newEncoder(d, label)
}

// CreateFence creates a fence for queue synchronization.
func (d *Device) CreateFence() (gpuabi.FenceID, error) {
	f, err := d.device.CreateFence()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gpuabi.ErrOutOfMemory, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpuabi.FenceID(d.allocID())
	d.fences[id] = f
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpuabi.BufferID) {
	d.mu.Lock()
	entry, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBuffer(entry.buffer)
	}
}

// DestroyTexture releases a texture and its default view.
func (d *Device) DestroyTexture(id gpuabi.TextureID) {
	d.mu.Lock()
	entry, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyTextureView(entry.view)
		d.device.DestroyTexture(entry.texture)
	}
}

func (d *Device) lookupBuffer(id gpuabi.BufferID) (*bufferEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.buffers[id]
	return e, ok
}

func (d *Device) lookupTexture(id gpuabi.TextureID) (*textureEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.textures[id]
	return e, ok
}
