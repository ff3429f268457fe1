// Package gpuabi defines the backend-neutral GPU abstraction the renderer
// core depends on: device, queue, command encoder, descriptor set, and swap
// chain. Any backend implementing these interfaces (a portable-GL-style
// backend, a Vulkan/Metal/D3D12-style backend, or a software fallback) can
// drive both rendering strategies.
//
// Grounded on the teacher's gpucore/types.go (opaque uint64 resource
// handles, explicit usage/format bitmasks) and backend/backend.go
// (Name/Init/Close/NewRenderer backend registration shape), generalized to
// the device/queue/encoder contract spec.md §4.1 and §6 require. Method
// names and resource kinds track original_source/pathfinder's
// gpu/device.h and gpu/command_encoder.h.
package gpuabi

import "errors"

// Resource handles. Opaque uint64s, matching the teacher's gpucore handle
// pattern; backends map these to their native resource types.
type (
	BufferID         uint64
	TextureID        uint64
	SamplerID        uint64
	ShaderModuleID   uint64
	RenderPassID     uint64
	RenderPipelineID uint64
	ComputePipeline  uint64
	DescriptorSetID  uint64
	FenceID          uint64
)

// InvalidID is the zero value for all handle types: no resource.
const InvalidID = 0

// Failure model errors (spec.md §4.1, §7): configuration/allocation
// failures surface to the caller; transient conditions surface through
// swap-chain resize.
var (
	ErrUnsupportedFormat   = errors.New("gpuabi: unsupported texture or blend format")
	ErrOutOfMemory         = errors.New("gpuabi: device out of memory")
	ErrSwapChainOutOfDate  = errors.New("gpuabi: swap chain image out of date, resize required")
	ErrInvalidTransition    = errors.New("gpuabi: invalid layout transition")
	ErrEncoderFinished     = errors.New("gpuabi: command encoder already finished")
)

// BufferKind distinguishes vertex/index/uniform/storage buffers.
type BufferKind uint8

const (
	BufferVertex BufferKind = iota
	BufferIndex
	BufferUniform
	BufferStorage
)

// MemoryProperty selects host-visible-coherent vs device-local placement.
type MemoryProperty uint8

const (
	MemoryHostVisibleCoherent MemoryProperty = iota
	MemoryDeviceLocal
)

// TextureFormat is the fixed set of formats the core depends on.
type TextureFormat uint8

const (
	FormatRGBA8Unorm TextureFormat = iota
	FormatBGRA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Srgb
	FormatRGBA16Float
)

// BytesPerTexel returns the data size for one texel of the format, used by
// gpumem to size texture allocations.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm, FormatRGBA8Srgb, FormatBGRA8Srgb:
		return 4
	case FormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

// ElementType is a vertex attribute's component type.
type ElementType uint8

const (
	ElemI8 ElementType = iota
	ElemU8
	ElemI16
	ElemU16
	ElemI32
	ElemU32
	ElemF16
	ElemF32
)

// StepMode selects per-vertex vs per-instance attribute advance.
type StepMode uint8

const (
	StepPerVertex StepMode = iota
	StepPerInstance
)

// VertexAttribute describes one vertex input, per spec.md §4.1.
type VertexAttribute struct {
	Binding    uint32
	Components int // 1..4
	Type       ElementType
	Stride     uint32
	Offset     uint32
	Step       StepMode
}

// FilterMode is a sampler min/mag filter.
type FilterMode uint8

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// AddressMode is a sampler U/V address mode.
type AddressMode uint8

const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
	AddressMirrorRepeat
)

// LoadOp selects whether a render pass attachment is cleared or preserved.
type LoadOp uint8

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
)

// BlendState is restricted to the three blend modes the core needs.
type BlendState uint8

const (
	// BlendReplace overwrites the destination with the source.
	BlendReplace BlendState = iota
	// BlendOver is standard source-over: src + dst*(1-srcA), same for alpha.
	BlendOver
	// BlendEqual sums: src + dst. Used by the raster strategy's fill pass
	// to accumulate coverage additively.
	BlendEqual
)

// ShaderStage is a bitmask of which pipeline stages a binding is visible to.
type ShaderStage uint8

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
	StageCompute
)

// BindingKind is the type of resource bound at a descriptor binding.
type BindingKind uint8

const (
	BindingUniformBuffer BindingKind = iota
	BindingSampler
	BindingStorageBuffer
	BindingStorageImage
)

// Binding is one entry in a descriptor set.
type Binding struct {
	Index   uint32
	Kind    BindingKind
	Stages  ShaderStage
	Buffer  BufferID
	Texture TextureID
	Sampler SamplerID
}

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Size     uint64
	Kind     BufferKind
	Property MemoryProperty
	Label    string
}

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Width, Height uint32
	Format        TextureFormat
	Label         string
}

// SamplerDesc describes a sampler to create.
type SamplerDesc struct {
	MinFilter, MagFilter FilterMode
	AddressU, AddressV   AddressMode
	Label                string
}

// ShaderKind distinguishes vertex/fragment/compute shader modules.
type ShaderKind uint8

const (
	ShaderVertex ShaderKind = iota
	ShaderFragment
	ShaderCompute
)

// RenderPassDesc describes a render pass with a single color attachment.
type RenderPassDesc struct {
	ColorFormat TextureFormat
	Load        LoadOp
	ClearColor  [4]float32
	Label       string
}

// Device is the factory for all GPU resources the core needs.
type Device interface {
	CreateBuffer(desc BufferDesc) (BufferID, error)
	CreateTexture(desc TextureDesc) (TextureID, error)
	CreateSampler(desc SamplerDesc) (SamplerID, error)
	CreateShaderModule(kind ShaderKind, name string, bytes []byte) (ShaderModuleID, error)
	CreateRenderPass(desc RenderPassDesc) (RenderPassID, error)
	CreateRenderPipeline(desc RenderPipelineDesc) (RenderPipelineID, error)
	CreateComputePipeline(shader ShaderModuleID, entryPoint string) (ComputePipeline, error)
	CreateDescriptorSet(bindings []Binding) (DescriptorSetID, error)
	CreateCommandEncoder(label string) CommandEncoder
	CreateFence() (FenceID, error)

	DestroyBuffer(BufferID)
	DestroyTexture(TextureID)
}

// RenderPipelineDesc describes a render pipeline: shaders, vertex layout,
// blend state, and the pass it targets.
type RenderPipelineDesc struct {
	Label      string
	Pass       RenderPassID
	Vertex     ShaderModuleID
	Fragment   ShaderModuleID
	Attributes []VertexAttribute
	Blend      BlendState
}

// DrawCall is one instanced draw: VertexCount vertices, repeated
// InstanceCount times.
type DrawCall struct {
	VertexCount, InstanceCount uint32
}

// CommandEncoder is an append-only buffer of typed GPU commands. It is
// finalized at submission (Finish) and may not be reused afterwards.
type CommandEncoder interface {
	BeginRenderPass(pass RenderPassID, target TextureID, clear [4]float32, load LoadOp)
	SetViewport(x, y, w, h float32)
	BindRenderPipeline(RenderPipelineID)
	BindVertexBuffer(slot uint32, buf BufferID)
	BindDescriptorSet(slot uint32, set DescriptorSetID)
	Draw(call DrawCall)
	EndRenderPass()

	BeginComputePass()
	BindComputePipeline(ComputePipeline)
	Dispatch(x, y, z uint32)
	EndComputePass()

	WriteBuffer(dst BufferID, offset uint64, data []byte)
	ReadBuffer(src BufferID, offset uint64, size uint64) ([]byte, error)
	WriteTexture(dst TextureID, x, y, w, h uint32, data []byte)
	ReadTexture(src TextureID, x, y, w, h uint32) ([]byte, error)

	// AddCallback registers a function the queue invokes once this
	// encoder has been submitted. The software queue runs it after its
	// synchronous submit; the wgpu queue runs it right after handing the
	// commands to the device, without waiting for them to complete. The
	// compute strategy does not use it: its three CPU-GPU sync points read
	// the header back with ReadBuffer after a waited submit.
	AddCallback(fn func())

	// Finish finalizes the encoder for submission. It may not be used
	// (recorded into or submitted again) afterwards.
	Finish() error
}

// Queue submits encoders for execution, in submission order.
type Queue interface {
	Submit(enc CommandEncoder) (FenceID, error)
	SubmitAndWait(enc CommandEncoder) error
}

// AcquireResult is returned by SwapChain.AcquireImage.
type AcquireResult struct {
	Texture    TextureID
	OutOfDate  bool
}

// SwapChain presents rendered frames to a window surface. The core is
// independent of any specific window system; this interface is the only
// seam.
type SwapChain interface {
	AcquireImage() (AcquireResult, error)
	SurfaceFormat() TextureFormat
	Present() error
	Destroy()
}
