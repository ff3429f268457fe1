package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gg/gpuabi"
)

func convertBufferUsage(kind gpuabi.BufferKind, property gpuabi.MemoryProperty) gputypes.BufferUsage {
	usage := gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	switch kind {
	case gpuabi.BufferVertex:
		usage |= gputypes.BufferUsageVertex
	case gpuabi.BufferIndex:
		usage |= gputypes.BufferUsageIndex
	case gpuabi.BufferUniform:
		usage |= gputypes.BufferUsageUniform
	case gpuabi.BufferStorage:
		usage |= gputypes.BufferUsageStorage
	}
	if property == gpuabi.MemoryHostVisibleCoherent {
		usage |= gputypes.BufferUsageMapWrite
	}
	return usage
}

func convertTextureFormat(f gpuabi.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case gpuabi.FormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case gpuabi.FormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	case gpuabi.FormatRGBA8Srgb:
		return gputypes.TextureFormatRGBA8UnormSrgb, nil
	case gpuabi.FormatBGRA8Srgb:
		return gputypes.TextureFormatBGRA8UnormSrgb, nil
	case gpuabi.FormatRGBA16Float:
		return gputypes.TextureFormatRGBA16Float, nil
	default:
		return 0, fmt.Errorf("%w: texture format %d", gpuabi.ErrUnsupportedFormat, f)
	}
}

func convertAddressMode(m gpuabi.AddressMode) gputypes.AddressMode {
	switch m {
	case gpuabi.AddressRepeat:
		return gputypes.AddressModeRepeat
	case gpuabi.AddressMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

func convertFilterMode(m gpuabi.FilterMode) gputypes.FilterMode {
	if m == gpuabi.FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

// convertBlendState maps the core's three blend modes onto wgpu blend
// state: replace disables blending, over is premultiplied source-over,
// equal is an additive sum used by the raster fill pass.
func convertBlendState(b gpuabi.BlendState) *gputypes.BlendState {
	switch b {
	case gpuabi.BlendOver:
		s := gputypes.BlendStatePremultiplied()
		return &s
	case gpuabi.BlendEqual:
		s := gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
		}
		return &s
	default:
		return nil
	}
}

func convertVertexLayout(attrs []gpuabi.VertexAttribute) []gputypes.VertexBufferLayout {
	// Attributes group by binding slot; each slot becomes one buffer
	// layout with its own stride and step mode.
	bySlot := make(map[uint32][]gpuabi.VertexAttribute)
	var order []uint32
	for _, a := range attrs {
		if _, ok := bySlot[a.Binding]; !ok {
			order = append(order, a.Binding)
		}
		bySlot[a.Binding] = append(bySlot[a.Binding], a)
	}

	var out []gputypes.VertexBufferLayout
	location := uint32(0)
	for _, slot := range order {
		group := bySlot[slot]
		layout := gputypes.VertexBufferLayout{
			ArrayStride: uint64(group[0].Stride),
			StepMode:    gputypes.VertexStepModeVertex,
		}
		if group[0].Step == gpuabi.StepPerInstance {
			layout.StepMode = gputypes.VertexStepModeInstance
		}
		for _, a := range group {
			layout.Attributes = append(layout.Attributes, gputypes.VertexAttribute{
				Format:         convertVertexFormat(a),
				Offset:         uint64(a.Offset),
				ShaderLocation: location,
			})
			location++
		}
		out = append(out, layout)
	}
	return out
}

func convertVertexFormat(a gpuabi.VertexAttribute) gputypes.VertexFormat {
	switch a.Type {
	case gpuabi.ElemF32:
		switch a.Components {
		case 1:
			return gputypes.VertexFormatFloat32
		case 2:
			return gputypes.VertexFormatFloat32x2
		case 3:
			return gputypes.VertexFormatFloat32x3
		default:
			return gputypes.VertexFormatFloat32x4
		}
	case gpuabi.ElemU16:
		if a.Components <= 2 {
			return gputypes.VertexFormatUint16x2
		}
		return gputypes.VertexFormatUint16x4
	case gpuabi.ElemI16:
		if a.Components <= 2 {
			return gputypes.VertexFormatSint16x2
		}
		return gputypes.VertexFormatSint16x4
	case gpuabi.ElemU8:
		if a.Components <= 2 {
			return gputypes.VertexFormatUint8x2
		}
		return gputypes.VertexFormatUint8x4
	case gpuabi.ElemI8:
		if a.Components <= 2 {
			return gputypes.VertexFormatSint8x2
		}
		return gputypes.VertexFormatSint8x4
	case gpuabi.ElemU32:
		return gputypes.VertexFormatUint32
	case gpuabi.ElemI32:
		return gputypes.VertexFormatSint32
	case gpuabi.ElemF16:
		return gputypes.VertexFormatFloat16x2
	default:
		return gputypes.VertexFormatFloat32
	}
}
