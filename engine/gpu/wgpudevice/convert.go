package wgpudevice

import (
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

func textureFormat(f gpu.Format) wgpu.TextureFormat {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gpu.FormatRGBA8Srgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case gpu.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case gpu.FormatBGRA8Srgb:
		return wgpu.TextureFormatBGRA8UnormSrgb
	case gpu.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case gpu.FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	case gpu.FormatR32Uint:
		return wgpu.TextureFormatR32Uint
	case gpu.FormatR32Float:
		return wgpu.TextureFormatR32Float
	case gpu.FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatUndefined
	}
}

func engineFormat(f wgpu.TextureFormat) gpu.Format {
	switch f {
	case wgpu.TextureFormatRGBA8Unorm:
		return gpu.FormatRGBA8Unorm
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return gpu.FormatRGBA8Srgb
	case wgpu.TextureFormatBGRA8Unorm:
		return gpu.FormatBGRA8Unorm
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return gpu.FormatBGRA8Srgb
	case wgpu.TextureFormatRGBA16Float:
		return gpu.FormatRGBA16Float
	default:
		return gpu.FormatUndefined
	}
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageIndirect != 0 {
		out |= wgpu.BufferUsageIndirect
	}
	if u&gpu.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&gpu.BufferUsageReadback != 0 {
		// Mappable buffers may only be combined with CopyDst.
		return wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	}
	// Every buffer can be written from the queue and copied out of.
	return out | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
}

func textureUsage(u gpu.ImageUsage) wgpu.TextureUsage {
	out := wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
	if u&gpu.ImageUsageSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.ImageUsageStorage != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&(gpu.ImageUsageColorAttachment|gpu.ImageUsageDepthAttachment) != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

func textureDimension(d gpu.ImageDimension) (wgpu.TextureDimension, wgpu.TextureViewDimension) {
	if d == gpu.ImageDimension3D {
		return wgpu.TextureDimension3D, wgpu.TextureViewDimension3D
	}
	return wgpu.TextureDimension2D, wgpu.TextureViewDimension2D
}

func filterMode(f gpu.Filter) wgpu.FilterMode {
	if f == gpu.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func mipmapFilterMode(f gpu.Filter) wgpu.MipmapFilterMode {
	if f == gpu.FilterNearest {
		return wgpu.MipmapFilterModeNearest
	}
	return wgpu.MipmapFilterModeLinear
}

func addressMode(a gpu.AddressMode) wgpu.AddressMode {
	switch a {
	case gpu.AddressClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gpu.AddressMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

func compareFunction(c gpu.CompareOp) wgpu.CompareFunction {
	switch c {
	case gpu.CompareGreaterOrEqual:
		return wgpu.CompareFunctionGreaterEqual
	case gpu.CompareGreater:
		return wgpu.CompareFunctionGreater
	case gpu.CompareLessOrEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.CompareNever:
		return wgpu.CompareFunctionNever
	default:
		return wgpu.CompareFunctionAlways
	}
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullBack:
		return wgpu.CullModeBack
	case gpu.CullFront:
		return wgpu.CullModeFront
	default:
		return wgpu.CullModeNone
	}
}

func blendState(b gpu.BlendMode) *wgpu.BlendState {
	switch b {
	case gpu.BlendAlpha:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
		}
	case gpu.BlendAdditive:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
		}
	default:
		return nil
	}
}

func clearColor(f gpu.Format, v gpu.ClearValue) wgpu.Color {
	if f == gpu.FormatR32Uint {
		return wgpu.Color{R: float64(v.Uint[0]), G: float64(v.Uint[1]), B: float64(v.Uint[2]), A: float64(v.Uint[3])}
	}
	return wgpu.Color{R: float64(v.Color[0]), G: float64(v.Color[1]), B: float64(v.Color[2]), A: float64(v.Color[3])}
}
