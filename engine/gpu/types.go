// Package gpu is the device layer consumed by the render graph and the renderer. It wraps a
// concrete graphics device behind the Device interface and adds the frame bookkeeping the
// renderer relies on: persistent and frame-scoped buffers, image lifetime, full device waits
// and the bindless descriptor set.
package gpu

import "fmt"

// MaxBufferSize is the largest buffer the renderer is allowed to request. Growing a scene
// buffer past this bound is a content bug.
const MaxBufferSize uint64 = 1 << 31

// MaxMipLevels is the maximum number of mip levels an image may carry.
const MaxMipLevels uint32 = 13

// Format enumerates the texel formats used by the renderer.
type Format uint8

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatRGBA16Float
	FormatRGBA32Float
	FormatR32Uint
	FormatR32Float
	FormatDepth32Float
)

// BytesPerTexel returns the size of one texel in bytes.
func (f Format) BytesPerTexel() uint32 {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8Srgb, FormatBGRA8Unorm, FormatBGRA8Srgb, FormatR32Uint, FormatR32Float, FormatDepth32Float:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// IsDepth reports whether the format is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatDepth32Float
}

// IsSRGB reports whether writes to f are gamma encoded by the hardware.
func (f Format) IsSRGB() bool {
	return f == FormatRGBA8Srgb || f == FormatBGRA8Srgb
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA8Srgb:
		return "rgba8unorm-srgb"
	case FormatBGRA8Unorm:
		return "bgra8unorm"
	case FormatBGRA8Srgb:
		return "bgra8unorm-srgb"
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatRGBA32Float:
		return "rgba32float"
	case FormatR32Uint:
		return "r32uint"
	case FormatR32Float:
		return "r32float"
	case FormatDepth32Float:
		return "depth32float"
	default:
		return "undefined"
	}
}

// Extent is the size of an image in texels.
type Extent struct {
	Width, Height, Depth uint32
}

// Extent2D returns a 2D extent with depth 1.
func Extent2D(width, height uint32) Extent {
	return Extent{Width: width, Height: height, Depth: 1}
}

// Mip returns the extent of the given mip level, never smaller than one texel per axis.
func (e Extent) Mip(level uint32) Extent {
	return Extent{
		Width:  max(e.Width>>level, 1),
		Height: max(e.Height>>level, 1),
		Depth:  max(e.Depth>>level, 1),
	}
}

// IsZero reports whether any axis of the extent is zero.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0 || e.Depth == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%dx%d", e.Width, e.Height, e.Depth)
}

// ImageDimension is the dimensionality of an image.
type ImageDimension uint8

const (
	ImageDimension2D ImageDimension = iota
	ImageDimension3D
)

// ImageUsage is a bitmask of the ways an image may be used.
type ImageUsage uint32

const (
	ImageUsageSampled ImageUsage = 1 << iota
	ImageUsageStorage
	ImageUsageColorAttachment
	ImageUsageDepthAttachment
	ImageUsageTransferSrc
	ImageUsageTransferDst
)

// ImageSpec describes an image to be created.
type ImageSpec struct {
	Format    Format
	Extent    Extent
	MipLevels uint32
	Dimension ImageDimension
	Usage     ImageUsage
}

// Validate checks the spec against the assertion-class invariants of image creation.
func (s ImageSpec) Validate() error {
	if s.Extent.IsZero() {
		return fmt.Errorf("image extent %s must be non-zero on every axis", s.Extent)
	}
	if s.MipLevels == 0 || s.MipLevels > MaxMipLevels {
		return fmt.Errorf("image mip count %d must be within [1, %d]", s.MipLevels, MaxMipLevels)
	}
	if s.Format == FormatUndefined {
		return fmt.Errorf("image format must be defined")
	}
	return nil
}

// BufferUsage is a bitmask of the ways a buffer may be used.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageIndirect
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageTransferSrc
	BufferUsageTransferDst
	BufferUsageReadback
)

// Buffer is a handle to a device buffer. Handles are compared by identity.
type Buffer struct {
	// ID is unique per device and never reused.
	ID    uint64
	Label string
	Size  uint64
	Usage BufferUsage
}

// Valid reports whether b refers to a live buffer handle.
func (b *Buffer) Valid() bool {
	return b != nil && b.ID != 0
}

// Image is a handle to a device image. Handles are compared by identity.
type Image struct {
	// ID is unique per device and never reused.
	ID    uint64
	Label string
	Spec  ImageSpec
}

// Valid reports whether img refers to a live image handle.
func (img *Image) Valid() bool {
	return img != nil && img.ID != 0
}

// ClearValue is the value written by a clear. Color is used for color images and
// buffers (as raw bits of Color[0]); Depth is used for depth images.
type ClearValue struct {
	Color [4]float32
	Uint  [4]uint32
	Depth float32
}

// ClearColor returns a ClearValue for a float color image.
func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

// ClearUint returns a ClearValue for an integer color image.
func ClearUint(v uint32) ClearValue {
	return ClearValue{Uint: [4]uint32{v, v, v, v}}
}

// ClearDepth returns a ClearValue for a depth image.
func ClearDepth(d float32) ClearValue {
	return ClearValue{Depth: d}
}

// Filter selects texel filtering.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

// AddressMode selects how coordinates outside [0, 1] are resolved.
type AddressMode uint8

const (
	AddressRepeat AddressMode = iota
	AddressClampToEdge
	AddressMirrorRepeat
)

// Reduction selects a sampler reduction mode. Devices without reduction support treat
// every mode as ReductionNone and shaders fall back to explicit texel loads.
type Reduction uint8

const (
	ReductionNone Reduction = iota
	ReductionMin
	ReductionMax
)

// SamplerSpec describes a sampler.
type SamplerSpec struct {
	Filter    Filter
	Mipmap    Filter
	Address   AddressMode
	Reduction Reduction
	MaxLod    float32
}

// LinearRepeat is the default material sampler.
var LinearRepeat = SamplerSpec{Filter: FilterLinear, Mipmap: FilterLinear, Address: AddressRepeat, MaxLod: 1000}

// LinearClamp is used for LUTs and post-processing inputs.
var LinearClamp = SamplerSpec{Filter: FilterLinear, Mipmap: FilterLinear, Address: AddressClampToEdge, MaxLod: 1000}

// NearestClamp is used for integer targets such as the visibility buffer.
var NearestClamp = SamplerSpec{Filter: FilterNearest, Mipmap: FilterNearest, Address: AddressClampToEdge, MaxLod: 1000}

// HiZSampler samples the Hi-Z pyramid for occlusion tests. Clamp-to-edge with a min
// reduction keeps out-of-bounds footprints from reporting false occlusion.
var HiZSampler = SamplerSpec{Filter: FilterLinear, Mipmap: FilterNearest, Address: AddressClampToEdge, Reduction: ReductionMin, MaxLod: 1000}
