package gpu

// LoadOp selects what happens to an attachment at the beginning of a rendering scope.
type LoadOp uint8

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
)

// Attachment binds an image mip as a render target.
type Attachment struct {
	Image  *Image
	Mip    uint32
	LoadOp LoadOp
	Clear  ClearValue
}

// RenderingInfo describes the targets of a rendering scope.
type RenderingInfo struct {
	Label  string
	Color  []Attachment
	Depth  *Attachment
	Extent Extent
}

// BlendMode selects color blending.
type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
)

// CompareOp selects the depth comparison.
type CompareOp uint8

const (
	CompareAlways CompareOp = iota
	CompareGreaterOrEqual
	CompareGreater
	CompareLessOrEqual
	CompareNever
)

// CullMode selects face culling.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// RasterState is the dynamic state applied to the next draw.
type RasterState struct {
	Blend        BlendMode
	DepthCompare CompareOp
	DepthWrite   bool
	Cull         CullMode
}

// ImageView selects a mip range of an image for binding.
type ImageView struct {
	Image    *Image
	BaseMip  uint32
	MipCount uint32
}

// AllMips returns a view over every mip of img.
func AllMips(img *Image) ImageView {
	return ImageView{Image: img, MipCount: img.Spec.MipLevels}
}

// SingleMip returns a view over one mip of img.
func SingleMip(img *Image, mip uint32) ImageView {
	return ImageView{Image: img, BaseMip: mip, MipCount: 1}
}

// PushConstantGroup is the set index reserved for the push constant block on devices that
// emulate push constants with a uniform buffer. Shaders declare the block at binding 0.
const PushConstantGroup = 3

// CommandBuffer records GPU work. Commands run in record order once submitted.
// Bindings persist until the next pipeline bind.
type CommandBuffer interface {
	// Label returns the debug label the command buffer was created with.
	Label() string

	// PipelineBarrier records an access transition.
	PipelineBarrier(b Barrier)

	// CopyBuffer copies size bytes from src at srcOffset into dst at dstOffset.
	CopyBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64)

	// FillBuffer writes the 32-bit value repeatedly into size bytes of dst at offset.
	FillBuffer(dst *Buffer, offset, size uint64, value uint32)

	// ClearImage clears every mip of img to value.
	ClearImage(img *Image, value ClearValue)

	// BindComputePipeline selects a registered compute pipeline by name.
	BindComputePipeline(name string)

	// BindGraphicsPipeline selects a registered graphics pipeline by name.
	BindGraphicsPipeline(name string)

	// BindBuffer binds buf to set/binding for the subsequent dispatch or draw.
	BindBuffer(set, binding uint32, buf *Buffer)

	// BindImage binds a view to set/binding for the subsequent dispatch or draw.
	BindImage(set, binding uint32, view ImageView)

	// BindSampler binds a sampler to set/binding for the subsequent dispatch or draw.
	BindSampler(set, binding uint32, sampler SamplerSpec)

	// BindDescriptorSet binds a committed descriptor set at the given set index.
	BindDescriptorSet(set uint32, ds DescriptorSet)

	// PushConstants sets the push constant block for the subsequent dispatch or draw.
	PushConstants(data []byte)

	// Dispatch launches x*y*z workgroups on the bound compute pipeline.
	Dispatch(x, y, z uint32)

	// DispatchIndirect launches workgroups with counts read from buf at offset.
	DispatchIndirect(buf *Buffer, offset uint64)

	// BeginRendering opens a rendering scope on the given attachments.
	BeginRendering(info RenderingInfo)

	// EndRendering closes the current rendering scope.
	EndRendering()

	// SetRasterState sets blend, depth and cull state for subsequent draws.
	SetRasterState(state RasterState)

	// BindIndexBuffer binds a 32-bit index buffer.
	BindIndexBuffer(buf *Buffer)

	// Draw issues a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexedIndirect issues an indexed draw with arguments read from buf at offset.
	DrawIndexedIndirect(buf *Buffer, offset uint64)
}
