package wgpudevice

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"honnef.co/go/safeish"
)

type binding struct {
	buffer  *gpu.Buffer
	view    *gpu.ImageView
	sampler *gpu.SamplerSpec
}

// commandBuffer records onto a single wgpu.CommandEncoder. Bind groups are built at each
// dispatch and draw from the bindings accumulated since the pipeline was bound.
type commandBuffer struct {
	device  *wgpuDevice
	encoder *wgpu.CommandEncoder
	label   string

	pipelineName string
	pipeline     *pipelineState
	bindings     map[uint32]map[uint32]binding
	push         []byte

	pass        *wgpu.RenderPassEncoder
	raster      gpu.RasterState
	indexBuffer *gpu.Buffer

	// released after submit
	bindGroups []*wgpu.BindGroup
	transient  []*wgpu.Buffer

	err error
}

var _ gpu.CommandBuffer = &commandBuffer{}

func newCommandBuffer(d *wgpuDevice, encoder *wgpu.CommandEncoder, label string) *commandBuffer {
	return &commandBuffer{
		device:   d,
		encoder:  encoder,
		label:    label,
		bindings: make(map[uint32]map[uint32]binding),
	}
}

func (c *commandBuffer) Label() string {
	return c.label
}

func (c *commandBuffer) fail(err error) {
	c.err = errors.Join(c.err, err)
}

func (c *commandBuffer) buffer(buf *gpu.Buffer) *wgpu.Buffer {
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	b, ok := c.device.buffers[buf.ID]
	if !ok {
		c.fail(fmt.Errorf("buffer %q is not alive", buf.Label))
		return nil
	}
	return b
}

func (c *commandBuffer) view(v gpu.ImageView) *wgpu.TextureView {
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	tv, err := c.device.view(v)
	if err != nil {
		c.fail(err)
		return nil
	}
	return tv
}

// PipelineBarrier is a no-op: WebGPU tracks resource usage and inserts barriers itself.
func (c *commandBuffer) PipelineBarrier(gpu.Barrier) {}

func (c *commandBuffer) CopyBuffer(src *gpu.Buffer, srcOffset uint64, dst *gpu.Buffer, dstOffset uint64, size uint64) {
	s, t := c.buffer(src), c.buffer(dst)
	if s == nil || t == nil || size == 0 {
		return
	}
	c.encoder.CopyBufferToBuffer(s, srcOffset, t, dstOffset, size)
}

func (c *commandBuffer) FillBuffer(dst *gpu.Buffer, offset, size uint64, value uint32) {
	t := c.buffer(dst)
	if t == nil || size == 0 {
		return
	}
	if value == 0 {
		c.encoder.ClearBuffer(t, offset, size)
		return
	}

	pattern := make([]uint32, size/4)
	for i := range pattern {
		pattern[i] = value
	}
	c.device.mu.Lock()
	staging, err := c.device.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    c.label + " fill",
		Contents: safeish.SliceCast[[]byte](pattern),
		Usage:    wgpu.BufferUsageCopySrc,
	})
	c.device.mu.Unlock()
	if err != nil {
		c.fail(err)
		return
	}
	c.transient = append(c.transient, staging)
	c.encoder.CopyBufferToBuffer(staging, 0, t, offset, size)
}

// ClearImage clears every mip of img with one load-op-clear render pass per mip.
func (c *commandBuffer) ClearImage(img *gpu.Image, value gpu.ClearValue) {
	if img.Spec.Usage&(gpu.ImageUsageColorAttachment|gpu.ImageUsageDepthAttachment) == 0 || img.Spec.Dimension == gpu.ImageDimension3D {
		common.Logger().Debug("clear skipped for non-attachment image", "image", img.Label)
		return
	}
	for mip := uint32(0); mip < img.Spec.MipLevels; mip++ {
		tv := c.view(gpu.SingleMip(img, mip))
		if tv == nil {
			return
		}
		desc := &wgpu.RenderPassDescriptor{Label: "clear " + img.Label}
		if img.Spec.Format.IsDepth() {
			desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
				View:            tv,
				DepthLoadOp:     wgpu.LoadOpClear,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: value.Depth,
			}
		} else {
			desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
				View:       tv,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clearColor(img.Spec.Format, value),
			}}
		}
		pass := c.encoder.BeginRenderPass(desc)
		pass.End()
		pass.Release()
	}
}

func (c *commandBuffer) bindPipeline(name string) {
	c.pipelineName = name
	c.device.mu.Lock()
	c.pipeline = c.device.pipelines[name]
	c.device.mu.Unlock()
	clear(c.bindings)
	c.push = nil
	if c.pipeline == nil {
		common.Logger().Debug("pipeline not registered, work will be skipped", "pipeline", name, "commands", c.label)
	}
}

func (c *commandBuffer) BindComputePipeline(name string) {
	c.bindPipeline(name)
}

func (c *commandBuffer) BindGraphicsPipeline(name string) {
	c.bindPipeline(name)
}

func (c *commandBuffer) bind(set, slot uint32, b binding) {
	if c.pipeline != nil && !c.pipeline.desc.Declares(set, slot) {
		return
	}
	group, ok := c.bindings[set]
	if !ok {
		group = make(map[uint32]binding)
		c.bindings[set] = group
	}
	group[slot] = b
}

func (c *commandBuffer) BindBuffer(set, slot uint32, buf *gpu.Buffer) {
	c.bind(set, slot, binding{buffer: buf})
}

func (c *commandBuffer) BindImage(set, slot uint32, view gpu.ImageView) {
	c.bind(set, slot, binding{view: &view})
}

func (c *commandBuffer) BindSampler(set, slot uint32, sampler gpu.SamplerSpec) {
	c.bind(set, slot, binding{sampler: &sampler})
}

func (c *commandBuffer) BindDescriptorSet(set uint32, ds gpu.DescriptorSet) {
	for slot, v := range ds.Images() {
		c.BindImage(set, slot, v)
	}
	for slot, s := range ds.Samplers() {
		c.BindSampler(set, slot, s)
	}
	for slot, b := range ds.Buffers() {
		c.BindBuffer(set, slot, b)
	}
}

func (c *commandBuffer) PushConstants(data []byte) {
	c.push = append(c.push[:0], data...)
}

// buildBindGroups builds one bind group per bound set, plus the push constant group.
func (c *commandBuffer) buildBindGroups() ([]uint32, []*wgpu.BindGroup) {
	sets := make([]uint32, 0, len(c.bindings)+1)
	for set := range c.bindings {
		sets = append(sets, set)
	}
	slices.Sort(sets)

	var groups []*wgpu.BindGroup
	var indices []uint32
	for _, set := range sets {
		entries := c.entries(c.bindings[set])
		if entries == nil {
			continue
		}
		bg, err := c.createBindGroup(set, entries)
		if err != nil {
			c.fail(err)
			continue
		}
		indices = append(indices, set)
		groups = append(groups, bg)
	}

	if len(c.push) > 0 {
		if bg := c.pushConstantGroup(); bg != nil {
			indices = append(indices, PushConstantGroup)
			groups = append(groups, bg)
		}
	}
	return indices, groups
}

func (c *commandBuffer) entries(bindings map[uint32]binding) []wgpu.BindGroupEntry {
	slots := make([]uint32, 0, len(bindings))
	for slot := range bindings {
		slots = append(slots, slot)
	}
	slices.Sort(slots)

	entries := make([]wgpu.BindGroupEntry, 0, len(slots))
	for _, slot := range slots {
		b := bindings[slot]
		entry := wgpu.BindGroupEntry{Binding: slot}
		switch {
		case b.buffer != nil:
			buf := c.buffer(b.buffer)
			if buf == nil {
				return nil
			}
			entry.Buffer = buf
			entry.Size = wgpu.WholeSize
		case b.view != nil:
			tv := c.view(*b.view)
			if tv == nil {
				return nil
			}
			entry.TextureView = tv
		case b.sampler != nil:
			c.device.mu.Lock()
			s, err := c.device.sampler(*b.sampler)
			c.device.mu.Unlock()
			if err != nil {
				c.fail(err)
				return nil
			}
			entry.Sampler = s
		}
		entries = append(entries, entry)
	}
	return entries
}

func (c *commandBuffer) createBindGroup(set uint32, entries []wgpu.BindGroupEntry) (*wgpu.BindGroup, error) {
	layout := c.pipeline.bindGroupLayout(set)
	defer layout.Release()

	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	bg, err := c.device.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s group %d", c.pipelineName, set),
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %d for %q: %w", set, c.pipelineName, err)
	}
	c.bindGroups = append(c.bindGroups, bg)
	return bg, nil
}

func (c *commandBuffer) pushConstantGroup() *wgpu.BindGroup {
	// uniform buffers are sized in 16-byte units
	contents := make([]byte, common.AlignUp(uint32(len(c.push)), 16))
	copy(contents, c.push)

	c.device.mu.Lock()
	buf, err := c.device.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    c.pipelineName + " push constants",
		Contents: contents,
		Usage:    wgpu.BufferUsageUniform,
	})
	c.device.mu.Unlock()
	if err != nil {
		c.fail(err)
		return nil
	}
	c.transient = append(c.transient, buf)

	bg, err := c.createBindGroup(PushConstantGroup, []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Size: wgpu.WholeSize}})
	if err != nil {
		c.fail(err)
		return nil
	}
	return bg
}

func (c *commandBuffer) computePass(record func(pass *wgpu.ComputePassEncoder)) {
	if c.pipeline == nil || c.pipeline.compute == nil {
		return
	}
	indices, groups := c.buildBindGroups()
	pass := c.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: c.label})
	pass.SetPipeline(c.pipeline.compute)
	for i, bg := range groups {
		pass.SetBindGroup(indices[i], bg, nil)
	}
	record(pass)
	pass.End()
	pass.Release()
}

func (c *commandBuffer) Dispatch(x, y, z uint32) {
	c.computePass(func(pass *wgpu.ComputePassEncoder) {
		pass.DispatchWorkgroups(x, y, z)
	})
}

func (c *commandBuffer) DispatchIndirect(buf *gpu.Buffer, offset uint64) {
	b := c.buffer(buf)
	if b == nil {
		return
	}
	c.computePass(func(pass *wgpu.ComputePassEncoder) {
		pass.DispatchWorkgroupsIndirect(b, offset)
	})
}

func loadOp(op gpu.LoadOp) wgpu.LoadOp {
	if op == gpu.LoadOpClear {
		return wgpu.LoadOpClear
	}
	return wgpu.LoadOpLoad
}

func (c *commandBuffer) BeginRendering(info gpu.RenderingInfo) {
	desc := &wgpu.RenderPassDescriptor{Label: info.Label}
	for _, a := range info.Color {
		tv := c.view(gpu.SingleMip(a.Image, a.Mip))
		if tv == nil {
			return
		}
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:       tv,
			LoadOp:     loadOp(a.LoadOp),
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clearColor(a.Image.Spec.Format, a.Clear),
		})
	}
	if info.Depth != nil {
		tv := c.view(gpu.SingleMip(info.Depth.Image, info.Depth.Mip))
		if tv == nil {
			return
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            tv,
			DepthLoadOp:     loadOp(info.Depth.LoadOp),
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: info.Depth.Clear.Depth,
		}
	}
	c.pass = c.encoder.BeginRenderPass(desc)
}

func (c *commandBuffer) EndRendering() {
	if c.pass == nil {
		return
	}
	c.pass.End()
	c.pass.Release()
	c.pass = nil
}

// SetRasterState records the requested state. WebGPU bakes raster state into the pipeline,
// so the descriptor's state is what the draw uses.
func (c *commandBuffer) SetRasterState(state gpu.RasterState) {
	c.raster = state
	if c.pipeline != nil && c.pipeline.desc.Raster != state {
		common.Logger().Debug("raster state differs from pipeline state", "pipeline", c.pipelineName)
	}
}

func (c *commandBuffer) BindIndexBuffer(buf *gpu.Buffer) {
	c.indexBuffer = buf
}

func (c *commandBuffer) prepareDraw() bool {
	if c.pass == nil || c.pipeline == nil || c.pipeline.render == nil {
		return false
	}
	indices, groups := c.buildBindGroups()
	c.pass.SetPipeline(c.pipeline.render)
	for i, bg := range groups {
		c.pass.SetBindGroup(indices[i], bg, nil)
	}
	return true
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !c.prepareDraw() {
		return
	}
	c.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *commandBuffer) DrawIndexedIndirect(buf *gpu.Buffer, offset uint64) {
	if c.indexBuffer == nil {
		c.fail(fmt.Errorf("indexed draw in %q without an index buffer", c.label))
		return
	}
	indirect, index := c.buffer(buf), c.buffer(c.indexBuffer)
	if indirect == nil || index == nil || !c.prepareDraw() {
		return
	}
	c.pass.SetIndexBuffer(index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	c.pass.DrawIndexedIndirect(indirect, offset)
}

func (c *commandBuffer) finish() (*wgpu.CommandBuffer, error) {
	c.EndRendering()
	if c.err != nil {
		c.release()
		return nil, c.err
	}
	return c.encoder.Finish(nil)
}

func (c *commandBuffer) release() {
	for _, bg := range c.bindGroups {
		bg.Release()
	}
	for _, b := range c.transient {
		b.Release()
	}
	c.bindGroups = nil
	c.transient = nil
	if c.encoder != nil {
		c.encoder.Release()
		c.encoder = nil
	}
}
