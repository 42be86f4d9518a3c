package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/x448/float16"
)

// CommandOp identifies a recorded command.
type CommandOp uint8

const (
	OpBarrier CommandOp = iota
	OpCopyBuffer
	OpFillBuffer
	OpClearImage
	OpDispatch
	OpDispatchIndirect
	OpBeginRendering
	OpEndRendering
	OpDraw
	OpDrawIndexedIndirect
)

func (op CommandOp) String() string {
	switch op {
	case OpBarrier:
		return "barrier"
	case OpCopyBuffer:
		return "copy-buffer"
	case OpFillBuffer:
		return "fill-buffer"
	case OpClearImage:
		return "clear-image"
	case OpDispatch:
		return "dispatch"
	case OpDispatchIndirect:
		return "dispatch-indirect"
	case OpBeginRendering:
		return "begin-rendering"
	case OpEndRendering:
		return "end-rendering"
	case OpDraw:
		return "draw"
	case OpDrawIndexedIndirect:
		return "draw-indexed-indirect"
	default:
		return "unknown"
	}
}

// RecordedCommand is one command captured by a MemoryDevice.
type RecordedCommand struct {
	Op       CommandOp
	Label    string
	Pipeline string
	Counts   [3]uint32
	Raster   RasterState
	Barrier  Barrier
}

// ImageState is what a MemoryDevice knows about an image's contents.
type ImageState struct {
	// Cleared reports whether the image has been cleared at least once.
	Cleared bool
	// Clear is the value of the most recent clear.
	Clear ClearValue
	// Writers lists the pipelines that rendered into or dispatched over the image since the
	// most recent clear.
	Writers []string
}

// MemoryDevice is a headless Device that keeps buffers in host memory.
//
// Transfers (WriteBuffer, CopyBuffer, FillBuffer) and image clears are executed for real at
// submit time. Dispatches and draws cannot run shaders; they are recorded along with the
// pipeline and attachments they used.
type MemoryDevice struct {
	mu *sync.Mutex

	nextID    uint64
	buffers   map[uint64][]byte
	images    map[uint64]*ImageState
	pipelines map[string]PipelineDescriptor

	submitted []RecordedCommand
	waits     int
	destroyed int
}

var _ Device = &MemoryDevice{}

// NewMemoryDevice creates an empty MemoryDevice.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{
		mu:        &sync.Mutex{},
		buffers:   make(map[uint64][]byte),
		images:    make(map[uint64]*ImageState),
		pipelines: make(map[string]PipelineDescriptor),
	}
}

func (d *MemoryDevice) Name() string {
	return "memory"
}

func (d *MemoryDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (*Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.buffers[d.nextID] = make([]byte, size)
	return &Buffer{ID: d.nextID, Label: label, Size: size, Usage: usage}, nil
}

func (d *MemoryDevice) DestroyBuffer(buf *Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buf.ID]; ok {
		delete(d.buffers, buf.ID)
		d.destroyed++
	}
}

func (d *MemoryDevice) WriteBuffer(buf *Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.buffers[buf.ID]
	if !ok {
		return fmt.Errorf("buffer %q is not alive", buf.Label)
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %q of %d bytes", len(data), offset, buf.Label, len(mem))
	}
	copy(mem[offset:], data)
	return nil
}

func (d *MemoryDevice) CreateImage(label string, spec ImageSpec) (*Image, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.images[d.nextID] = &ImageState{}
	return &Image{ID: d.nextID, Label: label, Spec: spec}, nil
}

func (d *MemoryDevice) DestroyImage(img *Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[img.ID]; ok {
		delete(d.images, img.ID)
		d.destroyed++
	}
}

func (d *MemoryDevice) CreatePipeline(desc PipelineDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelines[desc.Name] = desc
	return nil
}

func (d *MemoryDevice) NewCommandBuffer(label string) (CommandBuffer, error) {
	return &memoryCommandBuffer{device: d, label: label}, nil
}

func (d *MemoryDevice) Submit(cmds ...CommandBuffer) error {
	for _, cmd := range cmds {
		mc, ok := cmd.(*memoryCommandBuffer)
		if !ok {
			return fmt.Errorf("command buffer %q was not recorded by a memory device", cmd.Label())
		}
		d.mu.Lock()
		for _, op := range mc.ops {
			if err := op(d); err != nil {
				d.mu.Unlock()
				return fmt.Errorf("submit %q: %w", mc.label, err)
			}
		}
		d.submitted = append(d.submitted, mc.recorded...)
		d.mu.Unlock()
	}
	return nil
}

func (d *MemoryDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waits++
	return nil
}

func (d *MemoryDevice) ReadBuffer(buf *Buffer) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.buffers[buf.ID]
	if !ok {
		return nil, fmt.Errorf("buffer %q is not alive", buf.Label)
	}
	out := make([]byte, len(mem))
	copy(out, mem)
	return out, nil
}

// ReadImage returns mip 0 of img filled with its most recent clear value, encoded in the
// image format.
func (d *MemoryDevice) ReadImage(img *Image) ([]byte, error) {
	d.mu.Lock()
	state, ok := d.images[img.ID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("image %q is not alive", img.Label)
	}
	texel := encodeTexel(img.Spec.Format, state.Clear)
	e := img.Spec.Extent
	out := make([]byte, 0, int(e.Width*e.Height*e.Depth)*len(texel))
	for range e.Width * e.Height * e.Depth {
		out = append(out, texel...)
	}
	return out, nil
}

func (d *MemoryDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.buffers)
	clear(d.images)
}

// Commands returns every command submitted so far, in execution order.
func (d *MemoryDevice) Commands() []RecordedCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RecordedCommand, len(d.submitted))
	copy(out, d.submitted)
	return out
}

// ResetCommands drops the submitted command log.
func (d *MemoryDevice) ResetCommands() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted = nil
}

// ImageState returns a snapshot of what is known about img's contents.
func (d *MemoryDevice) ImageState(img *Image) (ImageState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.images[img.ID]
	if !ok {
		return ImageState{}, false
	}
	cp := *s
	cp.Writers = append([]string(nil), s.Writers...)
	return cp, true
}

// Waits returns how many times WaitIdle was called.
func (d *MemoryDevice) Waits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waits
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *MemoryDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// Pipeline returns a registered pipeline descriptor.
func (d *MemoryDevice) Pipeline(name string) (PipelineDescriptor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pipelines[name]
	return p, ok
}

func encodeTexel(f Format, v ClearValue) []byte {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8Srgb:
		return []byte{unorm8(v.Color[0]), unorm8(v.Color[1]), unorm8(v.Color[2]), unorm8(v.Color[3])}
	case FormatBGRA8Unorm, FormatBGRA8Srgb:
		return []byte{unorm8(v.Color[2]), unorm8(v.Color[1]), unorm8(v.Color[0]), unorm8(v.Color[3])}
	case FormatRGBA16Float:
		out := make([]byte, 8)
		for i := range 4 {
			binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(v.Color[i]).Bits())
		}
		return out
	case FormatRGBA32Float:
		out := make([]byte, 16)
		for i := range 4 {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v.Color[i]))
		}
		return out
	case FormatR32Uint:
		return binary.LittleEndian.AppendUint32(nil, v.Uint[0])
	case FormatR32Float:
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v.Color[0]))
	case FormatDepth32Float:
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v.Depth))
	default:
		return nil
	}
}

func unorm8(v float32) uint8 {
	return uint8(math.Round(float64(max(0, min(1, v)) * 255)))
}

// memoryCommandBuffer records ops to run at submit time.
type memoryCommandBuffer struct {
	device *MemoryDevice
	label  string

	ops      []func(d *MemoryDevice) error
	recorded []RecordedCommand

	pipeline    string
	boundImages []*Image
	rendering   *RenderingInfo
	raster      RasterState
}

func (c *memoryCommandBuffer) Label() string {
	return c.label
}

func (c *memoryCommandBuffer) record(cmd RecordedCommand) {
	cmd.Label = c.label
	c.recorded = append(c.recorded, cmd)
}

func (c *memoryCommandBuffer) PipelineBarrier(b Barrier) {
	c.record(RecordedCommand{Op: OpBarrier, Barrier: b})
}

func (c *memoryCommandBuffer) CopyBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64) {
	c.record(RecordedCommand{Op: OpCopyBuffer})
	c.ops = append(c.ops, func(d *MemoryDevice) error {
		s, ok := d.buffers[src.ID]
		if !ok {
			return fmt.Errorf("copy source %q is not alive", src.Label)
		}
		t, ok := d.buffers[dst.ID]
		if !ok {
			return fmt.Errorf("copy destination %q is not alive", dst.Label)
		}
		if srcOffset+size > uint64(len(s)) || dstOffset+size > uint64(len(t)) {
			return fmt.Errorf("copy of %d bytes from %q@%d to %q@%d is out of range", size, src.Label, srcOffset, dst.Label, dstOffset)
		}
		copy(t[dstOffset:dstOffset+size], s[srcOffset:srcOffset+size])
		return nil
	})
}

func (c *memoryCommandBuffer) FillBuffer(dst *Buffer, offset, size uint64, value uint32) {
	c.record(RecordedCommand{Op: OpFillBuffer})
	c.ops = append(c.ops, func(d *MemoryDevice) error {
		t, ok := d.buffers[dst.ID]
		if !ok {
			return fmt.Errorf("fill destination %q is not alive", dst.Label)
		}
		if offset+size > uint64(len(t)) {
			return fmt.Errorf("fill of %d bytes at %d overflows %q", size, offset, dst.Label)
		}
		for i := offset; i+4 <= offset+size; i += 4 {
			binary.LittleEndian.PutUint32(t[i:], value)
		}
		return nil
	})
}

func (c *memoryCommandBuffer) ClearImage(img *Image, value ClearValue) {
	c.record(RecordedCommand{Op: OpClearImage})
	c.ops = append(c.ops, func(d *MemoryDevice) error {
		s, ok := d.images[img.ID]
		if !ok {
			return fmt.Errorf("clear target %q is not alive", img.Label)
		}
		s.Cleared = true
		s.Clear = value
		s.Writers = nil
		return nil
	})
}

func (c *memoryCommandBuffer) BindComputePipeline(name string) {
	c.pipeline = name
	c.boundImages = c.boundImages[:0]
}

func (c *memoryCommandBuffer) BindGraphicsPipeline(name string) {
	c.pipeline = name
	c.boundImages = c.boundImages[:0]
}

func (c *memoryCommandBuffer) BindBuffer(set, binding uint32, buf *Buffer) {}

func (c *memoryCommandBuffer) BindImage(set, binding uint32, view ImageView) {
	c.boundImages = append(c.boundImages, view.Image)
}

func (c *memoryCommandBuffer) BindSampler(set, binding uint32, sampler SamplerSpec) {}

func (c *memoryCommandBuffer) BindDescriptorSet(set uint32, ds DescriptorSet) {}

func (c *memoryCommandBuffer) PushConstants(data []byte) {}

func (c *memoryCommandBuffer) markWritten(images []*Image) {
	pipeline := c.pipeline
	targets := append([]*Image(nil), images...)
	c.ops = append(c.ops, func(d *MemoryDevice) error {
		for _, img := range targets {
			if s, ok := d.images[img.ID]; ok {
				s.Writers = append(s.Writers, pipeline)
			}
		}
		return nil
	})
}

func (c *memoryCommandBuffer) Dispatch(x, y, z uint32) {
	c.record(RecordedCommand{Op: OpDispatch, Pipeline: c.pipeline, Counts: [3]uint32{x, y, z}})
	c.markWritten(c.boundImages)
}

func (c *memoryCommandBuffer) DispatchIndirect(buf *Buffer, offset uint64) {
	c.record(RecordedCommand{Op: OpDispatchIndirect, Pipeline: c.pipeline})
	c.markWritten(c.boundImages)
}

func (c *memoryCommandBuffer) BeginRendering(info RenderingInfo) {
	c.rendering = &info
	c.record(RecordedCommand{Op: OpBeginRendering})
}

func (c *memoryCommandBuffer) EndRendering() {
	c.rendering = nil
	c.record(RecordedCommand{Op: OpEndRendering})
}

func (c *memoryCommandBuffer) SetRasterState(state RasterState) {
	c.raster = state
}

func (c *memoryCommandBuffer) BindIndexBuffer(buf *Buffer) {}

func (c *memoryCommandBuffer) attachmentImages() []*Image {
	if c.rendering == nil {
		return nil
	}
	var out []*Image
	for _, a := range c.rendering.Color {
		out = append(out, a.Image)
	}
	if c.rendering.Depth != nil {
		out = append(out, c.rendering.Depth.Image)
	}
	return out
}

func (c *memoryCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.record(RecordedCommand{Op: OpDraw, Pipeline: c.pipeline, Counts: [3]uint32{vertexCount, instanceCount, firstInstance}, Raster: c.raster})
	c.markWritten(c.attachmentImages())
}

func (c *memoryCommandBuffer) DrawIndexedIndirect(buf *Buffer, offset uint64) {
	c.record(RecordedCommand{Op: OpDrawIndexedIndirect, Pipeline: c.pipeline, Raster: c.raster})
	c.markWritten(c.attachmentImages())
}
