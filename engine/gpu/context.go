package gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxylus-go/common"
)

// DefaultFramesInFlight is the number of frames whose transient resources are kept alive
// before reuse.
const DefaultFramesInFlight = 2

// Context owns a Device and the per-frame bookkeeping layered on top of it.
//
// Persistent buffers live until DestroyBuffer. Transient buffers and images are parked on a
// ring indexed by frame and destroyed when their slot comes around again, so a frame's
// transients outlive every submission that can still read them.
type Context struct {
	mu     *sync.Mutex
	device Device

	framesInFlight int
	frame          uint64

	transientBuffers [][]*Buffer
	transientImages  [][]*Image

	waitCount uint64
}

// ContextBuilderOption is a functional option applied to a Context during construction via NewContext.
type ContextBuilderOption func(*Context)

// WithFramesInFlight sets how many frames of transient resources stay alive.
// Values below 1 are treated as 1.
//
// Parameters:
//   - n: the number of frames in flight
//
// Returns:
//   - ContextBuilderOption: a function that applies the option to a Context
func WithFramesInFlight(n int) ContextBuilderOption {
	return func(c *Context) {
		c.framesInFlight = max(n, 1)
	}
}

// NewContext wraps device in a Context.
//
// Parameters:
//   - device: the device to drive
//   - options: variadic list of ContextBuilderOption functions
//
// Returns:
//   - *Context: the new context
func NewContext(device Device, options ...ContextBuilderOption) *Context {
	c := &Context{
		mu:             &sync.Mutex{},
		device:         device,
		framesInFlight: DefaultFramesInFlight,
	}
	for _, opt := range options {
		opt(c)
	}
	c.transientBuffers = make([][]*Buffer, c.framesInFlight)
	c.transientImages = make([][]*Image, c.framesInFlight)
	return c
}

// Device returns the wrapped device.
func (c *Context) Device() Device {
	return c.device
}

// Frame returns the index of the frame currently being recorded.
func (c *Context) Frame() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// WaitCount returns how many full device waits have been issued through Wait.
func (c *Context) WaitCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitCount
}

// AllocateBufferSuper allocates a long-lived device buffer of exactly size bytes.
// Allocation failure is fatal: it is logged and the call panics.
//
// Parameters:
//   - label: the debug label
//   - usage: the buffer usage flags
//   - size: the buffer size in bytes
//
// Returns:
//   - *Buffer: the new buffer
func (c *Context) AllocateBufferSuper(label string, usage BufferUsage, size uint64) *Buffer {
	if size > MaxBufferSize {
		panic(fmt.Sprintf("buffer %q size %d exceeds the %d byte limit", label, size, MaxBufferSize))
	}
	buf, err := c.device.CreateBuffer(label, size, usage)
	if err != nil {
		common.Logger().Error("buffer allocation failed", "label", label, "size", size, "error", err)
		panic(fmt.Errorf("allocate buffer %q: %w", label, err))
	}
	return buf
}

// AllocTransientBuffer allocates a buffer that lives for the current frame plus the frames
// still in flight.
//
// Parameters:
//   - label: the debug label
//   - usage: the buffer usage flags
//   - size: the buffer size in bytes
//
// Returns:
//   - *Buffer: the new buffer
func (c *Context) AllocTransientBuffer(label string, usage BufferUsage, size uint64) *Buffer {
	buf := c.AllocateBufferSuper(label, usage, size)
	c.mu.Lock()
	slot := c.frame % uint64(c.framesInFlight)
	c.transientBuffers[slot] = append(c.transientBuffers[slot], buf)
	c.mu.Unlock()
	return buf
}

// CreateImage allocates a long-lived image. An invalid spec (zero extent, mip count out of
// range) is a programmer error and panics. Allocation failure is fatal.
//
// Parameters:
//   - label: the debug label
//   - spec: the image description
//
// Returns:
//   - *Image: the new image
func (c *Context) CreateImage(label string, spec ImageSpec) *Image {
	if err := spec.Validate(); err != nil {
		panic(fmt.Sprintf("image %q: %v", label, err))
	}
	img, err := c.device.CreateImage(label, spec)
	if err != nil {
		common.Logger().Error("image allocation failed", "label", label, "extent", spec.Extent.String(), "error", err)
		panic(fmt.Errorf("allocate image %q: %w", label, err))
	}
	return img
}

// AllocTransientImage allocates an image with the same lifetime rules as AllocTransientBuffer.
func (c *Context) AllocTransientImage(label string, spec ImageSpec) *Image {
	img := c.CreateImage(label, spec)
	c.mu.Lock()
	slot := c.frame % uint64(c.framesInFlight)
	c.transientImages[slot] = append(c.transientImages[slot], img)
	c.mu.Unlock()
	return img
}

// DestroyBuffer releases a persistent buffer. Callers that may still have the buffer in
// flight must call Wait first.
func (c *Context) DestroyBuffer(buf *Buffer) {
	if !buf.Valid() {
		return
	}
	c.device.DestroyBuffer(buf)
}

// DestroyImage releases a persistent image. Callers that may still have the image in
// flight must call Wait first.
func (c *Context) DestroyImage(img *Image) {
	if !img.Valid() {
		return
	}
	c.device.DestroyImage(img)
}

// WriteBuffer writes data into buf at offset.
func (c *Context) WriteBuffer(buf *Buffer, offset uint64, data []byte) error {
	if err := c.device.WriteBuffer(buf, offset, data); err != nil {
		return fmt.Errorf("write buffer %q: %w", buf.Label, err)
	}
	return nil
}

// Wait blocks until the device is idle. It is the only blocking call on the frame path.
func (c *Context) Wait() {
	c.mu.Lock()
	c.waitCount++
	c.mu.Unlock()
	if err := c.device.WaitIdle(); err != nil {
		common.Logger().Warn("device wait failed", "error", err)
	}
}

// NextFrame advances the frame index and releases the transients of the frame that last
// used the reclaimed ring slot.
func (c *Context) NextFrame() {
	c.mu.Lock()
	c.frame++
	slot := c.frame % uint64(c.framesInFlight)
	buffers := c.transientBuffers[slot]
	images := c.transientImages[slot]
	c.transientBuffers[slot] = nil
	c.transientImages[slot] = nil
	c.mu.Unlock()

	for _, b := range buffers {
		c.device.DestroyBuffer(b)
	}
	for _, img := range images {
		c.device.DestroyImage(img)
	}
}

// TransientCount returns the number of transient buffers and images currently alive.
func (c *Context) TransientCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.transientBuffers {
		n += len(c.transientBuffers[i]) + len(c.transientImages[i])
	}
	return n
}

// CommitDescriptorSet publishes the staged writes of ds for the current frame.
//
// Returns:
//   - bool: true if ds had already been committed during this frame
func (c *Context) CommitDescriptorSet(ds DescriptorSet) bool {
	_, repeated := ds.Commit(c.Frame())
	return repeated
}

// Release waits for the device, destroys every transient and releases the device.
func (c *Context) Release() {
	c.Wait()
	c.mu.Lock()
	for i := range c.transientBuffers {
		for _, b := range c.transientBuffers[i] {
			c.device.DestroyBuffer(b)
		}
		for _, img := range c.transientImages[i] {
			c.device.DestroyImage(img)
		}
		c.transientBuffers[i] = nil
		c.transientImages[i] = nil
	}
	c.mu.Unlock()
	c.device.Release()
}
