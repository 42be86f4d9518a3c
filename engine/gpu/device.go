package gpu

// Device is the graphics device the Context drives. Implementations must be safe for use
// from the render goroutine only; Context serializes access with its own lock.
type Device interface {
	// Name returns a human-readable device name for logging.
	Name() string

	// CreateBuffer allocates a device buffer of exactly size bytes.
	CreateBuffer(label string, size uint64, usage BufferUsage) (*Buffer, error)

	// DestroyBuffer releases buf. The caller guarantees no in-flight work references it.
	DestroyBuffer(buf *Buffer)

	// WriteBuffer writes data into buf at offset through the device queue.
	WriteBuffer(buf *Buffer, offset uint64, data []byte) error

	// CreateImage allocates an image described by spec.
	CreateImage(label string, spec ImageSpec) (*Image, error)

	// DestroyImage releases img. The caller guarantees no in-flight work references it.
	DestroyImage(img *Image)

	// CreatePipeline compiles and registers a pipeline under desc.Name.
	CreatePipeline(desc PipelineDescriptor) error

	// NewCommandBuffer starts recording a command buffer.
	NewCommandBuffer(label string) (CommandBuffer, error)

	// Submit queues recorded command buffers for execution in order.
	Submit(cmds ...CommandBuffer) error

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error

	// ReadBuffer copies the current contents of buf back to the host.
	ReadBuffer(buf *Buffer) ([]byte, error)

	// ReadImage copies mip 0 of img back to the host as tightly packed texels.
	ReadImage(img *Image) ([]byte, error)

	// Release destroys the device and everything it owns.
	Release()
}
