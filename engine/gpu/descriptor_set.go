package gpu

import (
	"maps"
	"sync"
)

// descriptorSet is the implementation of the DescriptorSet interface.
type descriptorSet struct {
	mu    *sync.Mutex
	label string

	// pending writes, published by Commit
	pendingImages   map[uint32]ImageView
	pendingSamplers map[uint32]SamplerSpec
	pendingBuffers  map[uint32]*Buffer

	// committed state visible to command buffers
	images   map[uint32]ImageView
	samplers map[uint32]SamplerSpec
	buffers  map[uint32]*Buffer

	version     uint64
	commitFrame uint64
	committed   bool
}

// DescriptorSet is a bindless table of images, samplers and buffers indexed by slot.
//
// Writes are staged and become visible to command buffers only after Commit. Commit is the
// publish point for one frame: every write must happen before it, and every pass that binds
// the set in that frame sees the committed snapshot.
type DescriptorSet interface {
	// Label returns the debug label for this set.
	Label() string

	// SetImage stages an image view at the given slot.
	//
	// Parameters:
	//   - slot: the bindless slot index
	//   - view: the image view to bind
	SetImage(slot uint32, view ImageView)

	// SetSampler stages a sampler at the given slot.
	//
	// Parameters:
	//   - slot: the bindless slot index
	//   - sampler: the sampler to bind
	SetSampler(slot uint32, sampler SamplerSpec)

	// SetBuffer stages a buffer at the given slot.
	//
	// Parameters:
	//   - slot: the bindless slot index
	//   - buf: the buffer to bind
	SetBuffer(slot uint32, buf *Buffer)

	// Commit publishes all staged writes for the given frame.
	//
	// Parameters:
	//   - frame: the frame index the commit belongs to
	//
	// Returns:
	//   - uint64: the committed version, incremented whenever staged writes were published
	//   - bool: true if the set was already committed during the same frame
	Commit(frame uint64) (uint64, bool)

	// Version returns the last committed version.
	Version() uint64

	// Pending returns the number of staged writes not yet committed.
	Pending() int

	// Image returns the committed image view at slot.
	Image(slot uint32) (ImageView, bool)

	// Sampler returns the committed sampler at slot.
	Sampler(slot uint32) (SamplerSpec, bool)

	// Buffer returns the committed buffer at slot.
	Buffer(slot uint32) (*Buffer, bool)

	// Images returns a copy of all committed image views keyed by slot.
	Images() map[uint32]ImageView

	// Samplers returns a copy of all committed samplers keyed by slot.
	Samplers() map[uint32]SamplerSpec

	// Buffers returns a copy of all committed buffers keyed by slot.
	Buffers() map[uint32]*Buffer
}

var _ DescriptorSet = &descriptorSet{}

// DescriptorSetBuilderOption is a functional option used to configure a DescriptorSet during construction.
type DescriptorSetBuilderOption func(*descriptorSet)

// WithSamplerSlot stages a sampler at construction time.
//
// Parameters:
//   - slot: the bindless slot index
//   - sampler: the sampler to bind
//
// Returns:
//   - DescriptorSetBuilderOption: a function that stages the sampler
func WithSamplerSlot(slot uint32, sampler SamplerSpec) DescriptorSetBuilderOption {
	return func(d *descriptorSet) {
		d.pendingSamplers[slot] = sampler
	}
}

// NewDescriptorSet creates an empty DescriptorSet.
//
// Parameters:
//   - label: the debug label
//   - options: variadic list of DescriptorSetBuilderOption functions
//
// Returns:
//   - DescriptorSet: the new set
func NewDescriptorSet(label string, options ...DescriptorSetBuilderOption) DescriptorSet {
	d := &descriptorSet{
		mu:              &sync.Mutex{},
		label:           label,
		pendingImages:   make(map[uint32]ImageView),
		pendingSamplers: make(map[uint32]SamplerSpec),
		pendingBuffers:  make(map[uint32]*Buffer),
		images:          make(map[uint32]ImageView),
		samplers:        make(map[uint32]SamplerSpec),
		buffers:         make(map[uint32]*Buffer),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *descriptorSet) Label() string {
	return d.label
}

func (d *descriptorSet) SetImage(slot uint32, view ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingImages[slot] = view
}

func (d *descriptorSet) SetSampler(slot uint32, sampler SamplerSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingSamplers[slot] = sampler
}

func (d *descriptorSet) SetBuffer(slot uint32, buf *Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingBuffers[slot] = buf
}

func (d *descriptorSet) Commit(frame uint64) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	repeated := d.committed && d.commitFrame == frame
	d.committed = true
	d.commitFrame = frame

	if len(d.pendingImages)+len(d.pendingSamplers)+len(d.pendingBuffers) == 0 {
		return d.version, repeated
	}

	maps.Copy(d.images, d.pendingImages)
	maps.Copy(d.samplers, d.pendingSamplers)
	maps.Copy(d.buffers, d.pendingBuffers)
	clear(d.pendingImages)
	clear(d.pendingSamplers)
	clear(d.pendingBuffers)
	d.version++
	return d.version, repeated
}

func (d *descriptorSet) Version() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

func (d *descriptorSet) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pendingImages) + len(d.pendingSamplers) + len(d.pendingBuffers)
}

func (d *descriptorSet) Image(slot uint32) (ImageView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.images[slot]
	return v, ok
}

func (d *descriptorSet) Sampler(slot uint32) (SamplerSpec, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.samplers[slot]
	return s, ok
}

func (d *descriptorSet) Buffer(slot uint32) (*Buffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[slot]
	return b, ok
}

func (d *descriptorSet) Images() map[uint32]ImageView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.images)
}

func (d *descriptorSet) Samplers() map[uint32]SamplerSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.samplers)
}

func (d *descriptorSet) Buffers() map[uint32]*Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.buffers)
}
