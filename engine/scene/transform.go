package scene

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/go-gl/mathgl/mgl32"
	"honnef.co/go/safeish"
)

// TransformID is a slot handle into the scene's transform array. The low 32 bits are the
// slot index and the high 32 bits the slot generation.
type TransformID uint64

func newTransformID(index, generation uint32) TransformID {
	return TransformID(uint64(generation)<<32 | uint64(index))
}

// Index returns the slot index, which is also the record index in the GPU transform buffer.
func (id TransformID) Index() uint32 {
	return uint32(id)
}

// Generation returns the slot generation.
func (id TransformID) Generation() uint32 {
	return uint32(id >> 32)
}

// GPUTransformSource is the WGSL definition of GPUTransform.
//
//go:embed assets/transform.wgsl
var GPUTransformSource string

// GPUTransform is the per-slot GPU record.
// Size: 128 bytes.
type GPUTransform struct {
	World  mgl32.Mat4
	Normal mgl32.Mat4
}

// GPUTransformSize is the size in bytes of one GPUTransform.
const GPUTransformSize = 128

// NewGPUTransform builds the GPU record of a transform.
func NewGPUTransform(t TransformComponent) GPUTransform {
	world := t.Matrix()
	return GPUTransform{World: world, Normal: common.NormalMatrix(world)}
}

// MarshalTransforms returns the byte view of records.
func MarshalTransforms(records []GPUTransform) []byte {
	return safeish.SliceCast[[]byte](records)
}

// transformSlots is a generational slot allocator. Freed slots are reused with a bumped
// generation so stale ids can be detected.
type transformSlots struct {
	records     []GPUTransform
	generations []uint32
	live        []bool
	free        []uint32

	dirty    []TransformID
	dirtySet map[uint32]struct{}
}

func newTransformSlots() *transformSlots {
	return &transformSlots{dirtySet: make(map[uint32]struct{})}
}

func (ts *transformSlots) alloc(rec GPUTransform) TransformID {
	var idx uint32
	if n := len(ts.free); n > 0 {
		idx = ts.free[n-1]
		ts.free = ts.free[:n-1]
		ts.generations[idx]++
		ts.records[idx] = rec
		ts.live[idx] = true
	} else {
		idx = uint32(len(ts.records))
		ts.records = append(ts.records, rec)
		ts.generations = append(ts.generations, 0)
		ts.live = append(ts.live, true)
	}
	id := newTransformID(idx, ts.generations[idx])
	ts.markDirty(id)
	return id
}

func (ts *transformSlots) valid(id TransformID) bool {
	idx := id.Index()
	return int(idx) < len(ts.records) && ts.live[idx] && ts.generations[idx] == id.Generation()
}

func (ts *transformSlots) update(id TransformID, rec GPUTransform) bool {
	if !ts.valid(id) {
		return false
	}
	ts.records[id.Index()] = rec
	ts.markDirty(id)
	return true
}

func (ts *transformSlots) release(id TransformID) {
	if !ts.valid(id) {
		return
	}
	idx := id.Index()
	ts.live[idx] = false
	ts.records[idx] = GPUTransform{}
	ts.free = append(ts.free, idx)
	ts.markDirty(id)
}

func (ts *transformSlots) markDirty(id TransformID) {
	if _, ok := ts.dirtySet[id.Index()]; ok {
		return
	}
	ts.dirtySet[id.Index()] = struct{}{}
	ts.dirty = append(ts.dirty, id)
}

func (ts *transformSlots) clearDirty() {
	ts.dirty = ts.dirty[:0]
	clear(ts.dirtySet)
}
