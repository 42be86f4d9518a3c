package renderer

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
	"github.com/x448/float16"
)

// SpritePipeline is the pipeline every 2D batch is drawn with.
const SpritePipeline = "2d_forward_pipeline"

// DrawBatch2D is a run of sorted sprites sharing one pipeline.
type DrawBatch2D struct {
	PipelineName string
	Offset       uint32
	Count        uint32
}

// RenderQueue2D collects one frame of sprites, orders them back to front and describes them
// as draw batches. It is not safe for concurrent use.
type RenderQueue2D struct {
	sprites []GPUSpriteData
	batches []DrawBatch2D

	spriteHint int
	batchHint  int
}

// NewRenderQueue2D creates an empty queue.
func NewRenderQueue2D() *RenderQueue2D {
	return &RenderQueue2D{}
}

// Init starts a frame. Storage is reserved for as many sprites and batches as the last
// cleared frame held.
func (q *RenderQueue2D) Init() {
	q.sprites = slices.Grow(q.sprites[:0], q.spriteHint)
	q.batches = slices.Grow(q.batches[:0], q.batchHint)
}

// Add appends one sprite.
//
// Parameters:
//   - sprite: the sprite component, whose flags are packed into the record
//   - positionY: the world Y position, used by sprites that sort by Y
//   - transformIndex: the sprite's transform slot
//   - materialIndex: the sprite's material index, truncated to 16 bits
//   - distance: the camera distance along view Z, |camera.z - sprite.z|
func (q *RenderQueue2D) Add(sprite scene.SpriteComponent, positionY float32, transformIndex, materialIndex uint32, distance float32) {
	y := uint32(float16.Fromfloat32(positionY).Bits())
	d := uint32(float16.Fromfloat32(distance).Bits())
	q.sprites = append(q.sprites, GPUSpriteData{
		Data0:          (materialIndex&0xFFFF)<<16 | y,
		Data1:          uint32(sprite.Flags)<<16 | d,
		TransformIndex: transformIndex,
	})
}

// Update emits the frame's batches. Every sprite is drawn by SpritePipeline, so there is
// exactly one batch spanning the whole queue.
func (q *RenderQueue2D) Update() {
	q.batches = append(q.batches[:0], DrawBatch2D{
		PipelineName: SpritePipeline,
		Offset:       0,
		Count:        uint32(len(q.sprites)),
	})
}

// Sort orders the sprites by descending sort key. Sprites with equal keys keep their
// insertion order.
func (q *RenderQueue2D) Sort() {
	slices.SortStableFunc(q.sprites, func(a, b GPUSpriteData) int {
		return cmp.Compare(b.SortKey(), a.SortKey())
	})
}

// Clear records the frame's sizes as the next reservation and empties the queue.
func (q *RenderQueue2D) Clear() {
	q.spriteHint = len(q.sprites)
	q.batchHint = len(q.batches)
	q.sprites = q.sprites[:0]
	q.batches = q.batches[:0]
}

// Len returns the number of queued sprites.
func (q *RenderQueue2D) Len() int {
	return len(q.sprites)
}

// Sprites returns the queued sprite records.
func (q *RenderQueue2D) Sprites() []GPUSpriteData {
	return q.sprites
}

// Batches returns the batches emitted by the last Update.
func (q *RenderQueue2D) Batches() []DrawBatch2D {
	return q.batches
}

// Bytes returns the byte view of the sprite records.
func (q *RenderQueue2D) Bytes() []byte {
	return sliceBytes(q.sprites)
}

// Capacity returns the current reservation hints, sprites then batches.
func (q *RenderQueue2D) Capacity() (int, int) {
	return q.spriteHint, q.batchHint
}
