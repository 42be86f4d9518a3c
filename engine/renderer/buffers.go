package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
)

// region is a byte range of a mirrored array.
type region struct {
	offset, size uint64
}

// sceneBuffer is a frame-persistent, GPU-only mirror of a CPU array. It grows to exactly the
// size it is asked to hold and never shrinks.
type sceneBuffer struct {
	label  string
	usage  gpu.BufferUsage
	access *accessHistory

	buf *gpu.Buffer
}

func newSceneBuffer(label string, usage gpu.BufferUsage, access *accessHistory) *sceneBuffer {
	return &sceneBuffer{
		label:  label,
		usage:  usage | gpu.BufferUsageStorage | gpu.BufferUsageTransferDst,
		access: access,
	}
}

func (b *sceneBuffer) capacity() uint64 {
	if !b.buf.Valid() {
		return 0
	}
	return b.buf.Size
}

// ensure grows the buffer to hold size bytes. The old buffer is destroyed only after a full
// device wait, since frames in flight may still read it.
//
// Returns:
//   - bool: true if a new buffer was allocated
func (b *sceneBuffer) ensure(ctx *gpu.Context, size uint64) bool {
	if size <= b.capacity() {
		return false
	}
	if b.buf.Valid() {
		ctx.Wait()
		ctx.DestroyBuffer(b.buf)
	}
	old := b.capacity()
	b.buf = ctx.AllocateBufferSuper(b.label, b.usage, size)
	common.Logger().Debug("scene buffer grown", "buffer", b.label, "from", old, "to", size)
	return true
}

// sync brings the buffer into g holding data.
//
// A grown buffer, or one whose contents must be rebuilt, is uploaded in full. Otherwise only
// the dirty regions are copied from a scratch buffer, and with no dirty regions the buffer
// is acquired as is.
//
// Parameters:
//   - g: the frame graph
//   - ctx: the GPU context used for growth
//   - data: the full CPU-side contents
//   - rebuild: forces a full upload
//   - dirty: the changed byte ranges of data
//
// Returns:
//   - rendergraph.Value: the buffer's value, invalid when there is nothing to mirror
func (b *sceneBuffer) sync(g *rendergraph.Graph, ctx *gpu.Context, data []byte, rebuild bool, dirty []region) rendergraph.Value {
	if len(data) == 0 && !b.buf.Valid() {
		return rendergraph.Value{}
	}

	grown := b.ensure(ctx, uint64(len(data)))
	v := b.access.acquireBuffer(g, b.label, b.buf)
	switch {
	case (grown || rebuild) && len(data) > 0:
		return g.UploadStaging(b.label, data, v)
	case len(dirty) > 0 && !grown:
		return b.patch(g, data, dirty, v)
	default:
		return v
	}
}

// patch copies each dirty region of data into dst. Regions are staged back to back in one
// scratch buffer.
func (b *sceneBuffer) patch(g *rendergraph.Graph, data []byte, dirty []region, dst rendergraph.Value) rendergraph.Value {
	copies := make([]region, 0, len(dirty))
	staged := make([]byte, 0, len(dirty)*int(dirty[0].size))
	for _, r := range dirty {
		if r.offset+r.size > uint64(len(data)) {
			continue
		}
		staged = append(staged, data[r.offset:r.offset+r.size]...)
		copies = append(copies, r)
	}
	if len(copies) == 0 {
		return dst
	}

	scratch := g.Scratch(b.label+" dirty", staged)
	out := g.AddPass("update "+b.label, func(pc *rendergraph.PassContext) {
		src, target := pc.Buffer(0), pc.Buffer(1)
		var at uint64
		for _, r := range copies {
			pc.Cmd.CopyBuffer(src, at, target, r.offset, r.size)
			at += r.size
		}
	}, scratch.As(gpu.AccessTransferRead), dst.As(gpu.AccessTransferWrite))
	if len(out) < 2 {
		return rendergraph.Value{}
	}
	return out[1]
}

// release destroys the buffer. Callers wait for the device first.
func (b *sceneBuffer) release(ctx *gpu.Context) {
	ctx.DestroyBuffer(b.buf)
	b.buf = nil
}
