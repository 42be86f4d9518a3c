package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
)

// accessHistory carries the final access of persistent resources from the plan that last
// used them into the next acquire. Entries are bound to the handle ID, so a recreated
// resource starts again from AccessNone.
type accessHistory struct {
	last map[string]accessEntry
}

type accessEntry struct {
	id     uint64
	access gpu.Access
}

func newAccessHistory() *accessHistory {
	return &accessHistory{last: make(map[string]accessEntry)}
}

// acquireBuffer brings buf into g starting from its recorded access.
//
// Parameters:
//   - g: the frame graph
//   - name: the graph name of the buffer, stable across frames
//   - buf: the persistent buffer
//
// Returns:
//   - rendergraph.Value: the buffer's value
func (h *accessHistory) acquireBuffer(g *rendergraph.Graph, name string, buf *gpu.Buffer) rendergraph.Value {
	var id uint64
	if buf.Valid() {
		id = buf.ID
	}
	v := g.AcquireBuffer(name, buf, h.access(name, id))
	h.track(g, name, id)
	return v
}

// acquireImage is acquireBuffer for images.
func (h *accessHistory) acquireImage(g *rendergraph.Graph, name string, img *gpu.Image) rendergraph.Value {
	var id uint64
	if img.Valid() {
		id = img.ID
	}
	v := g.AcquireImage(name, img, h.access(name, id))
	h.track(g, name, id)
	return v
}

// access returns the recorded access of the handle id under name.
func (h *accessHistory) access(name string, id uint64) gpu.Access {
	if e, ok := h.last[name]; ok && e.id == id {
		return e.access
	}
	return gpu.AccessNone
}

// track records the final access of name once a plan compiled from g has executed. A plan
// that never executes leaves the previous entry in place.
func (h *accessHistory) track(g *rendergraph.Graph, name string, id uint64) {
	g.OnExecuted(func(p *rendergraph.Plan) {
		if a, ok := p.FinalAccess(name); ok {
			h.last[name] = accessEntry{id: id, access: a}
		}
	})
}
