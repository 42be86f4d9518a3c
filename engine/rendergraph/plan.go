package rendergraph

import (
	"fmt"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
)

type transition struct {
	resource int
	src, dst gpu.Access
}

type compiledPass struct {
	pass        int
	transitions []transition
	color       []int
	depth       int
}

// Lifetime is the span of compiled pass indices a transient resource is used in.
type Lifetime struct {
	First, Last int
}

// Plan is a compiled graph: the live passes in execution order, with the barriers and
// attachments each needs.
type Plan struct {
	graph       *Graph
	passes      []compiledPass
	lifetimes   map[int]Lifetime
	finalAccess map[string]gpu.Access
	executed    bool
}

// Compile culls passes that do not contribute to outputs and orders the rest.
//
// A pass is live if it produced an output, wrote a persistent resource, or produced a value
// consumed by a live pass. Live passes keep their record order; because a pass can only use
// values that already exist, record order is a valid topological order.
//
// Parameters:
//   - outputs: the values the frame must produce
//
// Returns:
//   - *Plan: the compiled plan
//   - error: every misuse recorded on the graph, or an invalid output
func (g *Graph) Compile(outputs ...Value) (*Plan, error) {
	if g.err != nil {
		return nil, g.err
	}

	live := make([]bool, len(g.passes))
	var stack []int
	mark := func(p int) {
		if p >= 0 && !live[p] {
			live[p] = true
			stack = append(stack, p)
		}
	}

	for _, out := range outputs {
		idx, err := g.lookup(out)
		if err != nil {
			return nil, fmt.Errorf("compile output: %w", err)
		}
		if g.values[idx].consumed {
			return nil, fmt.Errorf("compile output %q: %w", g.resources[g.values[idx].resource].name, ErrValueConsumed)
		}
		mark(g.values[idx].producer)
	}
	for i, p := range g.passes {
		for j, u := range p.uses {
			if u.Access.IsWrite() && g.resources[g.values[p.inputs[j]].resource].persistent {
				mark(i)
				break
			}
		}
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, in := range g.passes[p].inputs {
			mark(g.values[in].producer)
		}
	}

	plan := &Plan{
		graph:       g,
		lifetimes:   make(map[int]Lifetime),
		finalAccess: make(map[string]gpu.Access),
	}

	state := make([]gpu.Access, len(g.resources))
	for i, r := range g.resources {
		state[i] = r.lastAccess
	}

	for i, p := range g.passes {
		if !live[i] {
			continue
		}
		cp := compiledPass{pass: i, depth: -1}
		order := len(plan.passes)
		for j, u := range p.uses {
			res := g.values[p.inputs[j]].resource
			if gpu.NeedsBarrier(state[res], u.Access) {
				cp.transitions = append(cp.transitions, transition{resource: res, src: state[res], dst: u.Access})
			}
			state[res] = u.Access

			r := g.resources[res]
			if r.kind == KindImage {
				switch {
				case u.Access.IsDepthAttachment():
					cp.depth = res
				case u.Access.IsColorAttachment():
					cp.color = append(cp.color, res)
				}
			}
			if !r.persistent {
				lt, ok := plan.lifetimes[res]
				if !ok {
					lt.First = order
				}
				lt.Last = order
				plan.lifetimes[res] = lt
			}
		}
		plan.passes = append(plan.passes, cp)
	}

	for i, r := range g.resources {
		plan.finalAccess[r.name] = state[i]
	}

	common.Logger().Debug("render graph compiled", "graph", g.label, "recorded", len(g.passes), "live", len(plan.passes), "transients", len(plan.lifetimes))
	return plan, nil
}

// PassNames returns the live pass names in execution order.
func (p *Plan) PassNames() []string {
	out := make([]string, len(p.passes))
	for i, cp := range p.passes {
		out[i] = p.graph.passes[cp.pass].name
	}
	return out
}

// HasPass reports whether a live pass with the given name exists.
func (p *Plan) HasPass(name string) bool {
	for _, cp := range p.passes {
		if p.graph.passes[cp.pass].name == name {
			return true
		}
	}
	return false
}

// Barriers returns the access transitions recorded before the live pass at index i.
// Image and Buffer handles are filled in only after Execute.
func (p *Plan) Barriers(i int) []gpu.Barrier {
	out := make([]gpu.Barrier, 0, len(p.passes[i].transitions))
	for _, t := range p.passes[i].transitions {
		out = append(out, p.barrier(t))
	}
	return out
}

func (p *Plan) barrier(t transition) gpu.Barrier {
	r := &p.graph.resources[t.resource]
	b := gpu.Barrier{Src: t.src, Dst: t.dst}
	if r.kind == KindImage {
		b.Image = r.image
	} else {
		b.Buffer = r.buffer
	}
	return b
}

// FinalAccess returns the last access of the named resource in this plan, which the owner of
// a persistent resource passes to the next frame's acquire.
func (p *Plan) FinalAccess(name string) (gpu.Access, bool) {
	a, ok := p.finalAccess[name]
	return a, ok
}

// Lifetime returns the span of live passes the named transient resource is used in.
func (p *Plan) Lifetime(name string) (Lifetime, bool) {
	idx, ok := p.graph.names[name]
	if !ok {
		return Lifetime{}, false
	}
	lt, ok := p.lifetimes[idx]
	return lt, ok
}

// Image returns the image a value refers to. For transients it is nil until Execute.
func (p *Plan) Image(v Value) (*gpu.Image, error) {
	idx, err := p.graph.lookup(v)
	if err != nil {
		return nil, err
	}
	r := &p.graph.resources[p.graph.values[idx].resource]
	if r.kind != KindImage {
		return nil, fmt.Errorf("%w: %q is a %s", ErrKindMismatch, r.name, r.kind)
	}
	return r.image, nil
}

// Buffer returns the buffer a value refers to. For transients it is nil until Execute.
func (p *Plan) Buffer(v Value) (*gpu.Buffer, error) {
	idx, err := p.graph.lookup(v)
	if err != nil {
		return nil, err
	}
	r := &p.graph.resources[p.graph.values[idx].resource]
	if r.kind != KindBuffer {
		return nil, fmt.Errorf("%w: %q is a %s", ErrKindMismatch, r.name, r.kind)
	}
	return r.buffer, nil
}

// Execute allocates the transients the plan uses, records every live pass into one command
// buffer and submits it. Transients are parked on the context's frame ring and destroyed
// once their frame slot is reused.
//
// Parameters:
//   - ctx: the GPU context to allocate from and submit to
//
// Returns:
//   - error: an error if the plan was already executed, or recording or submission failed
func (p *Plan) Execute(ctx *gpu.Context) error {
	if p.executed {
		return fmt.Errorf("render graph %q: plan already executed", p.graph.label)
	}
	p.executed = true

	for idx := range p.lifetimes {
		r := &p.graph.resources[idx]
		switch r.kind {
		case KindImage:
			r.image = ctx.AllocTransientImage(r.name, r.imageSpec)
		case KindBuffer:
			r.buffer = ctx.AllocTransientBuffer(r.name, r.bufferUsage|gpu.BufferUsageTransferDst, r.bufferSize)
			if len(r.initial) > 0 {
				if err := ctx.WriteBuffer(r.buffer, 0, r.initial); err != nil {
					return fmt.Errorf("render graph %q: scratch %q: %w", p.graph.label, r.name, err)
				}
			}
		}
	}

	cmd, err := ctx.Device().NewCommandBuffer(p.graph.label)
	if err != nil {
		return fmt.Errorf("render graph %q: %w", p.graph.label, err)
	}

	for _, cp := range p.passes {
		ps := &p.graph.passes[cp.pass]
		for _, t := range cp.transitions {
			cmd.PipelineBarrier(p.barrier(t))
		}

		pc := &PassContext{Cmd: cmd, Name: ps.name, plan: p, pass: ps}
		info, rendering := p.renderingInfo(cp, ps.name)
		if rendering {
			pc.Extent = info.Extent
			cmd.BeginRendering(info)
		}
		if ps.fn != nil {
			ps.fn(pc)
		}
		if rendering {
			cmd.EndRendering()
		}
	}

	if err := ctx.Device().Submit(cmd); err != nil {
		return fmt.Errorf("render graph %q: submit: %w", p.graph.label, err)
	}
	for _, fn := range p.graph.onExecuted {
		fn(p)
	}
	return nil
}

// renderingInfo builds the attachments of a pass from its color and depth uses. Contents are
// always loaded; clears are explicit passes.
func (p *Plan) renderingInfo(cp compiledPass, name string) (gpu.RenderingInfo, bool) {
	if len(cp.color) == 0 && cp.depth < 0 {
		return gpu.RenderingInfo{}, false
	}
	info := gpu.RenderingInfo{Label: name}
	for _, res := range cp.color {
		img := p.graph.resources[res].image
		info.Color = append(info.Color, gpu.Attachment{Image: img, LoadOp: gpu.LoadOpLoad})
		if info.Extent.IsZero() {
			info.Extent = img.Spec.Extent
		}
	}
	if cp.depth >= 0 {
		img := p.graph.resources[cp.depth].image
		info.Depth = &gpu.Attachment{Image: img, LoadOp: gpu.LoadOpLoad}
		if info.Extent.IsZero() {
			info.Extent = img.Spec.Extent
		}
	}
	return info, true
}

// PassContext is what a PassFunc records with.
type PassContext struct {
	Cmd  gpu.CommandBuffer
	Name string
	// Extent is the attachment extent of a rendering pass, zero otherwise.
	Extent gpu.Extent

	plan *Plan
	pass *pass
}

// Image returns the image bound by the pass's i-th use.
func (pc *PassContext) Image(i int) *gpu.Image {
	return pc.plan.graph.resources[pc.plan.graph.values[pc.pass.inputs[i]].resource].image
}

// Buffer returns the buffer bound by the pass's i-th use.
func (pc *PassContext) Buffer(i int) *gpu.Buffer {
	return pc.plan.graph.resources[pc.plan.graph.values[pc.pass.inputs[i]].resource].buffer
}
