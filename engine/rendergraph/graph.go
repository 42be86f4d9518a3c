// Package rendergraph is a per-frame, single-assignment dataflow graph of GPU passes.
//
// Resources live in an arena owned by the Graph and are referred to through Values. Every
// pass consumes the Values it uses and returns a successor Value for each of them, so the
// order in which passes were recorded is also their dependency order. Compile walks the
// graph back from the requested outputs, drops passes nothing depends on, and derives the
// barriers and transient lifetimes that Plan.Execute needs.
package rendergraph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
)

var (
	// ErrValueConsumed is returned when a Value is used after a pass already consumed it.
	ErrValueConsumed = errors.New("rendergraph: value already consumed")
	// ErrInvalidValue is returned when the zero Value or a Value from another graph is used.
	ErrInvalidValue = errors.New("rendergraph: invalid value")
	// ErrKindMismatch is returned when an image Value is used as a buffer or the other way round.
	ErrKindMismatch = errors.New("rendergraph: resource kind mismatch")
	// ErrDuplicateName is returned when two resources in one graph share a name.
	ErrDuplicateName = errors.New("rendergraph: duplicate resource name")
)

// ResourceKind distinguishes images and buffers.
type ResourceKind uint8

const (
	KindImage ResourceKind = iota
	KindBuffer
)

func (k ResourceKind) String() string {
	if k == KindBuffer {
		return "buffer"
	}
	return "image"
}

type resource struct {
	name       string
	kind       ResourceKind
	persistent bool
	lastAccess gpu.Access

	imageSpec   gpu.ImageSpec
	bufferSize  uint64
	bufferUsage gpu.BufferUsage
	initial     []byte

	// set on acquire, or at execution for transients
	image  *gpu.Image
	buffer *gpu.Buffer
}

type value struct {
	resource int
	// producer is the index of the pass that returned this value, or -1 when it came from
	// a declare or acquire.
	producer int
	consumed bool
}

// Value is a handle to one version of a graph resource. The zero Value is invalid.
type Value struct {
	id    uint32
	graph *Graph
}

// Valid reports whether v refers to a value of some graph.
func (v Value) Valid() bool {
	return v.id != 0 && v.graph != nil
}

// As pairs v with the access a pass performs on it.
func (v Value) As(access gpu.Access) Use {
	return Use{Value: v, Access: access}
}

// Name returns the name of the resource v is a version of, or "" for an invalid Value.
func (v Value) Name() string {
	if !v.Valid() || int(v.id) > len(v.graph.values) {
		return ""
	}
	return v.graph.resources[v.graph.values[v.id-1].resource].name
}

// Use is a Value together with the access a pass performs on it.
type Use struct {
	Value  Value
	Access gpu.Access
}

// PassFunc records a pass's commands. It runs during Plan.Execute, and only if the pass
// survived culling.
type PassFunc func(pc *PassContext)

type pass struct {
	name    string
	fn      PassFunc
	uses    []Use
	inputs  []int
	outputs []Value
}

// Graph records resources and passes for one frame. It is not safe for concurrent use.
type Graph struct {
	label     string
	resources []resource
	values    []value
	passes    []pass
	names     map[string]int
	err       error

	onExecuted []func(p *Plan)
}

// NewGraph creates an empty graph.
//
// Parameters:
//   - label: a debug label used for the command buffer the plan records into
//
// Returns:
//   - *Graph: the new graph
func NewGraph(label string) *Graph {
	return &Graph{
		label: label,
		names: make(map[string]int),
	}
}

// OnExecuted registers fn to run once a plan compiled from the graph has been submitted.
// Callbacks run in registration order and are skipped when the plan fails to execute.
//
// Parameters:
//   - fn: receives the executed plan
func (g *Graph) OnExecuted(fn func(p *Plan)) {
	g.onExecuted = append(g.onExecuted, fn)
}

// Label returns the debug label of the graph.
func (g *Graph) Label() string {
	return g.label
}

// Err returns every misuse recorded so far, joined, or nil.
func (g *Graph) Err() error {
	return g.err
}

func (g *Graph) fail(err error) {
	g.err = errors.Join(g.err, err)
}

func (g *Graph) addResource(r resource) (Value, bool) {
	if _, ok := g.names[r.name]; ok {
		g.fail(fmt.Errorf("%w: %q", ErrDuplicateName, r.name))
		return Value{}, false
	}
	g.names[r.name] = len(g.resources)
	g.resources = append(g.resources, r)
	return g.newValue(len(g.resources)-1, -1), true
}

func (g *Graph) newValue(res, producer int) Value {
	g.values = append(g.values, value{resource: res, producer: producer})
	return Value{id: uint32(len(g.values)), graph: g}
}

// lookup resolves v to its arena index.
func (g *Graph) lookup(v Value) (int, error) {
	if !v.Valid() || v.graph != g || int(v.id) > len(g.values) {
		return 0, ErrInvalidValue
	}
	return int(v.id) - 1, nil
}

// DeclareImage declares a transient image. It is allocated at execution only if a live
// pass uses it.
//
// Parameters:
//   - name: the unique resource name
//   - spec: the image description
//
// Returns:
//   - Value: the initial, undefined-content version of the image
func (g *Graph) DeclareImage(name string, spec gpu.ImageSpec) Value {
	if err := spec.Validate(); err != nil {
		panic(fmt.Sprintf("rendergraph: image %q: %v", name, err))
	}
	v, _ := g.addResource(resource{name: name, kind: KindImage, imageSpec: spec})
	return v
}

// DeclareBuffer declares a transient buffer.
//
// Parameters:
//   - name: the unique resource name
//   - size: the buffer size in bytes
//   - usage: the buffer usage flags
//
// Returns:
//   - Value: the initial version of the buffer
func (g *Graph) DeclareBuffer(name string, size uint64, usage gpu.BufferUsage) Value {
	v, _ := g.addResource(resource{name: name, kind: KindBuffer, bufferSize: size, bufferUsage: usage})
	return v
}

// AcquireImage brings a persistent image into the graph.
//
// Parameters:
//   - name: the unique resource name
//   - img: the persistent image handle
//   - lastAccess: how the image was last accessed, usually the previous plan's FinalAccess
//
// Returns:
//   - Value: the initial version of the image
func (g *Graph) AcquireImage(name string, img *gpu.Image, lastAccess gpu.Access) Value {
	if !img.Valid() {
		g.fail(fmt.Errorf("%w: acquire of image %q with no handle", ErrInvalidValue, name))
		return Value{}
	}
	v, _ := g.addResource(resource{name: name, kind: KindImage, persistent: true, image: img, imageSpec: img.Spec, lastAccess: lastAccess})
	return v
}

// AcquireBuffer brings a persistent buffer into the graph.
//
// Parameters:
//   - name: the unique resource name
//   - buf: the persistent buffer handle
//   - lastAccess: how the buffer was last accessed
//
// Returns:
//   - Value: the initial version of the buffer
func (g *Graph) AcquireBuffer(name string, buf *gpu.Buffer, lastAccess gpu.Access) Value {
	if !buf.Valid() {
		g.fail(fmt.Errorf("%w: acquire of buffer %q with no handle", ErrInvalidValue, name))
		return Value{}
	}
	v, _ := g.addResource(resource{name: name, kind: KindBuffer, persistent: true, buffer: buf, bufferSize: buf.Size, bufferUsage: buf.Usage, lastAccess: lastAccess})
	return v
}

// Scratch declares a transient buffer whose contents are data. The upload happens when the
// plan allocates the buffer, before any pass runs.
//
// Parameters:
//   - name: the unique resource name
//   - data: the initial contents
//
// Returns:
//   - Value: the initialized buffer
func (g *Graph) Scratch(name string, data []byte) Value {
	size := max(uint64(len(data)+3)&^3, 4)
	usage := gpu.BufferUsageStorage | gpu.BufferUsageUniform | gpu.BufferUsageIndirect | gpu.BufferUsageTransferSrc | gpu.BufferUsageTransferDst
	v, _ := g.addResource(resource{
		name:        name,
		kind:        KindBuffer,
		bufferSize:  size,
		bufferUsage: usage,
		initial:     append([]byte(nil), data...),
	})
	return v
}

// UploadStaging copies data into dst through a staging buffer. Bytes past the end of dst
// are dropped.
//
// Parameters:
//   - name: a name for the upload, used for the staging buffer and the "upload <name>" pass
//   - data: the bytes to upload to offset 0 of dst
//   - dst: the destination buffer value
//
// Returns:
//   - Value: the successor of dst holding data
func (g *Graph) UploadStaging(name string, data []byte, dst Value) Value {
	staging := g.Scratch(name+" staging", data)
	size := uint64(len(data))
	out := g.AddPass("upload "+name, func(pc *PassContext) {
		src, target := pc.Buffer(0), pc.Buffer(1)
		pc.Cmd.CopyBuffer(src, 0, target, 0, min(size, target.Size))
	}, staging.As(gpu.AccessTransferRead), dst.As(gpu.AccessTransferWrite))
	if len(out) < 2 {
		return Value{}
	}
	return out[1]
}

// Clear records a "clear <name>" pass. Images are cleared with cv; buffers are filled with
// cv.Uint[0].
//
// Parameters:
//   - v: the value to clear
//   - cv: the clear value
//
// Returns:
//   - Value: the cleared successor of v
func (g *Graph) Clear(v Value, cv gpu.ClearValue) Value {
	idx, err := g.lookup(v)
	if err != nil {
		g.fail(fmt.Errorf("clear: %w", err))
		return Value{}
	}
	res := g.resources[g.values[idx].resource]
	name := "clear " + res.name
	var out []Value
	if res.kind == KindImage {
		out = g.AddPass(name, func(pc *PassContext) {
			pc.Cmd.ClearImage(pc.Image(0), cv)
		}, v.As(gpu.AccessTransferWrite))
	} else {
		out = g.AddPass(name, func(pc *PassContext) {
			buf := pc.Buffer(0)
			pc.Cmd.FillBuffer(buf, 0, buf.Size, cv.Uint[0])
		}, v.As(gpu.AccessTransferWrite))
	}
	if len(out) == 0 {
		return Value{}
	}
	return out[0]
}

// AddPass records a pass. Every used Value is consumed and a successor is returned for each,
// in the order of uses. A Value may appear at most once per pass.
//
// Parameters:
//   - name: the pass name
//   - fn: the function recording the pass's commands
//   - uses: the values the pass touches and how
//
// Returns:
//   - []Value: one successor per use, or nil if any use was invalid
func (g *Graph) AddPass(name string, fn PassFunc, uses ...Use) []Value {
	inputs := make([]int, len(uses))
	for i, u := range uses {
		idx, err := g.lookup(u.Value)
		if err != nil {
			g.fail(fmt.Errorf("pass %q use %d: %w", name, i, err))
			return nil
		}
		if g.values[idx].consumed || slices.Contains(inputs[:i], idx) {
			g.fail(fmt.Errorf("pass %q use %d (%s): %w", name, i, g.resources[g.values[idx].resource].name, ErrValueConsumed))
			return nil
		}
		inputs[i] = idx
	}

	p := len(g.passes)
	outputs := make([]Value, len(uses))
	for i, idx := range inputs {
		g.values[idx].consumed = true
		outputs[i] = g.newValue(g.values[idx].resource, p)
	}
	g.passes = append(g.passes, pass{
		name:    name,
		fn:      fn,
		uses:    append([]Use(nil), uses...),
		inputs:  inputs,
		outputs: outputs,
	})
	return outputs
}

// Passes returns the names of every recorded pass in record order, culled or not.
func (g *Graph) Passes() []string {
	out := make([]string, len(g.passes))
	for i, p := range g.passes {
		out[i] = p.name
	}
	return out
}
