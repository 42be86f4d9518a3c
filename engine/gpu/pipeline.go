package gpu

import (
	"fmt"
	"slices"
)

// PipelineKind distinguishes compute and graphics pipelines.
type PipelineKind uint8

const (
	PipelineKindCompute PipelineKind = iota
	PipelineKindGraphics
)

func (k PipelineKind) String() string {
	if k == PipelineKindGraphics {
		return "graphics"
	}
	return "compute"
}

// PipelineDescriptor is everything needed to build a pipeline on a Device.
// Graphics pipelines use VertexEntry and FragmentEntry; compute pipelines use ComputeEntry.
type PipelineDescriptor struct {
	Name   string
	Kind   PipelineKind
	Source string

	ComputeEntry  string
	VertexEntry   string
	FragmentEntry string

	ColorFormats []Format
	DepthFormat  Format
	Raster       RasterState

	// Bindings lists the binding slots the shader declares, per set. Devices whose layouts
	// are derived from the shader drop binds to undeclared slots. Nil means unknown.
	Bindings map[uint32][]uint32
}

// PipelineBuilderOption is a functional option applied to a PipelineDescriptor via NewPipelineDescriptor.
type PipelineBuilderOption func(*PipelineDescriptor)

// NewPipelineDescriptor creates a PipelineDescriptor with the default entry points
// ("cs_main", "vs_main", "fs_main") and applies the given options.
//
// Parameters:
//   - name: the unique pipeline name passes bind it by
//   - kind: compute or graphics
//   - source: the WGSL source code
//   - options: variadic list of PipelineBuilderOption functions
//
// Returns:
//   - PipelineDescriptor: the configured descriptor
func NewPipelineDescriptor(name string, kind PipelineKind, source string, options ...PipelineBuilderOption) PipelineDescriptor {
	d := PipelineDescriptor{
		Name:          name,
		Kind:          kind,
		Source:        source,
		ComputeEntry:  "cs_main",
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
	}
	for _, opt := range options {
		opt(&d)
	}
	return d
}

// WithColorFormats sets the color target formats of a graphics pipeline.
func WithColorFormats(formats ...Format) PipelineBuilderOption {
	return func(d *PipelineDescriptor) {
		d.ColorFormats = formats
	}
}

// WithDepthFormat sets the depth target format of a graphics pipeline.
func WithDepthFormat(format Format) PipelineBuilderOption {
	return func(d *PipelineDescriptor) {
		d.DepthFormat = format
	}
}

// WithRasterState sets the baked raster state of a graphics pipeline. Devices that cannot
// change blend or depth state dynamically use this state for every draw.
func WithRasterState(state RasterState) PipelineBuilderOption {
	return func(d *PipelineDescriptor) {
		d.Raster = state
	}
}

// WithEntryPoints overrides the shader entry points.
//
// Parameters:
//   - compute: the compute entry point, ignored for graphics pipelines
//   - vertex: the vertex entry point, ignored for compute pipelines
//   - fragment: the fragment entry point, ignored for compute pipelines
func WithEntryPoints(compute, vertex, fragment string) PipelineBuilderOption {
	return func(d *PipelineDescriptor) {
		d.ComputeEntry = compute
		d.VertexEntry = vertex
		d.FragmentEntry = fragment
	}
}

// WithBindings records the binding slots the shader declares, per set.
func WithBindings(bindings map[uint32][]uint32) PipelineBuilderOption {
	return func(d *PipelineDescriptor) {
		d.Bindings = bindings
	}
}

// Declares reports whether the shader declares set/binding. Descriptors without binding
// information declare everything.
func (d PipelineDescriptor) Declares(set, binding uint32) bool {
	if d.Bindings == nil {
		return true
	}
	return slices.Contains(d.Bindings[set], binding)
}

// Validate checks that the descriptor is complete for its kind.
func (d PipelineDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("pipeline name must be set")
	}
	if d.Source == "" {
		return fmt.Errorf("pipeline %q has no shader source", d.Name)
	}
	if d.Kind == PipelineKindGraphics && len(d.ColorFormats) == 0 && d.DepthFormat == FormatUndefined {
		return fmt.Errorf("graphics pipeline %q has no color or depth target", d.Name)
	}
	return nil
}
