package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/renderer/shader"
)

// pipelineSpec is the fixed-function state a shader is built into a pipeline with.
type pipelineSpec struct {
	shader string
	colors []gpu.Format
	depth  gpu.Format
	raster gpu.RasterState
}

// drawDepthState is the reversed-Z depth test used by every geometry pass.
var drawDepthState = gpu.RasterState{DepthCompare: gpu.CompareGreaterOrEqual, DepthWrite: true, Cull: gpu.CullNone}

// pipelineSpecs lists every pipeline the renderer registers up front. Tonemap variants are
// registered per output format on first use instead.
var pipelineSpecs = []pipelineSpec{
	{shader: "vis_cull_meshlets"},
	{shader: "vis_cull_triangles"},
	{shader: "vis_encode", colors: []gpu.Format{gpu.FormatR32Uint}, depth: gpu.FormatDepth32Float, raster: drawDepthState},
	{shader: "hiz_copy"},
	{shader: "hiz_reduce"},
	{shader: "vis_decode", colors: gbufferFormats[:]},
	{shader: "debug_view", colors: []gpu.Format{FinalFormat}},
	{shader: "brdf", colors: []gpu.Format{FinalFormat}},
	{
		shader: "2d_forward",
		colors: []gpu.Format{FinalFormat},
		depth:  gpu.FormatDepth32Float,
		raster: gpu.RasterState{Blend: gpu.BlendAlpha, DepthCompare: gpu.CompareGreaterOrEqual, DepthWrite: true, Cull: gpu.CullNone},
	},
	{shader: "sky_transmittance_lut"},
	{shader: "sky_multiscatter_lut"},
	{shader: "sky_view_lut"},
	{shader: "sky_aerial_perspective_lut"},
	{shader: "sky_final", colors: []gpu.Format{FinalFormat}, raster: gpu.RasterState{Blend: gpu.BlendAlpha}},
	{shader: "fxaa", colors: []gpu.Format{FinalFormat}},
	{shader: "bloom_prefilter"},
	{shader: "bloom_downsample"},
	{shader: "bloom_upsample"},
	{shader: "histogram_generate"},
	{shader: "histogram_average"},
}

// pipelineName returns the name a shader's pipeline is registered and bound by.
func pipelineName(shaderKey string) string {
	return shaderKey + "_pipeline"
}

// descriptor builds the pipeline descriptor of s.
func (p pipelineSpec) descriptor(name string, s shader.Shader) gpu.PipelineDescriptor {
	if s.IsCompute() {
		return gpu.NewPipelineDescriptor(name, gpu.PipelineKindCompute, s.Source(),
			gpu.WithEntryPoints(s.EntryPoint(shader.StageCompute), "", ""),
			gpu.WithBindings(s.Bindings()),
		)
	}
	opts := []gpu.PipelineBuilderOption{
		gpu.WithEntryPoints("", s.EntryPoint(shader.StageVertex), s.EntryPoint(shader.StageFragment)),
		gpu.WithColorFormats(p.colors...),
		gpu.WithRasterState(p.raster),
		gpu.WithBindings(s.Bindings()),
	}
	if p.depth != gpu.FormatUndefined {
		opts = append(opts, gpu.WithDepthFormat(p.depth))
	}
	return gpu.NewPipelineDescriptor(name, gpu.PipelineKindGraphics, s.Source(), opts...)
}
