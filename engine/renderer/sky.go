package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
)

const (
	// lutGroupSize is the workgroup edge of the 2D LUT passes.
	lutGroupSize = 8
	// aerialGroupSize is the workgroup edge of the aerial perspective volume pass.
	aerialGroupSize = 4
)

// lutSpec is the spec shared by the atmosphere LUTs.
func lutSpec(extent gpu.Extent, dim gpu.ImageDimension) gpu.ImageSpec {
	return gpu.ImageSpec{
		Format:    gpu.FormatRGBA16Float,
		Extent:    extent,
		MipLevels: 1,
		Dimension: dim,
		Usage:     gpu.ImageUsageStorage | gpu.ImageUsageSampled,
	}
}

// addSkyInputs uploads the sun and atmosphere records and brings the transmittance and
// multiscatter LUTs into the graph, regenerating them when the medium changed.
func (r *renderer) addSkyInputs(fg *frameGraph, sun GPUSun, atmo GPUAtmosphere) {
	g := fg.g
	fg.sun = g.Scratch("sun", asBytes(sun))
	fg.atmosphere = g.Scratch("atmosphere", asBytes(atmo))

	if !r.transmittanceLUT.Valid() {
		r.transmittanceLUT = r.ctx.CreateImage("sky transmittance lut", lutSpec(TransmittanceLUTExtent, gpu.ImageDimension2D))
		r.multiscatterLUT = r.ctx.CreateImage("sky multiscatter lut", lutSpec(MultiscatterLUTExtent, gpu.ImageDimension2D))
		r.lutMedium = nil
	}
	fg.transmittance = r.access.acquireImage(g, "sky transmittance lut", r.transmittanceLUT)
	fg.multiscatter = r.access.acquireImage(g, "sky multiscatter lut", r.multiscatterLUT)

	if r.lutMedium != nil && r.lutMedium.sameMedium(atmo) {
		return
	}

	out := g.AddPass("sky transmittance lut", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("sky_transmittance_lut"))
		pc.Cmd.BindBuffer(setPass, 0, pc.Buffer(0))
		pc.Cmd.BindImage(setPass, 1, gpu.AllMips(pc.Image(1)))
		pc.Cmd.Dispatch(
			common.DivRoundUp(TransmittanceLUTExtent.Width, lutGroupSize),
			common.DivRoundUp(TransmittanceLUTExtent.Height, lutGroupSize), 1)
	}, fg.atmosphere.As(gpu.AccessComputeRead), fg.transmittance.As(gpu.AccessComputeWrite))
	thread(out, &fg.atmosphere, &fg.transmittance)

	set := r.descriptorSet
	out = g.AddPass("sky multiscatter lut", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("sky_multiscatter_lut"))
		pc.Cmd.BindDescriptorSet(setBindless, set)
		pc.Cmd.BindBuffer(setPass, 0, pc.Buffer(0))
		pc.Cmd.BindImage(setPass, 1, gpu.AllMips(pc.Image(1)))
		pc.Cmd.BindImage(setPass, 2, gpu.AllMips(pc.Image(2)))
		pc.Cmd.Dispatch(
			common.DivRoundUp(MultiscatterLUTExtent.Width, lutGroupSize),
			common.DivRoundUp(MultiscatterLUTExtent.Height, lutGroupSize), 1)
	},
		fg.atmosphere.As(gpu.AccessComputeRead),
		fg.transmittance.As(gpu.AccessComputeSampled),
		fg.multiscatter.As(gpu.AccessComputeWrite),
	)
	thread(out, &fg.atmosphere, &fg.transmittance, &fg.multiscatter)

	// The LUTs hold the new medium only once the plan has run.
	medium := atmo
	g.OnExecuted(func(*rendergraph.Plan) {
		r.lutMedium = &medium
	})
	common.Logger().Debug("sky luts recorded", "frame", r.ctx.Frame())
}

// addSky renders the per-view sky LUTs and composites the sky and aerial perspective over
// final.
func (r *renderer) addSky(fg *frameGraph) {
	g := fg.g
	set := r.descriptorSet

	skyView := g.DeclareImage("sky view lut", lutSpec(SkyViewLUTExtent, gpu.ImageDimension2D))
	out := g.AddPass("sky view lut", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("sky_view_lut"))
		pc.Cmd.BindDescriptorSet(setBindless, set)
		bindBuffers(pc.Cmd, 0, pc.Buffer(0), pc.Buffer(1))
		pc.Cmd.BindImage(setPass, 2, gpu.AllMips(pc.Image(2)))
		pc.Cmd.BindImage(setPass, 3, gpu.AllMips(pc.Image(3)))
		pc.Cmd.BindImage(setPass, 4, gpu.AllMips(pc.Image(4)))
		pc.Cmd.Dispatch(
			common.DivRoundUp(SkyViewLUTExtent.Width, lutGroupSize),
			common.DivRoundUp(SkyViewLUTExtent.Height, lutGroupSize), 1)
	},
		fg.atmosphere.As(gpu.AccessComputeRead),
		fg.sun.As(gpu.AccessComputeRead),
		fg.transmittance.As(gpu.AccessComputeSampled),
		fg.multiscatter.As(gpu.AccessComputeSampled),
		skyView.As(gpu.AccessComputeWrite),
	)
	thread(out, &fg.atmosphere, &fg.sun, &fg.transmittance, &fg.multiscatter, &skyView)

	aerial := g.DeclareImage("sky aerial perspective lut", lutSpec(AerialPerspectiveLUTExtent, gpu.ImageDimension3D))
	out = g.AddPass("sky aerial perspective lut", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("sky_aerial_perspective_lut"))
		pc.Cmd.BindDescriptorSet(setBindless, set)
		bindBuffers(pc.Cmd, 0, pc.Buffer(0), pc.Buffer(1), pc.Buffer(2))
		pc.Cmd.BindImage(setPass, 3, gpu.AllMips(pc.Image(3)))
		pc.Cmd.BindImage(setPass, 4, gpu.AllMips(pc.Image(4)))
		pc.Cmd.BindImage(setPass, 5, gpu.AllMips(pc.Image(5)))
		e := AerialPerspectiveLUTExtent
		pc.Cmd.Dispatch(
			common.DivRoundUp(e.Width, aerialGroupSize),
			common.DivRoundUp(e.Height, aerialGroupSize),
			common.DivRoundUp(e.Depth, aerialGroupSize))
	},
		fg.atmosphere.As(gpu.AccessComputeRead),
		fg.sun.As(gpu.AccessComputeRead),
		fg.camera.As(gpu.AccessComputeRead),
		fg.transmittance.As(gpu.AccessComputeSampled),
		fg.multiscatter.As(gpu.AccessComputeSampled),
		aerial.As(gpu.AccessComputeWrite),
	)
	thread(out, &fg.atmosphere, &fg.sun, &fg.camera, &fg.transmittance, &fg.multiscatter, &aerial)

	out = g.AddPass("sky final", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindGraphicsPipeline(pipelineName("sky_final"))
		pc.Cmd.SetRasterState(gpu.RasterState{Blend: gpu.BlendAlpha})
		pc.Cmd.BindDescriptorSet(setBindless, set)
		bindBuffers(pc.Cmd, 0, pc.Buffer(1), pc.Buffer(2), pc.Buffer(3))
		for k := range 4 {
			pc.Cmd.BindImage(setPass, uint32(3+k), gpu.AllMips(pc.Image(4+k)))
		}
		pc.Cmd.Draw(3, 1, 0, 0)
	},
		fg.final.As(gpu.AccessColorRW),
		fg.atmosphere.As(gpu.AccessFragmentRead),
		fg.sun.As(gpu.AccessFragmentRead),
		fg.camera.As(gpu.AccessFragmentRead),
		skyView.As(gpu.AccessFragmentSampled),
		aerial.As(gpu.AccessFragmentSampled),
		fg.depth.As(gpu.AccessFragmentSampled),
		fg.transmittance.As(gpu.AccessFragmentSampled),
	)
	thread(out, &fg.final, &fg.atmosphere, &fg.sun, &fg.camera, &skyView, &aerial, &fg.depth, &fg.transmittance)
	fg.contentWritten = true
}
