package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/asset"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
)

const (
	// visEmpty marks visibility texels no triangle covered.
	visEmpty = 0xFFFFFFFF

	// hizTile is the granularity the Hi-Z extent is rounded up to.
	hizTile = 64
	// screenGroupSize is the workgroup edge of the 2D screen-space compute passes.
	screenGroupSize = 8
)

// gbufferFormats are the decode targets in attachment order: albedo, normal, emissive and
// metallic-roughness-occlusion.
var gbufferFormats = [4]gpu.Format{
	gpu.FormatRGBA8Unorm,
	gpu.FormatRGBA16Float,
	gpu.FormatRGBA8Unorm,
	gpu.FormatRGBA8Unorm,
}

// gbuffer holds the visibility outputs and the decoded surface attributes.
type gbuffer struct {
	vis      rendergraph.Value
	overdraw rendergraph.Value

	albedo   rendergraph.Value
	normal   rendergraph.Value
	emissive rendergraph.Value
	mro      rendergraph.Value
}

// ensureHiZ keeps the Hi-Z pyramid sized to the depth extent rounded up to whole tiles. A
// size change recreates it after a full device wait.
func (i *rendererInstance) ensureHiZ(extent gpu.Extent) {
	want := gpu.Extent2D(common.AlignUp(extent.Width, hizTile), common.AlignUp(extent.Height, hizTile))
	if i.hiz.Valid() && i.hiz.Spec.Extent == want {
		i.hizFresh = false
		return
	}
	ctx := i.r.ctx
	if i.hiz.Valid() {
		ctx.Wait()
		ctx.DestroyImage(i.hiz)
	}
	i.hiz = ctx.CreateImage("hiz", gpu.ImageSpec{
		Format:    gpu.FormatR32Float,
		Extent:    want,
		MipLevels: common.MipCount(want.Width, want.Height),
		Usage:     gpu.ImageUsageStorage | gpu.ImageUsageSampled,
	})
	i.hizFresh = true
	common.Logger().Debug("hiz recreated", "scene", i.scene.Name(), "extent", want.String(), "mips", i.hiz.Spec.MipLevels)
}

// addVisibility records meshlet culling, triangle culling, the visibility encode and the
// Hi-Z rebuild.
func (i *rendererInstance) addVisibility(fg *frameGraph) *gbuffer {
	g := fg.g
	extent := fg.rc.Extent
	n := uint32(len(i.frame.MeshletInstances))

	geo := i.r.assets.Geometry()
	fg.vertices = i.r.access.acquireBuffer(g, "geometry vertices", geo.Vertices)
	fg.indices = i.r.access.acquireBuffer(g, "geometry indices", geo.Indices)
	fg.meshlets = i.r.access.acquireBuffer(g, "geometry meshlets", geo.Meshlets)

	flags := fg.rc.Settings.CullFlags()
	i.ensureHiZ(extent)
	if i.hizFresh {
		// A new pyramid holds no depth yet.
		flags &^= CullMeshletOcclusion
	}
	hiz := i.access.acquireImage(g, "hiz", i.hiz)

	cullArgs := g.Scratch("cull triangles args", sliceBytes([]uint32{0, 1, 1}))
	visible := g.DeclareBuffer("visible meshlet instances", uint64(n)*4, gpu.BufferUsageStorage)
	meshletPush := asBytes(cullMeshletsConstants{InstanceCount: n, CullFlags: uint32(flags), HiZMipCount: i.hiz.Spec.MipLevels})
	out := g.AddPass("vis cull meshlets", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("vis_cull_meshlets"))
		bindBuffers(pc.Cmd, 0, pc.Buffer(0), pc.Buffer(1), pc.Buffer(2), pc.Buffer(3), pc.Buffer(4))
		pc.Cmd.BindImage(setPass, 5, gpu.AllMips(pc.Image(5)))
		bindBuffers(pc.Cmd, 6, pc.Buffer(6), pc.Buffer(7))
		pc.Cmd.PushConstants(meshletPush)
		pc.Cmd.Dispatch(common.DivRoundUp(n, asset.MaxMeshletIndices), 1, 1)
	},
		fg.camera.As(gpu.AccessComputeRead),
		fg.meshletInstances.As(gpu.AccessComputeRead),
		fg.meshes.As(gpu.AccessComputeRead),
		fg.transforms.As(gpu.AccessComputeRead),
		fg.meshlets.As(gpu.AccessComputeRead),
		hiz.As(gpu.AccessComputeSampled),
		cullArgs.As(gpu.AccessComputeRW),
		visible.As(gpu.AccessComputeWrite),
	)
	thread(out, &fg.camera, &fg.meshletInstances, &fg.meshes, &fg.transforms, &fg.meshlets, &hiz, &cullArgs, &visible)

	drawArgs := g.Scratch("vis draw args", sliceBytes([]uint32{0, 1, 0, 0, 0}))
	reordered := g.DeclareBuffer("reordered indices", uint64(n)*asset.MaxMeshletTriangles*3*4, gpu.BufferUsageStorage|gpu.BufferUsageIndex)
	trianglePush := asBytes(cullTrianglesConstants{CullFlags: uint32(flags)})
	out = g.AddPass("vis cull triangles", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("vis_cull_triangles"))
		bindBuffers(pc.Cmd, 0,
			pc.Buffer(1), pc.Buffer(2), pc.Buffer(3), pc.Buffer(4), pc.Buffer(5),
			pc.Buffer(6), pc.Buffer(7), pc.Buffer(8), pc.Buffer(9), pc.Buffer(10),
		)
		pc.Cmd.PushConstants(trianglePush)
		pc.Cmd.DispatchIndirect(pc.Buffer(0), 0)
	},
		cullArgs.As(gpu.AccessIndirectRead),
		fg.camera.As(gpu.AccessComputeRead),
		visible.As(gpu.AccessComputeRead),
		fg.meshletInstances.As(gpu.AccessComputeRead),
		fg.meshes.As(gpu.AccessComputeRead),
		fg.transforms.As(gpu.AccessComputeRead),
		fg.meshlets.As(gpu.AccessComputeRead),
		fg.vertices.As(gpu.AccessComputeRead),
		fg.indices.As(gpu.AccessComputeRead),
		drawArgs.As(gpu.AccessComputeRW),
		reordered.As(gpu.AccessComputeWrite),
	)
	thread(out, &cullArgs, &fg.camera, &visible, &fg.meshletInstances, &fg.meshes, &fg.transforms, &fg.meshlets, &fg.vertices, &fg.indices, &drawArgs, &reordered)

	gb := &gbuffer{
		vis: g.DeclareImage("vis", gpu.ImageSpec{
			Format:    gpu.FormatR32Uint,
			Extent:    extent,
			MipLevels: 1,
			Usage:     attachmentUsage,
		}),
		overdraw: g.DeclareBuffer("overdraw", uint64(extent.Width)*uint64(extent.Height)*4, gpu.BufferUsageStorage),
	}
	out = g.AddPass("vis clear", func(pc *rendergraph.PassContext) {
		pc.Cmd.ClearImage(pc.Image(0), gpu.ClearUint(visEmpty))
		overdraw := pc.Buffer(1)
		pc.Cmd.FillBuffer(overdraw, 0, overdraw.Size, 0)
	}, gb.vis.As(gpu.AccessTransferWrite), gb.overdraw.As(gpu.AccessTransferWrite))
	thread(out, &gb.vis, &gb.overdraw)

	out = g.AddPass("vis encode", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindGraphicsPipeline(pipelineName("vis_encode"))
		pc.Cmd.SetRasterState(drawDepthState)
		bindBuffers(pc.Cmd, 0,
			pc.Buffer(5), pc.Buffer(6), pc.Buffer(7), pc.Buffer(8),
			pc.Buffer(9), pc.Buffer(10), pc.Buffer(11), pc.Buffer(12), pc.Buffer(2),
		)
		pc.Cmd.BindIndexBuffer(pc.Buffer(3))
		pc.Cmd.DrawIndexedIndirect(pc.Buffer(4), 0)
	},
		gb.vis.As(gpu.AccessColorWrite),
		fg.depth.As(gpu.AccessDepthStencilRW),
		gb.overdraw.As(gpu.AccessFragmentRW),
		reordered.As(gpu.AccessIndexRead),
		drawArgs.As(gpu.AccessIndirectRead),
		fg.camera.As(gpu.AccessVertexRead),
		visible.As(gpu.AccessVertexRead),
		fg.meshletInstances.As(gpu.AccessVertexRead),
		fg.meshes.As(gpu.AccessVertexRead),
		fg.transforms.As(gpu.AccessVertexRead),
		fg.meshlets.As(gpu.AccessVertexRead),
		fg.vertices.As(gpu.AccessVertexRead),
		fg.indices.As(gpu.AccessVertexRead),
	)
	thread(out, &gb.vis, &fg.depth, &gb.overdraw, &reordered, &drawArgs, &fg.camera, &visible, &fg.meshletInstances, &fg.meshes, &fg.transforms, &fg.meshlets, &fg.vertices, &fg.indices)

	// Mip 0 copies depth, clamped at the edges the tile rounding added. Every further mip is
	// the 2x2 minimum of the one above it, the farthest depth under reversed Z.
	out = g.AddPass("hiz generate", func(pc *rendergraph.PassContext) {
		depth, pyramid := pc.Image(0), pc.Image(1)
		ext := pyramid.Spec.Extent
		pc.Cmd.BindComputePipeline(pipelineName("hiz_copy"))
		pc.Cmd.BindImage(setPass, 0, gpu.AllMips(depth))
		pc.Cmd.BindImage(setPass, 1, gpu.SingleMip(pyramid, 0))
		pc.Cmd.Dispatch(common.DivRoundUp(ext.Width, screenGroupSize), common.DivRoundUp(ext.Height, screenGroupSize), 1)

		pc.Cmd.BindComputePipeline(pipelineName("hiz_reduce"))
		for mip := uint32(1); mip < pyramid.Spec.MipLevels; mip++ {
			m := ext.Mip(mip)
			pc.Cmd.BindImage(setPass, 0, gpu.SingleMip(pyramid, mip-1))
			pc.Cmd.BindImage(setPass, 1, gpu.SingleMip(pyramid, mip))
			pc.Cmd.Dispatch(common.DivRoundUp(m.Width, screenGroupSize), common.DivRoundUp(m.Height, screenGroupSize), 1)
		}
	}, fg.depth.As(gpu.AccessComputeSampled), hiz.As(gpu.AccessComputeRW))
	thread(out, &fg.depth, &hiz)

	return gb
}

// addDecode resolves the visibility buffer into the G-buffer targets.
func (i *rendererInstance) addDecode(fg *frameGraph, gb *gbuffer) *gbuffer {
	g := fg.g
	targets := []*rendergraph.Value{&gb.albedo, &gb.normal, &gb.emissive, &gb.mro}
	names := []string{"gbuffer albedo", "gbuffer normal", "gbuffer emissive", "gbuffer mro"}
	for k, t := range targets {
		*t = g.DeclareImage(names[k], gpu.ImageSpec{
			Format:    gbufferFormats[k],
			Extent:    fg.rc.Extent,
			MipLevels: 1,
			Usage:     gpu.ImageUsageColorAttachment | gpu.ImageUsageSampled,
		})
	}

	set := i.r.descriptorSet
	out := g.AddPass("vis decode", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindGraphicsPipeline(pipelineName("vis_decode"))
		pc.Cmd.SetRasterState(gpu.RasterState{})
		pc.Cmd.BindDescriptorSet(setBindless, set)
		pc.Cmd.BindImage(setPass, 0, gpu.AllMips(pc.Image(0)))
		bindBuffers(pc.Cmd, 1, pc.Buffer(5), pc.Buffer(6), pc.Buffer(7), pc.Buffer(8), pc.Buffer(9), pc.Buffer(10), pc.Buffer(11))
		pc.Cmd.Draw(3, 1, 0, 0)
	},
		gb.vis.As(gpu.AccessFragmentSampled),
		gb.albedo.As(gpu.AccessColorWrite),
		gb.normal.As(gpu.AccessColorWrite),
		gb.emissive.As(gpu.AccessColorWrite),
		gb.mro.As(gpu.AccessColorWrite),
		fg.camera.As(gpu.AccessFragmentRead),
		fg.meshletInstances.As(gpu.AccessFragmentRead),
		fg.meshes.As(gpu.AccessFragmentRead),
		fg.transforms.As(gpu.AccessFragmentRead),
		fg.meshlets.As(gpu.AccessFragmentRead),
		fg.vertices.As(gpu.AccessFragmentRead),
		fg.indices.As(gpu.AccessFragmentRead),
	)
	thread(out, &gb.vis, &gb.albedo, &gb.normal, &gb.emissive, &gb.mro, &fg.camera, &fg.meshletInstances, &fg.meshes, &fg.transforms, &fg.meshlets, &fg.vertices, &fg.indices)
	return gb
}

// addDebugView draws the selected debug visualization into final.
func (i *rendererInstance) addDebugView(fg *frameGraph, gb *gbuffer) {
	push := asBytes(debugConstants{View: uint32(fg.rc.Settings.DebugView)})
	out := fg.g.AddPass("debug view", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindGraphicsPipeline(pipelineName("debug_view"))
		pc.Cmd.SetRasterState(gpu.RasterState{})
		for k := range 5 {
			pc.Cmd.BindImage(setPass, uint32(k), gpu.AllMips(pc.Image(k+1)))
		}
		bindBuffers(pc.Cmd, 5, pc.Buffer(6), pc.Buffer(7))
		pc.Cmd.PushConstants(push)
		pc.Cmd.Draw(3, 1, 0, 0)
	},
		fg.final.As(gpu.AccessColorWrite),
		gb.vis.As(gpu.AccessFragmentSampled),
		gb.albedo.As(gpu.AccessFragmentSampled),
		gb.normal.As(gpu.AccessFragmentSampled),
		gb.emissive.As(gpu.AccessFragmentSampled),
		gb.mro.As(gpu.AccessFragmentSampled),
		gb.overdraw.As(gpu.AccessFragmentRead),
		fg.camera.As(gpu.AccessFragmentRead),
	)
	thread(out, &fg.final, &gb.vis, &gb.albedo, &gb.normal, &gb.emissive, &gb.mro, &gb.overdraw, &fg.camera)
	fg.contentWritten = true
}

// addLighting shades the G-buffer with the sun, attenuated through the transmittance LUT,
// and multiscattered sky light.
func (i *rendererInstance) addLighting(fg *frameGraph, gb *gbuffer) {
	set := i.r.descriptorSet
	out := fg.g.AddPass("brdf", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindGraphicsPipeline(pipelineName("brdf"))
		pc.Cmd.SetRasterState(gpu.RasterState{})
		pc.Cmd.BindDescriptorSet(setBindless, set)
		for k := range 7 {
			pc.Cmd.BindImage(setPass, uint32(k), gpu.AllMips(pc.Image(k+1)))
		}
		bindBuffers(pc.Cmd, 7, pc.Buffer(8), pc.Buffer(9), pc.Buffer(10))
		pc.Cmd.Draw(3, 1, 0, 0)
	},
		fg.final.As(gpu.AccessColorWrite),
		gb.albedo.As(gpu.AccessFragmentSampled),
		gb.normal.As(gpu.AccessFragmentSampled),
		gb.emissive.As(gpu.AccessFragmentSampled),
		gb.mro.As(gpu.AccessFragmentSampled),
		fg.depth.As(gpu.AccessFragmentSampled),
		fg.transmittance.As(gpu.AccessFragmentSampled),
		fg.multiscatter.As(gpu.AccessFragmentSampled),
		fg.camera.As(gpu.AccessFragmentRead),
		fg.sun.As(gpu.AccessFragmentRead),
		fg.atmosphere.As(gpu.AccessFragmentRead),
	)
	thread(out, &fg.final, &gb.albedo, &gb.normal, &gb.emissive, &gb.mro, &fg.depth, &fg.transmittance, &fg.multiscatter, &fg.camera, &fg.sun, &fg.atmosphere)
	fg.contentWritten = true
}
