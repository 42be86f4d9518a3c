package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
)

// frameGraph threads the frame's values from pass to pass. Every pass consumes the values it
// uses, so each field always holds the latest version of its resource.
type frameGraph struct {
	g  *rendergraph.Graph
	rc *RenderContext

	camera           rendergraph.Value
	transforms       rendergraph.Value
	meshes           rendergraph.Value
	meshletInstances rendergraph.Value
	sprites          rendergraph.Value

	// geometry arena, acquired only when meshes are drawn
	vertices rendergraph.Value
	indices  rendergraph.Value
	meshlets rendergraph.Value

	final  rendergraph.Value
	depth  rendergraph.Value
	result rendergraph.Value

	// sky inputs, valid only when both a sun and an atmosphere were extracted
	sun           rendergraph.Value
	atmosphere    rendergraph.Value
	transmittance rendergraph.Value
	multiscatter  rendergraph.Value

	// contentWritten is set once any pass drew into final.
	contentWritten bool
}

// thread replaces each target with its successor from out. When the pass was rejected every
// target becomes invalid; the graph has recorded why and Compile reports it.
func thread(out []rendergraph.Value, targets ...*rendergraph.Value) {
	for k, t := range targets {
		if k < len(out) {
			*t = out[k]
		} else {
			*t = rendergraph.Value{}
		}
	}
}

// bindBuffers binds bufs to set 1 at consecutive bindings starting at first.
func bindBuffers(cmd gpu.CommandBuffer, first uint32, bufs ...*gpu.Buffer) {
	for k, b := range bufs {
		cmd.BindBuffer(setPass, first+uint32(k), b)
	}
}

// attachmentUsage is the usage of images the frame renders into and samples from.
const attachmentUsage = gpu.ImageUsageColorAttachment | gpu.ImageUsageSampled | gpu.ImageUsageTransferDst

func (i *rendererInstance) Render(g *rendergraph.Graph, rc *RenderContext) rendergraph.Value {
	r := i.r
	ctx := r.ctx
	f := &i.frame
	fg := &frameGraph{g: g, rc: rc}

	// Scene buffers.
	fg.transforms = i.transforms.sync(g, ctx, f.transforms, false, f.dirtyTransforms)
	fg.meshes = i.meshes.sync(g, ctx, sliceBytes(f.Meshes), i.meshesRebuilt, nil)
	fg.meshletInstances = i.meshletInstances.sync(g, ctx, sliceBytes(f.MeshletInstances), i.meshesRebuilt, nil)
	g.OnExecuted(func(*rendergraph.Plan) {
		i.meshesRebuilt = false
		f.dirtyTransforms = f.dirtyTransforms[:0]
	})

	// The materials buffer and its textures are written into the bindless set before it is
	// published for the frame.
	r.assets.MaterialsBuffer(ctx, r.descriptorSet, SlotMaterials)
	r.commitDescriptorSet()

	i.queue.Update()
	i.queue.Sort()
	if i.queue.Len() > 0 {
		fg.sprites = g.Scratch("sprites", i.queue.Bytes())
	}

	fg.camera = g.Scratch("camera", append(f.Camera.Marshal(), f.PreviousCamera.Marshal()...))

	fg.final = g.Clear(g.DeclareImage("final", gpu.ImageSpec{
		Format:    FinalFormat,
		Extent:    rc.Extent,
		MipLevels: 1,
		Usage:     attachmentUsage | gpu.ImageUsageStorage,
	}), gpu.ClearColor(0, 0, 0, 1))
	fg.depth = g.Clear(g.DeclareImage("depth", gpu.ImageSpec{
		Format:    gpu.FormatDepth32Float,
		Extent:    rc.Extent,
		MipLevels: 1,
		Usage:     gpu.ImageUsageDepthAttachment | gpu.ImageUsageSampled | gpu.ImageUsageTransferDst,
	}), gpu.ClearDepth(0))
	fg.result = g.Clear(g.DeclareImage("result", gpu.ImageSpec{
		Format:    rc.Format,
		Extent:    rc.Extent,
		MipLevels: 1,
		Usage:     attachmentUsage | gpu.ImageUsageTransferSrc,
	}), gpu.ClearColor(0, 0, 0, 1))

	sky := f.Sun != nil && f.Atmosphere != nil
	if sky {
		r.addSkyInputs(fg, *f.Sun, *f.Atmosphere)
	}

	debug := rc.Settings.DebugView != DebugViewNone
	if len(f.Meshes) > 0 && len(f.MeshletInstances) > 0 {
		gb := i.addDecode(fg, i.addVisibility(fg))
		if debug {
			i.addDebugView(fg, gb)
			return fg.final
		}
		if sky {
			i.addLighting(fg, gb)
		}
	}

	if i.queue.Len() > 0 {
		i.addSprites(fg)
	}

	if sky && !debug {
		r.addSky(fg)
	}

	if debug {
		return fg.final
	}
	if !fg.contentWritten {
		common.Logger().Debug("frame has no content, post-processing skipped", "scene", i.scene.Name())
		return fg.result
	}
	r.addPostProcessing(fg, f.HistogramInfo)
	return fg.result
}
