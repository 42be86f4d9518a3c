package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
)

// spriteState draws sprites alpha blended against the scene depth.
var spriteState = gpu.RasterState{
	Blend:        gpu.BlendAlpha,
	DepthCompare: gpu.CompareGreaterOrEqual,
	DepthWrite:   true,
	Cull:         gpu.CullNone,
}

// addSprites records the 2D forward pass: one instanced quad draw per batch.
func (i *rendererInstance) addSprites(fg *frameGraph) {
	set := i.r.descriptorSet
	batches := i.queue.Batches()
	out := fg.g.AddPass("2d forward", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindDescriptorSet(setBindless, set)
		for _, b := range batches {
			if b.Count == 0 {
				continue
			}
			pc.Cmd.BindGraphicsPipeline(b.PipelineName)
			pc.Cmd.SetRasterState(spriteState)
			bindBuffers(pc.Cmd, 0, pc.Buffer(2), pc.Buffer(3), pc.Buffer(4))
			pc.Cmd.Draw(6, b.Count, 0, b.Offset)
		}
	},
		fg.final.As(gpu.AccessColorWrite),
		fg.depth.As(gpu.AccessDepthStencilRW),
		fg.sprites.As(gpu.AccessVertexRead),
		fg.transforms.As(gpu.AccessVertexRead),
		fg.camera.As(gpu.AccessVertexRead),
	)
	thread(out, &fg.final, &fg.depth, &fg.sprites, &fg.transforms, &fg.camera)
	fg.contentWritten = true
}
