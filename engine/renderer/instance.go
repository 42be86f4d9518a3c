package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/engine/asset"
	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
)

// FrameData is what Update extracted from the scene for the next Render.
type FrameData struct {
	// Camera is the current camera. Its frustum planes come from the frozen camera while
	// culling is frozen.
	Camera         camera.GPUCameraData
	PreviousCamera camera.GPUCameraData
	// HasCamera is false when the scene has no camera and a default one is used.
	HasCamera bool

	Sun           *GPUSun
	Atmosphere    *GPUAtmosphere
	HistogramInfo *GPUHistogramInfo

	Meshes           []asset.GPUMesh
	MeshletInstances []GPUMeshletInstance

	// transforms is the full transform slot array; dirtyTransforms the byte ranges of it
	// changed since the last executed frame.
	transforms      []byte
	dirtyTransforms []region
}

// RendererInstance is the per-scene renderer state. All methods are called from the frame
// loop goroutine.
type RendererInstance interface {
	// Scene returns the scene this instance renders.
	Scene() *scene.Scene

	// Update extracts this frame's camera, lights, atmosphere, auto exposure, meshes,
	// transforms and sprites from the scene.
	//
	// Parameters:
	//   - rc: the frame context
	Update(rc *RenderContext)

	// Render records the frame's passes into g.
	//
	// Parameters:
	//   - g: the frame graph
	//   - rc: the frame context, the same one passed to Update
	//
	// Returns:
	//   - rendergraph.Value: the image to present; the HDR target when a debug view is
	//     active, the tonemapped result otherwise
	Render(g *rendergraph.Graph, rc *RenderContext) rendergraph.Value

	// Frame returns the data extracted by the last Update.
	Frame() *FrameData

	// RenderQueue returns the 2D sprite queue.
	RenderQueue() *RenderQueue2D

	// Release destroys the instance's GPU resources.
	Release()
}

// rendererInstance is the implementation of the RendererInstance interface.
type rendererInstance struct {
	r     *renderer
	scene *scene.Scene

	frame FrameData

	lastCamera    camera.GPUCameraData
	hasLastCamera bool
	frozen        bool
	frozenCamera  camera.GPUCameraData

	// geometry is the arena the flattened meshes were built against.
	geometry      asset.Geometry
	meshesRebuilt bool

	transforms       *sceneBuffer
	meshes           *sceneBuffer
	meshletInstances *sceneBuffer

	hiz      *gpu.Image
	hizFresh bool

	// access tracks the transforms, meshes, meshlet instances and hiz across frames.
	access *accessHistory

	queue *RenderQueue2D
}

var _ RendererInstance = &rendererInstance{}

func newRendererInstance(r *renderer, s *scene.Scene) *rendererInstance {
	access := newAccessHistory()
	return &rendererInstance{
		r:                r,
		scene:            s,
		transforms:       newSceneBuffer("transforms", gpu.BufferUsageStorage, access),
		meshes:           newSceneBuffer("meshes", gpu.BufferUsageStorage, access),
		meshletInstances: newSceneBuffer("meshlet instances", gpu.BufferUsageStorage, access),
		access:           access,
		queue:            NewRenderQueue2D(),
	}
}

func (i *rendererInstance) Scene() *scene.Scene {
	return i.scene
}

func (i *rendererInstance) Frame() *FrameData {
	return &i.frame
}

func (i *rendererInstance) RenderQueue() *RenderQueue2D {
	return i.queue
}

func (i *rendererInstance) Release() {
	ctx := i.r.ctx
	ctx.Wait()
	i.transforms.release(ctx)
	i.meshes.release(ctx)
	i.meshletInstances.release(ctx)
	ctx.DestroyImage(i.hiz)
	i.hiz = nil
	i.queue.Clear()
}
