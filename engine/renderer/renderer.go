// Package renderer builds the per-frame pass graph of a scene: GPU meshlet culling into a
// visibility buffer, G-buffer decode, lighting and atmosphere, 2D sprites, and the
// post-processing chain of FXAA, bloom, auto exposure and tonemapping.
//
// A Renderer owns what every scene shares: the bindless descriptor set, the exposure and
// histogram buffers, the sky LUTs and the pipelines. A RendererInstance is created per scene
// and owns the scene's GPU buffers, its Hi-Z pyramid, its camera history and its 2D queue.
package renderer

import (
	"embed"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/asset"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// Bindless descriptor set slots.
const (
	SlotLinearRepeatSampler uint32 = iota
	SlotLinearClampSampler
	SlotNearestClampSampler
	SlotHiZSampler
	SlotMaterials
	// SlotFirstImage is the first slot material textures are written to.
	SlotFirstImage
)

// Descriptor set indices used by the pass shaders.
const (
	setBindless uint32 = 0
	setPass     uint32 = 1
)

// FinalFormat is the format of the HDR color target every content pass writes.
const FinalFormat = gpu.FormatRGBA16Float

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	ctx           *gpu.Context
	assets        asset.Manager
	descriptorSet gpu.DescriptorSet
	settings      Settings

	preProcessor    shader.PreProcessor
	shaders         map[string]shader.Shader
	pipelines       map[string]gpu.PipelineDescriptor
	validateShaders bool

	pool             worker.DynamicWorkerPool
	workers          int
	flattenThreshold int

	exposureBuffer  *gpu.Buffer
	histogramBuffer *gpu.Buffer

	transmittanceLUT *gpu.Image
	multiscatterLUT  *gpu.Image
	// lutMedium is the atmosphere the LUTs were last generated for.
	lutMedium *GPUAtmosphere

	// access tracks the shared persistent resources across frames.
	access *accessHistory

	commitWarned bool
}

// Renderer owns the resources shared by every RendererInstance.
type Renderer interface {
	// Context returns the GPU context the renderer allocates from.
	Context() *gpu.Context

	// Assets returns the asset manager meshes and materials are resolved through.
	Assets() asset.Manager

	// DescriptorSet returns the bindless descriptor set. Instances commit it once per frame.
	DescriptorSet() gpu.DescriptorSet

	// Settings returns a snapshot of the current settings.
	Settings() Settings

	// SetSettings replaces the settings. Frames already being built keep their snapshot.
	SetSettings(s Settings)

	// UpdateSettings applies fn to the settings under the renderer lock.
	UpdateSettings(fn func(s *Settings))

	// RegisterPipelines loads the renderer's shaders and creates every pipeline on the
	// device. Pipelines already registered are skipped.
	//
	// Returns:
	//   - error: an error if a shader fails to load or validate, or pipeline creation fails
	RegisterPipelines() error

	// Pipeline returns the descriptor a pipeline was registered with.
	//
	// Parameters:
	//   - name: the pipeline name
	//
	// Returns:
	//   - gpu.PipelineDescriptor: the descriptor
	//   - bool: false if no pipeline of that name is registered
	Pipeline(name string) (gpu.PipelineDescriptor, bool)

	// Blit draws src into a new image of the frame's output format. Presenting needs it when
	// an instance returns the HDR target, as it does while a debug view is active.
	//
	// Parameters:
	//   - g: the frame graph
	//   - src: the image to copy, consumed
	//   - rc: the frame context giving the output extent and format
	//
	// Returns:
	//   - rendergraph.Value: the new image, named "present"
	Blit(g *rendergraph.Graph, src rendergraph.Value, rc *RenderContext) rendergraph.Value

	// NewInstance creates the per-scene renderer state for s.
	NewInstance(s *scene.Scene) RendererInstance

	// EndFrame advances the GPU context to the next frame.
	EndFrame()

	// Release destroys the shared GPU resources. Instances must be released first.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer on ctx.
//
// Parameters:
//   - ctx: the GPU context to allocate from and submit to
//   - options: variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the new renderer
func NewRenderer(ctx *gpu.Context, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:               &sync.Mutex{},
		ctx:              ctx,
		settings:         DefaultSettings(),
		pipelines:        make(map[string]gpu.PipelineDescriptor),
		workers:          max(runtime.NumCPU()-1, 1),
		flattenThreshold: defaultFlattenThreshold,
		access:           newAccessHistory(),
		descriptorSet: gpu.NewDescriptorSet("bindless",
			gpu.WithSamplerSlot(SlotLinearRepeatSampler, gpu.LinearRepeat),
			gpu.WithSamplerSlot(SlotLinearClampSampler, gpu.LinearClamp),
			gpu.WithSamplerSlot(SlotNearestClampSampler, gpu.NearestClamp),
			gpu.WithSamplerSlot(SlotHiZSampler, gpu.HiZSampler),
		),
	}
	for _, opt := range options {
		opt(r)
	}
	if r.assets == nil {
		r.assets = asset.NewManager()
	}

	r.preProcessor = shader.NewPreProcessor()
	r.preProcessor.Register(shader.AnnotationArg("renderer"), GPUTypesSource)
	r.preProcessor.Register(shader.AnnotationArg("fullscreen"), FullscreenSource)

	// Workers are reused across frames; a WaitGroup is the per-frame barrier.
	r.pool = worker.NewDynamicWorkerPool(r.workers, 256, 1*time.Second)

	r.exposureBuffer = ctx.AllocateBufferSuper("exposure", gpu.BufferUsageStorage|gpu.BufferUsageTransferDst, uint64(len(asBytes(GPUExposure{}))))
	if err := ctx.WriteBuffer(r.exposureBuffer, 0, asBytes(GPUExposure{Exposure: 1})); err != nil {
		common.Logger().Warn("exposure buffer initialization failed", "error", err)
	}
	r.histogramBuffer = ctx.AllocateBufferSuper("histogram", gpu.BufferUsageStorage|gpu.BufferUsageTransferDst, HistogramBins*4)

	common.Logger().Info("renderer created", "device", ctx.Device().Name(), "workers", r.workers)
	return r
}

func (r *renderer) Context() *gpu.Context {
	return r.ctx
}

func (r *renderer) Assets() asset.Manager {
	return r.assets
}

func (r *renderer) DescriptorSet() gpu.DescriptorSet {
	return r.descriptorSet
}

func (r *renderer) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

func (r *renderer) SetSettings(s Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
}

func (r *renderer) UpdateSettings(fn func(s *Settings)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.settings)
}

func (r *renderer) RegisterPipelines() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shaders == nil {
		shaders, err := shader.LoadAll(shaderFS, "shaders", r.preProcessor)
		if err != nil {
			return fmt.Errorf("failed to load renderer shaders: %w", err)
		}
		r.shaders = shaders
	}

	for _, spec := range pipelineSpecs {
		if _, exists := r.pipelines[pipelineName(spec.shader)]; exists {
			continue
		}
		if err := r.createPipeline(pipelineName(spec.shader), spec); err != nil {
			return err
		}
	}
	common.Logger().Info("renderer pipelines registered", "count", len(r.pipelines))
	return nil
}

// createPipeline builds and registers one pipeline. The caller holds r.mu.
func (r *renderer) createPipeline(name string, spec pipelineSpec) error {
	s, ok := r.shaders[spec.shader]
	if !ok {
		return fmt.Errorf("pipeline %q: shader %q not found", name, spec.shader)
	}
	if r.validateShaders {
		if err := shader.Validate(s); err != nil {
			return fmt.Errorf("pipeline %q: %w", name, err)
		}
	}
	desc := spec.descriptor(name, s)
	if err := r.ctx.Device().CreatePipeline(desc); err != nil {
		return fmt.Errorf("failed to register pipeline %q: %w", name, err)
	}
	r.pipelines[name] = desc
	return nil
}

func (r *renderer) Pipeline(name string) (gpu.PipelineDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.pipelines[name]
	return d, ok
}

// formatPipeline returns the variant of a fullscreen shader writing format, registering it
// on first use. Graphics pipelines bake their target format, so each output format needs its
// own.
func (r *renderer) formatPipeline(shaderKey string, format gpu.Format) string {
	name := pipelineName(shaderKey) + "_" + format.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pipelines[name]; ok || r.shaders == nil {
		return name
	}
	spec := pipelineSpec{shader: shaderKey, colors: []gpu.Format{format}}
	if err := r.createPipeline(name, spec); err != nil {
		common.Logger().Warn("pipeline variant unavailable", "shader", shaderKey, "format", format.String(), "error", err)
	}
	return name
}

func (r *renderer) tonemapPipeline(format gpu.Format) string {
	return r.formatPipeline("tonemap", format)
}

func (r *renderer) Blit(g *rendergraph.Graph, src rendergraph.Value, rc *RenderContext) rendergraph.Value {
	dst := g.DeclareImage("present", gpu.ImageSpec{
		Format:    rc.Format,
		Extent:    rc.Extent,
		MipLevels: 1,
		Usage:     attachmentUsage | gpu.ImageUsageTransferSrc,
	})
	pipeline := r.formatPipeline("blit", rc.Format)
	set := r.descriptorSet
	out := g.AddPass("present blit", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindGraphicsPipeline(pipeline)
		pc.Cmd.SetRasterState(gpu.RasterState{})
		pc.Cmd.BindDescriptorSet(setBindless, set)
		pc.Cmd.BindImage(setPass, 0, gpu.AllMips(pc.Image(1)))
		pc.Cmd.Draw(3, 1, 0, 0)
	}, dst.As(gpu.AccessColorWrite), src.As(gpu.AccessFragmentSampled))
	if len(out) == 0 {
		return rendergraph.Value{}
	}
	return out[0]
}

func (r *renderer) NewInstance(s *scene.Scene) RendererInstance {
	return newRendererInstance(r, s)
}

func (r *renderer) EndFrame() {
	r.ctx.NextFrame()
}

// commitDescriptorSet publishes the bindless set for the current frame. A second commit in
// the same frame means two instances are sharing the set without serialization; that is
// reported once.
func (r *renderer) commitDescriptorSet() {
	if !r.ctx.CommitDescriptorSet(r.descriptorSet) {
		return
	}
	r.mu.Lock()
	warned := r.commitWarned
	r.commitWarned = true
	r.mu.Unlock()
	if !warned {
		common.Logger().Warn("bindless descriptor set committed twice in one frame", "frame", r.ctx.Frame())
	}
}

func (r *renderer) Release() {
	r.ctx.Wait()
	r.ctx.DestroyBuffer(r.exposureBuffer)
	r.ctx.DestroyBuffer(r.histogramBuffer)
	r.ctx.DestroyImage(r.transmittanceLUT)
	r.ctx.DestroyImage(r.multiscatterLUT)
	r.exposureBuffer, r.histogramBuffer = nil, nil
	r.transmittanceLUT, r.multiscatterLUT = nil, nil
	r.lutMedium = nil
	r.assets.Release(r.ctx)
}
