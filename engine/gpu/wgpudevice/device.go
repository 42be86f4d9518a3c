// Package wgpudevice implements gpu.Device on top of WebGPU through cogentcore/webgpu.
package wgpudevice

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// PushConstantGroup is the bind group push constant data is bound at. WebGPU has no push
// constants, so the block is uploaded as a uniform buffer per draw or dispatch.
const PushConstantGroup = gpu.PushConstantGroup

// readbackRowAlignment is the required BytesPerRow alignment of texture to buffer copies.
const readbackRowAlignment = 256

type texture struct {
	tex   *wgpu.Texture
	spec  gpu.ImageSpec
	views map[[2]uint32]*wgpu.TextureView
}

type pipelineState struct {
	desc    gpu.PipelineDescriptor
	compute *wgpu.ComputePipeline
	render  *wgpu.RenderPipeline
}

func (p *pipelineState) bindGroupLayout(group uint32) *wgpu.BindGroupLayout {
	if p.compute != nil {
		return p.compute.GetBindGroupLayout(group)
	}
	return p.render.GetBindGroupLayout(group)
}

// wgpuDevice is the implementation of the Device interface.
type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceDescriptor    *wgpu.SurfaceDescriptor
	surface              *wgpu.Surface
	surfaceFormat        wgpu.TextureFormat
	presentMode          wgpu.PresentMode
	forceFallbackAdapter bool

	nextID    uint64
	buffers   map[uint64]*wgpu.Buffer
	textures  map[uint64]*texture
	pipelines map[string]*pipelineState
	samplers  map[gpu.SamplerSpec]*wgpu.Sampler
}

// Device is a gpu.Device backed by a WebGPU adapter. When created with a surface
// descriptor it can also present images to a window.
type Device interface {
	gpu.Device

	// ConfigureSurface (re)configures the presentation surface. Must be called after creation
	// and whenever the window is resized.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	//
	// Returns:
	//   - error: an error if the device has no surface
	ConfigureSurface(width, height uint32) error

	// SurfaceFormat returns the configured surface format, or gpu.FormatUndefined when headless.
	SurfaceFormat() gpu.Format

	// SetPresentMode selects vsync (Fifo) or uncapped (Immediate) presentation.
	// Takes effect on the next ConfigureSurface.
	SetPresentMode(vsync bool)

	// Present copies img into the current surface texture and presents it.
	//
	// Parameters:
	//   - img: the image to present, must match the surface extent and format
	//
	// Returns:
	//   - error: an error if the surface texture could not be acquired or copied into
	Present(img *gpu.Image) error
}

var _ Device = &wgpuDevice{}

// DeviceBuilderOption is a functional option used to configure a Device during construction.
type DeviceBuilderOption func(*wgpuDevice)

// WithSurfaceDescriptor creates a presentation surface from the given descriptor,
// usually obtained from wgpuglfw.GetSurfaceDescriptor.
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.surfaceDescriptor = desc
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithVSync selects Fifo presentation instead of the default Immediate mode.
func WithVSync(vsync bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.SetPresentMode(vsync)
	}
}

// New creates a WebGPU Device. The calling goroutine is locked to its OS thread because
// surface operations must happen on the thread that created the surface.
//
// Parameters:
//   - options: variadic list of DeviceBuilderOption functions
//
// Returns:
//   - Device: the new device
//   - error: an error if no adapter or device could be acquired
func New(options ...DeviceBuilderOption) (Device, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		buffers:     make(map[uint64]*wgpu.Buffer),
		textures:    make(map[uint64]*texture),
		pipelines:   make(map[string]*pipelineState),
		samplers:    make(map[gpu.SamplerSpec]*wgpu.Sampler),
	}
	for _, opt := range options {
		opt(d)
	}

	if d.surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(d.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	// Four groups: bindless set, per-pass bindings, pass-local bindings and push constants.
	// Triangle culling reads ten storage buffers in one stage.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 4
	limits.MaxStorageBuffersPerShaderStage = 10

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Oxylus Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	common.Logger().Info("wgpu device created", "surface", d.surface != nil, "fallback", d.forceFallbackAdapter)
	return d, nil
}

func (d *wgpuDevice) Name() string {
	return "wgpu"
}

func (d *wgpuDevice) ConfigureSurface(width, height uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return fmt.Errorf("device was created without a surface")
	}

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst,
		Format:      d.surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

func (d *wgpuDevice) SurfaceFormat() gpu.Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.surface == nil {
		return gpu.FormatUndefined
	}
	return engineFormat(d.surfaceFormat)
}

func (d *wgpuDevice) SetPresentMode(vsync bool) {
	if vsync {
		d.presentMode = wgpu.PresentModeFifo
	} else {
		d.presentMode = wgpu.PresentModeImmediate
	}
}

func (d *wgpuDevice) Present(img *gpu.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return fmt.Errorf("device was created without a surface")
	}
	src, ok := d.textures[img.ID]
	if !ok {
		return fmt.Errorf("present source %q is not alive", img.Label)
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: src.tex, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: surfaceTexture, Aspect: wgpu.TextureAspectAll},
		&wgpu.Extent3D{Width: img.Spec.Extent.Width, Height: img.Spec.Extent.Height, DepthOrArrayLayers: 1},
	)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()

	d.surface.Present()
	return nil
}

func (d *wgpuDevice) CreateBuffer(label string, size uint64, usage gpu.BufferUsage) (*gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return nil, err
	}
	d.nextID++
	d.buffers[d.nextID] = buf
	return &gpu.Buffer{ID: d.nextID, Label: label, Size: size, Usage: usage}, nil
}

func (d *wgpuDevice) DestroyBuffer(buf *gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[buf.ID]; ok {
		b.Release()
		delete(d.buffers, buf.ID)
	}
}

func (d *wgpuDevice) WriteBuffer(buf *gpu.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf.ID]
	if !ok {
		return fmt.Errorf("write target %q is not alive", buf.Label)
	}
	return d.queue.WriteBuffer(b, offset, data)
}

func (d *wgpuDevice) CreateImage(label string, spec gpu.ImageSpec) (*gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dim, _ := textureDimension(spec.Dimension)
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              spec.Extent.Width,
			Height:             spec.Extent.Height,
			DepthOrArrayLayers: max(spec.Extent.Depth, 1),
		},
		MipLevelCount: spec.MipLevels,
		SampleCount:   1,
		Dimension:     dim,
		Format:        textureFormat(spec.Format),
		Usage:         textureUsage(spec.Usage),
	})
	if err != nil {
		return nil, err
	}
	d.nextID++
	d.textures[d.nextID] = &texture{tex: tex, spec: spec, views: make(map[[2]uint32]*wgpu.TextureView)}
	return &gpu.Image{ID: d.nextID, Label: label, Spec: spec}, nil
}

func (d *wgpuDevice) DestroyImage(img *gpu.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[img.ID]
	if !ok {
		return
	}
	for _, v := range t.views {
		v.Release()
	}
	t.tex.Release()
	delete(d.textures, img.ID)
}

// view returns a cached texture view covering [base, base+count) mips. A count of zero
// selects every mip from base.
func (d *wgpuDevice) view(v gpu.ImageView) (*wgpu.TextureView, error) {
	t, ok := d.textures[v.Image.ID]
	if !ok {
		return nil, fmt.Errorf("image %q is not alive", v.Image.Label)
	}
	count := v.MipCount
	if count == 0 {
		count = t.spec.MipLevels - v.BaseMip
	}
	key := [2]uint32{v.BaseMip, count}
	if tv, ok := t.views[key]; ok {
		return tv, nil
	}
	_, viewDim := textureDimension(t.spec.Dimension)
	aspect := wgpu.TextureAspectAll
	if t.spec.Format.IsDepth() {
		aspect = wgpu.TextureAspectDepthOnly
	}
	tv, err := t.tex.CreateView(&wgpu.TextureViewDescriptor{
		Format:          textureFormat(t.spec.Format),
		Dimension:       viewDim,
		BaseMipLevel:    v.BaseMip,
		MipLevelCount:   count,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          aspect,
	})
	if err != nil {
		return nil, err
	}
	t.views[key] = tv
	return tv, nil
}

// sampler returns a cached sampler for spec. Reduction modes are not available on WebGPU
// and are ignored; Hi-Z shaders use textureLoad instead.
func (d *wgpuDevice) sampler(spec gpu.SamplerSpec) (*wgpu.Sampler, error) {
	if s, ok := d.samplers[spec]; ok {
		return s, nil
	}
	mode := addressMode(spec.Address)
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  mode,
		AddressModeV:  mode,
		AddressModeW:  mode,
		MagFilter:     filterMode(spec.Filter),
		MinFilter:     filterMode(spec.Filter),
		MipmapFilter:  mipmapFilterMode(spec.Mipmap),
		LodMinClamp:   0,
		LodMaxClamp:   spec.MaxLod,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	d.samplers[spec] = s
	return s, nil
}

func (d *wgpuDevice) CreatePipeline(desc gpu.PipelineDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create shader module for %q: %w", desc.Name, err)
	}
	defer module.Release()

	state := &pipelineState{desc: desc}
	switch desc.Kind {
	case gpu.PipelineKindCompute:
		state.compute, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label: desc.Name,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: desc.ComputeEntry,
			},
		})
	case gpu.PipelineKindGraphics:
		state.render, err = d.device.CreateRenderPipeline(renderPipelineDescriptor(desc, module))
	}
	if err != nil {
		return fmt.Errorf("failed to create %s pipeline %q: %w", desc.Kind, desc.Name, err)
	}

	if old, ok := d.pipelines[desc.Name]; ok {
		releasePipeline(old)
	}
	d.pipelines[desc.Name] = state
	return nil
}

func renderPipelineDescriptor(desc gpu.PipelineDescriptor, module *wgpu.ShaderModule) *wgpu.RenderPipelineDescriptor {
	targets := make([]wgpu.ColorTargetState, 0, len(desc.ColorFormats))
	for _, f := range desc.ColorFormats {
		targets = append(targets, wgpu.ColorTargetState{
			Format:    textureFormat(f),
			WriteMask: wgpu.ColorWriteMaskAll,
			Blend:     blendState(desc.Raster.Blend),
		})
	}

	out := &wgpu.RenderPipelineDescriptor{
		Label: desc.Name,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.Raster.Cull),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if len(targets) > 0 {
		out.Fragment = &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets:    targets,
		}
	}
	if desc.DepthFormat != gpu.FormatUndefined {
		out.DepthStencil = &wgpu.DepthStencilState{
			Format:            textureFormat(desc.DepthFormat),
			DepthWriteEnabled: desc.Raster.DepthWrite,
			DepthCompare:      compareFunction(desc.Raster.DepthCompare),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}
	return out
}

func releasePipeline(p *pipelineState) {
	if p.compute != nil {
		p.compute.Release()
	}
	if p.render != nil {
		p.render.Release()
	}
}

func (d *wgpuDevice) NewCommandBuffer(label string) (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return newCommandBuffer(d, encoder, label), nil
}

func (d *wgpuDevice) Submit(cmds ...gpu.CommandBuffer) error {
	finished := make([]*wgpu.CommandBuffer, 0, len(cmds))
	recorded := make([]*commandBuffer, 0, len(cmds))
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok {
			return fmt.Errorf("command buffer %q was not created by this device", c.Label())
		}
		out, err := cb.finish()
		if err != nil {
			return fmt.Errorf("failed to finish command buffer %q: %w", cb.label, err)
		}
		finished = append(finished, out)
		recorded = append(recorded, cb)
	}

	d.mu.Lock()
	d.queue.Submit(finished...)
	d.mu.Unlock()

	for i, f := range finished {
		f.Release()
		recorded[i].release()
	}
	return nil
}

func (d *wgpuDevice) WaitIdle() error {
	d.device.Poll(true, nil)
	return nil
}

func (d *wgpuDevice) ReadBuffer(buf *gpu.Buffer) ([]byte, error) {
	d.mu.Lock()
	src, ok := d.buffers[buf.ID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("readback source %q is not alive", buf.Label)
	}

	size := (buf.Size + 3) &^ 3
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: buf.Label + " readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	if err := d.submitEncoder(encoder); err != nil {
		return nil, err
	}

	out, err := d.mapRead(staging, size)
	if err != nil {
		return nil, err
	}
	return out[:buf.Size], nil
}

func (d *wgpuDevice) ReadImage(img *gpu.Image) ([]byte, error) {
	d.mu.Lock()
	t, ok := d.textures[img.ID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("readback source %q is not alive", img.Label)
	}

	ext := img.Spec.Extent
	texel := img.Spec.Format.BytesPerTexel()
	tight := ext.Width * texel
	padded := common.AlignUp(tight, readbackRowAlignment)
	size := uint64(padded) * uint64(ext.Height)

	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: img.Label + " readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: t.tex, MipLevel: 0, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{Offset: 0, BytesPerRow: padded, RowsPerImage: ext.Height},
		},
		&wgpu.Extent3D{Width: ext.Width, Height: ext.Height, DepthOrArrayLayers: 1},
	)
	if err := d.submitEncoder(encoder); err != nil {
		return nil, err
	}

	raw, err := d.mapRead(staging, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, tight*ext.Height)
	for row := uint32(0); row < ext.Height; row++ {
		start := row * padded
		out = append(out, raw[start:start+tight]...)
	}
	return out, nil
}

func (d *wgpuDevice) submitEncoder(encoder *wgpu.CommandEncoder) error {
	defer encoder.Release()
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.queue.Submit(commandBuffer)
	d.mu.Unlock()
	commandBuffer.Release()
	return nil
}

// mapRead maps a readback buffer, blocks until the map completes and returns a copy of its
// contents.
func (d *wgpuDevice) mapRead(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	var status wgpu.BufferMapAsyncStatus
	done := false
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	}); err != nil {
		return nil, err
	}
	for !done {
		d.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("buffer map failed with status %v", status)
	}
	out := append([]byte(nil), buf.GetMappedRange(0, uint(size))...)
	buf.Unmap()
	return out, nil
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.pipelines {
		releasePipeline(p)
	}
	for _, s := range d.samplers {
		s.Release()
	}
	for _, t := range d.textures {
		for _, v := range t.views {
			v.Release()
		}
		t.tex.Release()
	}
	for _, b := range d.buffers {
		b.Release()
	}
	clear(d.pipelines)
	clear(d.samplers)
	clear(d.textures)
	clear(d.buffers)

	if d.surface != nil {
		d.surface.Release()
	}
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}
