package engine

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/profiler"
	"github.com/Carmen-Shannon/oxylus-go/engine/renderer"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
	"github.com/Carmen-Shannon/oxylus-go/engine/window"
)

// Presenter shows finished frames on a surface. The WebGPU device implements it when it is
// created with a window surface.
type Presenter interface {
	// ConfigureSurface (re)configures the surface for a framebuffer size.
	ConfigureSurface(width, height uint32) error

	// SurfaceFormat returns the format presented images must have.
	SurfaceFormat() gpu.Format

	// Present copies img onto the surface and presents it.
	Present(img *gpu.Image) error
}

// engine implements the Engine interface.
// Coordinates the tick, render and window loops.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	renderer  renderer.Renderer
	presenter Presenter
	window    window.Window

	// width, height and format describe the output when there is no window or presenter.
	width  uint32
	height uint32
	format gpu.Format

	// resizePending is set by the window loop and consumed by the render loop, which owns
	// the surface.
	resizePending bool

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scenes    map[int]*scene.Scene
	instances map[int]renderer.RendererInstance
	// retired holds instances of removed or replaced scenes until the render loop releases
	// them between frames.
	retired []renderer.RendererInstance

	renderFrameLimit time.Duration
}

// Engine drives the frame loop: for every active scene, in ascending key order, it extracts
// the scene, records and compiles its pass graph and executes it. The output of the last
// active scene is presented.
type Engine interface {
	// Window returns the window frames are presented to, or nil when headless.
	Window() window.Window

	// Renderer returns the renderer scenes are drawn with.
	Renderer() renderer.Renderer

	// EnableProfiler enables periodic frame statistics in the log.
	EnableProfiler()

	// DisableProfiler disables frame statistics.
	DisableProfiler()

	// SetTickRate sets the tick callback rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, input processing and scene updates.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function receiving the frame delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given key and creates its renderer instance. A
	// scene already registered at key is replaced and its instance released before the next
	// frame.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the scene to register
	AddScene(key int, s *scene.Scene)

	// RemoveScene removes the scene at key. Its renderer instance is released before the next
	// frame.
	RemoveScene(key int)

	// Scene returns the scene registered at key, or nil.
	Scene(key int) *scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	Scenes() map[int]*scene.Scene

	// RenderFrame renders one frame of every active scene. present receives the image of the
	// last active scene before the frame ends; it may be nil.
	//
	// Parameters:
	//   - deltaTime: the frame time in seconds
	//   - present: called with the frame's output image
	//
	// Returns:
	//   - error: the first graph compile, execute or present failure
	RenderFrame(deltaTime float32, present func(img *gpu.Image) error) error

	// Run starts the tick and render loops and blocks until the window closes or Quit is
	// called. Without a window it blocks until Quit.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()

	// Release waits for the device and releases every scene instance.
	Release()
}

// NewEngine creates an Engine rendering with r.
//
// Parameters:
//   - r: the renderer every scene instance is created from
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		width:           1280,
		height:          720,
		format:          gpu.FormatRGBA8Unorm,
		scenes:          make(map[int]*scene.Scene),
		instances:       make(map[int]renderer.RendererInstance),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.mu.Lock()
			e.resizePending = true
			e.mu.Unlock()
		})
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

// outputSize returns the frame extent: the window framebuffer when there is one.
func (e *engine) outputSize() (uint32, uint32) {
	if e.window != nil {
		w, h := e.window.Size()
		return uint32(max(w, 1)), uint32(max(h, 1))
	}
	return e.width, e.height
}

func (e *engine) outputFormat() gpu.Format {
	if e.presenter != nil {
		if f := e.presenter.SurfaceFormat(); f != gpu.FormatUndefined {
			return f
		}
	}
	return e.format
}

// activeInstances returns the instances of active scenes in ascending key order.
func (e *engine) activeInstances() []renderer.RendererInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []renderer.RendererInstance
	for _, k := range slices.Sorted(maps.Keys(e.scenes)) {
		if e.scenes[k].Active() {
			out = append(out, e.instances[k])
		}
	}
	return out
}

// releaseRetired releases the instances of scenes removed since the last frame.
func (e *engine) releaseRetired() {
	e.mu.Lock()
	retired := e.retired
	e.retired = nil
	e.mu.Unlock()
	for _, inst := range retired {
		inst.Release()
	}
}

func (e *engine) RenderFrame(deltaTime float32, present func(img *gpu.Image) error) error {
	start := time.Now()
	e.releaseRetired()
	defer e.renderer.EndFrame()

	width, height := e.outputSize()
	format := e.outputFormat()

	var presented *gpu.Image
	passes := 0
	for _, inst := range e.activeInstances() {
		rc := renderer.NewRenderContext(e.renderer, width, height, format, deltaTime)
		inst.Update(rc)

		g := rendergraph.NewGraph(inst.Scene().Name())
		out := inst.Render(g, rc)
		if rc.Settings.DebugView != renderer.DebugViewNone {
			out = e.renderer.Blit(g, out, rc)
		}
		plan, err := g.Compile(out)
		if err != nil {
			return fmt.Errorf("failed to compile frame of scene %q: %w", inst.Scene().Name(), err)
		}
		if err := plan.Execute(e.renderer.Context()); err != nil {
			return fmt.Errorf("failed to execute frame of scene %q: %w", inst.Scene().Name(), err)
		}
		passes += len(plan.PassNames())
		if presented, err = plan.Image(out); err != nil {
			return fmt.Errorf("frame output of scene %q: %w", inst.Scene().Name(), err)
		}
	}

	if presented != nil && present != nil {
		if err := present(presented); err != nil {
			return fmt.Errorf("failed to present frame: %w", err)
		}
	}

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick(profiler.FrameStats{
			Passes:     passes,
			Transients: e.renderer.Context().TransientCount(),
			CPUTime:    time.Since(start),
		})
	}
	return nil
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	if e.presenter != nil {
		w, h := e.outputSize()
		if err := e.presenter.ConfigureSurface(w, h); err != nil {
			common.Logger().Error("surface configuration failed", "error", err)
			return
		}
	}

	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel exactly once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop. The rate can change while running through
// tickRateChannel.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop: resize, RenderFrame and present, then the frame limit.
// A panic in a frame is logged and stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render loop recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	var present func(img *gpu.Image) error
	if e.presenter != nil {
		present = e.presenter.Present
	}

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		e.applyResize()
		if err := e.RenderFrame(dt, present); err != nil {
			common.Logger().Warn("frame dropped", "error", err)
		}
		if e.renderCallback != nil {
			e.renderCallback(dt)
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// applyResize reconfigures the surface after a window resize.
func (e *engine) applyResize() {
	e.mu.Lock()
	pending := e.resizePending
	e.resizePending = false
	e.mu.Unlock()
	if !pending || e.presenter == nil {
		return
	}
	w, h := e.outputSize()
	// In-flight frames may still target the old surface textures.
	e.renderer.Context().Wait()
	if err := e.presenter.ConfigureSurface(w, h); err != nil {
		common.Logger().Warn("surface reconfiguration failed", "width", w, "height", h, "error", err)
		return
	}
	common.Logger().Debug("surface resized", "width", w, "height", h)
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the tick rate. If the engine is running, the change takes effect on the
// next tick.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		e.engineTickRate = newRate
		return
	}
	// Replace a pending update rather than block.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s *scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.instances[key]; ok {
		e.retired = append(e.retired, old)
	}
	e.scenes[key] = s
	e.instances[key] = e.renderer.NewInstance(s)
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if inst, ok := e.instances[key]; ok {
		e.retired = append(e.retired, inst)
	}
	delete(e.scenes, key)
	delete(e.instances, key)
}

func (e *engine) Scene(key int) *scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]*scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.scenes)
}

func (e *engine) Release() {
	e.releaseRetired()
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, inst := range e.instances {
		inst.Release()
		delete(e.instances, k)
	}
	clear(e.scenes)
}
