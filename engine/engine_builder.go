package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
	"github.com/Carmen-Shannon/oxylus-go/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables periodic frame statistics.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets the window whose framebuffer size is rendered at. Resizes of the window
// reconfigure the presenter's surface.
//
// Parameters:
//   - w: a created Window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithPresenter sets where finished frames are shown. Output images take its surface format.
//
// Parameters:
//   - p: the presenter, usually the WebGPU device
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPresenter(p Presenter) EngineBuilderOption {
	return func(e *engine) {
		e.presenter = p
	}
}

// WithExtent sets the output size used when there is no window.
//
// Parameters:
//   - width, height: the output size in pixels
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithExtent(width, height uint32) EngineBuilderOption {
	return func(e *engine) {
		e.width = max(width, 1)
		e.height = max(height, 1)
	}
}

// WithFormat sets the output format used when there is no presenter.
func WithFormat(format gpu.Format) EngineBuilderOption {
	return func(e *engine) {
		e.format = format
	}
}

// WithScene registers a scene at the given z-index key during engine construction.
//
// Parameters:
//   - key: the z-index determining render order (lower renders first)
//   - s: the scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s *scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.AddScene(key, s)
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
