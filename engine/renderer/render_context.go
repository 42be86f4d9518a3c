package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
)

// RenderContext is the per-frame input of RendererInstance.Update and Render. It is built
// by the caller once per frame and passed down explicitly; nothing in the renderer reads
// frame parameters from global state.
type RenderContext struct {
	// Extent is the size of the returned attachment.
	Extent gpu.Extent
	// Format is the format of the returned attachment when post-processing runs.
	Format gpu.Format
	// DeltaTime is the time since the previous frame in seconds.
	DeltaTime float32
	// Settings is the snapshot of the renderer settings for this frame.
	Settings Settings
}

// NewRenderContext builds a RenderContext for a frame of the given size, snapshotting r's
// settings.
//
// Parameters:
//   - r: the renderer whose settings are captured
//   - width, height: the output extent in pixels
//   - format: the output format
//   - deltaTime: the frame time in seconds
//
// Returns:
//   - *RenderContext: the frame context
func NewRenderContext(r Renderer, width, height uint32, format gpu.Format, deltaTime float32) *RenderContext {
	return &RenderContext{
		Extent:    gpu.Extent2D(max(width, 1), max(height, 1)),
		Format:    format,
		DeltaTime: deltaTime,
		Settings:  r.Settings(),
	}
}
