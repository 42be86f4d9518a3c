package renderer

import (
	"github.com/Carmen-Shannon/oxylus-go/engine/asset"
)

// defaultFlattenThreshold is the meshlet instance count above which mesh flattening is split
// across the worker pool.
const defaultFlattenThreshold = 4096

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithAssets sets the asset manager meshes and materials are resolved through. When not
// specified, the renderer creates an empty manager.
//
// Parameters:
//   - m: the asset manager to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the assets option to a renderer
func WithAssets(m asset.Manager) RendererBuilderOption {
	return func(r *renderer) {
		r.assets = m
	}
}

// WithSettings sets the initial settings. When not specified, DefaultSettings is used.
//
// Parameters:
//   - s: the initial settings
//
// Returns:
//   - RendererBuilderOption: a function that applies the settings option to a renderer
func WithSettings(s Settings) RendererBuilderOption {
	return func(r *renderer) {
		r.settings = s
	}
}

// WithShaderValidation compiles every shader with naga before its pipeline is created, so
// WGSL errors are reported with source positions instead of as device errors.
//
// Parameters:
//   - validate: true to validate shaders at registration
//
// Returns:
//   - RendererBuilderOption: a function that applies the validation option to a renderer
func WithShaderValidation(validate bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validateShaders = validate
	}
}

// WithWorkers sets the worker count of the pool used for mesh flattening. Values below one
// are ignored. The default is one less than the number of CPUs.
//
// Parameters:
//   - n: the maximum number of workers
//
// Returns:
//   - RendererBuilderOption: a function that applies the workers option to a renderer
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithFlattenThreshold sets the meshlet instance count above which mesh flattening runs on
// the worker pool. Smaller scenes are flattened on the calling goroutine.
//
// Parameters:
//   - n: the threshold, zero to always use the pool
//
// Returns:
//   - RendererBuilderOption: a function that applies the threshold option to a renderer
func WithFlattenThreshold(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.flattenThreshold = max(n, 0)
	}
}
