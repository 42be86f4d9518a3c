// Package camera provides the camera component, the per-frame GPU camera record and an
// orbit controller for interactive viewers.
package camera

import (
	"math"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Component is the camera component attached to an entity alongside a transform. The view
// is derived from the entity transform's position and Euler rotation; the projection is a
// reversed-Z perspective built from these settings.
type Component struct {
	// Fov is the vertical field of view in radians.
	Fov  float32
	Near float32
	Far  float32
	// Aspect overrides the viewport aspect ratio when non-zero.
	Aspect float32
}

// ComponentBuilderOption is a functional option used to configure a Component via NewComponent.
type ComponentBuilderOption func(*Component)

// WithFov sets the vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - ComponentBuilderOption: a function that sets the field of view
func WithFov(fov float32) ComponentBuilderOption {
	return func(c *Component) {
		c.Fov = fov
	}
}

// WithNear sets the near clipping plane distance.
func WithNear(near float32) ComponentBuilderOption {
	return func(c *Component) {
		c.Near = near
	}
}

// WithFar sets the far clipping plane distance.
func WithFar(far float32) ComponentBuilderOption {
	return func(c *Component) {
		c.Far = far
	}
}

// WithAspect fixes the aspect ratio (width / height) instead of following the viewport.
func WithAspect(aspect float32) ComponentBuilderOption {
	return func(c *Component) {
		c.Aspect = aspect
	}
}

// NewComponent creates a camera component with a 60 degree field of view, a near plane of
// 0.1 and a far plane of 1000.
//
// Parameters:
//   - options: variadic list of ComponentBuilderOption functions
//
// Returns:
//   - Component: the configured component
func NewComponent(options ...ComponentBuilderOption) Component {
	c := Component{
		Fov:  float32(math.Pi / 3),
		Near: 0.1,
		Far:  1000,
	}
	for _, opt := range options {
		opt(&c)
	}
	return c
}

// Projection returns the reversed-Z projection matrix.
//
// Parameters:
//   - viewportAspect: the aspect ratio of the render target, used when Aspect is zero
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func (c Component) Projection(viewportAspect float32) mgl32.Mat4 {
	aspect := common.Coalesce(c.Aspect, viewportAspect, 1)
	return common.PerspectiveReversedZ(c.Fov, aspect, c.Near, c.Far)
}

// View returns the world-to-view matrix for a camera at position with the given Euler
// rotation. A zero rotation looks down -Z.
func View(position, rotation mgl32.Vec3) mgl32.Mat4 {
	world := mgl32.Translate3D(position.X(), position.Y(), position.Z()).Mul4(common.EulerRotation(rotation))
	return world.Inv()
}
