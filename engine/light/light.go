// Package light provides the light component. Directional lights drive the sun of the
// atmosphere pipeline; their direction is taken from the owning entity's Euler rotation.
package light

import "github.com/go-gl/mathgl/mgl32"

// Type identifies the kind of light source.
type Type int

const (
	// TypeDirectional is a light with no position, only direction, such as the sun.
	TypeDirectional Type = iota

	// TypePoint emits in all directions from a position and attenuates with distance.
	TypePoint

	// TypeSpot emits in a cone from a position along the entity's forward axis.
	TypeSpot
)

func (t Type) String() string {
	switch t {
	case TypeDirectional:
		return "directional"
	case TypePoint:
		return "point"
	case TypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// Component is the light component attached to an entity alongside a transform.
type Component struct {
	Type      Type
	Color     mgl32.Vec3
	Intensity float32
	// Range is the attenuation radius of point and spot lights.
	Range float32
	// InnerCone and OuterCone are spot cone half-angles in radians.
	InnerCone float32
	OuterCone float32
}

// ComponentBuilderOption is a functional option used to configure a Component via NewComponent.
type ComponentBuilderOption func(*Component)

// WithColor sets the linear RGB color.
//
// Parameters:
//   - r, g, b: color components
//
// Returns:
//   - ComponentBuilderOption: a function that sets the color
func WithColor(r, g, b float32) ComponentBuilderOption {
	return func(c *Component) {
		c.Color = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity sets the scalar intensity multiplier.
func WithIntensity(intensity float32) ComponentBuilderOption {
	return func(c *Component) {
		c.Intensity = intensity
	}
}

// WithRange sets the attenuation radius.
func WithRange(r float32) ComponentBuilderOption {
	return func(c *Component) {
		c.Range = r
	}
}

// WithCone sets the spot cone half-angles in radians. Outer is raised to inner if smaller.
func WithCone(inner, outer float32) ComponentBuilderOption {
	return func(c *Component) {
		c.InnerCone = inner
		c.OuterCone = max(outer, inner)
	}
}

// NewComponent creates a white light of the given type with intensity 1.
//
// Parameters:
//   - t: the light type
//   - options: variadic list of ComponentBuilderOption functions
//
// Returns:
//   - Component: the configured component
func NewComponent(t Type, options ...ComponentBuilderOption) Component {
	c := Component{
		Type:      t,
		Color:     mgl32.Vec3{1, 1, 1},
		Intensity: 1,
		Range:     10,
	}
	for _, opt := range options {
		opt(&c)
	}
	return c
}
