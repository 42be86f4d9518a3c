package scene

import (
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// TransformComponent places an entity in the world.
type TransformComponent struct {
	Position mgl32.Vec3
	// Rotation holds Euler angles in radians, applied as in common.EulerRotation.
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

// NewTransform returns a transform at position with no rotation and unit scale.
func NewTransform(position mgl32.Vec3) TransformComponent {
	return TransformComponent{Position: position, Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix returns the model matrix of the transform.
func (t TransformComponent) Matrix() mgl32.Mat4 {
	return common.ModelMatrix(t.Position, t.Rotation, t.Scale)
}

// MeshComponent instances a mesh asset at the entity's transform.
type MeshComponent struct {
	Mesh uuid.UUID
	// Material overrides the mesh's default material when not uuid.Nil.
	Material uuid.UUID
}

// SpriteFlags modify how a sprite is sorted and drawn.
type SpriteFlags uint16

const (
	// SpriteSortY sorts the sprite by its Y position before camera distance.
	SpriteSortY SpriteFlags = 1 << iota
	// SpriteBillboard rotates the sprite to face the camera.
	SpriteBillboard
	// SpriteFlipX mirrors the sprite horizontally.
	SpriteFlipX
)

// SpriteComponent draws a textured quad at the entity's transform.
type SpriteComponent struct {
	Material uuid.UUID
	Flags    SpriteFlags
}

// AtmosphereComponent holds the physical parameters of a planetary atmosphere. Scattering
// coefficients are per megameter, distances in kilometers.
type AtmosphereComponent struct {
	RayleighScattering     mgl32.Vec3
	RayleighDensity        float32
	MieScattering          float32
	MieDensity             float32
	MieExtinction          float32
	MieAsymmetry           float32
	OzoneAbsorption        mgl32.Vec3
	OzoneHeight            float32
	OzoneThickness         float32
	TerrainAlbedo          mgl32.Vec3
	AerialPerspectiveStart float32
	PlanetRadius           float32
	AtmosphereRadius       float32
}

// DefaultAtmosphere returns Earth-like parameters.
func DefaultAtmosphere() AtmosphereComponent {
	return AtmosphereComponent{
		RayleighScattering:     mgl32.Vec3{5.802, 13.558, 33.1},
		RayleighDensity:        8.0,
		MieScattering:          3.996,
		MieDensity:             1.2,
		MieExtinction:          4.44,
		MieAsymmetry:           0.8,
		OzoneAbsorption:        mgl32.Vec3{0.650, 1.881, 0.085},
		OzoneHeight:            25.0,
		OzoneThickness:         15.0,
		TerrainAlbedo:          mgl32.Vec3{0.3, 0.3, 0.3},
		AerialPerspectiveStart: 8.0,
		PlanetRadius:           6360.0,
		AtmosphereRadius:       6460.0,
	}
}

// AutoExposureComponent enables histogram based eye adaptation. Exposures are in EV100.
type AutoExposureComponent struct {
	MinExposure     float32
	MaxExposure     float32
	AdaptationSpeed float32
	EV100Bias       float32
}

// DefaultAutoExposure returns the default adaptation parameters.
func DefaultAutoExposure() AutoExposureComponent {
	return AutoExposureComponent{
		MinExposure:     -6,
		MaxExposure:     18,
		AdaptationSpeed: 1.1,
		EV100Bias:       1,
	}
}
