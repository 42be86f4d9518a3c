package asset

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// NoTexture marks an absent texture index in a GPUMaterial.
const NoTexture = ^uint32(0)

// Material describes a PBR surface.
type Material struct {
	Name      string
	Albedo    mgl32.Vec4
	Emissive  mgl32.Vec3
	Metallic  float32
	Roughness float32
	Occlusion float32
	// AlphaCutoff discards fragments with alpha below it. Zero disables alpha testing.
	AlphaCutoff float32

	// optional textures, bound into the bindless set when the materials buffer is built
	AlbedoImage   *gpu.Image
	NormalImage   *gpu.Image
	EmissiveImage *gpu.Image

	id uuid.UUID
}

// ID returns the material's UUID, assigned by Manager.AddMaterial.
func (m Material) ID() uuid.UUID {
	return m.id
}

// MaterialBuilderOption is a functional option used to configure a Material via NewMaterial.
type MaterialBuilderOption func(*Material)

// WithAlbedo sets the base color.
func WithAlbedo(r, g, b, a float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Albedo = mgl32.Vec4{r, g, b, a}
	}
}

// WithEmissive sets the emitted radiance.
func WithEmissive(r, g, b float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Emissive = mgl32.Vec3{r, g, b}
	}
}

// WithMetallicRoughness sets the metallic and roughness factors.
func WithMetallicRoughness(metallic, roughness float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Metallic = metallic
		m.Roughness = roughness
	}
}

// WithAlbedoImage sets the base color texture.
func WithAlbedoImage(img *gpu.Image) MaterialBuilderOption {
	return func(m *Material) {
		m.AlbedoImage = img
	}
}

// WithAlphaCutoff enables alpha testing at the given threshold.
func WithAlphaCutoff(cutoff float32) MaterialBuilderOption {
	return func(m *Material) {
		m.AlphaCutoff = cutoff
	}
}

// NewMaterial creates a white, fully rough dielectric material.
//
// Parameters:
//   - name: a debug name
//   - options: variadic list of MaterialBuilderOption functions
//
// Returns:
//   - Material: the configured material
func NewMaterial(name string, options ...MaterialBuilderOption) Material {
	m := Material{
		Name:      name,
		Albedo:    mgl32.Vec4{1, 1, 1, 1},
		Roughness: 1,
		Occlusion: 1,
	}
	for _, opt := range options {
		opt(&m)
	}
	return m
}

// GPUMaterialSource is the WGSL definition of GPUMaterial.
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUMaterial is the GPU layout of one material. Texture fields are slots in the bindless
// descriptor set, or NoTexture.
// Size: 64 bytes.
type GPUMaterial struct {
	Albedo        mgl32.Vec4
	Emissive      mgl32.Vec3
	Metallic      float32
	Roughness     float32
	Occlusion     float32
	AlphaCutoff   float32
	AlbedoIndex   uint32
	NormalIndex   uint32
	EmissiveIndex uint32
	_pad          [2]uint32
}
