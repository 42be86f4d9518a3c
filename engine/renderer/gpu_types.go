package renderer

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"honnef.co/go/safeish"
)

// GPUTypesSource is the WGSL definition of the renderer's GPU records.
//
//go:embed assets/renderer.wgsl
var GPUTypesSource string

// FullscreenSource holds the fullscreen-triangle vertex stage shared by screen-space passes.
//
//go:embed assets/fullscreen.wgsl
var FullscreenSource string

// Fixed LUT extents of the atmosphere model.
var (
	TransmittanceLUTExtent     = gpu.Extent2D(256, 64)
	MultiscatterLUTExtent      = gpu.Extent2D(32, 32)
	SkyViewLUTExtent           = gpu.Extent2D(312, 192)
	AerialPerspectiveLUTExtent = gpu.Extent{Width: 32, Height: 32, Depth: 32}
)

const (
	// HistogramBins is the number of luminance histogram bins.
	HistogramBins = 256

	// cameraScaleUnit converts camera units into atmosphere kilometers.
	cameraScaleUnit = 0.01
	// planetRadiusOffset keeps the eye just above the ground at camera height zero.
	planetRadiusOffset = 0.001
)

// GPUMeshletInstance is one (instance, meshlet) pair, the unit of GPU culling.
// Size: 16 bytes.
type GPUMeshletInstance struct {
	MeshIndex      uint32
	MaterialIndex  uint32
	TransformIndex uint32
	MeshletIndex   uint32
}

// GPUSpriteData is the packed per-sprite instance record.
//
//	Data0: material index in the high 16 bits, half-float Y position in the low 16 bits
//	Data1: sprite flags in the high 16 bits, half-float camera distance in the low 16 bits
//
// Size: 12 bytes.
type GPUSpriteData struct {
	Data0          uint32
	Data1          uint32
	TransformIndex uint32
}

// MaterialIndex returns the packed material index.
func (s GPUSpriteData) MaterialIndex() uint32 {
	return s.Data0 >> 16
}

// Flags returns the packed sprite flags.
func (s GPUSpriteData) Flags() scene.SpriteFlags {
	return scene.SpriteFlags(s.Data1 >> 16)
}

// SortKey packs the sort distances into one value: the half-float camera distance in the high
// word, and the half-float Y position in the low word when the sprite sorts by Y, zero
// otherwise. Depth orders first; Y only breaks depth ties.
func (s GPUSpriteData) SortKey() uint64 {
	var distY uint64
	if s.Flags()&scene.SpriteSortY != 0 {
		distY = uint64(s.Data0 & 0xFFFF)
	}
	distZ := uint64(s.Data1 & 0xFFFF)
	return distZ<<32 | distY
}

// GPUSun is the directional light that drives the atmosphere and lighting.
// Size: 16 bytes.
type GPUSun struct {
	Direction mgl32.Vec3
	Intensity float32
}

// GPUAtmosphere is the atmosphere record shared by every sky pass.
// Size: 128 bytes.
type GPUAtmosphere struct {
	RayleighScattering mgl32.Vec3 // offset   0
	RayleighDensity    float32    // offset  12

	MieScattering float32 // offset  16
	MieDensity    float32 // offset  20
	MieExtinction float32 // offset  24
	MieAsymmetry  float32 // offset  28

	OzoneAbsorption mgl32.Vec3 // offset  32
	OzoneHeight     float32    // offset  44

	TerrainAlbedo  mgl32.Vec3 // offset  48
	OzoneThickness float32    // offset  60

	EyePosition            mgl32.Vec3 // offset  64
	AerialPerspectiveStart float32    // offset  76

	PlanetRadius     float32 // offset  80
	AtmosphereRadius float32 // offset  84

	TransmittanceLUTSize     [2]uint32 // offset  88
	MultiscatterLUTSize      [2]uint32 // offset  96
	SkyViewLUTSize           [2]uint32 // offset 104
	AerialPerspectiveLUTSize [3]uint32 // offset 112
	_pad                     uint32    // offset 124
}

// NewGPUAtmosphere builds the atmosphere record for a camera at cameraY.
func NewGPUAtmosphere(a scene.AtmosphereComponent, cameraY float32) GPUAtmosphere {
	return GPUAtmosphere{
		RayleighScattering:     a.RayleighScattering,
		RayleighDensity:        a.RayleighDensity,
		MieScattering:          a.MieScattering,
		MieDensity:             a.MieDensity,
		MieExtinction:          a.MieExtinction,
		MieAsymmetry:           a.MieAsymmetry,
		OzoneAbsorption:        a.OzoneAbsorption,
		OzoneHeight:            a.OzoneHeight,
		TerrainAlbedo:          a.TerrainAlbedo,
		OzoneThickness:         a.OzoneThickness,
		EyePosition:            mgl32.Vec3{0, cameraY*cameraScaleUnit + a.PlanetRadius + planetRadiusOffset, 0},
		AerialPerspectiveStart: a.AerialPerspectiveStart,
		PlanetRadius:           a.PlanetRadius,
		AtmosphereRadius:       a.AtmosphereRadius,
		TransmittanceLUTSize:   [2]uint32{TransmittanceLUTExtent.Width, TransmittanceLUTExtent.Height},
		MultiscatterLUTSize:    [2]uint32{MultiscatterLUTExtent.Width, MultiscatterLUTExtent.Height},
		SkyViewLUTSize:         [2]uint32{SkyViewLUTExtent.Width, SkyViewLUTExtent.Height},
		AerialPerspectiveLUTSize: [3]uint32{
			AerialPerspectiveLUTExtent.Width,
			AerialPerspectiveLUTExtent.Height,
			AerialPerspectiveLUTExtent.Depth,
		},
	}
}

// sameMedium reports whether a and b describe the same atmosphere, ignoring the eye
// position. The transmittance and multiscatter LUTs depend on nothing else.
func (a GPUAtmosphere) sameMedium(b GPUAtmosphere) bool {
	a.EyePosition, b.EyePosition = mgl32.Vec3{}, mgl32.Vec3{}
	return a == b
}

// GPUHistogramInfo holds the auto exposure parameters of the frame.
// Size: 16 bytes.
type GPUHistogramInfo struct {
	MinExposure     float32
	MaxExposure     float32
	AdaptationSpeed float32
	EV100Bias       float32
}

// NewGPUHistogramInfo converts an auto exposure component.
func NewGPUHistogramInfo(a scene.AutoExposureComponent) GPUHistogramInfo {
	return GPUHistogramInfo{
		MinExposure:     a.MinExposure,
		MaxExposure:     a.MaxExposure,
		AdaptationSpeed: a.AdaptationSpeed,
		EV100Bias:       a.EV100Bias,
	}
}

// GPUExposure is the persistent exposure record written by the histogram average pass.
// Size: 16 bytes.
type GPUExposure struct {
	EV100     float32
	Exposure  float32
	Luminance float32
	_pad      float32
}

// Push constant blocks. Layouts match the structs declared in the shaders.

type cullMeshletsConstants struct {
	InstanceCount uint32
	CullFlags     uint32
	HiZMipCount   uint32
	_pad          uint32
}

type cullTrianglesConstants struct {
	CullFlags uint32
	_pad      [3]uint32
}

type debugConstants struct {
	View uint32
	_pad [3]uint32
}

type bloomPrefilterConstants struct {
	Threshold float32
	Clamp     float32
	_pad      [2]float32
}

type histogramGenerateConstants struct {
	MinLogLuminance      float32
	InvLogLuminanceRange float32
	_pad                 [2]float32
}

type histogramAverageConstants struct {
	MinLogLuminance   float32
	LogLuminanceRange float32
	Adaptation        float32
	PixelCount        uint32
	EV100Bias         float32
	_pad              [3]float32
}

type tonemapConstants struct {
	Tonemapper uint32
	Exposure   float32
	Gamma      float32
	Bloom      float32
}

// asBytes returns the byte view of one record.
func asBytes[T any](v T) []byte {
	return safeish.SliceCast[[]byte]([]T{v})
}

// sliceBytes returns the byte view of a record slice.
func sliceBytes[T any](v []T) []byte {
	return safeish.SliceCast[[]byte](v)
}
