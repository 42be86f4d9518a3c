package renderer

// DebugView selects a visualization of the visibility buffer or G-buffer. Any view other than
// DebugViewNone replaces lighting, atmosphere and post-processing for the frame.
type DebugView uint32

const (
	DebugViewNone DebugView = iota
	DebugViewTriangles
	DebugViewMeshlets
	DebugViewOverdraw
	DebugViewAlbedo
	DebugViewNormal
	DebugViewEmissive
	DebugViewMetallic
	DebugViewRoughness
	DebugViewOcclusion

	debugViewCount
)

func (v DebugView) String() string {
	switch v {
	case DebugViewNone:
		return "none"
	case DebugViewTriangles:
		return "triangles"
	case DebugViewMeshlets:
		return "meshlets"
	case DebugViewOverdraw:
		return "overdraw"
	case DebugViewAlbedo:
		return "albedo"
	case DebugViewNormal:
		return "normal"
	case DebugViewEmissive:
		return "emissive"
	case DebugViewMetallic:
		return "metallic"
	case DebugViewRoughness:
		return "roughness"
	case DebugViewOcclusion:
		return "occlusion"
	default:
		return "unknown"
	}
}

// DebugViewFromDigit maps the number keys 0-9 to debug views. 0 selects DebugViewNone.
//
// Parameters:
//   - digit: the pressed digit
//
// Returns:
//   - DebugView: the selected view
//   - bool: false if digit does not name a view
func DebugViewFromDigit(digit int) (DebugView, bool) {
	if digit < 0 || digit >= int(debugViewCount) {
		return DebugViewNone, false
	}
	return DebugView(digit), true
}

// Tonemapper selects the tonemapping operator of the final pass.
type Tonemapper uint32

const (
	TonemapperACES Tonemapper = iota
	TonemapperAgX
	TonemapperFilmic
	TonemapperReinhard
)

func (t Tonemapper) String() string {
	switch t {
	case TonemapperACES:
		return "aces"
	case TonemapperAgX:
		return "agx"
	case TonemapperFilmic:
		return "filmic"
	case TonemapperReinhard:
		return "reinhard"
	default:
		return "unknown"
	}
}

// CullFlags is the bitmask the culling shaders test against.
type CullFlags uint32

const (
	CullMeshletFrustum CullFlags = 1 << iota
	CullTriangleBackFace
	CullMicroTriangles
	CullMeshletOcclusion
	CullTriangles
)

// Settings are the renderer's runtime toggles. The renderer snapshots them once per frame.
type Settings struct {
	// FreezeCulling keeps culling against the camera captured when it was switched on.
	FreezeCulling    bool
	FrustumCulling   bool
	OcclusionCulling bool
	TriangleCulling  bool

	DebugView DebugView

	FXAA bool

	Bloom          bool
	BloomThreshold float32
	BloomClamp     float32
	// BloomMipCount is the number of downsample steps. It is clamped to what the render
	// extent allows.
	BloomMipCount uint32

	Tonemapper Tonemapper
	Exposure   float32
	Gamma      float32
}

// DefaultSettings returns the settings a new renderer starts with.
func DefaultSettings() Settings {
	return Settings{
		FrustumCulling:   true,
		OcclusionCulling: true,
		TriangleCulling:  true,
		FXAA:             true,
		Bloom:            true,
		BloomThreshold:   1.0,
		BloomClamp:       10.0,
		BloomMipCount:    6,
		Tonemapper:       TonemapperACES,
		Exposure:         1.0,
		Gamma:            2.2,
	}
}

// CullFlags builds the culling bitmask. Micro-triangle and back-face culling are always on.
func (s Settings) CullFlags() CullFlags {
	flags := CullMicroTriangles | CullTriangleBackFace
	if s.FrustumCulling {
		flags |= CullMeshletFrustum
	}
	if s.OcclusionCulling {
		flags |= CullMeshletOcclusion
	}
	if s.TriangleCulling {
		flags |= CullTriangles
	}
	return flags
}
