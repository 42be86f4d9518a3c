package camera

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/go-gl/mathgl/mgl32"
	"honnef.co/go/safeish"
)

// GPUCameraDataSource is the WGSL definition of GPUCameraData.
//
//go:embed assets/camera.wgsl
var GPUCameraDataSource string

// GPUCameraData is the GPU layout of one frame's camera. The renderer uploads a pair of
// these each frame, current then previous, for temporal effects.
// Size: 592 bytes, 16-byte aligned.
type GPUCameraData struct {
	Position      mgl32.Vec4     // offset   0: xyz world position, w unused
	Projection    mgl32.Mat4     // offset  16
	InvProjection mgl32.Mat4     // offset  80
	View          mgl32.Mat4     // offset 144
	InvView       mgl32.Mat4     // offset 208
	ProjView      mgl32.Mat4     // offset 272
	InvProjView   mgl32.Mat4     // offset 336
	FrustumPlanes [6]mgl32.Vec4  // offset 400: left, right, bottom, top, near, far
	Jitter        mgl32.Vec2     // offset 496
	Near          float32        // offset 504
	Far           float32        // offset 508
	FovY          float32        // offset 512
	AspectRatio   float32        // offset 516
	Resolution    mgl32.Vec2     // offset 520
	_pad          [16]float32    // offset 528
}

// NewGPUCameraData computes the camera record for a camera at position with rotation.
//
// Parameters:
//   - c: the camera settings
//   - position: the world-space camera position
//   - rotation: the camera Euler rotation in radians
//   - width, height: the render target extent in pixels
//
// Returns:
//   - GPUCameraData: the filled record, including frustum planes
func NewGPUCameraData(c Component, position, rotation mgl32.Vec3, width, height uint32) GPUCameraData {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	aspect = common.Coalesce(c.Aspect, aspect)

	proj := c.Projection(aspect)
	view := View(position, rotation)
	projView := proj.Mul4(view)

	d := GPUCameraData{
		Position:      position.Vec4(1),
		Projection:    proj,
		InvProjection: proj.Inv(),
		View:          view,
		InvView:       view.Inv(),
		ProjView:      projView,
		InvProjView:   projView.Inv(),
		Near:          c.Near,
		Far:           c.Far,
		FovY:          c.Fov,
		AspectRatio:   aspect,
		Resolution:    mgl32.Vec2{float32(width), float32(height)},
	}
	d.SetFrustum(common.ExtractFrustum(projView))
	return d
}

// SetFrustum stores the planes of f.
func (d *GPUCameraData) SetFrustum(f common.Frustum) {
	d.FrustumPlanes = f.Vec4s()
}

// Marshal returns the record's bytes, laid out for GPU upload.
func (d *GPUCameraData) Marshal() []byte {
	return safeish.SliceCast[[]byte]([]GPUCameraData{*d})
}
