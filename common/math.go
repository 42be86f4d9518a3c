package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// EulerRotation builds a rotation matrix from Euler angles in radians.
// The rotation order is Y * X * Z (yaw-pitch-roll).
//
// Parameters:
//   - rotation: rotation around the X, Y and Z axes in radians
//
// Returns:
//   - mgl32.Mat4: the combined rotation matrix
func EulerRotation(rotation mgl32.Vec3) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(rotation.Y()).
		Mul4(mgl32.HomogRotate3DX(rotation.X())).
		Mul4(mgl32.HomogRotate3DZ(rotation.Z()))
}

// ModelMatrix constructs a model matrix from position, Euler rotation and scale.
// The result is T * R * S with R composed as in EulerRotation.
//
// Parameters:
//   - position: translation in world space
//   - rotation: Euler angles in radians
//   - scale: scale factors along each axis
//
// Returns:
//   - mgl32.Mat4: the model matrix
func ModelMatrix(position, rotation, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(EulerRotation(rotation)).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// NormalMatrix returns the inverse transpose of m, used to transform normals.
// A singular matrix yields the identity.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat4 {
	if m.Det() == 0 {
		return mgl32.Ident4()
	}
	return m.Inv().Transpose()
}

// PerspectiveReversedZ creates a right-handed perspective projection mapping the near
// plane to depth 1 and the far plane to depth 0 in a [0, 1] clip range.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func PerspectiveReversedZ(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = near / (far - near)
	m[11] = -1.0
	m[14] = (far * near) / (far - near)
	return m
}

// ForwardFromEuler returns the unit view direction for a camera with the given pitch (X)
// and yaw (Y). A zero rotation looks down -Z.
func ForwardFromEuler(rotation mgl32.Vec3) mgl32.Vec3 {
	pitch := float64(rotation.X())
	yaw := float64(rotation.Y())
	return mgl32.Vec3{
		float32(-math.Sin(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(-math.Cos(yaw) * math.Cos(pitch)),
	}.Normalize()
}

// SphericalDirection converts the X and Y Euler angles to a Cartesian unit vector:
// (cos(x)·sin(y), sin(x)·sin(y), cos(y)). Roll is ignored.
//
// Parameters:
//   - rotation: Euler angles in radians; only X and Y are read
//
// Returns:
//   - mgl32.Vec3: the direction vector
func SphericalDirection(rotation mgl32.Vec3) mgl32.Vec3 {
	x := float64(rotation.X())
	y := float64(rotation.Y())
	return mgl32.Vec3{
		float32(math.Cos(x) * math.Sin(y)),
		float32(math.Sin(x) * math.Sin(y)),
		float32(math.Cos(y)),
	}
}

// MipCount returns the number of mip levels in a full chain for a base level of the given size.
func MipCount(width, height uint32) uint32 {
	largest := max(width, height)
	if largest == 0 {
		return 0
	}
	return uint32(math.Floor(math.Log2(float64(largest)))) + 1
}
