package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// Vec4 packs the plane for GPU upload as (normal.xyz, distance).
func (p Plane) Vec4() mgl32.Vec4 {
	return p.Normal.Vec4(p.Distance)
}

// SignedDistance returns the signed distance from point to the plane. Positive values are inside.
func (p Plane) SignedDistance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustum extracts frustum planes from a combined projection-view matrix using the
// Gribb/Hartmann method, for a reversed-Z projection with a [0, 1] depth range
// (near plane at depth 1, far plane at depth 0).
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - projView: the combined Projection * View matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(projView mgl32.Mat4) Frustum {
	row0 := projView.Row(0)
	row1 := projView.Row(1)
	row2 := projView.Row(2)
	row3 := projView.Row(3)

	var f Frustum
	f.Planes[FrustumLeft] = planeFromRow(row3.Add(row0))
	f.Planes[FrustumRight] = planeFromRow(row3.Sub(row0))
	f.Planes[FrustumBottom] = planeFromRow(row3.Add(row1))
	f.Planes[FrustumTop] = planeFromRow(row3.Sub(row1))
	// Reversed-Z: z <= w at the near plane, z >= 0 at the far plane.
	f.Planes[FrustumNear] = planeFromRow(row3.Sub(row2))
	f.Planes[FrustumFar] = planeFromRow(row2)
	return f
}

// Contains reports whether point lies inside or on every plane of the frustum.
func (f Frustum) Contains(point mgl32.Vec3) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(point) < 0 {
			return false
		}
	}
	return true
}

// Vec4s returns the planes packed for GPU upload.
func (f Frustum) Vec4s() [6]mgl32.Vec4 {
	var out [6]mgl32.Vec4
	for i, p := range f.Planes {
		out[i] = p.Vec4()
	}
	return out
}

// planeFromRow normalizes a plane so that the normal has unit length.
func planeFromRow(row mgl32.Vec4) Plane {
	p := Plane{Normal: row.Vec3(), Distance: row.W()}
	if length := p.Normal.Len(); length > 0 {
		inv := 1.0 / length
		p.Normal = p.Normal.Mul(inv)
		p.Distance *= inv
	}
	return p
}
