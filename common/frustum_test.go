package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testProjView() mgl32.Mat4 {
	proj := PerspectiveReversedZ(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

func TestExtractFrustum_Contains(t *testing.T) {
	f := ExtractFrustum(testProjView())

	tests := []struct {
		name  string
		point mgl32.Vec3
		want  bool
	}{
		{"center", mgl32.Vec3{0, 0, -10}, true},
		{"behind camera", mgl32.Vec3{0, 0, 10}, false},
		{"closer than near", mgl32.Vec3{0, 0, -0.05}, false},
		{"beyond far", mgl32.Vec3{0, 0, -150}, false},
		{"far left", mgl32.Vec3{-100, 0, -10}, false},
		{"far above", mgl32.Vec3{0, 100, -10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Contains(tt.point); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestExtractFrustum_Normalized(t *testing.T) {
	f := ExtractFrustum(testProjView())
	for i, p := range f.Planes {
		if l := p.Normal.Len(); math.Abs(float64(l-1)) > 1e-4 {
			t.Errorf("plane %d normal length = %v, want 1", i, l)
		}
	}
}

func TestPerspectiveReversedZ_DepthRange(t *testing.T) {
	proj := PerspectiveReversedZ(mgl32.DegToRad(60), 1, 0.1, 100)

	near := proj.Mul4x1(mgl32.Vec4{0, 0, -0.1, 1})
	if d := near.Z() / near.W(); math.Abs(float64(d-1)) > 1e-4 {
		t.Errorf("near plane depth = %v, want 1", d)
	}
	far := proj.Mul4x1(mgl32.Vec4{0, 0, -100, 1})
	if d := far.Z() / far.W(); math.Abs(float64(d)) > 1e-4 {
		t.Errorf("far plane depth = %v, want 0", d)
	}
}

func TestSphericalDirection(t *testing.T) {
	got := SphericalDirection(mgl32.Vec3{0.4, 1.2, 0})
	want := mgl32.Vec3{
		float32(math.Cos(0.4) * math.Sin(1.2)),
		float32(math.Sin(0.4) * math.Sin(1.2)),
		float32(math.Cos(1.2)),
	}
	if !got.ApproxEqual(want) {
		t.Errorf("SphericalDirection() = %v, want %v", got, want)
	}
}

func TestMipCount(t *testing.T) {
	tests := []struct {
		w, h, want uint32
	}{
		{0, 0, 0},
		{1, 1, 1},
		{64, 64, 7},
		{1920, 1088, 11},
		{4096, 64, 13},
	}
	for _, tt := range tests {
		if got := MipCount(tt.w, tt.h); got != tt.want {
			t.Errorf("MipCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}
