package demo

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

func TestCube(t *testing.T) {
	vertices, indices := Cube()
	if len(vertices) != 24 {
		t.Fatalf("len(vertices) = %d, want 24", len(vertices))
	}
	if len(indices) != 36 {
		t.Fatalf("len(indices) = %d, want 36", len(indices))
	}
	for i := 0; i < len(indices); i += 3 {
		a, b, c := vertices[indices[i]], vertices[indices[i+1]], vertices[indices[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		if n.Dot(a.Normal) <= 0 {
			t.Errorf("triangle %d winds away from its normal %v", i/3, a.Normal)
		}
	}
	for i, v := range vertices {
		for k := range 3 {
			if math.Abs(float64(v.Position[k])) != 0.5 {
				t.Fatalf("vertices[%d].Position = %v, want corners at +-0.5", i, v.Position)
			}
		}
	}
}

func TestGround(t *testing.T) {
	vertices, indices := Ground(10)
	for i := 0; i < len(indices); i += 3 {
		a, b, c := vertices[indices[i]], vertices[indices[i+1]], vertices[indices[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		if n.Y() <= 0 {
			t.Errorf("ground triangle %d faces %v, want +Y", i/3, n)
		}
	}
}

func TestHueColor(t *testing.T) {
	tests := []struct {
		hue     float32
		r, g, b float32
	}{
		{0, 1, 0, 0},
		{1.0 / 3, 0, 1, 0},
		{2.0 / 3, 0, 0, 1},
	}
	for _, tt := range tests {
		r, g, b := hueColor(tt.hue)
		if !mgl32.FloatEqualThreshold(r, tt.r, 1e-4) || !mgl32.FloatEqualThreshold(g, tt.g, 1e-4) || !mgl32.FloatEqualThreshold(b, tt.b, 1e-4) {
			t.Errorf("hueColor(%v) = (%v, %v, %v), want (%v, %v, %v)", tt.hue, r, g, b, tt.r, tt.g, tt.b)
		}
	}
}

func TestBuild(t *testing.T) {
	r := renderer.NewRenderer(gpu.NewContext(gpu.NewMemoryDevice()), renderer.WithWorkers(1))
	defer r.Release()

	opts := Options{Grid: 3, Spacing: 2, Sprites: 2, SunElevation: 0.4}
	s := Build(r, opts)

	if !s.Active() {
		t.Error("Build() scene is inactive, want active")
	}
	if got := s.Meshes().Len(); got != 1+opts.Grid*opts.Grid {
		t.Errorf("mesh entities = %d, want %d", got, 1+opts.Grid*opts.Grid)
	}
	if got := s.Sprites().Len(); got != opts.Sprites {
		t.Errorf("sprite entities = %d, want %d", got, opts.Sprites)
	}
	if !s.Cameras().Has(s.Camera) {
		t.Error("camera entity has no camera component")
	}
	if !s.Lights().Has(s.Sun) {
		t.Error("sun entity has no light component")
	}
	if s.Atmospheres().Len() != 1 || s.AutoExposures().Len() != 1 {
		t.Error("Build() scene is missing its atmosphere or auto exposure")
	}
	if got := len(r.Assets().Meshes()); got != 2 {
		t.Errorf("registered meshes = %d, want the ground and the cube", got)
	}

	oc := camera.NewOrbitController(camera.WithRadius(10), camera.WithTarget(mgl32.Vec3{0, 1, 0}))
	s.Follow(oc)
	got, ok := s.Transform(s.Camera)
	if !ok {
		t.Fatal("camera lost its transform after Follow")
	}
	if !got.Position.ApproxEqual(oc.Position()) {
		t.Errorf("camera position = %v, want %v", got.Position, oc.Position())
	}
}
