// Package demo builds the sample scene shared by the viewer and the snapshot tool: a ground
// plane, a grid of cubes, a row of sprites, a sun, an atmosphere and auto exposure.
package demo

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxylus-go/engine/asset"
	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/Carmen-Shannon/oxylus-go/engine/light"
	"github.com/Carmen-Shannon/oxylus-go/engine/renderer"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// Options configure the sample scene.
type Options struct {
	// Grid is the number of cubes along each side of the grid.
	Grid int
	// Spacing is the distance between cube centers.
	Spacing float32
	// Sprites is the number of sprites in the row in front of the grid.
	Sprites int
	// SunElevation is the sun's angle above the horizon in radians.
	SunElevation float32
}

// DefaultOptions returns a 16x16 grid with eight sprites and a low afternoon sun.
func DefaultOptions() Options {
	return Options{Grid: 16, Spacing: 3, Sprites: 8, SunElevation: 0.35}
}

// Scene is the built sample scene and the entities callers drive.
type Scene struct {
	*scene.Scene
	Camera scene.Entity
	Sun    scene.Entity
}

// Build registers the sample meshes and materials with r's asset manager and creates the
// scene. The scene is active.
//
// Parameters:
//   - r: the renderer whose asset manager receives the geometry
//   - opts: the scene layout
//
// Returns:
//   - *Scene: the built scene
func Build(r renderer.Renderer, opts Options) *Scene {
	assets := r.Assets()
	s := scene.NewScene("demo", scene.WithActive(true))

	ground := assets.AddMaterial(asset.NewMaterial("ground",
		asset.WithAlbedo(0.35, 0.33, 0.3, 1),
		asset.WithMetallicRoughness(0, 0.9),
	))
	half := float32(opts.Grid) * opts.Spacing
	groundVerts, groundIndices := Ground(half)
	groundMesh := assets.AddMesh(asset.NewMesh("ground", groundVerts, groundIndices, ground))
	e := s.CreateEntity("ground")
	s.SetTransform(e, scene.NewTransform(mgl32.Vec3{}))
	s.SetMesh(e, scene.MeshComponent{Mesh: groundMesh})

	cubeVerts, cubeIndices := Cube()
	cubeMesh := assets.AddMesh(asset.NewMesh("cube", cubeVerts, cubeIndices, ground))
	offset := float32(opts.Grid-1) * opts.Spacing / 2
	for x := range opts.Grid {
		for z := range opts.Grid {
			hue := float32(x*opts.Grid+z) / float32(max(opts.Grid*opts.Grid, 1))
			cr, cg, cb := hueColor(hue)
			mat := assets.AddMaterial(asset.NewMaterial(fmt.Sprintf("cube %d %d", x, z),
				asset.WithAlbedo(cr, cg, cb, 1),
				asset.WithMetallicRoughness(float32(x)/float32(max(opts.Grid-1, 1)), 0.2+0.6*float32(z)/float32(max(opts.Grid-1, 1))),
			))
			cube := s.CreateEntity(fmt.Sprintf("cube %d %d", x, z))
			t := scene.NewTransform(mgl32.Vec3{float32(x)*opts.Spacing - offset, 0.5, float32(z)*opts.Spacing - offset})
			t.Rotation = mgl32.Vec3{0, hue * 2 * math.Pi, 0}
			s.SetTransform(cube, t)
			s.SetMesh(cube, scene.MeshComponent{Mesh: cubeMesh, Material: mat})
		}
	}

	for k := range opts.Sprites {
		mat := assets.AddMaterial(asset.NewMaterial(fmt.Sprintf("sprite %d", k),
			asset.WithAlbedo(1, 1, 1, 0.8),
			asset.WithEmissive(2, 1.5, 0.5),
		))
		sprite := s.CreateEntity(fmt.Sprintf("sprite %d", k))
		s.SetTransform(sprite, scene.NewTransform(mgl32.Vec3{float32(k)*2 - float32(opts.Sprites), 2 + float32(k%2), offset + opts.Spacing}))
		s.SetSprite(sprite, scene.SpriteComponent{Material: mat, Flags: scene.SpriteSortY | scene.SpriteBillboard})
	}

	sun := s.CreateEntity("sun")
	st := scene.NewTransform(mgl32.Vec3{})
	st.Rotation = mgl32.Vec3{-opts.SunElevation, 0.6, 0}
	s.SetTransform(sun, st)
	s.SetLight(sun, light.NewComponent(light.TypeDirectional, light.WithIntensity(10)))

	sky := s.CreateEntity("sky")
	s.SetAtmosphere(sky, scene.DefaultAtmosphere())
	s.SetAutoExposure(sky, scene.DefaultAutoExposure())

	cam := s.CreateEntity("camera")
	s.SetCamera(cam, camera.NewComponent(camera.WithFov(mgl32.DegToRad(60)), camera.WithNear(0.1)))
	s.SetTransform(cam, scene.NewTransform(mgl32.Vec3{0, 8, half}))

	return &Scene{Scene: s, Camera: cam, Sun: sun}
}

// Follow copies the controller's pose into the camera entity's transform.
func (d *Scene) Follow(oc camera.OrbitController) {
	t := scene.NewTransform(oc.Position())
	t.Rotation = oc.Rotation()
	d.SetTransform(d.Camera, t)
}

// Cube returns a unit cube centered on the origin with one normal per face.
//
// Returns:
//   - []asset.Vertex: 24 vertices, four per face
//   - []uint32: 36 indices, counter-clockwise seen from outside
func Cube() ([]asset.Vertex, []uint32) {
	faces := [6]struct{ normal, u, v mgl32.Vec3 }{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}
	corners := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]asset.Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, c := range corners {
			p := f.normal.Add(f.u.Mul(c.X())).Add(f.v.Mul(c.Y())).Mul(0.5)
			vertices = append(vertices, asset.Vertex{
				Position: p,
				Normal:   f.normal,
				UV:       mgl32.Vec2{(c.X() + 1) / 2, (1 - c.Y()) / 2},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

// Ground returns a square in the XZ plane facing +Y.
//
// Parameters:
//   - half: the half extent of the square
func Ground(half float32) ([]asset.Vertex, []uint32) {
	up := mgl32.Vec3{0, 1, 0}
	return []asset.Vertex{
		{Position: mgl32.Vec3{-half, 0, half}, Normal: up, UV: mgl32.Vec2{0, 1}},
		{Position: mgl32.Vec3{half, 0, half}, Normal: up, UV: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{half, 0, -half}, Normal: up, UV: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{-half, 0, -half}, Normal: up, UV: mgl32.Vec2{0, 0}},
	}, []uint32{0, 1, 2, 0, 2, 3}
}

// hueColor converts a hue in [0, 1) at full saturation and value to RGB.
func hueColor(h float32) (float32, float32, float32) {
	h = h * 6
	x := 1 - float32(math.Abs(math.Mod(float64(h), 2)-1))
	switch int(h) % 6 {
	case 0:
		return 1, x, 0
	case 1:
		return x, 1, 0
	case 2:
		return 0, 1, x
	case 3:
		return 0, x, 1
	case 4:
		return x, 0, 1
	default:
		return 1, 0, x
	}
}
