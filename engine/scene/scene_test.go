package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

func TestTransformID_Encoding(t *testing.T) {
	id := newTransformID(7, 3)
	if id.Index() != 7 {
		t.Errorf("Index() = %d, want 7", id.Index())
	}
	if id.Generation() != 3 {
		t.Errorf("Generation() = %d, want 3", id.Generation())
	}
	if uint64(id) != 3<<32|7 {
		t.Errorf("TransformID = %#x, want %#x", uint64(id), uint64(3<<32|7))
	}
}

func TestSetTransform_SlotReuse(t *testing.T) {
	s := NewScene("slots")
	a := s.CreateEntity("a")
	b := s.CreateEntity("b")

	idA := s.SetTransform(a, NewTransform(mgl32.Vec3{1, 0, 0}))
	idB := s.SetTransform(b, NewTransform(mgl32.Vec3{2, 0, 0}))
	if idA.Index() != 0 || idB.Index() != 1 {
		t.Fatalf("slot indices = %d, %d, want 0, 1", idA.Index(), idB.Index())
	}

	// Updating keeps the slot.
	if again := s.SetTransform(a, NewTransform(mgl32.Vec3{5, 0, 0})); again != idA {
		t.Errorf("SetTransform() on existing entity = %#x, want %#x", again, idA)
	}

	s.DestroyEntity(a)
	if _, ok := s.GetEntityTransformID(a); ok {
		t.Error("GetEntityTransformID() found a destroyed entity")
	}

	c := s.CreateEntity("c")
	idC := s.SetTransform(c, NewTransform(mgl32.Vec3{}))
	if idC.Index() != idA.Index() {
		t.Errorf("reused slot index = %d, want %d", idC.Index(), idA.Index())
	}
	if idC.Generation() != idA.Generation()+1 {
		t.Errorf("reused slot generation = %d, want %d", idC.Generation(), idA.Generation()+1)
	}
	if got := len(s.TransformRecords()); got != 2 {
		t.Errorf("len(TransformRecords()) = %d, want 2", got)
	}
}

func TestDirtyTransforms(t *testing.T) {
	s := NewScene("dirty")
	a := s.CreateEntity("a")
	b := s.CreateEntity("b")
	idA := s.SetTransform(a, NewTransform(mgl32.Vec3{}))
	idB := s.SetTransform(b, NewTransform(mgl32.Vec3{}))
	s.SetTransform(a, NewTransform(mgl32.Vec3{1, 2, 3}))

	got := s.DirtyTransforms()
	want := []TransformID{idA, idB}
	if len(got) != len(want) {
		t.Fatalf("DirtyTransforms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DirtyTransforms()[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}

	s.ClearDirtyTransforms()
	if got := s.DirtyTransforms(); len(got) != 0 {
		t.Errorf("DirtyTransforms() after clear = %v, want empty", got)
	}

	s.SetTransform(b, NewTransform(mgl32.Vec3{0, 1, 0}))
	if got := s.DirtyTransforms(); len(got) != 1 || got[0] != idB {
		t.Errorf("DirtyTransforms() = %v, want [%#x]", got, idB)
	}
	rec := s.TransformRecords()[idB.Index()]
	if rec.World.Col(3) != (mgl32.Vec4{0, 1, 0, 1}) {
		t.Errorf("World translation = %v, want (0, 1, 0, 1)", rec.World.Col(3))
	}
}

func TestRenderingMeshes_Grouping(t *testing.T) {
	s := NewScene("meshes")
	cube, sphere := uuid.New(), uuid.New()

	add := func(mesh uuid.UUID, withTransform bool) Entity {
		e := s.CreateEntity("")
		if withTransform {
			s.SetTransform(e, NewTransform(mgl32.Vec3{}))
		}
		s.SetMesh(e, MeshComponent{Mesh: mesh})
		return e
	}
	e1 := add(sphere, true)
	e2 := add(cube, true)
	add(cube, false)
	e4 := add(sphere, true)

	if !s.MeshesDirty() {
		t.Fatal("MeshesDirty() = false after SetMesh")
	}
	groups := s.RenderingMeshes()
	if len(groups) != 2 {
		t.Fatalf("len(RenderingMeshes()) = %d, want 2", len(groups))
	}
	if groups[0].Mesh != sphere || groups[1].Mesh != cube {
		t.Errorf("group order = [%s %s], want sphere then cube", groups[0].Mesh, groups[1].Mesh)
	}
	if n := len(groups[0].Instances); n != 2 || groups[0].Instances[0].Entity != e1 || groups[0].Instances[1].Entity != e4 {
		t.Errorf("sphere instances = %+v, want entities %d and %d", groups[0].Instances, e1, e4)
	}
	if n := len(groups[1].Instances); n != 1 || groups[1].Instances[0].Entity != e2 {
		t.Errorf("cube instances = %+v, want entity %d only", groups[1].Instances, e2)
	}

	s.ClearMeshesDirty()
	s.RemoveMesh(e2)
	if !s.MeshesDirty() {
		t.Error("MeshesDirty() = false after RemoveMesh")
	}
	if groups := s.RenderingMeshes(); len(groups) != 1 {
		t.Errorf("len(RenderingMeshes()) = %d, want 1 after removing the only cube", len(groups))
	}
}

func TestEach_CreationOrder(t *testing.T) {
	s := NewScene("order")
	var entities []Entity
	for range 4 {
		entities = append(entities, s.CreateEntity(""))
	}
	// Attach out of order.
	for _, i := range []int{2, 0, 3, 1} {
		s.SetCamera(entities[i], camera.NewComponent(camera.WithFov(float32(i))))
	}
	s.SetTransform(entities[1], NewTransform(mgl32.Vec3{}))
	s.SetTransform(entities[3], NewTransform(mgl32.Vec3{}))

	var seen []Entity
	Each1(s, s.Cameras(), func(e Entity, _ *camera.Component) {
		seen = append(seen, e)
	})
	for i, e := range seen {
		if e != entities[i] {
			t.Errorf("Each1 position %d = %d, want %d", i, e, entities[i])
		}
	}

	var last camera.Component
	var count int
	Each2(s, s.Cameras(), s.Transforms(), func(_ Entity, c *camera.Component, _ *TransformComponent) {
		last = *c
		count++
	})
	if count != 2 {
		t.Errorf("Each2 visited %d entities, want 2", count)
	}
	if last.Fov != 3 {
		t.Errorf("last camera Fov = %v, want 3", last.Fov)
	}
}

func TestDefaults(t *testing.T) {
	a := DefaultAtmosphere()
	if a.PlanetRadius != 6360 || a.AtmosphereRadius != 6460 {
		t.Errorf("DefaultAtmosphere() radii = %v, %v, want 6360, 6460", a.PlanetRadius, a.AtmosphereRadius)
	}
	if a.RayleighScattering != (mgl32.Vec3{5.802, 13.558, 33.1}) {
		t.Errorf("DefaultAtmosphere() RayleighScattering = %v", a.RayleighScattering)
	}
	ae := DefaultAutoExposure()
	want := AutoExposureComponent{MinExposure: -6, MaxExposure: 18, AdaptationSpeed: 1.1, EV100Bias: 1}
	if ae != want {
		t.Errorf("DefaultAutoExposure() = %+v, want %+v", ae, want)
	}
}
