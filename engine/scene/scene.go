// Package scene is the entity store the renderer extracts from each frame. Components live in
// typed stores iterated in entity creation order. Transforms are mirrored into a slot array of
// GPU records with a dirty list, and mesh instances are grouped per mesh asset.
package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/Carmen-Shannon/oxylus-go/engine/light"
	"github.com/google/uuid"
)

// Entity identifies an entity. Zero is never a valid entity. Ids increase monotonically, so
// ordering by id is creation order.
type Entity uint32

// MeshInstance is one placement of a mesh.
type MeshInstance struct {
	Entity    Entity
	Transform TransformID
	Material  uuid.UUID
}

// RenderingMesh groups every instance of one mesh asset.
type RenderingMesh struct {
	Mesh      uuid.UUID
	Instances []MeshInstance
}

// Scene holds entities and their components. It is safe for concurrent use, but callbacks
// passed to Each1 and Each2 must not mutate the scene.
type Scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	nextEntity Entity
	names      map[Entity]string
	alive      map[Entity]struct{}

	transforms   *Store[TransformComponent]
	transformIDs map[Entity]TransformID
	slots        *transformSlots

	cameras      *Store[camera.Component]
	lights       *Store[light.Component]
	meshes       *Store[MeshComponent]
	sprites      *Store[SpriteComponent]
	atmospheres  *Store[AtmosphereComponent]
	autoExposure *Store[AutoExposureComponent]

	meshesDirty     bool
	renderingMeshes []RenderingMesh
}

// NewScene creates an empty scene.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - *Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) *Scene {
	s := &Scene{
		mu:           &sync.RWMutex{},
		name:         name,
		nextEntity:   1,
		names:        make(map[Entity]string),
		alive:        make(map[Entity]struct{}),
		transforms:   newStore[TransformComponent](),
		transformIDs: make(map[Entity]TransformID),
		slots:        newTransformSlots(),
		cameras:      newStore[camera.Component](),
		lights:       newStore[light.Component](),
		meshes:       newStore[MeshComponent](),
		sprites:      newStore[SpriteComponent](),
		atmospheres:  newStore[AtmosphereComponent](),
		autoExposure: newStore[AutoExposureComponent](),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// Active returns whether the engine renders this scene.
func (s *Scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// CreateEntity adds an entity with no components.
func (s *Scene) CreateEntity(name string) Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.nextEntity
	s.nextEntity++
	s.alive[e] = struct{}{}
	if name != "" {
		s.names[e] = name
	}
	return e
}

// EntityName returns the name given at creation.
func (s *Scene) EntityName(e Entity) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[e]
}

// Count returns the number of live entities.
func (s *Scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alive)
}

// DestroyEntity removes e and all of its components. Its transform slot is released.
func (s *Scene) DestroyEntity(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alive[e]; !ok {
		return
	}
	delete(s.alive, e)
	delete(s.names, e)
	s.removeTransform(e)
	s.cameras.remove(e)
	s.lights.remove(e)
	if s.meshes.remove(e) {
		s.meshesDirty = true
	}
	s.sprites.remove(e)
	s.atmospheres.remove(e)
	s.autoExposure.remove(e)
}

func (s *Scene) checkAlive(e Entity) {
	if _, ok := s.alive[e]; !ok {
		common.Logger().Warn("component set on dead entity", "entity", e, "scene", s.name)
	}
}

// SetTransform sets e's transform, allocating a transform slot on first use. The slot is
// marked dirty.
func (s *Scene) SetTransform(e Entity, t TransformComponent) TransformID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkAlive(e)
	s.transforms.set(e, t)
	rec := NewGPUTransform(t)
	if id, ok := s.transformIDs[e]; ok && s.slots.update(id, rec) {
		return id
	}
	id := s.slots.alloc(rec)
	s.transformIDs[e] = id
	return id
}

func (s *Scene) removeTransform(e Entity) {
	s.transforms.remove(e)
	if id, ok := s.transformIDs[e]; ok {
		s.slots.release(id)
		delete(s.transformIDs, e)
		if s.meshes.Has(e) {
			s.meshesDirty = true
		}
	}
}

// RemoveTransform removes e's transform and releases its slot.
func (s *Scene) RemoveTransform(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeTransform(e)
}

// GetEntityTransformID returns the transform slot of e, if it has a transform.
func (s *Scene) GetEntityTransformID(e Entity) (TransformID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.transformIDs[e]
	return id, ok
}

// Transform returns a copy of e's transform component.
func (s *Scene) Transform(e Entity) (TransformComponent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transforms.Get(e)
	if !ok {
		return TransformComponent{}, false
	}
	return *t, true
}

// SetCamera attaches a camera to e.
func (s *Scene) SetCamera(e Entity, c camera.Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAlive(e)
	s.cameras.set(e, c)
}

// SetLight attaches a light to e.
func (s *Scene) SetLight(e Entity, l light.Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAlive(e)
	s.lights.set(e, l)
}

// SetMesh attaches a mesh instance to e and marks the mesh set dirty.
func (s *Scene) SetMesh(e Entity, m MeshComponent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAlive(e)
	s.meshes.set(e, m)
	s.meshesDirty = true
}

// RemoveMesh detaches e's mesh instance.
func (s *Scene) RemoveMesh(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meshes.remove(e) {
		s.meshesDirty = true
	}
}

// SetSprite attaches a sprite to e.
func (s *Scene) SetSprite(e Entity, sp SpriteComponent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAlive(e)
	s.sprites.set(e, sp)
}

// SetAtmosphere attaches atmosphere parameters to e.
func (s *Scene) SetAtmosphere(e Entity, a AtmosphereComponent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAlive(e)
	s.atmospheres.set(e, a)
}

// SetAutoExposure attaches auto exposure parameters to e.
func (s *Scene) SetAutoExposure(e Entity, a AutoExposureComponent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAlive(e)
	s.autoExposure.set(e, a)
}

// Transforms returns the transform store.
func (s *Scene) Transforms() *Store[TransformComponent] {
	return s.transforms
}

// Cameras returns the camera store.
func (s *Scene) Cameras() *Store[camera.Component] {
	return s.cameras
}

// Lights returns the light store.
func (s *Scene) Lights() *Store[light.Component] {
	return s.lights
}

// Meshes returns the mesh instance store.
func (s *Scene) Meshes() *Store[MeshComponent] {
	return s.meshes
}

// Sprites returns the sprite store.
func (s *Scene) Sprites() *Store[SpriteComponent] {
	return s.sprites
}

// Atmospheres returns the atmosphere store.
func (s *Scene) Atmospheres() *Store[AtmosphereComponent] {
	return s.atmospheres
}

// AutoExposures returns the auto exposure store.
func (s *Scene) AutoExposures() *Store[AutoExposureComponent] {
	return s.autoExposure
}

// TransformRecords returns a copy of every transform slot, live or not. The slice length is
// the slot capacity the GPU buffer must hold.
func (s *Scene) TransformRecords() []GPUTransform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GPUTransform, len(s.slots.records))
	copy(out, s.slots.records)
	return out
}

// DirtyTransforms returns the slots changed since the last ClearDirtyTransforms, in the
// order they were first changed.
func (s *Scene) DirtyTransforms() []TransformID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TransformID, len(s.slots.dirty))
	copy(out, s.slots.dirty)
	return out
}

// ClearDirtyTransforms empties the dirty list.
func (s *Scene) ClearDirtyTransforms() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots.clearDirty()
}

// MeshesDirty reports whether mesh instances changed since the last ClearMeshesDirty.
func (s *Scene) MeshesDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meshesDirty
}

// ClearMeshesDirty resets the mesh dirty flag.
func (s *Scene) ClearMeshesDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meshesDirty = false
}

// RenderingMeshes returns mesh instances grouped by mesh asset. Groups are ordered by the
// first entity instancing each mesh and instances by entity. Entities without a transform
// are left out. The grouping is rebuilt only while the mesh set is dirty.
func (s *Scene) RenderingMeshes() []RenderingMesh {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meshesDirty || s.renderingMeshes == nil {
		s.rebuildRenderingMeshes()
	}
	return s.renderingMeshes
}

func (s *Scene) rebuildRenderingMeshes() {
	index := make(map[uuid.UUID]int)
	groups := make([]RenderingMesh, 0)
	for i, e := range s.meshes.entities {
		tid, ok := s.transformIDs[e]
		if !ok {
			continue
		}
		mc := s.meshes.values[i]
		g, ok := index[mc.Mesh]
		if !ok {
			g = len(groups)
			index[mc.Mesh] = g
			groups = append(groups, RenderingMesh{Mesh: mc.Mesh})
		}
		groups[g].Instances = append(groups[g].Instances, MeshInstance{Entity: e, Transform: tid, Material: mc.Material})
	}
	s.renderingMeshes = groups
}
