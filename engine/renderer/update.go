package renderer

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/asset"
	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/Carmen-Shannon/oxylus-go/engine/light"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

func (i *rendererInstance) Update(rc *RenderContext) {
	i.updateCamera(rc)
	i.updateEnvironment()
	i.updateMeshes()
	i.updateTransforms()
	i.updateSprites()
}

// updateCamera picks the last (transform, camera) entity. Without one, a default camera at
// the origin is used.
func (i *rendererInstance) updateCamera(rc *RenderContext) {
	s := i.scene
	found := false
	var cam, first camera.GPUCameraData
	scene.Each2(s, s.Transforms(), s.Cameras(), func(_ scene.Entity, t *scene.TransformComponent, c *camera.Component) {
		cam = camera.NewGPUCameraData(*c, t.Position, t.Rotation, rc.Extent.Width, rc.Extent.Height)
		if !found {
			first = cam
		}
		found = true
	})
	if !found {
		cam = camera.NewGPUCameraData(camera.NewComponent(), mgl32.Vec3{}, mgl32.Vec3{}, rc.Extent.Width, rc.Extent.Height)
		first = cam
	}

	// The frozen snapshot is the first camera visited on the frame freeze turns on.
	if rc.Settings.FreezeCulling {
		if !i.frozen {
			i.frozen = true
			i.frozenCamera = first
			common.Logger().Debug("culling frozen", "scene", s.Name())
		}
		cam.SetFrustum(common.ExtractFrustum(i.frozenCamera.ProjView))
	} else {
		i.frozen = false
	}

	prev := cam
	if i.hasLastCamera {
		prev = i.lastCamera
	}
	i.lastCamera, i.hasLastCamera = cam, true

	i.frame.Camera = cam
	i.frame.PreviousCamera = prev
	i.frame.HasCamera = found
}

// updateEnvironment extracts the sun, the atmosphere and the auto exposure parameters. For
// each, the last entity wins.
func (i *rendererInstance) updateEnvironment() {
	s := i.scene
	i.frame.Sun, i.frame.Atmosphere, i.frame.HistogramInfo = nil, nil, nil

	scene.Each2(s, s.Transforms(), s.Lights(), func(_ scene.Entity, t *scene.TransformComponent, l *light.Component) {
		if l.Type != light.TypeDirectional {
			return
		}
		i.frame.Sun = &GPUSun{
			Direction: common.SphericalDirection(t.Rotation),
			Intensity: l.Intensity,
		}
	})

	cameraY := i.frame.Camera.Position.Y()
	scene.Each1(s, s.Atmospheres(), func(_ scene.Entity, a *scene.AtmosphereComponent) {
		atmo := NewGPUAtmosphere(*a, cameraY)
		i.frame.Atmosphere = &atmo
	})

	scene.Each1(s, s.AutoExposures(), func(_ scene.Entity, a *scene.AutoExposureComponent) {
		info := NewGPUHistogramInfo(*a)
		i.frame.HistogramInfo = &info
	})
}

// updateTransforms snapshots the transform slots and adds the dirty list as byte ranges to
// those not yet uploaded. Ranges accumulate over updates until a frame carrying them executes.
func (i *rendererInstance) updateTransforms() {
	s := i.scene
	records := s.TransformRecords()
	dirty := s.DirtyTransforms()
	s.ClearDirtyTransforms()

	i.frame.transforms = scene.MarshalTransforms(records)
	for _, id := range dirty {
		i.frame.dirtyTransforms = append(i.frame.dirtyTransforms, region{
			offset: uint64(id.Index()) * scene.GPUTransformSize,
			size:   scene.GPUTransformSize,
		})
	}
}

// meshGroup is one mesh asset with its instances, ready to be expanded.
type meshGroup struct {
	meshIndex    uint32
	meshletCount uint32
	materials    []uint32
	transforms   []uint32
	// offset is the group's first slot in the meshlet instance array.
	offset uint32
}

// updateMeshes uploads pending geometry and reflattens the scene's mesh instances when the
// mesh set changed or the geometry arena was rebuilt.
func (i *rendererInstance) updateMeshes() {
	assets := i.r.assets
	if err := assets.UploadMeshes(i.r.ctx); err != nil {
		common.Logger().Warn("mesh upload failed", "scene", i.scene.Name(), "error", err)
	}
	geometry := assets.Geometry()
	if !i.scene.MeshesDirty() && geometry == i.geometry && i.frame.Meshes != nil {
		return
	}
	i.geometry = geometry

	var groups []meshGroup
	meshes := make([]asset.GPUMesh, 0)
	var total uint32
	for _, rm := range i.scene.RenderingMeshes() {
		mesh := assets.Mesh(rm.Mesh)
		if mesh == nil || !mesh.Placed() {
			common.Logger().Warn("mesh instance skipped, mesh not uploaded", "scene", i.scene.Name(), "mesh", rm.Mesh)
			continue
		}
		g := meshGroup{
			meshIndex:    uint32(len(meshes)),
			meshletCount: uint32(len(mesh.Meshlets)),
			offset:       total,
		}
		for _, inst := range rm.Instances {
			g.materials = append(g.materials, assets.MaterialIndex(materialOf(inst, mesh)))
			g.transforms = append(g.transforms, inst.Transform.Index())
		}
		meshes = append(meshes, mesh.GPU())
		groups = append(groups, g)
		total += g.meshletCount * uint32(len(rm.Instances))
	}

	instances := make([]GPUMeshletInstance, total)
	if int(total) <= i.r.flattenThreshold || len(groups) < 2 {
		for _, g := range groups {
			g.expand(instances)
		}
	} else {
		// Groups write disjoint ranges, so they are expanded in parallel.
		var wg sync.WaitGroup
		for id, g := range groups {
			wg.Add(1)
			i.r.pool.SubmitTask(worker.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					g.expand(instances)
					return nil, nil
				},
			})
		}
		wg.Wait()
	}

	i.frame.Meshes = meshes
	i.frame.MeshletInstances = instances
	i.meshesRebuilt = true
	i.scene.ClearMeshesDirty()
	common.Logger().Debug("meshes flattened", "scene", i.scene.Name(), "meshes", len(meshes), "meshlet_instances", total)
}

func materialOf(inst scene.MeshInstance, mesh *asset.Mesh) uuid.UUID {
	if inst.Material != uuid.Nil {
		return inst.Material
	}
	return mesh.Material
}

// expand writes one meshlet instance per (instance, meshlet) into out at the group offset.
func (g meshGroup) expand(out []GPUMeshletInstance) {
	at := g.offset
	for k, transform := range g.transforms {
		for m := range g.meshletCount {
			out[at] = GPUMeshletInstance{
				MeshIndex:      g.meshIndex,
				MaterialIndex:  g.materials[k],
				TransformIndex: transform,
				MeshletIndex:   m,
			}
			at++
		}
	}
}

// updateSprites fills the 2D queue. Sprites are collected first and their transforms looked
// up afterwards, since the lookups take the scene lock the iteration holds.
func (i *rendererInstance) updateSprites() {
	s := i.scene
	type pending struct {
		entity scene.Entity
		sprite scene.SpriteComponent
	}
	var sprites []pending
	scene.Each1(s, s.Sprites(), func(e scene.Entity, sp *scene.SpriteComponent) {
		sprites = append(sprites, pending{entity: e, sprite: *sp})
	})

	i.queue.Clear()
	i.queue.Init()
	cameraZ := i.frame.Camera.Position.Z()
	for _, p := range sprites {
		id, ok := s.GetEntityTransformID(p.entity)
		if !ok {
			common.Logger().Warn("sprite skipped, entity has no transform", "scene", s.Name(), "entity", p.entity)
			continue
		}
		t, ok := s.Transform(p.entity)
		if !ok {
			common.Logger().Warn("sprite skipped, entity has no transform", "scene", s.Name(), "entity", p.entity)
			continue
		}
		distance := float32(math.Abs(float64(cameraZ - t.Position.Z())))
		i.queue.Add(p.sprite, t.Position.Y(), id.Index(), i.r.assets.MaterialIndex(p.sprite.Material), distance)
	}
}
