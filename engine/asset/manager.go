// Package asset holds the materials and meshes that scenes reference by UUID, and the GPU
// buffers built from them.
package asset

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/google/uuid"
	"honnef.co/go/safeish"
)

// Geometry is the shared arena of all uploaded meshes. A GPUMesh addresses its data by offset
// into these buffers.
type Geometry struct {
	Vertices *gpu.Buffer
	Indices  *gpu.Buffer
	Meshlets *gpu.Buffer
}

// Valid reports whether the arena has been uploaded.
func (g Geometry) Valid() bool {
	return g.Vertices.Valid() && g.Indices.Valid() && g.Meshlets.Valid()
}

// Manager owns materials and meshes.
type Manager interface {
	// AddMaterial registers a material and returns its UUID.
	AddMaterial(m Material) uuid.UUID
	// Material returns a registered material.
	Material(id uuid.UUID) (Material, bool)
	// MaterialIndex returns the index of a material in the materials buffer. Unknown UUIDs
	// map to index 0, the default material.
	MaterialIndex(id uuid.UUID) uint32
	// MaterialsBuffer returns the GPU buffer of all materials, rebuilding it if materials
	// changed since the last call. The buffer is written into set at slot, and material
	// textures at the slots following it.
	MaterialsBuffer(ctx *gpu.Context, set gpu.DescriptorSet, slot uint32) *gpu.Buffer

	// AddMesh registers a mesh and returns its UUID.
	AddMesh(m *Mesh) uuid.UUID
	// Mesh returns a registered mesh, or nil.
	Mesh(id uuid.UUID) *Mesh
	// Meshes returns all meshes in registration order.
	Meshes() []*Mesh
	// UploadMeshes places every mesh in the geometry arena and uploads it, if meshes were
	// added since the last upload.
	UploadMeshes(ctx *gpu.Context) error
	// Geometry returns the current arena buffers.
	Geometry() Geometry

	// Release destroys every GPU buffer owned by the manager.
	Release(ctx *gpu.Context)
}

type manager struct {
	mu *sync.Mutex

	materials      []Material
	materialIndex  map[uuid.UUID]uint32
	materialsDirty bool
	materialsBuf   *gpu.Buffer

	meshes      []*Mesh
	meshIndex   map[uuid.UUID]*Mesh
	meshesDirty bool
	geometry    Geometry
}

var _ Manager = &manager{}

// ManagerBuilderOption is a functional option used to configure a Manager via NewManager.
type ManagerBuilderOption func(*manager)

// WithDefaultMaterial replaces the material stored at index 0.
func WithDefaultMaterial(m Material) ManagerBuilderOption {
	return func(mgr *manager) {
		m.id = uuid.Nil
		mgr.materials[0] = m
	}
}

// NewManager creates a Manager. Index 0 of the materials buffer always holds the default
// material, registered under uuid.Nil.
//
// Parameters:
//   - options: variadic list of ManagerBuilderOption functions
//
// Returns:
//   - Manager: the new manager
func NewManager(options ...ManagerBuilderOption) Manager {
	m := &manager{
		mu:             &sync.Mutex{},
		materials:      []Material{NewMaterial("default")},
		materialIndex:  map[uuid.UUID]uint32{uuid.Nil: 0},
		materialsDirty: true,
		meshIndex:      make(map[uuid.UUID]*Mesh),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *manager) AddMaterial(mat Material) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	mat.id = uuid.New()
	m.materialIndex[mat.id] = uint32(len(m.materials))
	m.materials = append(m.materials, mat)
	m.materialsDirty = true
	return mat.id
}

func (m *manager) Material(id uuid.UUID) (Material, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.materialIndex[id]
	if !ok {
		return Material{}, false
	}
	return m.materials[idx], true
}

func (m *manager) MaterialIndex(id uuid.UUID) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.materialIndex[id]
}

func (m *manager) MaterialsBuffer(ctx *gpu.Context, set gpu.DescriptorSet, slot uint32) *gpu.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.materialsDirty && m.materialsBuf.Valid() {
		return m.materialsBuf
	}

	records := make([]GPUMaterial, len(m.materials))
	next := slot + 1
	bind := func(img *gpu.Image) uint32 {
		if !img.Valid() {
			return NoTexture
		}
		idx := next
		set.SetImage(idx, gpu.AllMips(img))
		next++
		return idx
	}
	for i, mat := range m.materials {
		records[i] = GPUMaterial{
			Albedo:        mat.Albedo,
			Emissive:      mat.Emissive,
			Metallic:      mat.Metallic,
			Roughness:     mat.Roughness,
			Occlusion:     mat.Occlusion,
			AlphaCutoff:   mat.AlphaCutoff,
			AlbedoIndex:   bind(mat.AlbedoImage),
			NormalIndex:   bind(mat.NormalImage),
			EmissiveIndex: bind(mat.EmissiveImage),
		}
	}
	data := safeish.SliceCast[[]byte](records)

	if m.materialsBuf.Valid() {
		ctx.Wait()
		ctx.DestroyBuffer(m.materialsBuf)
	}
	m.materialsBuf = ctx.AllocateBufferSuper("materials", gpu.BufferUsageStorage|gpu.BufferUsageTransferDst, uint64(len(data)))
	if err := ctx.WriteBuffer(m.materialsBuf, 0, data); err != nil {
		common.Logger().Error("materials upload failed", "error", err)
	}
	set.SetBuffer(slot, m.materialsBuf)
	m.materialsDirty = false
	return m.materialsBuf
}

func (m *manager) AddMesh(mesh *Mesh) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	mesh.id = uuid.New()
	m.meshes = append(m.meshes, mesh)
	m.meshIndex[mesh.id] = mesh
	m.meshesDirty = true
	return mesh.id
}

func (m *manager) Mesh(id uuid.UUID) *Mesh {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meshIndex[id]
}

func (m *manager) Meshes() []*Mesh {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Mesh, len(m.meshes))
	copy(out, m.meshes)
	return out
}

func (m *manager) UploadMeshes(ctx *gpu.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.meshesDirty && m.geometry.Valid() {
		return nil
	}

	var (
		vertices []Vertex
		indices  []uint32
		meshlets []GPUMeshlet
	)
	for _, mesh := range m.meshes {
		mesh.vertexBase = uint32(len(vertices))
		mesh.indexBase = uint32(len(indices))
		mesh.meshletBase = uint32(len(meshlets))
		mesh.placed = true

		vertices = append(vertices, mesh.Vertices...)
		indices = append(indices, mesh.Indices...)
		for _, ml := range mesh.Meshlets {
			meshlets = append(meshlets, GPUMeshlet{
				Center:        ml.Center,
				Radius:        ml.Radius,
				IndexOffset:   mesh.indexBase + ml.IndexOffset,
				TriangleCount: ml.TriangleCount,
			})
		}
	}

	if m.geometry.Valid() {
		ctx.Wait()
		m.destroyGeometry(ctx)
	}

	var err error
	if m.geometry.Vertices, err = uploadArena(ctx, "geometry vertices", gpu.BufferUsageStorage|gpu.BufferUsageVertex, safeish.SliceCast[[]byte](vertices)); err != nil {
		return err
	}
	if m.geometry.Indices, err = uploadArena(ctx, "geometry indices", gpu.BufferUsageStorage|gpu.BufferUsageIndex, safeish.SliceCast[[]byte](indices)); err != nil {
		return err
	}
	if m.geometry.Meshlets, err = uploadArena(ctx, "geometry meshlets", gpu.BufferUsageStorage, safeish.SliceCast[[]byte](meshlets)); err != nil {
		return err
	}
	m.meshesDirty = false
	common.Logger().Debug("geometry uploaded", "meshes", len(m.meshes), "vertices", len(vertices), "meshlets", len(meshlets))
	return nil
}

// uploadArena allocates a buffer sized for data and writes it. Empty arenas get a four byte
// buffer so bindings stay valid.
func uploadArena(ctx *gpu.Context, label string, usage gpu.BufferUsage, data []byte) (*gpu.Buffer, error) {
	size := max(uint64(len(data)), 4)
	buf := ctx.AllocateBufferSuper(label, usage|gpu.BufferUsageTransferDst, size)
	if len(data) == 0 {
		return buf, nil
	}
	if err := ctx.WriteBuffer(buf, 0, data); err != nil {
		return nil, fmt.Errorf("upload %s: %w", label, err)
	}
	return buf, nil
}

func (m *manager) Geometry() Geometry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geometry
}

func (m *manager) destroyGeometry(ctx *gpu.Context) {
	ctx.DestroyBuffer(m.geometry.Vertices)
	ctx.DestroyBuffer(m.geometry.Indices)
	ctx.DestroyBuffer(m.geometry.Meshlets)
	m.geometry = Geometry{}
}

func (m *manager) Release(ctx *gpu.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.destroyGeometry(ctx)
	ctx.DestroyBuffer(m.materialsBuf)
	m.materialsBuf = nil
	m.materialsDirty = true
	m.meshesDirty = true
}
