package asset

import (
	_ "embed"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// GPUMeshSource is the WGSL definition of Vertex, GPUMeshlet and GPUMesh.
//
//go:embed assets/mesh.wgsl
var GPUMeshSource string

// MaxMeshletTriangles is the triangle capacity of one meshlet.
const MaxMeshletTriangles = 64

// MaxMeshletIndices is the unique vertex capacity of one meshlet. It is also the number of
// meshlet instances one workgroup of the meshlet culling pass processes.
const MaxMeshletIndices = 64

// Vertex is one mesh vertex.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// Meshlet is a cluster of up to MaxMeshletTriangles triangles. Offsets are relative to the
// owning mesh's own index array.
type Meshlet struct {
	IndexOffset   uint32
	TriangleCount uint32
	Center        mgl32.Vec3
	Radius        float32
}

// GPUMeshlet is the GPU layout of a meshlet. IndexOffset is absolute in the shared index
// arena.
// Size: 32 bytes.
type GPUMeshlet struct {
	Center        mgl32.Vec3
	Radius        float32
	IndexOffset   uint32
	TriangleCount uint32
	_pad          [2]uint32
}

// Mesh is an indexed triangle mesh split into meshlets.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Meshlets []Meshlet
	// Material is the default material of the mesh.
	Material uuid.UUID

	id uuid.UUID

	// arena placement, assigned when geometry is uploaded
	vertexBase  uint32
	indexBase   uint32
	meshletBase uint32
	placed      bool
}

// ID returns the mesh's UUID, assigned by Manager.AddMesh.
func (m *Mesh) ID() uuid.UUID {
	return m.id
}

// NewMesh creates a mesh and builds its meshlets from the index list.
//
// Parameters:
//   - name: a debug name
//   - vertices: the vertex array
//   - indices: a triangle list indexing vertices
//   - material: the default material UUID
//
// Returns:
//   - *Mesh: the new mesh
func NewMesh(name string, vertices []Vertex, indices []uint32, material uuid.UUID) *Mesh {
	return &Mesh{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
		Meshlets: BuildMeshlets(vertices, indices),
		Material: material,
	}
}

// BuildMeshlets splits a triangle list into consecutive meshlets. A meshlet is closed when
// the next triangle would exceed MaxMeshletTriangles triangles or MaxMeshletIndices unique
// vertices. Each meshlet gets a bounding sphere around its vertices.
func BuildMeshlets(vertices []Vertex, indices []uint32) []Meshlet {
	var out []Meshlet
	triangles := uint32(len(indices) / 3)
	unique := make(map[uint32]struct{}, MaxMeshletIndices)
	first := uint32(0)

	flush := func(end uint32) {
		if end == first {
			return
		}
		m := Meshlet{IndexOffset: first * 3, TriangleCount: end - first}
		m.Center, m.Radius = boundingSphere(vertices, indices[first*3:end*3])
		out = append(out, m)
		first = end
		clear(unique)
	}

	for t := uint32(0); t < triangles; t++ {
		added := 0
		for _, i := range indices[t*3 : t*3+3] {
			if _, ok := unique[i]; !ok {
				added++
			}
		}
		if t-first == MaxMeshletTriangles || len(unique)+added > MaxMeshletIndices {
			flush(t)
		}
		for _, i := range indices[t*3 : t*3+3] {
			unique[i] = struct{}{}
		}
	}
	flush(triangles)
	return out
}

// boundingSphere returns the sphere around the AABB of the referenced vertices.
func boundingSphere(vertices []Vertex, indices []uint32) (mgl32.Vec3, float32) {
	if len(indices) == 0 {
		return mgl32.Vec3{}, 0
	}
	lo := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, i := range indices {
		p := vertices[i].Position
		for k := range 3 {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	center := lo.Add(hi).Mul(0.5)
	var radius float32
	for _, i := range indices {
		radius = max(radius, vertices[i].Position.Sub(center).Len())
	}
	return center, radius
}

// Bounds returns the bounding sphere of the whole mesh.
func (m *Mesh) Bounds() (mgl32.Vec3, float32) {
	return boundingSphere(m.Vertices, m.Indices)
}

// GPUMesh is the GPU layout of a mesh. WebGPU has no buffer device addresses, so a mesh is
// addressed by its offsets into the shared geometry arena buffers.
// Size: 32 bytes.
type GPUMesh struct {
	VertexOffset  uint32
	IndexOffset   uint32
	MeshletOffset uint32
	MeshletCount  uint32
	Center        mgl32.Vec3
	Radius        float32
}

// GPU returns the mesh's GPU record. The offsets are zero until the geometry is uploaded.
func (m *Mesh) GPU() GPUMesh {
	center, radius := m.Bounds()
	return GPUMesh{
		VertexOffset:  m.vertexBase,
		IndexOffset:   m.indexBase,
		MeshletOffset: m.meshletBase,
		MeshletCount:  uint32(len(m.Meshlets)),
		Center:        center,
		Radius:        radius,
	}
}

// Placed reports whether the mesh's geometry is in the arena.
func (m *Mesh) Placed() bool {
	return m.placed
}
