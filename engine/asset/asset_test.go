package asset

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

func quad() ([]Vertex, []uint32) {
	v := []Vertex{
		{Position: mgl32.Vec3{-1, -1, 0}},
		{Position: mgl32.Vec3{1, -1, 0}},
		{Position: mgl32.Vec3{1, 1, 0}},
		{Position: mgl32.Vec3{-1, 1, 0}},
	}
	return v, []uint32{0, 1, 2, 0, 2, 3}
}

func TestGPULayoutSizes(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"GPUMaterial", unsafe.Sizeof(GPUMaterial{}), 64},
		{"GPUMeshlet", unsafe.Sizeof(GPUMeshlet{}), 32},
		{"GPUMesh", unsafe.Sizeof(GPUMesh{}), 32},
		{"Vertex", unsafe.Sizeof(Vertex{}), 32},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Sizeof(%s) = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestBuildMeshlets(t *testing.T) {
	tests := []struct {
		name      string
		triangles int
		want      []uint32
	}{
		{"empty", 0, nil},
		{"single", 1, []uint32{1}},
		{"exact", MaxMeshletTriangles, []uint32{MaxMeshletTriangles}},
		{"overflow", MaxMeshletTriangles*2 + 5, []uint32{MaxMeshletTriangles, MaxMeshletTriangles, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vertices := []Vertex{{}, {Position: mgl32.Vec3{1, 0, 0}}, {Position: mgl32.Vec3{0, 1, 0}}}
			indices := make([]uint32, 0, tt.triangles*3)
			for range tt.triangles {
				indices = append(indices, 0, 1, 2)
			}
			got := BuildMeshlets(vertices, indices)
			if len(got) != len(tt.want) {
				t.Fatalf("BuildMeshlets() returned %d meshlets, want %d", len(got), len(tt.want))
			}
			for i, m := range got {
				if m.TriangleCount != tt.want[i] {
					t.Errorf("meshlet %d TriangleCount = %d, want %d", i, m.TriangleCount, tt.want[i])
				}
				if m.IndexOffset != uint32(i*MaxMeshletTriangles*3) {
					t.Errorf("meshlet %d IndexOffset = %d, want %d", i, m.IndexOffset, i*MaxMeshletTriangles*3)
				}
			}
		})
	}
}

func TestBuildMeshlets_VertexLimit(t *testing.T) {
	// Every triangle brings three new vertices, so 21 fit under the vertex limit.
	const triangles = 50
	vertices := make([]Vertex, triangles*3)
	indices := make([]uint32, triangles*3)
	for i := range indices {
		indices[i] = uint32(i)
	}

	got := BuildMeshlets(vertices, indices)
	want := []uint32{21, 21, 8}
	if len(got) != len(want) {
		t.Fatalf("BuildMeshlets() returned %d meshlets, want %d", len(got), len(want))
	}
	var offset uint32
	for i, m := range got {
		if m.TriangleCount != want[i] {
			t.Errorf("meshlet %d TriangleCount = %d, want %d", i, m.TriangleCount, want[i])
		}
		if m.IndexOffset != offset {
			t.Errorf("meshlet %d IndexOffset = %d, want %d", i, m.IndexOffset, offset)
		}
		offset += m.TriangleCount * 3
	}
}

func TestMeshBounds(t *testing.T) {
	v, idx := quad()
	m := NewMesh("quad", v, idx, uuid.Nil)
	center, radius := m.Bounds()
	if center != (mgl32.Vec3{}) {
		t.Errorf("Bounds() center = %v, want origin", center)
	}
	if want := (mgl32.Vec2{1, 1}).Len(); mgl32.Abs(radius-want) > 1e-5 {
		t.Errorf("Bounds() radius = %v, want %v", radius, want)
	}
}

func TestManager_MaterialIndex(t *testing.T) {
	mgr := NewManager()
	red := mgr.AddMaterial(NewMaterial("red", WithAlbedo(1, 0, 0, 1)))
	blue := mgr.AddMaterial(NewMaterial("blue", WithAlbedo(0, 0, 1, 1)))

	tests := []struct {
		name string
		id   uuid.UUID
		want uint32
	}{
		{"default", uuid.Nil, 0},
		{"red", red, 1},
		{"blue", blue, 2},
		{"unknown", uuid.New(), 0},
	}
	for _, tt := range tests {
		if got := mgr.MaterialIndex(tt.id); got != tt.want {
			t.Errorf("MaterialIndex(%s) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestManager_MaterialsBuffer(t *testing.T) {
	dev := gpu.NewMemoryDevice()
	ctx := gpu.NewContext(dev)
	set := gpu.NewDescriptorSet("bindless")
	mgr := NewManager()

	albedo := ctx.CreateImage("albedo", gpu.ImageSpec{
		Format: gpu.FormatRGBA8Srgb, Extent: gpu.Extent2D(4, 4), MipLevels: 1, Usage: gpu.ImageUsageSampled,
	})
	mgr.AddMaterial(NewMaterial("textured", WithAlbedoImage(albedo), WithMetallicRoughness(0.5, 0.25)))

	buf := mgr.MaterialsBuffer(ctx, set, 0)
	if want := uint64(2 * unsafe.Sizeof(GPUMaterial{})); buf.Size != want {
		t.Fatalf("materials buffer size = %d, want %d", buf.Size, want)
	}
	if got, ok := set.Buffer(0); !ok || got != buf {
		t.Errorf("descriptor slot 0 = %v, want the materials buffer", got)
	}
	if view, ok := set.Image(1); !ok || view.Image != albedo {
		t.Errorf("descriptor slot 1 = %v, want the albedo image", view)
	}

	data, err := dev.ReadBuffer(buf)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	stride := int(unsafe.Sizeof(GPUMaterial{}))
	albedoIndex := binary.LittleEndian.Uint32(data[stride+44:])
	if albedoIndex != 1 {
		t.Errorf("textured AlbedoIndex = %d, want 1", albedoIndex)
	}
	if defaultIndex := binary.LittleEndian.Uint32(data[44:]); defaultIndex != NoTexture {
		t.Errorf("default AlbedoIndex = %#x, want NoTexture", defaultIndex)
	}

	// Unchanged materials keep the same buffer without a device wait.
	if again := mgr.MaterialsBuffer(ctx, set, 0); again != buf {
		t.Error("MaterialsBuffer() rebuilt an unchanged buffer")
	}
	if got := ctx.WaitCount(); got != 0 {
		t.Errorf("WaitCount() = %d, want 0", got)
	}

	mgr.AddMaterial(NewMaterial("plain"))
	if rebuilt := mgr.MaterialsBuffer(ctx, set, 0); rebuilt == buf {
		t.Error("MaterialsBuffer() did not rebuild after AddMaterial")
	}
	if got := ctx.WaitCount(); got != 1 {
		t.Errorf("WaitCount() = %d, want 1 before destroying the old buffer", got)
	}
}

func TestManager_UploadMeshes(t *testing.T) {
	dev := gpu.NewMemoryDevice()
	ctx := gpu.NewContext(dev)
	mgr := NewManager()

	v, idx := quad()
	a := mgr.AddMesh(NewMesh("a", v, idx, uuid.Nil))
	b := mgr.AddMesh(NewMesh("b", v, idx, uuid.Nil))

	if err := mgr.UploadMeshes(ctx); err != nil {
		t.Fatalf("UploadMeshes() error = %v", err)
	}
	geo := mgr.Geometry()
	if !geo.Valid() {
		t.Fatal("Geometry() is not valid after upload")
	}

	tests := []struct {
		id   uuid.UUID
		want GPUMesh
	}{
		{a, GPUMesh{VertexOffset: 0, IndexOffset: 0, MeshletOffset: 0, MeshletCount: 1}},
		{b, GPUMesh{VertexOffset: 4, IndexOffset: 6, MeshletOffset: 1, MeshletCount: 1}},
	}
	for _, tt := range tests {
		got := mgr.Mesh(tt.id).GPU()
		got.Center, got.Radius = mgl32.Vec3{}, 0
		if got != tt.want {
			t.Errorf("Mesh(%s).GPU() = %+v, want %+v", tt.id, got, tt.want)
		}
	}

	data, err := dev.ReadBuffer(geo.Meshlets)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	// second meshlet's absolute index offset
	if got := binary.LittleEndian.Uint32(data[32+16:]); got != 6 {
		t.Errorf("meshlet 1 IndexOffset = %d, want 6", got)
	}

	if err := mgr.UploadMeshes(ctx); err != nil {
		t.Fatalf("UploadMeshes() error = %v", err)
	}
	if mgr.Geometry() != geo {
		t.Error("UploadMeshes() rebuilt unchanged geometry")
	}
}
