package renderer

import (
	"bytes"
	"testing"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
)

func newTestContext() (*gpu.Context, *gpu.MemoryDevice) {
	dev := gpu.NewMemoryDevice()
	return gpu.NewContext(dev), dev
}

func execute(t *testing.T, ctx *gpu.Context, g *rendergraph.Graph, out rendergraph.Value) *rendergraph.Plan {
	t.Helper()
	plan, err := g.Compile(out)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if err := plan.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return plan
}

func TestSceneBuffer_Ensure(t *testing.T) {
	ctx, dev := newTestContext()
	b := newSceneBuffer("transforms", gpu.BufferUsageStorage, newAccessHistory())

	if !b.ensure(ctx, 64) {
		t.Fatal("ensure(64) on an empty buffer = false, want true")
	}
	if ctx.WaitCount() != 0 {
		t.Errorf("first allocation waited %d times, want 0", ctx.WaitCount())
	}
	first := b.buf

	tests := []struct {
		name string
		size uint64
	}{
		{"same size", 64},
		{"smaller", 16},
		{"zero", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if b.ensure(ctx, tt.size) {
				t.Errorf("ensure(%d) = true, want false", tt.size)
			}
			if b.buf != first {
				t.Error("buffer replaced without growth")
			}
			if ctx.WaitCount() != 0 {
				t.Errorf("WaitCount() = %d, want 0", ctx.WaitCount())
			}
		})
	}

	if !b.ensure(ctx, 65) {
		t.Fatal("ensure(65) = false, want true")
	}
	if ctx.WaitCount() != 1 {
		t.Errorf("growth waited %d times, want 1", ctx.WaitCount())
	}
	if b.capacity() != 65 {
		t.Errorf("capacity() = %d, want exactly 65", b.capacity())
	}
	if got := dev.LiveBuffers(); got != 1 {
		t.Errorf("LiveBuffers() = %d, want the old buffer destroyed", got)
	}
}

func TestSceneBuffer_SyncEmpty(t *testing.T) {
	ctx, _ := newTestContext()
	b := newSceneBuffer("meshes", gpu.BufferUsageStorage, newAccessHistory())
	g := rendergraph.NewGraph("test")

	if v := b.sync(g, ctx, nil, true, nil); v.Valid() {
		t.Error("sync() of no data into an unallocated buffer returned a valid value")
	}
	if b.buf.Valid() {
		t.Error("sync() allocated a buffer for no data")
	}
}

func TestSceneBuffer_SyncUploadAndPatch(t *testing.T) {
	ctx, dev := newTestContext()
	b := newSceneBuffer("transforms", gpu.BufferUsageStorage, newAccessHistory())

	data := bytes.Repeat([]byte{1}, 64)
	g := rendergraph.NewGraph("upload")
	plan := execute(t, ctx, g, b.sync(g, ctx, data, false, nil))
	if !plan.HasPass("upload transforms") {
		t.Errorf("PassNames() = %v, want a full upload of a grown buffer", plan.PassNames())
	}
	got, err := dev.ReadBuffer(b.buf)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("buffer = %v, want %v", got, data)
	}
	ctx.NextFrame()

	copy(data[8:16], bytes.Repeat([]byte{2}, 8))
	copy(data[48:56], bytes.Repeat([]byte{3}, 8))
	dirty := []region{{offset: 8, size: 8}, {offset: 48, size: 8}, {offset: 60, size: 8}}
	g = rendergraph.NewGraph("patch")
	plan = execute(t, ctx, g, b.sync(g, ctx, data, false, dirty))
	if !plan.HasPass("update transforms") || plan.HasPass("upload transforms") {
		t.Errorf("PassNames() = %v, want only the dirty ranges copied", plan.PassNames())
	}
	got, _ = dev.ReadBuffer(b.buf)
	if !bytes.Equal(got, data) {
		t.Errorf("buffer after patch = %v, want %v", got, data)
	}
	ctx.NextFrame()

	g = rendergraph.NewGraph("clean")
	plan = execute(t, ctx, g, b.sync(g, ctx, data, false, nil))
	if n := len(plan.PassNames()); n != 0 {
		t.Errorf("PassNames() = %v for a clean buffer, want none", plan.PassNames())
	}
}

func TestSceneBuffer_SyncGrowthUploadsInFull(t *testing.T) {
	ctx, dev := newTestContext()
	b := newSceneBuffer("meshlet instances", gpu.BufferUsageStorage, newAccessHistory())

	g := rendergraph.NewGraph("small")
	execute(t, ctx, g, b.sync(g, ctx, make([]byte, 16), true, nil))
	ctx.NextFrame()

	data := bytes.Repeat([]byte{7}, 48)
	g = rendergraph.NewGraph("grow")
	plan := execute(t, ctx, g, b.sync(g, ctx, data, false, []region{{offset: 0, size: 16}}))
	if !plan.HasPass("upload meshlet instances") || plan.HasPass("update meshlet instances") {
		t.Errorf("PassNames() = %v, want a full upload after growth", plan.PassNames())
	}
	if ctx.WaitCount() != 1 {
		t.Errorf("WaitCount() = %d, want 1", ctx.WaitCount())
	}
	got, _ := dev.ReadBuffer(b.buf)
	if !bytes.Equal(got, data) {
		t.Errorf("buffer = %v, want %v", got, data)
	}
}

func TestSceneBuffer_Release(t *testing.T) {
	ctx, dev := newTestContext()
	b := newSceneBuffer("meshes", gpu.BufferUsageStorage, newAccessHistory())
	b.ensure(ctx, 32)
	b.release(ctx)
	if b.buf.Valid() || dev.LiveBuffers() != 0 {
		t.Errorf("release() left %d live buffers", dev.LiveBuffers())
	}
}
