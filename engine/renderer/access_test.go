package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
)

func TestAccessHistory(t *testing.T) {
	tests := []struct {
		name     string
		execute  bool
		recreate bool
		want     gpu.Access
	}{
		{"executed plan", true, false, gpu.AccessComputeWrite},
		{"plan never executed", false, false, gpu.AccessNone},
		{"buffer recreated", true, true, gpu.AccessNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newTestContext()
			h := newAccessHistory()
			buf := ctx.AllocateBufferSuper("exposure", gpu.BufferUsageStorage, 16)

			g := rendergraph.NewGraph("write")
			v := h.acquireBuffer(g, "exposure", buf)
			out := g.AddPass("write", nil, v.As(gpu.AccessComputeWrite))
			if tt.execute {
				execute(t, ctx, g, out[0])
			}
			if tt.recreate {
				ctx.Wait()
				ctx.DestroyBuffer(buf)
				buf = ctx.AllocateBufferSuper("exposure", gpu.BufferUsageStorage, 16)
			}

			if got := h.access("exposure", buf.ID); got != tt.want {
				t.Errorf("access() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccessHistory_NextFrameBarrier(t *testing.T) {
	ctx, _ := newTestContext()
	h := newAccessHistory()
	img := ctx.CreateImage("hiz", gpu.ImageSpec{
		Format:    gpu.FormatR32Float,
		Extent:    gpu.Extent2D(16, 16),
		MipLevels: 1,
		Usage:     gpu.ImageUsageStorage | gpu.ImageUsageSampled,
	})

	g := rendergraph.NewGraph("first")
	v := h.acquireImage(g, "hiz", img)
	out := g.AddPass("hiz generate", nil, v.As(gpu.AccessComputeRW))
	first := execute(t, ctx, g, out[0])
	want, _ := first.FinalAccess("hiz")
	ctx.NextFrame()

	g = rendergraph.NewGraph("second")
	v = h.acquireImage(g, "hiz", img)
	out = g.AddPass("cull", nil, v.As(gpu.AccessComputeSampled))
	out = g.AddPass("rebuild", nil, out[0].As(gpu.AccessComputeRW))
	second := execute(t, ctx, g, out[0])

	barriers := second.Barriers(0)
	if len(barriers) != 1 {
		t.Fatalf("Barriers(0) = %v, want one transition", barriers)
	}
	if got := barriers[0].Src; got != want {
		t.Errorf("Barriers(0)[0].Src = %v, want %v", got, want)
	}
	if barriers[0].Image != img {
		t.Errorf("Barriers(0)[0].Image = %v, want %v", barriers[0].Image, img)
	}
}
