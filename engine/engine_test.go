package engine

import (
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxylus-go/engine/asset"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/renderer"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

type fakePresenter struct {
	format     gpu.Format
	configured [][2]uint32
	presented  []*gpu.Image
}

func (p *fakePresenter) ConfigureSurface(width, height uint32) error {
	p.configured = append(p.configured, [2]uint32{width, height})
	return nil
}

func (p *fakePresenter) SurfaceFormat() gpu.Format {
	return p.format
}

func (p *fakePresenter) Present(img *gpu.Image) error {
	p.presented = append(p.presented, img)
	return nil
}

func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r := renderer.NewRenderer(gpu.NewContext(gpu.NewMemoryDevice()), renderer.WithWorkers(1))
	if err := r.RegisterPipelines(); err != nil {
		t.Fatalf("RegisterPipelines() error = %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

func spriteScene(r renderer.Renderer, name string, active bool) *scene.Scene {
	s := scene.NewScene(name, scene.WithActive(active))
	mat := r.Assets().AddMaterial(asset.NewMaterial("sprite", asset.WithAlbedo(1, 1, 1, 1)))
	e := s.CreateEntity("sprite")
	s.SetTransform(e, scene.NewTransform(mgl32.Vec3{0, 0, -1}))
	s.SetSprite(e, scene.SpriteComponent{Material: mat})
	return s
}

func TestRenderFrame(t *testing.T) {
	tests := []struct {
		name        string
		active      bool
		debug       renderer.DebugView
		wantPresent bool
	}{
		{"inactive scene", false, renderer.DebugViewNone, false},
		{"lit frame", true, renderer.DebugViewNone, true},
		{"debug view", true, renderer.DebugViewNormal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t)
			r.UpdateSettings(func(s *renderer.Settings) { s.DebugView = tt.debug })
			p := &fakePresenter{format: gpu.FormatBGRA8Unorm}
			e := NewEngine(r,
				WithPresenter(p),
				WithExtent(64, 32),
				WithScene(0, spriteScene(r, tt.name, tt.active)),
			)
			defer e.Release()

			if err := e.RenderFrame(1.0/60, p.Present); err != nil {
				t.Fatalf("RenderFrame() error = %v", err)
			}
			if got := len(p.presented) == 1; got != tt.wantPresent {
				t.Fatalf("presented %d images, want present = %v", len(p.presented), tt.wantPresent)
			}
			if !tt.wantPresent {
				return
			}
			img := p.presented[0]
			if img.Spec.Format != gpu.FormatBGRA8Unorm {
				t.Errorf("presented format = %s, want the surface format", img.Spec.Format)
			}
			if img.Spec.Extent != gpu.Extent2D(64, 32) {
				t.Errorf("presented extent = %s, want 64x32", img.Spec.Extent)
			}
			if got := r.Context().Frame(); got != 1 {
				t.Errorf("Frame() = %d after one frame, want 1", got)
			}
		})
	}
}

func TestRenderFrame_PresentError(t *testing.T) {
	r := newTestRenderer(t)
	e := NewEngine(r, WithExtent(16, 16), WithScene(0, spriteScene(r, "error", true)))
	defer e.Release()

	errSurfaceLost := errors.New("surface lost")
	err := e.RenderFrame(0, func(*gpu.Image) error { return errSurfaceLost })
	if !errors.Is(err, errSurfaceLost) {
		t.Errorf("RenderFrame() error = %v, want %v", err, errSurfaceLost)
	}
	if got := r.Context().Frame(); got != 1 {
		t.Errorf("Frame() = %d, want the frame ended despite the error", got)
	}
}

func TestScenes(t *testing.T) {
	r := newTestRenderer(t)
	e := NewEngine(r)
	defer e.Release()

	a := spriteScene(r, "a", true)
	b := spriteScene(r, "b", true)
	e.AddScene(2, b)
	e.AddScene(1, a)

	if e.Scene(1) != a || e.Scene(2) != b {
		t.Errorf("Scene() did not return the registered scenes")
	}
	scenes := e.Scenes()
	delete(scenes, 1)
	if e.Scene(1) == nil {
		t.Error("Scenes() returned the live map, want a copy")
	}

	e.RemoveScene(1)
	if e.Scene(1) != nil {
		t.Error("Scene(1) still registered after RemoveScene")
	}
	if len(e.Scenes()) != 1 {
		t.Errorf("len(Scenes()) = %d, want 1", len(e.Scenes()))
	}
}

// trackingRenderer records the scene name of every instance it hands out when the instance
// is released.
type trackingRenderer struct {
	renderer.Renderer
	released *[]string
}

func (r trackingRenderer) NewInstance(s *scene.Scene) renderer.RendererInstance {
	return trackingInstance{RendererInstance: r.Renderer.NewInstance(s), released: r.released}
}

type trackingInstance struct {
	renderer.RendererInstance
	released *[]string
}

func (i trackingInstance) Release() {
	*i.released = append(*i.released, i.Scene().Name())
	i.RendererInstance.Release()
}

func TestScenes_ReleaseDeferredToRenderFrame(t *testing.T) {
	tests := []struct {
		name   string
		change func(e Engine, r renderer.Renderer)
	}{
		{"remove", func(e Engine, r renderer.Renderer) { e.RemoveScene(0) }},
		{"replace", func(e Engine, r renderer.Renderer) { e.AddScene(0, spriteScene(r, "new", true)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var released []string
			r := trackingRenderer{Renderer: newTestRenderer(t), released: &released}
			e := NewEngine(r, WithExtent(16, 16), WithScene(0, spriteScene(r, "old", true)))
			defer e.Release()

			if err := e.RenderFrame(1.0/60, nil); err != nil {
				t.Fatalf("RenderFrame() error = %v", err)
			}
			tt.change(e, r)
			if len(released) != 0 {
				t.Fatalf("released %v before the next frame, want none", released)
			}
			if err := e.RenderFrame(1.0/60, nil); err != nil {
				t.Fatalf("RenderFrame() error = %v", err)
			}
			if want := []string{"old"}; !slices.Equal(released, want) {
				t.Errorf("released = %v, want %v", released, want)
			}
		})
	}
}

func TestRelease_ReleasesRetiredInstances(t *testing.T) {
	var released []string
	r := trackingRenderer{Renderer: newTestRenderer(t), released: &released}
	e := NewEngine(r, WithScene(0, spriteScene(r, "a", true)), WithScene(1, spriteScene(r, "b", true)))
	e.RemoveScene(0)
	e.Release()

	slices.Sort(released)
	if want := []string{"a", "b"}; !slices.Equal(released, want) {
		t.Errorf("released = %v, want %v", released, want)
	}
}

func TestRun_Headless(t *testing.T) {
	r := newTestRenderer(t)
	p := &fakePresenter{format: gpu.FormatRGBA8Unorm}
	e := NewEngine(r, WithPresenter(p), WithExtent(32, 32), WithScene(0, spriteScene(r, "run", true)))
	defer e.Release()

	var frames atomic.Int32
	e.SetRenderCallback(func(float32) {
		if frames.Add(1) == 3 {
			e.Quit()
		}
	})
	e.Run()

	if frames.Load() < 3 {
		t.Errorf("Run() returned after %d frames, want at least 3", frames.Load())
	}
	if len(p.configured) != 1 || p.configured[0] != [2]uint32{32, 32} {
		t.Errorf("ConfigureSurface() calls = %v, want one at 32x32", p.configured)
	}
	if len(p.presented) < 3 {
		t.Errorf("presented %d frames, want at least 3", len(p.presented))
	}
	e.Quit()
}
