// Command oxylus-viewer opens a window and renders the demo scene.
//
// Left-drag orbits the camera, the scroll wheel zooms and WASD/QE pan. Digit keys pick a
// debug view (0 returns to the lit image), F freezes culling, O toggles occlusion culling,
// B toggles bloom, X toggles FXAA and T cycles the tonemapper.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxylus-go/cmd/internal/demo"
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine"
	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu/wgpudevice"
	"github.com/Carmen-Shannon/oxylus-go/engine/renderer"
	"github.com/Carmen-Shannon/oxylus-go/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	width := flag.Int("width", 1280, "window width")
	height := flag.Int("height", 720, "window height")
	grid := flag.Int("grid", 16, "cubes along each side of the grid")
	vsync := flag.Bool("vsync", true, "wait for vertical sync when presenting")
	validate := flag.Bool("validate", false, "validate shaders before creating pipelines")
	profile := flag.Bool("profile", true, "log frame statistics every second")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*width, *height, *grid, *vsync, *validate, *profile); err != nil {
		common.Logger().Error("viewer failed", "error", err)
		os.Exit(1)
	}
}

func run(width, height, grid int, vsync, validate, profile bool) error {
	win, err := window.NewWindow(
		window.WithTitle("Oxylus Viewer"),
		window.WithSize(width, height),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := wgpudevice.New(
		wgpudevice.WithSurfaceDescriptor(win.SurfaceDescriptor()),
		wgpudevice.WithVSync(vsync),
	)
	if err != nil {
		return err
	}
	defer dev.Release()
	ctx := gpu.NewContext(dev)

	r := renderer.NewRenderer(ctx, renderer.WithShaderValidation(validate))
	if err := r.RegisterPipelines(); err != nil {
		r.Release()
		return err
	}
	defer r.Release()

	opts := demo.DefaultOptions()
	opts.Grid = grid
	sc := demo.Build(r, opts)

	eng := engine.NewEngine(r,
		engine.WithWindow(win),
		engine.WithPresenter(dev),
		engine.WithProfiling(profile),
		engine.WithScene(0, sc.Scene),
	)
	defer eng.Release()

	oc := camera.NewOrbitController(
		camera.WithRadius(float32(grid)*4),
		camera.WithAngles(0.5, 0.4),
		camera.WithTarget(mgl32.Vec3{0, 1, 0}),
		camera.WithSpeeds(0.005, 1, 0.5),
	)
	bindInput(win, r, oc)

	// Scene mutation stays on the render goroutine.
	eng.SetRenderCallback(func(float32) {
		sc.Follow(oc)
	})
	sc.Follow(oc)

	common.Logger().Info("viewer started", "width", width, "height", height, "grid", grid, "format", dev.SurfaceFormat())
	eng.Run()
	return nil
}

// bindInput wires window input to the orbit controller and the renderer settings.
func bindInput(win window.Window, r renderer.Renderer, oc camera.OrbitController) {
	win.SetDragCallback(func(dx, dy float32) {
		oc.Orbit(dx, -dy)
	})
	win.SetScrollCallback(func(delta float32) {
		oc.Zoom(delta)
	})

	win.SetKeyDownCallback(func(keyCode uint32) {
		if digit, ok := common.DigitKey(keyCode); ok {
			if view, ok := renderer.DebugViewFromDigit(digit); ok {
				r.UpdateSettings(func(s *renderer.Settings) { s.DebugView = view })
				common.Logger().Info("debug view", "view", view.String())
			}
			return
		}

		switch keyCode {
		case common.KeyW:
			oc.Pan(0, 0, 1)
		case common.KeyS:
			oc.Pan(0, 0, -1)
		case common.KeyA:
			oc.Pan(-1, 0, 0)
		case common.KeyD:
			oc.Pan(1, 0, 0)
		case common.KeyQ:
			oc.Pan(0, 1, 0)
		case common.KeyE:
			oc.Pan(0, -1, 0)
		case common.KeyF:
			r.UpdateSettings(func(s *renderer.Settings) { s.FreezeCulling = !s.FreezeCulling })
			common.Logger().Info("freeze culling", "enabled", r.Settings().FreezeCulling)
		case common.KeyO:
			r.UpdateSettings(func(s *renderer.Settings) { s.OcclusionCulling = !s.OcclusionCulling })
			common.Logger().Info("occlusion culling", "enabled", r.Settings().OcclusionCulling)
		case common.KeyB:
			r.UpdateSettings(func(s *renderer.Settings) { s.Bloom = !s.Bloom })
			common.Logger().Info("bloom", "enabled", r.Settings().Bloom)
		case common.KeyX:
			r.UpdateSettings(func(s *renderer.Settings) { s.FXAA = !s.FXAA })
			common.Logger().Info("fxaa", "enabled", r.Settings().FXAA)
		case common.KeyT:
			r.UpdateSettings(func(s *renderer.Settings) { s.Tonemapper = (s.Tonemapper + 1) % (renderer.TonemapperReinhard + 1) })
			common.Logger().Info("tonemapper", "operator", r.Settings().Tonemapper.String())
		}
	})
}
