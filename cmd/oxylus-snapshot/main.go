// Command oxylus-snapshot renders the demo scene offscreen and writes the last frame to a
// WebP file.
//
// By default it renders on a headless WebGPU adapter. With -memory it records the frame
// on the in-memory device instead, which needs no GPU and produces the cleared output.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxylus-go/cmd/internal/demo"
	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine"
	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu/wgpudevice"
	"github.com/Carmen-Shannon/oxylus-go/engine/renderer"
	"github.com/HugoSmits86/nativewebp"
	"github.com/go-gl/mathgl/mgl32"
)

type config struct {
	out       string
	width     uint32
	height    uint32
	frames    int
	grid      int
	debugView int
	memory    bool
	fallback  bool
}

func main() {
	var cfg config
	var width, height uint
	flag.StringVar(&cfg.out, "out", "snapshot.webp", "output WebP path")
	flag.UintVar(&width, "width", 1280, "output width")
	flag.UintVar(&height, "height", 720, "output height")
	flag.IntVar(&cfg.frames, "frames", 60, "frames to render before capturing, lets auto exposure settle")
	flag.IntVar(&cfg.grid, "grid", 16, "cubes along each side of the grid")
	flag.IntVar(&cfg.debugView, "view", 0, "debug view digit, 0 for the lit image")
	flag.BoolVar(&cfg.memory, "memory", false, "record on the in-memory device instead of a GPU")
	flag.BoolVar(&cfg.fallback, "fallback", false, "request the software fallback adapter")
	flag.Parse()
	cfg.width, cfg.height = uint32(width), uint32(height)

	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(cfg); err != nil {
		common.Logger().Error("snapshot failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	view, ok := renderer.DebugViewFromDigit(cfg.debugView)
	if !ok {
		return fmt.Errorf("unknown debug view %d", cfg.debugView)
	}

	var dev gpu.Device
	if cfg.memory {
		dev = gpu.NewMemoryDevice()
	} else {
		wdev, err := wgpudevice.New(wgpudevice.WithForceFallbackAdapter(cfg.fallback))
		if err != nil {
			return err
		}
		dev = wdev
	}
	defer dev.Release()

	r := renderer.NewRenderer(gpu.NewContext(dev))
	defer r.Release()
	if err := r.RegisterPipelines(); err != nil {
		return err
	}
	r.UpdateSettings(func(s *renderer.Settings) { s.DebugView = view })

	opts := demo.DefaultOptions()
	opts.Grid = cfg.grid
	sc := demo.Build(r, opts)
	sc.Follow(camera.NewOrbitController(
		camera.WithRadius(float32(cfg.grid)*4),
		camera.WithAngles(0.5, 0.4),
		camera.WithTarget(mgl32.Vec3{0, 1, 0}),
	))

	eng := engine.NewEngine(r,
		engine.WithExtent(cfg.width, cfg.height),
		engine.WithFormat(gpu.FormatRGBA8Unorm),
		engine.WithScene(0, sc.Scene),
	)
	defer eng.Release()

	var pixels []byte
	var spec gpu.ImageSpec
	capture := func(img *gpu.Image) error {
		data, err := dev.ReadImage(img)
		if err != nil {
			return err
		}
		pixels, spec = data, img.Spec
		return nil
	}

	for range max(cfg.frames, 1) {
		if err := eng.RenderFrame(1.0/60, capture); err != nil {
			return err
		}
	}
	if pixels == nil {
		return errors.New("no frame was rendered")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.out), 0755); err != nil {
		return err
	}
	f, err := os.Create(cfg.out)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeWebP(f, spec, pixels); err != nil {
		return err
	}
	common.Logger().Info("snapshot written", "path", cfg.out, "width", spec.Extent.Width, "height", spec.Extent.Height, "frames", cfg.frames)
	return nil
}

// writeWebP encodes tightly packed 8-bit texels as a lossless WebP.
//
// Parameters:
//   - w: the destination
//   - spec: the image the texels were read from
//   - data: the texels, row-major without padding
//
// Returns:
//   - error: an error if the format is not 8-bit RGBA or BGRA, or encoding fails
func writeWebP(w io.Writer, spec gpu.ImageSpec, data []byte) error {
	img, err := toNRGBA(spec, data)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

func toNRGBA(spec gpu.ImageSpec, data []byte) (*image.NRGBA, error) {
	width, height := int(spec.Extent.Width), int(spec.Extent.Height)
	if len(data) != width*height*4 {
		return nil, fmt.Errorf("got %d bytes for a %dx%d image", len(data), width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	switch spec.Format {
	case gpu.FormatRGBA8Unorm, gpu.FormatRGBA8Srgb:
		copy(img.Pix, data)
	case gpu.FormatBGRA8Unorm, gpu.FormatBGRA8Srgb:
		for i := 0; i < len(data); i += 4 {
			img.Pix[i+0] = data[i+2]
			img.Pix[i+1] = data[i+1]
			img.Pix[i+2] = data[i+0]
			img.Pix[i+3] = data[i+3]
		}
	default:
		return nil, fmt.Errorf("cannot encode %s as webp", spec.Format)
	}
	return img, nil
}
