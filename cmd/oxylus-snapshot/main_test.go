package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
)

func TestToNRGBA(t *testing.T) {
	data := []byte{10, 20, 30, 255, 40, 50, 60, 128}
	tests := []struct {
		name   string
		format gpu.Format
		want   []byte
	}{
		{"rgba", gpu.FormatRGBA8Unorm, []byte{10, 20, 30, 255, 40, 50, 60, 128}},
		{"bgra", gpu.FormatBGRA8Unorm, []byte{30, 20, 10, 255, 60, 50, 40, 128}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := gpu.ImageSpec{Format: tt.format, Extent: gpu.Extent2D(2, 1)}
			img, err := toNRGBA(spec, data)
			if err != nil {
				t.Fatalf("toNRGBA() error = %v", err)
			}
			if !bytes.Equal(img.Pix, tt.want) {
				t.Errorf("toNRGBA() pixels = %v, want %v", img.Pix, tt.want)
			}
		})
	}
}

func TestToNRGBA_Rejects(t *testing.T) {
	tests := []struct {
		name string
		spec gpu.ImageSpec
		data []byte
	}{
		{"float format", gpu.ImageSpec{Format: gpu.FormatRGBA16Float, Extent: gpu.Extent2D(1, 1)}, make([]byte, 4)},
		{"short data", gpu.ImageSpec{Format: gpu.FormatRGBA8Unorm, Extent: gpu.Extent2D(2, 2)}, make([]byte, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := toNRGBA(tt.spec, tt.data); err == nil {
				t.Error("toNRGBA() error = nil, want an error")
			}
		})
	}
}

func TestRun_Memory(t *testing.T) {
	tests := []struct {
		name string
		view int
	}{
		{"lit", 0},
		{"debug view", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "shots", "frame.webp")
			cfg := config{out: out, width: 48, height: 32, frames: 2, grid: 2, debugView: tt.view, memory: true}
			if err := run(cfg); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
				t.Errorf("output does not start with a WebP header: %q", data[:min(len(data), 12)])
			}
		})
	}
}

func TestRun_UnknownView(t *testing.T) {
	cfg := config{out: filepath.Join(t.TempDir(), "x.webp"), width: 8, height: 8, frames: 1, grid: 1, debugView: 42, memory: true}
	if err := run(cfg); err == nil {
		t.Error("run() error = nil, want an error for an unknown view")
	}
}
