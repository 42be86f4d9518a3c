package gpu

import (
	"bytes"
	"testing"
)

func TestMemoryDevice_CopyAndFill(t *testing.T) {
	dev := NewMemoryDevice()
	src, _ := dev.CreateBuffer("src", 8, BufferUsageTransferSrc)
	dst, _ := dev.CreateBuffer("dst", 16, BufferUsageTransferDst)

	if err := dev.WriteBuffer(src, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("WriteBuffer() error = %v", err)
	}

	cmd, _ := dev.NewCommandBuffer("test")
	cmd.FillBuffer(dst, 0, 16, 0xFFFFFFFF)
	cmd.CopyBuffer(src, 4, dst, 8, 4)

	// Nothing runs before submit.
	got, _ := dev.ReadBuffer(dst)
	if !bytes.Equal(got, make([]byte, 16)) {
		t.Fatalf("ReadBuffer() before submit = %v, want zeros", got)
	}

	if err := dev.Submit(cmd); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	got, _ = dev.ReadBuffer(dst)
	want := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 5, 6, 7, 8, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBuffer() = %v, want %v", got, want)
	}
}

func TestMemoryDevice_CopyOutOfRange(t *testing.T) {
	dev := NewMemoryDevice()
	src, _ := dev.CreateBuffer("src", 4, BufferUsageTransferSrc)
	dst, _ := dev.CreateBuffer("dst", 4, BufferUsageTransferDst)

	cmd, _ := dev.NewCommandBuffer("test")
	cmd.CopyBuffer(src, 0, dst, 2, 4)
	if err := dev.Submit(cmd); err == nil {
		t.Error("Submit() error = nil, want out-of-range copy error")
	}
}

func TestMemoryDevice_ClearAndDrawTracking(t *testing.T) {
	dev := NewMemoryDevice()
	img, err := dev.CreateImage("color", ImageSpec{Format: FormatRGBA8Unorm, Extent: Extent2D(2, 2), MipLevels: 1})
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}

	cmd, _ := dev.NewCommandBuffer("test")
	cmd.ClearImage(img, ClearColor(1, 0, 0, 1))
	if err := dev.Submit(cmd); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	texels, _ := dev.ReadImage(img)
	want := bytes.Repeat([]byte{255, 0, 0, 255}, 4)
	if !bytes.Equal(texels, want) {
		t.Errorf("ReadImage() = %v, want %v", texels, want)
	}

	cmd, _ = dev.NewCommandBuffer("draw")
	cmd.BeginRendering(RenderingInfo{Color: []Attachment{{Image: img}}, Extent: img.Spec.Extent})
	cmd.BindGraphicsPipeline("sprites")
	cmd.Draw(6, 1, 0, 0)
	cmd.EndRendering()
	if err := dev.Submit(cmd); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	state, _ := dev.ImageState(img)
	if len(state.Writers) != 1 || state.Writers[0] != "sprites" {
		t.Errorf("ImageState().Writers = %v, want [sprites]", state.Writers)
	}
}

func TestNeedsBarrier(t *testing.T) {
	tests := []struct {
		name     string
		src, dst Access
		want     bool
	}{
		{"first read", AccessNone, AccessComputeRead, false},
		{"first write", AccessNone, AccessTransferWrite, true},
		{"read after read", AccessComputeRead, AccessComputeRead, false},
		{"read to sampled", AccessComputeRead, AccessFragmentSampled, true},
		{"write after write", AccessComputeWrite, AccessComputeWrite, true},
		{"read after write", AccessTransferWrite, AccessComputeRead, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsBarrier(tt.src, tt.dst); got != tt.want {
				t.Errorf("NeedsBarrier(%v, %v) = %v, want %v", tt.src, tt.dst, got, tt.want)
			}
		})
	}
}
