package gpu

import (
	"testing"
)

func TestContext_TransientRing(t *testing.T) {
	dev := NewMemoryDevice()
	ctx := NewContext(dev)

	ctx.AllocTransientBuffer("frame0", BufferUsageStorage, 64)
	ctx.NextFrame()
	ctx.AllocTransientBuffer("frame1", BufferUsageStorage, 64)

	if got := ctx.TransientCount(); got != 2 {
		t.Fatalf("TransientCount() = %d, want 2 while both frames are in flight", got)
	}

	// Frame 2 reuses frame 0's slot.
	ctx.NextFrame()
	if got := ctx.TransientCount(); got != 1 {
		t.Errorf("TransientCount() = %d, want 1 after frame 0 was reclaimed", got)
	}
	if got := dev.LiveBuffers(); got != 1 {
		t.Errorf("LiveBuffers() = %d, want 1", got)
	}
}

func TestContext_WaitCount(t *testing.T) {
	dev := NewMemoryDevice()
	ctx := NewContext(dev)

	if got := ctx.WaitCount(); got != 0 {
		t.Fatalf("WaitCount() = %d, want 0", got)
	}
	ctx.Wait()
	ctx.Wait()
	if got := ctx.WaitCount(); got != 2 {
		t.Errorf("WaitCount() = %d, want 2", got)
	}
	if got := dev.Waits(); got != 2 {
		t.Errorf("device Waits() = %d, want 2", got)
	}
}

func TestContext_CreateImageAssertions(t *testing.T) {
	ctx := NewContext(NewMemoryDevice())

	tests := []struct {
		name string
		spec ImageSpec
	}{
		{"zero width", ImageSpec{Format: FormatRGBA8Unorm, Extent: Extent{0, 4, 1}, MipLevels: 1}},
		{"zero depth", ImageSpec{Format: FormatRGBA8Unorm, Extent: Extent{4, 4, 0}, MipLevels: 1}},
		{"too many mips", ImageSpec{Format: FormatRGBA8Unorm, Extent: Extent2D(8192, 8192), MipLevels: 14}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("CreateImage(%s) did not panic", tt.name)
				}
			}()
			ctx.CreateImage(tt.name, tt.spec)
		})
	}
}

func TestContext_AllocateBufferSuperLimit(t *testing.T) {
	ctx := NewContext(NewMemoryDevice())
	defer func() {
		if recover() == nil {
			t.Error("AllocateBufferSuper() beyond MaxBufferSize did not panic")
		}
	}()
	ctx.AllocateBufferSuper("huge", BufferUsageStorage, MaxBufferSize+1)
}

func TestContext_CommitDescriptorSet(t *testing.T) {
	ctx := NewContext(NewMemoryDevice())
	ds := NewDescriptorSet("bindless")

	if ctx.CommitDescriptorSet(ds) {
		t.Error("first commit of the frame reported a repeat")
	}
	if !ctx.CommitDescriptorSet(ds) {
		t.Error("second commit of the frame did not report a repeat")
	}
	ctx.NextFrame()
	if ctx.CommitDescriptorSet(ds) {
		t.Error("first commit of the next frame reported a repeat")
	}
}
