package rendergraph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
)

func TestCompile_CullsUnreachablePasses(t *testing.T) {
	g := NewGraph("test")
	final := g.Clear(g.DeclareImage("final", colorSpec()), gpu.ClearColor(0, 0, 0, 1))
	unused := g.Clear(g.DeclareImage("unused", colorSpec()), gpu.ClearColor(1, 0, 0, 1))
	g.AddPass("dead", nil, unused.As(gpu.AccessColorWrite))
	final = g.AddPass("draw", nil, final.As(gpu.AccessColorRW))[0]

	plan, err := g.Compile(final)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := []string{"clear final", "draw"}
	if got := plan.PassNames(); !slices.Equal(got, want) {
		t.Errorf("PassNames() = %v, want %v", got, want)
	}
	if _, ok := plan.Lifetime("unused"); ok {
		t.Error("Lifetime(unused) reported a span for a culled resource")
	}
}

func TestCompile_PersistentWritesAreRoots(t *testing.T) {
	dev := gpu.NewMemoryDevice()
	buf, _ := dev.CreateBuffer("exposure", 16, gpu.BufferUsageStorage)

	g := NewGraph("test")
	exposure := g.AcquireBuffer("exposure", buf, gpu.AccessNone)
	g.AddPass("histogram average", nil, exposure.As(gpu.AccessComputeRW))
	final := g.Clear(g.DeclareImage("final", colorSpec()), gpu.ClearColor(0, 0, 0, 1))

	plan, err := g.Compile(final)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !plan.HasPass("histogram average") {
		t.Errorf("PassNames() = %v, want the persistent writer kept", plan.PassNames())
	}
	if got, _ := plan.FinalAccess("exposure"); got != gpu.AccessComputeRW {
		t.Errorf("FinalAccess(exposure) = %v, want %v", got, gpu.AccessComputeRW)
	}
}

func TestCompile_PersistentReadsAreCulled(t *testing.T) {
	dev := gpu.NewMemoryDevice()
	buf, _ := dev.CreateBuffer("transforms", 64, gpu.BufferUsageStorage)

	g := NewGraph("test")
	transforms := g.AcquireBuffer("transforms", buf, gpu.AccessComputeRead)
	g.AddPass("reader", nil, transforms.As(gpu.AccessComputeRead))
	final := g.Clear(g.DeclareImage("final", colorSpec()), gpu.ClearValue{})

	plan, err := g.Compile(final)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if plan.HasPass("reader") {
		t.Error("HasPass(reader) = true, want a pure reader of a persistent resource culled")
	}
	if got, _ := plan.FinalAccess("transforms"); got != gpu.AccessComputeRead {
		t.Errorf("FinalAccess(transforms) = %v, want the acquire access carried over", got)
	}
}

func TestCompile_Barriers(t *testing.T) {
	g := NewGraph("test")
	buf := g.DeclareBuffer("indices", 64, gpu.BufferUsageStorage)
	buf = g.AddPass("write", nil, buf.As(gpu.AccessComputeWrite))[0]
	buf = g.AddPass("read a", nil, buf.As(gpu.AccessComputeRead))[0]
	buf = g.AddPass("read b", nil, buf.As(gpu.AccessComputeRead))[0]
	buf = g.AddPass("index", nil, buf.As(gpu.AccessIndexRead))[0]

	plan, err := g.Compile(buf)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	tests := []struct {
		pass int
		want int
	}{
		{0, 1}, // none -> write
		{1, 1}, // write -> read
		{2, 0}, // read -> read
		{3, 1}, // compute read -> index read
	}
	for _, tt := range tests {
		if got := len(plan.Barriers(tt.pass)); got != tt.want {
			t.Errorf("len(Barriers(%d)) = %d, want %d", tt.pass, got, tt.want)
		}
	}
	lt, ok := plan.Lifetime("indices")
	if !ok || lt.First != 0 || lt.Last != 3 {
		t.Errorf("Lifetime(indices) = %+v, %v, want {0 3}, true", lt, ok)
	}
}

func TestCompile_BadOutput(t *testing.T) {
	g := NewGraph("test")
	if _, err := g.Compile(Value{}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Compile(Value{}) error = %v, want ErrInvalidValue", err)
	}
}

func TestPlan_KindMismatch(t *testing.T) {
	g := NewGraph("test")
	b := g.Clear(g.DeclareBuffer("b", 4, gpu.BufferUsageStorage), gpu.ClearValue{})
	plan, err := g.Compile(b)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if _, err := plan.Image(b); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Image(buffer) error = %v, want ErrKindMismatch", err)
	}
}

func TestPlan_ExecuteUploadAndClear(t *testing.T) {
	dev := gpu.NewMemoryDevice()
	ctx := gpu.NewContext(dev)
	dst := ctx.AllocateBufferSuper("dst", gpu.BufferUsageStorage, 16)

	g := NewGraph("test")
	v := g.AcquireBuffer("dst", dst, gpu.AccessNone)
	v = g.Clear(v, gpu.ClearUint(0xAAAAAAAA))
	v = g.UploadStaging("dst", []byte{1, 2, 3, 4, 5, 6, 7, 8}, v)

	plan, err := g.Compile(v)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := []string{"clear dst", "upload dst"}
	if got := plan.PassNames(); !slices.Equal(got, want) {
		t.Fatalf("PassNames() = %v, want %v", got, want)
	}
	if err := plan.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, _ := dev.ReadBuffer(dst)
	wantBytes := []byte{1, 2, 3, 4, 5, 6, 7, 8, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	if !bytes.Equal(got, wantBytes) {
		t.Errorf("ReadBuffer() = %v, want %v", got, wantBytes)
	}
	if err := plan.Execute(ctx); err == nil {
		t.Error("second Execute() error = nil, want already-executed error")
	}
}

func TestPlan_ExecuteScratchVisibleToPass(t *testing.T) {
	dev := gpu.NewMemoryDevice()
	ctx := gpu.NewContext(dev)
	out := ctx.AllocateBufferSuper("out", gpu.BufferUsageStorage, 12)

	args := make([]byte, 12)
	binary.LittleEndian.PutUint32(args[0:], 0)
	binary.LittleEndian.PutUint32(args[4:], 1)
	binary.LittleEndian.PutUint32(args[8:], 1)

	g := NewGraph("test")
	scratch := g.Scratch("args", args)
	dst := g.AcquireBuffer("out", out, gpu.AccessNone)
	res := g.AddPass("copy", func(pc *PassContext) {
		pc.Cmd.CopyBuffer(pc.Buffer(0), 0, pc.Buffer(1), 0, 12)
	}, scratch.As(gpu.AccessTransferRead), dst.As(gpu.AccessTransferWrite))

	plan, err := g.Compile(res[1])
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if err := plan.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	got, _ := dev.ReadBuffer(out)
	if !bytes.Equal(got, args) {
		t.Errorf("ReadBuffer() = %v, want %v", got, args)
	}
}

func TestPlan_ExecuteInfersAttachments(t *testing.T) {
	dev := gpu.NewMemoryDevice()
	ctx := gpu.NewContext(dev)

	depthSpec := gpu.ImageSpec{Format: gpu.FormatDepth32Float, Extent: gpu.Extent2D(4, 4), MipLevels: 1, Usage: gpu.ImageUsageDepthAttachment}

	g := NewGraph("test")
	color := g.Clear(g.DeclareImage("color", colorSpec()), gpu.ClearColor(0, 0, 0, 1))
	depth := g.Clear(g.DeclareImage("depth", depthSpec), gpu.ClearDepth(0))
	var extent gpu.Extent
	out := g.AddPass("draw", func(pc *PassContext) {
		extent = pc.Extent
		pc.Cmd.BindGraphicsPipeline("sprite")
		pc.Cmd.Draw(6, 1, 0, 0)
	}, color.As(gpu.AccessColorRW), depth.As(gpu.AccessDepthStencilRW))

	plan, err := g.Compile(out[0])
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if err := plan.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if extent != gpu.Extent2D(4, 4) {
		t.Errorf("PassContext.Extent = %v, want 4x4x1", extent)
	}

	var ops []gpu.CommandOp
	for _, c := range dev.Commands() {
		if c.Op != gpu.OpBarrier {
			ops = append(ops, c.Op)
		}
	}
	want := []gpu.CommandOp{gpu.OpClearImage, gpu.OpClearImage, gpu.OpBeginRendering, gpu.OpDraw, gpu.OpEndRendering}
	if !slices.Equal(ops, want) {
		t.Errorf("command ops = %v, want %v", ops, want)
	}

	img, err := plan.Image(out[0])
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	state, _ := dev.ImageState(img)
	if !slices.Equal(state.Writers, []string{"sprite"}) {
		t.Errorf("ImageState().Writers = %v, want [sprite]", state.Writers)
	}
}

func TestPlan_OnExecuted(t *testing.T) {
	tests := []struct {
		name      string
		size      uint64
		wantErr   bool
		wantCalls []string
	}{
		{"submitted", 12, false, []string{"first", "second"}},
		{"submit fails", 64, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gpu.NewMemoryDevice()
			ctx := gpu.NewContext(dev)
			out, _ := dev.CreateBuffer("out", 12, gpu.BufferUsageStorage)

			g := NewGraph("test")
			scratch := g.Scratch("args", make([]byte, 12))
			dst := g.AcquireBuffer("out", out, gpu.AccessComputeRead)
			res := g.AddPass("copy", func(pc *PassContext) {
				pc.Cmd.CopyBuffer(pc.Buffer(0), 0, pc.Buffer(1), 0, tt.size)
			}, scratch.As(gpu.AccessTransferRead), dst.As(gpu.AccessTransferWrite))

			var calls []string
			var final gpu.Access
			g.OnExecuted(func(p *Plan) {
				calls = append(calls, "first")
				final, _ = p.FinalAccess("out")
			})
			g.OnExecuted(func(*Plan) { calls = append(calls, "second") })

			plan, err := g.Compile(res[1])
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if err := plan.Execute(ctx); (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(calls, tt.wantCalls) {
				t.Errorf("OnExecuted calls = %v, want %v", calls, tt.wantCalls)
			}
			if !tt.wantErr && final != gpu.AccessTransferWrite {
				t.Errorf("FinalAccess(out) in callback = %v, want %v", final, gpu.AccessTransferWrite)
			}
		})
	}
}
