package profiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxylus-go/common"
)

func TestProfiler_Tick(t *testing.T) {
	orig := common.Logger()
	t.Cleanup(func() { common.SetLogger(orig) })
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	now := time.Unix(0, 0)
	p := NewProfiler(WithInterval(time.Second), WithClock(func() time.Time { return now }))

	frame := FrameStats{Passes: 10, Transients: 4, CPUTime: 2 * time.Millisecond}
	for k := range 59 {
		now = now.Add(16 * time.Millisecond)
		if p.Tick(frame) {
			t.Fatalf("Tick() logged after %d frames, before the interval elapsed", k+1)
		}
	}
	now = time.Unix(1, 0)
	if !p.Tick(frame) {
		t.Fatal("Tick() = false once the interval elapsed")
	}

	out := buf.String()
	for _, want := range []string{"frame stats", "fps=60", "passes_per_frame=10", "cpu_per_frame=2ms", "transients=4"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output = %q, want it to contain %q", out, want)
		}
	}

	buf.Reset()
	now = now.Add(500 * time.Millisecond)
	if p.Tick(frame) || buf.Len() != 0 {
		t.Error("Tick() logged again before the next interval")
	}
}

func TestWithInterval_IgnoresNonPositive(t *testing.T) {
	p := NewProfiler(WithInterval(0))
	if p.updateInterval != time.Second {
		t.Errorf("updateInterval = %v, want 1s", p.updateInterval)
	}
}
