package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pieqf/wavesim/internal/controller"
	"github.com/pieqf/wavesim/internal/events"
)

const quakeScript = `
# wake, drop a pebble, then a quake while rippling
0 wake
10 C0M50D100
# only the vertical channel is read while rippling
20 v C099M020D00000000
`

func TestParseScript(t *testing.T) {
	steps, err := ParseScript(strings.NewReader(quakeScript + "5 v C1M12D0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(steps))
	}
	if steps[0].Wake == nil || !*steps[0].Wake {
		t.Fatalf("expected wake first, got %+v", steps[0])
	}
	if steps[1].Tick != 5 || steps[1].Origin != events.Vertical {
		t.Fatalf("expected steps sorted by tick, got %+v", steps[1])
	}
	if steps[3].Origin != events.Vertical || steps[3].Line != "C099M020D00000000" {
		t.Fatalf("unexpected quake step %+v", steps[3])
	}
}

func TestParseScriptDefaultsGlobalToHorizontal(t *testing.T) {
	steps, err := ParseScript(strings.NewReader("3 C99M5D0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if steps[0].Origin != events.Horizontal {
		t.Fatalf("expected channel 99 on the horizontal channel")
	}
}

func TestParseScriptErrors(t *testing.T) {
	for _, bad := range []string{
		"x C0M1D1",
		"1 C0M1",
		"1 q C0M1D1",
		"1",
		"1 v C0M1D1 extra",
	} {
		if _, err := ParseScript(strings.NewReader(bad)); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func replayOptions(ticks uint64) Options {
	cfg := controller.DefaultConfig()
	cfg.SettleDelay = 0
	return Options{Config: cfg, Interval: 5 * time.Millisecond, Ticks: ticks}
}

func TestReplay(t *testing.T) {
	steps, err := ParseScript(strings.NewReader(quakeScript))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr, err := Replay(replayOptions(200), steps)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(tr.Frames) != 200 {
		t.Fatalf("expected 200 frames, got %d", len(tr.Frames))
	}
	if tr.Frames[0].Mode != controller.Breathe {
		t.Fatalf("expected breathing after wake, got %s", tr.Frames[0].Mode)
	}
	if f := tr.Frames[10]; f.Mode != controller.Ripple || f.Vertical[19] != 5.0 {
		t.Fatalf("expected pebble at tick 11, got mode %s value %g", f.Mode, f.Vertical[19])
	}
	if f := tr.Frames[20]; f.Mode != controller.Active || f.Horizontal != 20 {
		t.Fatalf("expected quake at tick 21, got mode %s h=%g", f.Mode, f.Horizontal)
	}

	want := []controller.Mode{controller.Breathe, controller.Ripple, controller.Active}
	if len(tr.Transitions) < len(want) {
		t.Fatalf("expected at least %d transitions, got %+v", len(want), tr.Transitions)
	}
	for i, m := range want {
		if tr.Transitions[i].To != m {
			t.Fatalf("transition %d: expected to %s, got %+v", i, m, tr.Transitions[i])
		}
	}
	if tr.ModeTicks()[controller.Active] == 0 {
		t.Fatalf("expected active ticks")
	}
}

func TestReplayAsleep(t *testing.T) {
	steps, _ := ParseScript(strings.NewReader("3 C0M50D0\n"))
	tr, err := Replay(replayOptions(10), steps)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := tr.ModeTicks()[controller.Sleep]; got != 10 {
		t.Fatalf("expected to sleep through the script, slept %d ticks", got)
	}
}

func TestRender(t *testing.T) {
	steps, _ := ParseScript(strings.NewReader(quakeScript))
	tr, err := Replay(replayOptions(60), steps)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	dir := t.TempDir()
	files, err := tr.Render(dir, 4, 3)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 plots, got %v", files)
	}
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil || fi.Size() == 0 {
			t.Fatalf("expected non-empty %s (%v)", filepath.Base(f), err)
		}
	}
}

func TestHeatmapNeedsFrames(t *testing.T) {
	tr := &Trace{}
	if _, err := tr.Heatmap(); err == nil {
		t.Fatalf("expected error for an empty trace")
	}
	if _, err := tr.Energy(); err == nil {
		t.Fatalf("expected error for an empty trace")
	}
}
