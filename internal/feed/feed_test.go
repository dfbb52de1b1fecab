package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/pieqf/wavesim/internal/events"
)

func TestDeterministic(t *testing.T) {
	a, _ := NewGenerator(DefaultConfig())
	b, _ := NewGenerator(DefaultConfig())
	for i := 0; i < 200; i++ {
		ea, eb := a.Next(), b.Next()
		if ea != eb {
			t.Fatalf("event %d differs: %v vs %v", i, ea, eb)
		}
	}
}

func TestEventsInRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuakeChance = 0.1
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	quakes, busy := 0, 0
	for i := 0; i < 2000; i++ {
		ev := g.Next()
		if ev.IsGlobal() {
			quakes++
			if ev.Origin != events.Horizontal || ev.Magnitude != cfg.QuakeMag {
				t.Fatalf("unexpected quake %+v", ev)
			}
			continue
		}
		if ev.Origin != events.Vertical || ev.Channel < 0 || ev.Channel > 3 {
			t.Fatalf("unexpected directional event %+v", ev)
		}
		if ev.Magnitude < 0 || ev.Magnitude > cfg.MaxMagnitude {
			t.Fatalf("magnitude %d out of range", ev.Magnitude)
		}
		if ev.Duration < 50 || ev.Duration >= 500 {
			t.Fatalf("duration %d out of range", ev.Duration)
		}
		if ev.Magnitude >= 10 {
			busy++
		}
	}
	if quakes < 100 || quakes > 300 {
		t.Fatalf("expected about 200 quakes, got %d", quakes)
	}
	if busy == 0 {
		t.Fatalf("expected some events above the breathe gate")
	}
}

func TestEmitRoutesByOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuakeChance = 0.5
	g, _ := NewGenerator(cfg)
	var vert, horiz strings.Builder
	for i := 0; i < 50; i++ {
		if _, err := g.Emit(&vert, &horiz); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(horiz.String()), "\n") {
		ev, err := events.Parse(line)
		if err != nil || !ev.IsGlobal() {
			t.Fatalf("unexpected horizontal line %q (%v)", line, err)
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(vert.String()), "\n") {
		if len(line) != len("C0M000D00000000") {
			t.Fatalf("expected padded trigger line, got %q", line)
		}
		if _, err := events.Parse(line); err != nil {
			t.Fatalf("unparseable vertical line %q: %v", line, err)
		}
	}
}

func TestRunStops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Period = time.Millisecond
	g, _ := NewGenerator(cfg)
	q := &events.Queue{}
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- g.Run(stop, q, q) }()

	deadline := time.Now().Add(5 * time.Second)
	for q.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(stop)
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if q.Len() == 0 {
		t.Fatalf("expected emitted lines")
	}
}

func TestRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = []int{0, 99}
	if _, err := NewGenerator(cfg); err == nil {
		t.Fatalf("expected error for channel 99 in the directional set")
	}
	cfg = DefaultConfig()
	cfg.Channels = nil
	if _, err := NewGenerator(cfg); err == nil {
		t.Fatalf("expected error for no channels")
	}
}
