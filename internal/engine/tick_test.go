package engine

import (
	"testing"
	"time"
)

func TestRunStopsAfterStop(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond

	var seen []uint64
	e.OnTick = func(tick uint64) {
		seen = append(seen, tick)
		if tick == 5 {
			e.Stop()
		}
	}

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.Stop()
		t.Fatalf("engine did not stop")
	}
	<-e.Done()

	if e.Tick != 5 {
		t.Fatalf("expected 5 ticks, got %d", e.Tick)
	}
	for i, tick := range seen {
		if tick != uint64(i+1) {
			t.Fatalf("expected consecutive ticks, got %v", seen)
		}
	}
}

func TestReportCadence(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Microsecond
	e.ReportEvery = 3

	var reports []uint64
	e.OnReport = func(tick uint64, s Stats) {
		reports = append(reports, tick)
		if s.Ticks != tick {
			t.Errorf("expected stats for tick %d, got %d", tick, s.Ticks)
		}
	}
	e.OnTick = func(tick uint64) {
		if tick == 10 {
			e.Stop()
		}
	}
	e.Run()

	if len(reports) != 3 || reports[0] != 3 || reports[2] != 9 {
		t.Fatalf("expected reports at 3, 6, 9, got %v", reports)
	}
}

func TestOverrunsCounted(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	e.OnTick = func(tick uint64) {
		time.Sleep(3 * time.Millisecond)
		if tick == 3 {
			e.Stop()
		}
	}
	e.Run()

	s := e.Stats()
	if s.Overruns != 3 {
		t.Fatalf("expected 3 overruns, got %d", s.Overruns)
	}
	if s.MaxWork < 3*time.Millisecond {
		t.Fatalf("expected max work of at least 3ms, got %s", s.MaxWork)
	}
}

func TestRigTime(t *testing.T) {
	if got := RigTime(200, 5*time.Millisecond); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
}
