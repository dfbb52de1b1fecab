package rig

import (
	"errors"
	"testing"
)

func newTestBank(keep int) (*Bank, *MemoryPort) {
	w := DefaultWiring()
	port := NewMemoryPort(w.Registers(), keep)
	return NewBank(port, w), port
}

func TestDefaultWiring(t *testing.T) {
	w := DefaultWiring()
	if len(w.Vertical) != 21 {
		t.Fatalf("expected 21 cylinders, got %d", len(w.Vertical))
	}
	if w.Registers() != 6 {
		t.Fatalf("expected 6 registers, got %d", w.Registers())
	}
	last := w.Vertical[20]
	if last.Extend != (Bit{5, 0}) || last.Retract != (Bit{5, 1}) {
		t.Fatalf("unexpected wiring for cylinder 21: %+v", last)
	}
	if w.Vertical[9].Extend != (Bit{2, 2}) {
		t.Fatalf("unexpected wiring for cylinder 10: %+v", w.Vertical[9])
	}
}

func TestWiringFor(t *testing.T) {
	short := WiringFor(8)
	if len(short.Vertical) != 8 || short.Power != (Bit{5, 7}) || short.Registers() != 6 {
		t.Fatalf("expected a truncated floor layout, got %d cylinders on %d registers", len(short.Vertical), short.Registers())
	}

	long := WiringFor(30)
	if len(long.Vertical) != 30 {
		t.Fatalf("expected 30 cylinders, got %d", len(long.Vertical))
	}
	if long.Vertical[21].Extend != (Bit{5, 2}) {
		t.Fatalf("unexpected wiring for cylinder 22: %+v", long.Vertical[21])
	}
	if long.SweepLeft != (Bit{8, 2}) || long.Power != (Bit{8, 7}) || long.Registers() != 9 {
		t.Fatalf("expected auxiliary circuits on register 8, got %+v", long)
	}
	seen := make(map[Bit]bool)
	for _, c := range long.Vertical {
		for _, b := range []Bit{c.Extend, c.Retract} {
			if seen[b] {
				t.Fatalf("bit %+v wired twice", b)
			}
			seen[b] = true
		}
	}
	for _, b := range []Bit{long.SweepLeft, long.SweepRight, long.Air, long.Spare, long.Pump, long.Power} {
		if seen[b] {
			t.Fatalf("auxiliary bit %+v collides with a cylinder", b)
		}
	}
}

func TestVerticalBreakBeforeMake(t *testing.T) {
	b, port := newTestBank(16)

	if err := b.SetVertical(0, Extend); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if got := port.Register(0); got != 0x01 {
		t.Fatalf("expected extend bit only, got %08b", got)
	}

	if err := b.SetVertical(0, Retract); err != nil {
		t.Fatalf("retract: %v", err)
	}
	writes := port.Writes()
	// Last two writes: release extend, then energize retract.
	release, energize := writes[len(writes)-2], writes[len(writes)-1]
	if release.Value != 0x00 {
		t.Fatalf("expected extend released before retract, got %08b", release.Value)
	}
	if energize.Value != 0x02 {
		t.Fatalf("expected retract energized, got %08b", energize.Value)
	}
	for _, w := range writes {
		if w.Reg == 0 && w.Value&0x03 == 0x03 {
			t.Fatalf("both directions energized at once: %08b", w.Value)
		}
	}

	if err := b.SetVertical(0, Neutral); err != nil {
		t.Fatalf("neutral: %v", err)
	}
	if got := port.Register(0); got != 0 {
		t.Fatalf("expected both bits clear, got %08b", got)
	}
}

func TestVerticalIsIdempotent(t *testing.T) {
	b, port := newTestBank(0)
	for i := 0; i < 3; i++ {
		if err := b.SetVertical(6, Extend); err != nil {
			t.Fatalf("extend: %v", err)
		}
	}
	if got := port.Register(1); got != 1<<4 {
		t.Fatalf("expected register 1 = %08b, got %08b", 1<<4, got)
	}
}

func TestCylindersShareRegisters(t *testing.T) {
	b, port := newTestBank(0)
	b.SetVertical(4, Extend)
	b.SetVertical(5, Retract)
	b.SetVertical(7, Extend)
	if got := port.Register(1); got != 0b01001001 {
		t.Fatalf("unexpected register image %08b", got)
	}
	b.SetVertical(5, Neutral)
	if got := port.Register(1); got != 0b01000001 {
		t.Fatalf("neighbouring cylinders disturbed: %08b", got)
	}
}

func TestHorizontalDirections(t *testing.T) {
	b, port := newTestBank(0)
	tests := []struct {
		dir  Sweep
		mag  uint16
		want byte
	}{
		{Left, FullDrive, 1 << 2},
		{Right, FullDrive, 1 << 3},
		{Center, 0, 0},
		{Right, 0, 0},
	}
	for _, tt := range tests {
		if err := b.SetHorizontal(tt.dir, tt.mag); err != nil {
			t.Fatalf("%s: %v", tt.dir, err)
		}
		if got := port.Register(5) & 0x0C; got != tt.want {
			t.Fatalf("%s/%d: expected %08b, got %08b", tt.dir, tt.mag, tt.want, got)
		}
	}
}

func TestAuxCircuits(t *testing.T) {
	b, port := newTestBank(0)
	b.Pump(true)
	b.Power(true)
	b.Air(true)
	b.Spare(true)
	if got := port.Register(5); got != 0xF0 {
		t.Fatalf("expected upper nibble set, got %08b", got)
	}
	b.Pump(false)
	if got := port.Register(5); got != 0xB0 {
		t.Fatalf("expected pump bit clear, got %08b", got)
	}
}

func TestWriteFailureKeepsImage(t *testing.T) {
	b, port := newTestBank(0)
	boom := errors.New("bus fault")
	port.FailOn = func(reg int) error { return boom }

	err := b.SetVertical(0, Extend)
	if !errors.Is(err, ErrPort) {
		t.Fatalf("expected ErrPort, got %v", err)
	}
	if img := b.Image(); img[0] != 0 {
		t.Fatalf("image changed despite failed write: %08b", img[0])
	}
}

func TestAllStop(t *testing.T) {
	b, port := newTestBank(0)
	for i := 0; i < b.Positions(); i++ {
		b.SetVertical(i, Extend)
	}
	b.SetHorizontal(Left, FullDrive)
	b.Power(true)
	if err := b.AllStop(); err != nil {
		t.Fatalf("all stop: %v", err)
	}
	for reg := 0; reg < 5; reg++ {
		if got := port.Register(reg); got != 0 {
			t.Fatalf("register %d not cleared: %08b", reg, got)
		}
	}
	if got := port.Register(5); got != 1<<7 {
		t.Fatalf("expected only power left on, got %08b", got)
	}
}
