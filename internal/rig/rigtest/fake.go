// Package rigtest provides an in-memory rig.Actuators for tests.
package rigtest

import (
	"sync"

	"github.com/pieqf/wavesim/internal/rig"
)

// Fake records the last command sent to every actuator.
type Fake struct {
	mu sync.Mutex

	Vertical  []rig.Lift
	Sweep     rig.Sweep
	Magnitude uint16
	PumpOn    bool
	PowerOn   bool
	AirOn     bool
	SpareOn   bool

	Calls int
	Fail  error // returned by every call while non-nil
}

// New creates a fake with n vertical positions.
func New(n int) *Fake {
	return &Fake{Vertical: make([]rig.Lift, n)}
}

func (f *Fake) call() error {
	f.Calls++
	return f.Fail
}

func (f *Fake) SetVertical(position int, cmd rig.Lift) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(); err != nil {
		return err
	}
	f.Vertical[position] = cmd
	return nil
}

func (f *Fake) SetHorizontal(dir rig.Sweep, magnitude uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(); err != nil {
		return err
	}
	f.Sweep, f.Magnitude = dir, magnitude
	return nil
}

func (f *Fake) Pump(on bool) error  { return f.toggle(&f.PumpOn, on) }
func (f *Fake) Power(on bool) error { return f.toggle(&f.PowerOn, on) }
func (f *Fake) Air(on bool) error   { return f.toggle(&f.AirOn, on) }
func (f *Fake) Spare(on bool) error { return f.toggle(&f.SpareOn, on) }

func (f *Fake) toggle(field *bool, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(); err != nil {
		return err
	}
	*field = on
	return nil
}

// Lifts returns a copy of the vertical commands.
func (f *Fake) Lifts() []rig.Lift {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rig.Lift, len(f.Vertical))
	copy(out, f.Vertical)
	return out
}
