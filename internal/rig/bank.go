package rig

import (
	"fmt"
	"sync"
)

// Port is a bank of 8-bit digital output registers.
type Port interface {
	WriteRegister(reg int, value byte) error
}

// Bit addresses one digital output.
type Bit struct {
	Reg int
	Bit uint
}

// Cylinder wires one double-acting vertical cylinder.
type Cylinder struct {
	Extend  Bit
	Retract Bit
}

// Wiring maps logical actuators onto output bits.
type Wiring struct {
	Vertical   []Cylinder
	SweepLeft  Bit
	SweepRight Bit
	Air        Bit
	Spare      Bit
	Pump       Bit
	Power      Bit
}

// DefaultWiring is the floor as built: 21 cylinders packed four to a
// register, with the auxiliary circuits on the upper bits of register 5.
func DefaultWiring() Wiring {
	w := Wiring{
		SweepLeft:  Bit{5, 2},
		SweepRight: Bit{5, 3},
		Air:        Bit{5, 4},
		Spare:      Bit{5, 5},
		Pump:       Bit{5, 6},
		Power:      Bit{5, 7},
	}
	for i := 0; i < 21; i++ {
		reg, slot := i/4, uint(i%4)
		w.Vertical = append(w.Vertical, Cylinder{
			Extend:  Bit{reg, 2 * slot},
			Retract: Bit{reg, 2*slot + 1},
		})
	}
	return w
}

// WiringFor returns the default layout with n cylinders. Arrays up to the
// built floor reuse its wiring; longer arrays move the auxiliary circuits to
// the first register past the cylinders.
func WiringFor(n int) Wiring {
	w := DefaultWiring()
	if n <= len(w.Vertical) {
		w.Vertical = w.Vertical[:n]
		return w
	}
	w.Vertical = w.Vertical[:0]
	for i := 0; i < n; i++ {
		reg, slot := i/4, uint(i%4)
		w.Vertical = append(w.Vertical, Cylinder{
			Extend:  Bit{reg, 2 * slot},
			Retract: Bit{reg, 2*slot + 1},
		})
	}
	aux := (n + 3) / 4
	for _, b := range []*Bit{&w.SweepLeft, &w.SweepRight, &w.Air, &w.Spare, &w.Pump, &w.Power} {
		b.Reg = aux
	}
	return w
}

// Registers returns the number of registers the wiring touches.
func (w Wiring) Registers() int {
	max := 0
	check := func(b Bit) {
		if b.Reg+1 > max {
			max = b.Reg + 1
		}
	}
	for _, c := range w.Vertical {
		check(c.Extend)
		check(c.Retract)
	}
	for _, b := range []Bit{w.SweepLeft, w.SweepRight, w.Air, w.Spare, w.Pump, w.Power} {
		check(b)
	}
	return max
}

// Bank drives a Port through a Wiring. It keeps an image of every register
// and writes the whole byte on each change.
type Bank struct {
	mu     sync.Mutex
	port   Port
	wiring Wiring
	image  []byte
}

// NewBank creates a bank with every output cleared in its image.
// Nothing is written until the first command.
func NewBank(port Port, wiring Wiring) *Bank {
	return &Bank{
		port:   port,
		wiring: wiring,
		image:  make([]byte, wiring.Registers()),
	}
}

// Positions returns the number of vertical cylinders.
func (b *Bank) Positions() int {
	return len(b.wiring.Vertical)
}

// Image returns a copy of the register image.
func (b *Bank) Image() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.image))
	copy(out, b.image)
	return out
}

func (b *Bank) set(bit Bit, on bool) error {
	v := b.image[bit.Reg]
	if on {
		v |= 1 << bit.Bit
	} else {
		v &^= 1 << bit.Bit
	}
	if err := b.port.WriteRegister(bit.Reg, v); err != nil {
		return fmt.Errorf("%w: register %d bit %d: %v", ErrPort, bit.Reg, bit.Bit, err)
	}
	b.image[bit.Reg] = v
	return nil
}

// pair drives two mutually exclusive bits: dir > 0 energizes a, dir < 0
// energizes b, zero releases both. The opposite side is always released
// before the requested side is energized.
func (b *Bank) pair(a, c Bit, dir int8) error {
	switch {
	case dir > 0:
		if err := b.set(c, false); err != nil {
			return err
		}
		return b.set(a, true)
	case dir < 0:
		if err := b.set(a, false); err != nil {
			return err
		}
		return b.set(c, true)
	default:
		if err := b.set(c, false); err != nil {
			return err
		}
		return b.set(a, false)
	}
}

// SetVertical commands one cylinder.
func (b *Bank) SetVertical(position int, cmd Lift) error {
	if position < 0 || position >= len(b.wiring.Vertical) {
		panic(fmt.Sprintf("rig: cylinder %d outside [0,%d)", position, len(b.wiring.Vertical)))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.wiring.Vertical[position]
	return b.pair(c.Extend, c.Retract, int8(cmd))
}

// SetHorizontal commands the horizontal ram. The solenoid valves are on/off,
// so magnitude only gates Center versus drive.
func (b *Bank) SetHorizontal(dir Sweep, magnitude uint16) error {
	if magnitude == 0 {
		dir = Center
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pair(b.wiring.SweepRight, b.wiring.SweepLeft, int8(dir))
}

func (b *Bank) toggle(bit Bit, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.set(bit, on)
}

// Pump switches the hydraulic pump. Pump off is the dump-valve open state.
func (b *Bank) Pump(on bool) error { return b.toggle(b.wiring.Pump, on) }

// Power switches mains power to the valve drivers.
func (b *Bank) Power(on bool) error { return b.toggle(b.wiring.Power, on) }

func (b *Bank) Air(on bool) error   { return b.toggle(b.wiring.Air, on) }
func (b *Bank) Spare(on bool) error { return b.toggle(b.wiring.Spare, on) }

// AllStop releases every cylinder and the horizontal ram.
func (b *Bank) AllStop() error {
	for i := range b.wiring.Vertical {
		if err := b.SetVertical(i, Neutral); err != nil {
			return err
		}
	}
	return b.SetHorizontal(Center, 0)
}
