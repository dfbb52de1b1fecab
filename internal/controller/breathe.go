package controller

import "github.com/pieqf/wavesim/internal/rig"

// breather is the idle animation: after each pause it retracts one cylinder
// and pushes the ram one way, holds for a pulse, releases both, and moves
// to the next cylinder. The ram alternates direction on every pulse.
// It never touches the simulator.
type breather struct {
	pulseTicks int
	pauseTicks int
	positions  int

	index int
	count int
	dir   rig.Sweep
	next  rig.Sweep
}

func newBreather(pulseTicks, pauseTicks, positions int) *breather {
	return &breather{
		pulseTicks: pulseTicks,
		pauseTicks: pauseTicks,
		positions:  positions,
		next:       rig.Right,
	}
}

func (b *breather) step(act rig.Actuators) error {
	b.count++
	if b.dir != rig.Center {
		if b.count < b.pulseTicks {
			return nil
		}
		b.count = 0
		b.next = -b.dir
		b.dir = rig.Center
		if err := act.SetHorizontal(rig.Center, 0); err != nil {
			return err
		}
		if err := act.SetVertical(b.index, rig.Neutral); err != nil {
			return err
		}
		b.index = (b.index + 1) % b.positions
		return nil
	}

	if b.count < b.pauseTicks {
		return nil
	}
	b.count = 0
	b.dir = b.next
	if err := act.SetHorizontal(b.dir, rig.FullDrive); err != nil {
		return err
	}
	return act.SetVertical(b.index, rig.Retract)
}

// release ends a pulse early so nothing stays driven when Breathe is left.
// The animation resumes from a pause at the next cylinder.
func (b *breather) release(act rig.Actuators) error {
	b.count = 0
	if b.dir == rig.Center {
		return nil
	}
	b.next = -b.dir
	b.dir = rig.Center
	idx := b.index
	b.index = (b.index + 1) % b.positions
	if err := act.SetHorizontal(rig.Center, 0); err != nil {
		return err
	}
	return act.SetVertical(idx, rig.Neutral)
}

// pulsing returns the cylinder currently held, if any.
func (b *breather) pulsing() (int, bool) {
	return b.index, b.dir != rig.Center
}
