// Package mapper turns continuous simulator state into actuator commands.
package mapper

import (
	"fmt"

	"github.com/pieqf/wavesim/internal/rig"
)

// Params holds the bias and thresholds of the mapping.
type Params struct {
	Bias       float64 // Added to every vertical displacement before thresholding
	Threshold  float64 // Vertical dead band half-width
	HThreshold float64 // Horizontal dead band half-width
}

// DefaultParams returns the mapping the rig was tuned with.
func DefaultParams() Params {
	return Params{
		Bias:       -0.0025,
		Threshold:  0.01,
		HThreshold: 1.0,
	}
}

// Lift maps one displacement to a cylinder command.
func (p Params) Lift(x float64) rig.Lift {
	v := x + p.Bias
	switch {
	case v > p.Threshold:
		return rig.Extend
	case v < -p.Threshold:
		return rig.Retract
	default:
		return rig.Neutral
	}
}

// Sweep maps the horizontal displacement to a ram command and magnitude.
func (p Params) Sweep(h float64) (rig.Sweep, uint16) {
	switch {
	case h > p.HThreshold:
		return rig.Right, rig.FullDrive
	case h < -p.HThreshold:
		return rig.Left, rig.FullDrive
	default:
		return rig.Center, 0
	}
}

// Mapper applies Params to state and realizes the result on the actuators.
type Mapper struct {
	params Params
	act    rig.Actuators

	lifts      []rig.Lift
	allNeutral bool
	sweep      rig.Sweep
}

// New creates a mapper that drives act.
func New(p Params, act rig.Actuators) *Mapper {
	return &Mapper{params: p, act: act, allNeutral: true}
}

// Params returns the mapping parameters.
func (m *Mapper) Params() Params {
	return m.params
}

// MapVertical commands every cylinder from state and records whether all
// of them came out Neutral. The first actuator error aborts the pass.
func (m *Mapper) MapVertical(state []float64) error {
	if cap(m.lifts) < len(state) {
		m.lifts = make([]rig.Lift, len(state))
	}
	m.lifts = m.lifts[:len(state)]

	neutral := true
	for i, x := range state {
		cmd := m.params.Lift(x)
		m.lifts[i] = cmd
		if cmd != rig.Neutral {
			neutral = false
		}
	}
	m.allNeutral = neutral

	for i, cmd := range m.lifts {
		if err := m.act.SetVertical(i, cmd); err != nil {
			return fmt.Errorf("vertical %d %s: %w", i, cmd, err)
		}
	}
	return nil
}

// MapHorizontal commands the ram from the horizontal displacement.
func (m *Mapper) MapHorizontal(h float64) error {
	dir, mag := m.params.Sweep(h)
	m.sweep = dir
	if err := m.act.SetHorizontal(dir, mag); err != nil {
		return fmt.Errorf("horizontal %s: %w", dir, err)
	}
	return nil
}

// AllNeutral reports whether the last MapVertical produced only Neutral.
func (m *Mapper) AllNeutral() bool {
	return m.allNeutral
}

// Lifts returns a copy of the commands from the last MapVertical.
func (m *Mapper) Lifts() []rig.Lift {
	out := make([]rig.Lift, len(m.lifts))
	copy(out, m.lifts)
	return out
}

// LastSweep returns the command from the last MapHorizontal.
func (m *Mapper) LastSweep() rig.Sweep {
	return m.sweep
}
