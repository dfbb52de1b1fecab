// Package sim provides the coarse wave simulation that animates the rig.
// The vertical array is a damped 1-D wave field; the horizontal axis is a
// single damped oscillator. Both are stepped with explicit Euler.
package sim

import (
	"fmt"
	"math"
)

// Params holds the physical constants of the simulation.
type Params struct {
	Length        int     // Number of vertical positions (including both boundaries)
	C2            float64 // Squared wave speed
	Damping       float64 // Vertical velocity damping
	Stiffness     float64 // Horizontal spring constant
	HDamping      float64 // Horizontal velocity damping
	Dt            float64 // Integration timestep
	Small         float64 // Horizontal energy below which motion counts as small
	VerySmall     float64 // Horizontal energy below which the rig may rest
	BoundaryValue float64 // Displacement held at both ends of the array
}

// DefaultParams returns the constants the rig was tuned with.
func DefaultParams() Params {
	return Params{
		Length:    21,
		C2:        0.1,
		Damping:   0.1,
		Stiffness: 0.1,
		HDamping:  0.02,
		Dt:        0.1,
		Small:     3.0,
		VerySmall: 0.5,
	}
}

// Validate reports parameter sets that cannot describe a field.
func (p Params) Validate() error {
	if p.Length < 3 {
		return fmt.Errorf("sim length %d: need at least one interior position", p.Length)
	}
	if p.Dt <= 0 || !finite(p.Dt) {
		return fmt.Errorf("sim dt %g: must be positive", p.Dt)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"c2", p.C2},
		{"damping", p.Damping},
		{"stiffness", p.Stiffness},
		{"horizontal damping", p.HDamping},
		{"small threshold", p.Small},
		{"very small threshold", p.VerySmall},
	} {
		if f.v < 0 || !finite(f.v) {
			return fmt.Errorf("sim %s %g: must be finite and non-negative", f.name, f.v)
		}
	}
	if !finite(p.BoundaryValue) {
		return fmt.Errorf("sim boundary value %g: must be finite", p.BoundaryValue)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Simulator owns the vertical field and the horizontal oscillator.
// It is not safe for concurrent use; the controller's tick loop owns it.
type Simulator struct {
	params Params

	x    []float64 // vertical displacement
	xdot []float64 // vertical velocity
	vbuf []float64 // scratch for the velocity update

	h    float64
	hdot float64
}

// New creates a simulator with all state at rest.
func New(p Params) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		params: p,
		x:      make([]float64, p.Length),
		xdot:   make([]float64, p.Length),
		vbuf:   make([]float64, p.Length),
	}
	s.Reset()
	return s, nil
}

// Reset zeroes the field and the oscillator and reapplies the boundary value.
func (s *Simulator) Reset() {
	for i := range s.x {
		s.x[i] = 0
		s.xdot[i] = 0
		s.vbuf[i] = 0
	}
	s.x[0] = s.params.BoundaryValue
	s.x[len(s.x)-1] = s.params.BoundaryValue
	s.h, s.hdot = 0, 0
}

// Params returns the constants the simulator was built with.
func (s *Simulator) Params() Params {
	return s.params
}

// Len returns the number of vertical positions.
func (s *Simulator) Len() int {
	return len(s.x)
}

// Inject drops a pebble: the displacement at position is overwritten with
// magnitude. An out-of-range position is a programming error and panics.
func (s *Simulator) Inject(position int, magnitude float64) {
	if position < 0 || position >= len(s.x) {
		panic(fmt.Sprintf("sim: inject at position %d outside [0,%d)", position, len(s.x)))
	}
	s.x[position] = magnitude
}

// TickleHorizontal overwrites the horizontal displacement.
func (s *Simulator) TickleHorizontal(magnitude float64) {
	s.h = magnitude
}

// Advance performs one integration step.
func (s *Simulator) Advance() {
	p := s.params
	n := len(s.x)

	// Velocities go to the scratch buffer first so the displacement update
	// below still sees the pre-step velocity.
	for i := 1; i < n-1; i++ {
		lap := (s.x[i+1] - s.x[i]) - (s.x[i] - s.x[i-1])
		s.vbuf[i] = s.xdot[i] + p.Dt*(p.C2*lap-p.Damping*s.xdot[i])
	}
	for i := 1; i < n-1; i++ {
		s.x[i] += p.Dt * s.xdot[i]
		s.xdot[i] = s.vbuf[i]
	}

	hdot := s.hdot + p.Dt*(-p.Stiffness*s.h-p.HDamping*s.hdot)
	h := s.h + p.Dt*s.hdot
	s.h, s.hdot = h, hdot
}

// Vertical returns a copy of the vertical displacement field.
func (s *Simulator) Vertical() []float64 {
	out := make([]float64, len(s.x))
	copy(out, s.x)
	return out
}

// VerticalInto copies the field into dst, which must have Len() elements.
func (s *Simulator) VerticalInto(dst []float64) {
	if len(dst) != len(s.x) {
		panic(fmt.Sprintf("sim: state buffer has %d positions, field has %d", len(dst), len(s.x)))
	}
	copy(dst, s.x)
}

// Horizontal returns the horizontal displacement.
func (s *Simulator) Horizontal() float64 {
	return s.h
}

// HorizontalVelocity returns the horizontal velocity.
func (s *Simulator) HorizontalVelocity() float64 {
	return s.hdot
}

// HorizontalEnergy is stiffness*h² + hdot². Not normalized; both
// thresholds are expressed in these units.
func (s *Simulator) HorizontalEnergy() float64 {
	return s.params.Stiffness*s.h*s.h + s.hdot*s.hdot
}

// IsHorizontalSmall reports whether the energy is below the small threshold.
func (s *Simulator) IsHorizontalSmall() bool {
	return s.HorizontalEnergy() < s.params.Small
}

// IsHorizontalVerySmall reports whether the energy is below the rest threshold.
func (s *Simulator) IsHorizontalVerySmall() bool {
	return s.HorizontalEnergy() < s.params.VerySmall
}
