// Package rig describes the shake table's actuators: the vertical lift
// cylinders, the horizontal ram, and the auxiliary power circuits.
package rig

import (
	"errors"
	"fmt"
)

// ErrPort is wrapped by every failed register write.
var ErrPort = errors.New("rig: port write failed")

// Lift is the tri-state command for one vertical cylinder.
type Lift int8

const (
	Retract Lift = -1
	Neutral Lift = 0
	Extend  Lift = 1
)

func (l Lift) String() string {
	switch l {
	case Retract:
		return "retract"
	case Neutral:
		return "neutral"
	case Extend:
		return "extend"
	default:
		return fmt.Sprintf("lift(%d)", int8(l))
	}
}

func (l Lift) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Lift) UnmarshalText(b []byte) error {
	for _, v := range []Lift{Retract, Neutral, Extend} {
		if v.String() == string(b) {
			*l = v
			return nil
		}
	}
	return fmt.Errorf("unknown lift %q", b)
}

// Sweep is the direction command for the horizontal ram.
type Sweep int8

const (
	Left   Sweep = -1
	Center Sweep = 0
	Right  Sweep = 1
)

func (s Sweep) String() string {
	switch s {
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("sweep(%d)", int8(s))
	}
}

func (s Sweep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Sweep) UnmarshalText(b []byte) error {
	for _, v := range []Sweep{Left, Center, Right} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown sweep %q", b)
}

// FullDrive is the horizontal magnitude used for every non-center command.
// It matches the 16-bit resolution of the proportional valve DACs.
const FullDrive uint16 = 0xFFFF

// Actuators is everything the controller needs from the hardware.
// Every call must be idempotent and must never leave both directions of a
// single actuator energized: a new command first releases the opposite
// direction, then energizes the requested one.
type Actuators interface {
	SetVertical(position int, cmd Lift) error
	SetHorizontal(dir Sweep, magnitude uint16) error
	Pump(on bool) error
	Power(on bool) error
	Air(on bool) error
	Spare(on bool) error
}
