package controller

import "fmt"

// Mode is the rig's operating mode.
type Mode uint8

const (
	Sleep   Mode = iota // Powered down, dump valve open
	Breathe             // Powered, idle animation, listening for events
	Active              // Earthquake: pressure held, simulator owns the actuators
	Ripple              // Decay after an event, still accepting vertical events
)

var modeNames = [...]string{"sleep", "breathe", "active", "ripple"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	for i, name := range modeNames {
		if name == string(b) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", b)
}

// DumpValve is the hydraulic pressure state. Dump means the pump is off.
type DumpValve uint8

const (
	Dump DumpValve = iota
	NoDump
)

func (d DumpValve) String() string {
	if d == NoDump {
		return "nodump"
	}
	return "dump"
}

func (d DumpValve) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DumpValve) UnmarshalText(b []byte) error {
	switch string(b) {
	case "dump":
		*d = Dump
	case "nodump":
		*d = NoDump
	default:
		return fmt.Errorf("unknown dump valve state %q", b)
	}
	return nil
}

// LockState says whether manual vertical control is locked out.
type LockState uint8

const (
	Normal LockState = iota
	Lockout
)

func (l LockState) String() string {
	if l == Lockout {
		return "lockout"
	}
	return "normal"
}

func (l LockState) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LockState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*l = Normal
	case "lockout":
		*l = Lockout
	default:
		return fmt.Errorf("unknown lock state %q", b)
	}
	return nil
}

// Interlocks is the safety state that changes only on mode transitions.
type Interlocks struct {
	Dump  DumpValve `json:"dump"`
	Lock  LockState `json:"lock"`
	Power bool      `json:"power"`
}

// interlocksFor is the transition table.
func interlocksFor(m Mode) Interlocks {
	switch m {
	case Breathe:
		return Interlocks{Dump: Dump, Lock: Normal, Power: true}
	case Active:
		return Interlocks{Dump: NoDump, Lock: Lockout, Power: true}
	case Ripple:
		return Interlocks{Dump: Dump, Lock: Normal, Power: true}
	default:
		return Interlocks{Dump: Dump, Lock: Normal, Power: false}
	}
}
