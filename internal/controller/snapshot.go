package controller

import (
	"github.com/pieqf/wavesim/internal/events"
	"github.com/pieqf/wavesim/internal/rig"
)

// Snapshot is a copy of the rig state taken at the end of a tick. It is
// safe to hand to other goroutines.
type Snapshot struct {
	Tick       uint64     `json:"tick"`
	Mode       Mode       `json:"mode"`
	Interlocks Interlocks `json:"interlocks"`
	Awake      bool       `json:"awake"`
	Fault      string     `json:"fault,omitempty"`

	Vertical   []float64 `json:"vertical"`
	Horizontal float64   `json:"horizontal"`
	HVelocity  float64   `json:"horizontal_velocity"`
	Energy     float64   `json:"energy"`

	Lifts      []rig.Lift `json:"lifts"`
	Sweep      rig.Sweep  `json:"sweep"`
	AllNeutral bool       `json:"all_neutral"`

	Channels []ChannelStats `json:"channels"`
}

// ChannelStats counts what one event reader has seen.
type ChannelStats struct {
	Origin    string `json:"origin"`
	Accepted  uint64 `json:"accepted"`
	Malformed uint64 `json:"malformed"`
	ReadFails uint64 `json:"read_fails"`
	Partial   int    `json:"partial_bytes"` // unterminated bytes held for the next poll
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Tick:       c.tick,
		Mode:       c.mode,
		Interlocks: c.locks,
		Awake:      c.wake.Awake(),
		Vertical:   c.sim.Vertical(),
		Horizontal: c.sim.Horizontal(),
		HVelocity:  c.sim.HorizontalVelocity(),
		Energy:     c.sim.HorizontalEnergy(),
		Lifts:      c.mapper.Lifts(),
		Sweep:      c.mapper.LastSweep(),
		AllNeutral: c.mapper.AllNeutral(),
	}
	if c.fault != nil {
		s.Fault = c.fault.Error()
	}
	if c.mode == Breathe {
		// The mapper is idle while breathing; report the animation instead.
		s.Lifts = make([]rig.Lift, c.cfg.Sim.Length)
		s.Sweep = c.breath.dir
		if idx, on := c.breath.pulsing(); on {
			s.Lifts[idx] = rig.Retract
		}
	}
	for _, r := range []*events.Reader{c.horiz, c.vert} {
		if r == nil {
			continue
		}
		s.Channels = append(s.Channels, ChannelStats{
			Origin:    r.Origin().String(),
			Accepted:  r.Accepted,
			Malformed: r.Malformed,
			ReadFails: r.ReadFails,
			Partial:   r.Partial(),
		})
	}
	return s
}
