package trace

import (
	"errors"
	"fmt"
	"time"

	"github.com/pieqf/wavesim/internal/controller"
	"github.com/pieqf/wavesim/internal/events"
	"github.com/pieqf/wavesim/internal/rig"
)

// Frame is the rig state after one tick.
type Frame struct {
	Tick       uint64
	Mode       controller.Mode
	Vertical   []float64
	Horizontal float64
	Energy     float64
	Lifts      []rig.Lift
}

// Transition is one mode change seen during a replay.
type Transition struct {
	Tick     uint64
	From, To controller.Mode
}

// Trace is the result of a replay.
type Trace struct {
	Interval    time.Duration // rig time per tick, for axis labels
	Frames      []Frame
	Transitions []Transition
	Faults      int
}

// Options controls a replay.
type Options struct {
	Config   controller.Config
	Interval time.Duration
	Ticks    uint64 // total ticks to run
	Awake    bool   // start with the wake signal set
	LineMax  int
}

// Replay runs steps through a controller driving an in-memory register
// bank and records every tick. The settle delay is skipped.
func Replay(opts Options, steps []Step) (*Trace, error) {
	if opts.Ticks == 0 {
		return nil, errors.New("replay needs a tick count")
	}
	n := opts.Config.Sim.Length
	wiring := rig.WiringFor(n)
	bank := rig.NewBank(rig.NewMemoryPort(wiring.Registers(), 0), wiring)

	vq, hq := &events.Queue{}, &events.Queue{}
	wake := &controller.WakeSignal{}
	if opts.Awake {
		wake.Set()
	}
	ctl, err := controller.New(opts.Config, bank,
		events.NewReader(events.Vertical, vq, opts.LineMax),
		events.NewReader(events.Horizontal, hq, opts.LineMax),
		wake)
	if err != nil {
		return nil, err
	}
	ctl.Wait = func(time.Duration) {}

	tr := &Trace{Interval: opts.Interval, Frames: make([]Frame, 0, opts.Ticks)}
	ctl.Recorder = recorder{tr}
	if err := ctl.Init(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	next := 0
	for tick := uint64(1); tick <= opts.Ticks; tick++ {
		for next < len(steps) && steps[next].Tick < tick {
			s := steps[next]
			switch {
			case s.Wake != nil && *s.Wake:
				wake.Set()
			case s.Wake != nil:
				wake.Clear()
			case s.Origin == events.Horizontal:
				hq.Push(s.Line + "\n")
			default:
				vq.Push(s.Line + "\n")
			}
			next++
		}

		if err := ctl.Tick(); err != nil {
			var fe *controller.FaultError
			if !errors.As(err, &fe) {
				return tr, err
			}
		}
		snap := ctl.Snapshot()
		tr.Frames = append(tr.Frames, Frame{
			Tick:       snap.Tick,
			Mode:       snap.Mode,
			Vertical:   snap.Vertical,
			Horizontal: snap.Horizontal,
			Energy:     snap.Energy,
			Lifts:      snap.Lifts,
		})
	}
	return tr, nil
}

// ModeTicks counts the ticks spent in each mode.
func (t *Trace) ModeTicks() map[controller.Mode]int {
	out := make(map[controller.Mode]int)
	for _, f := range t.Frames {
		out[f.Mode]++
	}
	return out
}

type recorder struct{ tr *Trace }

func (r recorder) RecordEvent(uint64, events.Event, string) {}

func (r recorder) RecordTransition(tick uint64, from, to controller.Mode) {
	r.tr.Transitions = append(r.tr.Transitions, Transition{Tick: tick, From: from, To: to})
}

func (r recorder) RecordFault(uint64, error) { r.tr.Faults++ }
