// Package controller runs the rig's operating-mode state machine. It owns
// the simulator, the mapper, the event readers and the interlocks, and is
// driven one tick at a time from a single goroutine.
package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pieqf/wavesim/internal/events"
	"github.com/pieqf/wavesim/internal/mapper"
	"github.com/pieqf/wavesim/internal/rig"
	"github.com/pieqf/wavesim/internal/sim"
)

// Config holds everything the controller needs besides its collaborators.
type Config struct {
	Sim    sim.Params
	Mapper mapper.Params

	BreatheTicks int // Idle pulse length
	PauseTicks   int // Idle pause between pulses

	MagnitudeGate int     // Directional events below this are ignored while breathing
	PebbleScale   float64 // Directional magnitude is divided by this before injection

	// ChannelMap routes directional channels to array positions.
	ChannelMap map[int]int

	// SettleDelay is waited after powering up into Breathe.
	SettleDelay time.Duration
}

// DefaultChannelMap is the floor's sensor layout: north, south, and the
// east/west pair sharing the middle of the array.
func DefaultChannelMap() map[int]int {
	return map[int]int{0: 19, 1: 1, 2: 10, 3: 10}
}

// DefaultConfig returns the configuration the rig shipped with.
func DefaultConfig() Config {
	return Config{
		Sim:           sim.DefaultParams(),
		Mapper:        mapper.DefaultParams(),
		BreatheTicks:  70,
		PauseTicks:    900,
		MagnitudeGate: 10,
		PebbleScale:   10,
		ChannelMap:    DefaultChannelMap(),
		SettleDelay:   time.Second,
	}
}

// Validate rejects configurations that would index outside the array.
func (c Config) Validate() error {
	if err := c.Sim.Validate(); err != nil {
		return err
	}
	for ch, pos := range c.ChannelMap {
		if ch == events.GlobalTrigger {
			return fmt.Errorf("channel %d is reserved for the global trigger", ch)
		}
		if pos < 0 || pos >= c.Sim.Length {
			return fmt.Errorf("channel %d maps to position %d outside [0,%d)", ch, pos, c.Sim.Length)
		}
	}
	if c.BreatheTicks <= 0 || c.PauseTicks <= 0 {
		return fmt.Errorf("breathe timing must be positive (pulse %d, pause %d)", c.BreatheTicks, c.PauseTicks)
	}
	if c.PebbleScale == 0 {
		return errors.New("pebble scale must be non-zero")
	}
	return nil
}

// Recorder receives a copy of every notable occurrence. Implementations
// must not block the tick loop.
type Recorder interface {
	RecordEvent(tick uint64, ev events.Event, outcome string)
	RecordTransition(tick uint64, from, to Mode)
	RecordFault(tick uint64, err error)
}

// Event outcomes passed to Recorder.RecordEvent.
const (
	OutcomeRipple   = "ripple"
	OutcomeActive   = "active"
	OutcomeGated    = "gated"
	OutcomeLocked   = "locked"
	OutcomeUnmapped = "unmapped"
)

// FaultError reports an actuator failure. The controller has already
// forced itself into Sleep when it returns one.
type FaultError struct {
	Mode Mode // mode the fault happened in
	Err  error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("actuator fault in %s: %v", e.Mode, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// Controller is the rig's top-level state machine.
type Controller struct {
	cfg    Config
	sim    *sim.Simulator
	mapper *mapper.Mapper
	act    rig.Actuators
	vert   *events.Reader
	horiz  *events.Reader
	wake   *WakeSignal
	breath *breather

	mode  Mode
	locks Interlocks
	tick  uint64
	fault error // latched until the wake signal is cleared
	state []float64

	// Wait is used for the power settle delay. Tests replace it.
	Wait func(time.Duration)
	// Recorder, when set, receives events, transitions and faults.
	Recorder Recorder
	// OnSnapshot, when set, receives the rig state after every tick.
	OnSnapshot func(Snapshot)
}

// New builds a controller in Sleep. Either reader may be nil. No actuator
// is touched until Init or the first Tick.
func New(cfg Config, act rig.Actuators, vert, horiz *events.Reader, wake *WakeSignal) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}
	s, err := sim.New(cfg.Sim)
	if err != nil {
		return nil, err
	}
	if wake == nil {
		wake = &WakeSignal{}
	}
	return &Controller{
		cfg:    cfg,
		sim:    s,
		mapper: mapper.New(cfg.Mapper, act),
		act:    act,
		vert:   vert,
		horiz:  horiz,
		wake:   wake,
		breath: newBreather(cfg.BreatheTicks, cfg.PauseTicks, cfg.Sim.Length),
		mode:   Sleep,
		locks:  interlocksFor(Sleep),
		state:  make([]float64, cfg.Sim.Length),
		Wait:   time.Sleep,
	}, nil
}

// Init drives the outputs into the Sleep state regardless of what the
// hardware held before the process started.
func (c *Controller) Init() error {
	if err := c.apply(Sleep); err != nil {
		return c.fail(err)
	}
	for i := 0; i < c.cfg.Sim.Length; i++ {
		if err := c.act.SetVertical(i, rig.Neutral); err != nil {
			return c.fail(err)
		}
	}
	if err := c.act.SetHorizontal(rig.Center, 0); err != nil {
		return c.fail(err)
	}
	return nil
}

// Halt drives the rig to Sleep from any mode and leaves every actuator
// released. The daemon calls it on shutdown.
func (c *Controller) Halt() error {
	from := c.mode
	if from == Breathe {
		if err := c.breath.release(c.act); err != nil {
			return c.fail(err)
		}
	}
	if err := c.Init(); err != nil {
		return err
	}
	c.mode = Sleep
	if from != Sleep {
		slog.Info("halted", "from", from)
		if c.Recorder != nil {
			c.Recorder.RecordTransition(c.tick, from, Sleep)
		}
	}
	return nil
}

// Mode returns the current operating mode.
func (c *Controller) Mode() Mode { return c.mode }

// Interlocks returns the current interlock state.
func (c *Controller) Interlocks() Interlocks { return c.locks }

// Simulator exposes the simulator for inspection.
func (c *Controller) Simulator() *sim.Simulator { return c.sim }

// Mapper exposes the mapper for inspection.
func (c *Controller) Mapper() *mapper.Mapper { return c.mapper }

// Wake returns the wake signal the controller samples.
func (c *Controller) Wake() *WakeSignal { return c.wake }

// Fault returns the latched fault, if any.
func (c *Controller) Fault() error { return c.fault }

// Ticks returns the number of ticks run so far.
func (c *Controller) Ticks() uint64 { return c.tick }

// Tick runs one control period. Within a tick, events are consumed before
// the simulator advances, and the simulator advances before the mapper runs.
// An actuator failure forces Sleep and is returned as a *FaultError.
func (c *Controller) Tick() error {
	c.tick++
	err := c.step()
	if err != nil {
		err = c.fail(err)
	}
	if c.OnSnapshot != nil {
		c.OnSnapshot(c.Snapshot())
	}
	return err
}

func (c *Controller) step() error {
	awake := c.wake.Awake()

	switch c.mode {
	case Sleep:
		if c.fault != nil {
			if !awake {
				slog.Info("fault cleared by sleep signal", "fault", c.fault)
				c.fault = nil
			}
			return nil
		}
		if awake {
			slog.Info("waking up")
			return c.enter(Breathe)
		}

	case Breathe:
		if !awake {
			slog.Info("going to sleep")
			return c.enter(Sleep)
		}
		if err := c.breath.step(c.act); err != nil {
			return err
		}
		if ev, ok := c.poll(c.horiz); ok {
			return c.handle(ev)
		}
		if ev, ok := c.poll(c.vert); ok {
			return c.handle(ev)
		}

	case Active:
		if err := c.advance(); err != nil {
			return err
		}
		if c.sim.IsHorizontalSmall() {
			slog.Info("horizontal motion small", "energy", c.sim.HorizontalEnergy())
			return c.enter(Ripple)
		}

	case Ripple:
		if ev, ok := c.poll(c.vert); ok {
			if err := c.handle(ev); err != nil {
				return err
			}
		}
		// A quake on this tick has already switched to Active; it still
		// gets this tick's step.
		if err := c.advance(); err != nil {
			return err
		}
		if c.mode == Ripple && c.sim.IsHorizontalVerySmall() && c.mapper.AllNeutral() {
			slog.Info("motion died down", "energy", c.sim.HorizontalEnergy())
			return c.enter(Breathe)
		}
	}
	return nil
}

// advance steps the simulator and pushes its state through the mapper.
func (c *Controller) advance() error {
	c.sim.Advance()
	c.sim.VerticalInto(c.state)
	if err := c.mapper.MapVertical(c.state); err != nil {
		return err
	}
	return c.mapper.MapHorizontal(c.sim.Horizontal())
}

// poll reads one event from r. Read and parse failures are logged and
// treated as no event.
func (c *Controller) poll(r *events.Reader) (events.Event, bool) {
	if r == nil {
		return events.Event{}, false
	}
	ev, ok, err := r.Poll()
	if err != nil {
		if errors.Is(err, events.ErrMalformed) || errors.Is(err, events.ErrLineTooLong) {
			slog.Warn("discarding event line", "origin", r.Origin(), "error", err)
		} else {
			slog.Warn("event channel read failed", "origin", r.Origin(), "error", err)
		}
		return events.Event{}, false
	}
	return ev, ok
}

// handle applies one event.
func (c *Controller) handle(ev events.Event) error {
	slog.Info("event", "origin", ev.Origin, "channel", ev.Channel, "magnitude", ev.Magnitude, "duration", ev.Duration)

	if ev.IsGlobal() {
		slog.Info("earthquake", "magnitude", ev.Magnitude)
		if err := c.enter(Active); err != nil {
			return err
		}
		c.sim.TickleHorizontal(float64(ev.Magnitude))
		c.record(ev, OutcomeActive)
		return nil
	}

	if c.mode == Breathe && ev.Magnitude < c.cfg.MagnitudeGate {
		slog.Debug("event below gate", "magnitude", ev.Magnitude, "gate", c.cfg.MagnitudeGate)
		c.record(ev, OutcomeGated)
		return nil
	}

	pos, ok := c.cfg.ChannelMap[ev.Channel]
	if !ok {
		slog.Warn("event on unmapped channel", "channel", ev.Channel)
		c.record(ev, OutcomeUnmapped)
		return nil
	}
	if c.locks.Lock == Lockout {
		c.record(ev, OutcomeLocked)
		return nil
	}

	if err := c.enter(Ripple); err != nil {
		return err
	}
	c.sim.Inject(pos, float64(ev.Magnitude)/c.cfg.PebbleScale)
	c.record(ev, OutcomeRipple)
	return nil
}

func (c *Controller) record(ev events.Event, outcome string) {
	if c.Recorder != nil {
		c.Recorder.RecordEvent(c.tick, ev, outcome)
	}
}

// enter switches mode and applies the interlocks of the target mode.
// Re-entering the current mode does nothing.
func (c *Controller) enter(m Mode) error {
	if m == c.mode {
		return nil
	}
	from := c.mode
	if from == Breathe {
		if err := c.breath.release(c.act); err != nil {
			return err
		}
	}
	slog.Info("mode change", "from", from, "to", m)
	if err := c.apply(m); err != nil {
		return err
	}
	c.mode = m
	if c.Recorder != nil {
		c.Recorder.RecordTransition(c.tick, from, m)
	}
	if m == Breathe && c.cfg.SettleDelay > 0 {
		c.Wait(c.cfg.SettleDelay)
	}
	return nil
}

// apply drives the dump valve, lockout and power for mode m.
func (c *Controller) apply(m Mode) error {
	want := interlocksFor(m)

	if want.Dump != c.locks.Dump {
		if want.Dump == Dump {
			slog.Info("dumping")
		} else {
			slog.Info("closing dump valve")
		}
	}
	if err := c.act.Pump(want.Dump == NoDump); err != nil {
		return err
	}
	c.locks.Dump = want.Dump

	if want.Lock != c.locks.Lock {
		if want.Lock == Lockout {
			slog.Info("locking out verticals")
		} else {
			slog.Info("unlocking verticals")
		}
	}
	c.locks.Lock = want.Lock

	if err := c.act.Power(want.Power); err != nil {
		return err
	}
	c.locks.Power = want.Power
	return nil
}

// fail latches err, forces the rig to Sleep on a best-effort basis and
// wraps err for the caller.
func (c *Controller) fail(err error) error {
	var fe *FaultError
	if errors.As(err, &fe) {
		return err
	}
	from := c.mode
	c.fault = err
	slog.Error("actuator fault, forcing sleep", "mode", from, "error", err)

	if from == Breathe {
		c.breath.release(c.act)
	}
	if serr := c.apply(Sleep); serr != nil {
		slog.Error("safe state not confirmed", "error", serr)
		c.locks = interlocksFor(Sleep)
	}
	c.mode = Sleep
	if c.Recorder != nil {
		c.Recorder.RecordFault(c.tick, err)
		if from != Sleep {
			c.Recorder.RecordTransition(c.tick, from, Sleep)
		}
	}
	return &FaultError{Mode: from, Err: err}
}
