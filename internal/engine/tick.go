// Package engine provides the fixed-period tick loop that drives the rig.
package engine

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultInterval is the control period of the rig.
const DefaultInterval = 5 * time.Millisecond

// Stats summarizes loop timing since Run started.
type Stats struct {
	Ticks    uint64        // Ticks run since start
	Overruns uint64        // Ticks whose work took longer than the interval
	MaxWork  time.Duration // Longest single tick
	Uptime   time.Duration
}

// Engine calls OnTick once per Interval until stopped.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic)
	Interval time.Duration // Tick period

	// ReportEvery, when non-zero, calls OnReport every that many ticks.
	ReportEvery uint64

	OnTick   func(tick uint64)
	OnReport func(tick uint64, stats Stats)

	running  atomic.Bool
	stopped  chan struct{}
	started  time.Time
	overruns uint64
	maxWork  time.Duration
}

// NewEngine creates an engine with the default interval.
func NewEngine() *Engine {
	return &Engine{
		Interval: DefaultInterval,
		stopped:  make(chan struct{}),
	}
}

// Run starts the loop. Blocks until Stop is called.
// Each tick sleeps for the remainder of the interval; a tick that overruns
// is followed immediately by the next one, without catching up.
func (e *Engine) Run() {
	if e.stopped == nil {
		e.stopped = make(chan struct{})
	}
	e.running.Store(true)
	e.started = time.Now()
	slog.Info("tick engine started", "tick", e.Tick, "interval", e.Interval)

	for e.running.Load() {
		start := time.Now()

		e.step()

		elapsed := time.Since(start)
		if elapsed > e.maxWork {
			e.maxWork = elapsed
		}
		if elapsed < e.Interval {
			time.Sleep(e.Interval - elapsed)
		} else {
			e.overruns++
		}
	}

	slog.Info("tick engine stopped", "tick", e.Tick, "overruns", e.overruns)
	close(e.stopped)
}

// Stop halts the loop after the current tick. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.stopped
}

// Stats returns the loop statistics. Only meaningful from the loop goroutine
// (OnTick/OnReport) or after Done.
func (e *Engine) Stats() Stats {
	return Stats{
		Ticks:    e.Tick,
		Overruns: e.overruns,
		MaxWork:  e.maxWork,
		Uptime:   time.Since(e.started),
	}
}

func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	if e.ReportEvery > 0 && e.Tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(e.Tick, e.Stats())
	}
}

// RigTime converts a tick count into rig time at the given interval.
func RigTime(tick uint64, interval time.Duration) time.Duration {
	return time.Duration(tick) * interval
}
