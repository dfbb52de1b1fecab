package controller

import "sync/atomic"

// WakeSignal is the out-of-band "occupied" flag (raised by the coffee
// machine sensor on the floor). Set and Clear are safe from any goroutine and do
// no other work; the controller samples it once per tick.
type WakeSignal struct {
	flag atomic.Bool
}

func (w *WakeSignal) Set()        { w.flag.Store(true) }
func (w *WakeSignal) Clear()      { w.flag.Store(false) }
func (w *WakeSignal) Awake() bool { return w.flag.Load() }
