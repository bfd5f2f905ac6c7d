package protect

import (
	"sync/atomic"

	"github.com/mastercactapus/probeguard/firmware"
)

// PulseGuard stops the machine when motion is requested while the probe is
// triggered or reports disconnected.
//
// The guard sits on the pulse extension point for the lifetime of the
// process. It is installed, in the sense that it inspects pulses, while it
// holds a reference to the handler it forwards to. That happens when it is
// armed by the connected state and not suspended by a probing move.
type PulseGuard struct {
	next  firmware.PulseFunc
	saved atomic.Pointer[firmware.PulseFunc]

	probe func() firmware.ProbeState
	alert func(text string)

	// control goroutine only
	armed     bool
	suspended bool
}

// Pulse handles one step-pulse request. The pulse is forwarded even after a
// stop has been requested; the stop takes effect on the next control cycle.
func (g *PulseGuard) Pulse(st *firmware.Stepper) {
	next := g.saved.Load()
	if next == nil {
		if g.next != nil {
			g.next(st)
		}
		return
	}

	state := g.probe()
	if state.Triggered || !state.Connected {
		g.alert("PROBE PROTECTED!")
	}
	if *next != nil {
		(*next)(st)
	}
}

// Arm enables the guard unless a probing move is in progress.
func (g *PulseGuard) Arm() { g.armed = true; g.update() }

// Disarm disables the guard.
func (g *PulseGuard) Disarm() { g.armed = false; g.update() }

// Suspend disables the guard for the duration of a probing move.
func (g *PulseGuard) Suspend() { g.suspended = true; g.update() }

// Resume ends a Suspend. The guard is only re-enabled if it is armed.
func (g *PulseGuard) Resume() { g.suspended = false; g.update() }

// Installed returns true while pulses are inspected.
func (g *PulseGuard) Installed() bool { return g.saved.Load() != nil }

func (g *PulseGuard) update() {
	if g.armed && !g.suspended {
		g.saved.Store(&g.next)
		return
	}
	g.saved.Store(nil)
}

// SpindleGuard keeps the spindle off while the probe is connected.
type SpindleGuard struct {
	armed atomic.Bool
	alert func(text string)
}

// Arm enables the guard.
func (g *SpindleGuard) Arm() { g.armed.Store(true) }

// Disarm disables the guard.
func (g *SpindleGuard) Disarm() { g.armed.Store(false) }

// Armed returns true while spindle requests are checked.
func (g *SpindleGuard) Armed() bool { return g.armed.Load() }

// Wrap replaces the set-state function of sp. While armed, any request to
// start the spindle is turned into a request to stop it and the machine is
// halted.
func (g *SpindleGuard) Wrap(sp *firmware.Spindle) {
	next := sp.SetState
	sp.SetState = func(state firmware.SpindleState, rpm float64) {
		if g.armed.Load() && state != firmware.SpindleIdle {
			state = firmware.SpindleIdle
			g.alert("PROBE IS IN SPINDLE!")
		}
		if next != nil {
			next(state, rpm)
		}
	}
}

func (s *Supervisor) spindleSelect(sp *firmware.Spindle) bool {
	s.spindle.Wrap(sp)
	return s.next.spindleSelect == nil || s.next.spindleSelect(sp)
}
