package protect

import (
	"testing"

	"github.com/mastercactapus/probeguard/firmware"
	"github.com/stretchr/testify/assert"
)

func TestPulseGuard(t *testing.T) {
	var forwarded, alerts int
	state := firmware.ProbeState{Connected: true}
	g := &PulseGuard{
		next:  func(*firmware.Stepper) { forwarded++ },
		probe: func() firmware.ProbeState { return state },
		alert: func(string) { alerts++ },
	}
	st := &firmware.Stepper{}

	state.Triggered = true
	g.Pulse(st)
	assert.Equal(t, 1, forwarded)
	assert.Equal(t, 0, alerts, "disarmed guard")

	g.Arm()
	assert.True(t, g.Installed())
	g.Pulse(st)
	g.Pulse(st)
	g.Pulse(st)
	assert.Equal(t, 4, forwarded)
	assert.Equal(t, 3, alerts, "one stop per pulse")

	state = firmware.ProbeState{Connected: false}
	g.Pulse(st)
	assert.Equal(t, 5, forwarded)
	assert.Equal(t, 4, alerts)

	state = firmware.ProbeState{Connected: true}
	g.Pulse(st)
	assert.Equal(t, 6, forwarded)
	assert.Equal(t, 4, alerts)

	state.Triggered = true
	g.Suspend()
	assert.False(t, g.Installed())
	g.Pulse(st)
	assert.Equal(t, 4, alerts)

	g.Resume()
	assert.True(t, g.Installed())

	g.Suspend()
	g.Disarm()
	g.Resume()
	assert.False(t, g.Installed(), "resume must respect disarm")

	g.Arm()
	g.Arm()
	g.Pulse(st)
	assert.Equal(t, 5, alerts, "arming twice does not stack")
	assert.Equal(t, 8, forwarded)
}

func TestPulseGuard_Allocs(t *testing.T) {
	var forwarded, alerts int
	g := &PulseGuard{
		next:  func(*firmware.Stepper) { forwarded++ },
		probe: func() firmware.ProbeState { return firmware.ProbeState{Triggered: true, Connected: true} },
		alert: func(string) { alerts++ },
	}
	g.Arm()
	st := &firmware.Stepper{}

	allocs := testing.AllocsPerRun(100, func() { g.Pulse(st) })
	assert.Equal(t, 0.0, allocs)
	assert.True(t, alerts > 0)
}

func TestSupervisor_PulseGuard(t *testing.T) {
	h := newHarness(t)
	h.probe.Triggered = true

	h.pulse()
	assert.Equal(t, 0, h.rt.stops)

	h.s.Connect()
	h.pulse()
	assert.Equal(t, 1, h.rt.stops)
	assert.Equal(t, 2, h.pulses)
	assert.Equal(t, []string{"PROBE PROTECTED!"}, h.msg.texts(firmware.MessageWarning))
}

func TestSupervisor_SpindleGuard(t *testing.T) {
	h := newHarness(t)

	h.sp.SetState(firmware.SpindleOn, 1000)
	assert.Equal(t, []firmware.SpindleState{firmware.SpindleOn}, h.spindle)

	h.s.Connect()
	h.spindle = nil
	h.sp.SetState(firmware.SpindleOn|firmware.SpindleCCW, 1000)
	assert.Equal(t, []firmware.SpindleState{firmware.SpindleIdle}, h.spindle)
	assert.Equal(t, 1, h.rt.stops)
	assert.Equal(t, []string{"PROBE IS IN SPINDLE!"}, h.msg.texts(firmware.MessageWarning))

	h.sp.SetState(firmware.SpindleIdle, 0)
	assert.Equal(t, []firmware.SpindleState{firmware.SpindleIdle, firmware.SpindleIdle}, h.spindle)
	assert.Equal(t, 1, h.rt.stops)

	h.s.Disconnect()
	h.sp.SetState(firmware.SpindleOn, 1000)
	assert.Equal(t, firmware.SpindleOn, h.spindle[len(h.spindle)-1])
	assert.Equal(t, 1, h.rt.stops)
}
