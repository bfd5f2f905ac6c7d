package firmware

import "github.com/mastercactapus/probeguard/hook"

// Hooks is the extension point table of the controller.
type Hooks struct {
	hook.Table

	PulseStart      *hook.Point[PulseFunc]
	ProbeGetState   *hook.Point[ProbeStateFunc]
	ConnectedToggle *hook.Point[func()]
	DriverReset     *hook.Point[func()]
	UserMCode       *hook.Point[MCodeHandlers]

	OnProbeStart     *hook.Point[ProbeStartFunc]
	OnProbeCompleted *hook.Point[ProbeCompletedFunc]
	OnProbeFixture   *hook.Point[ProbeFixtureFunc]
	OnSpindleSelect  *hook.Point[SpindleSelectFunc]
	OnToolSelected   *hook.Point[ToolSelectedFunc]
	OnReportOptions  *hook.Point[ReportOptionsFunc]
}

// Base holds the handlers at the bottom of every chain. Any of them may be
// nil.
type Base struct {
	PulseStart      PulseFunc
	ProbeGetState   ProbeStateFunc
	ConnectedToggle func()
	DriverReset     func()
	UserMCode       MCodeHandlers

	OnProbeStart     ProbeStartFunc
	OnProbeCompleted ProbeCompletedFunc
	OnProbeFixture   ProbeFixtureFunc
	OnSpindleSelect  SpindleSelectFunc
	OnToolSelected   ToolSelectedFunc
	OnReportOptions  ReportOptionsFunc
}

// NewHooks creates the extension point table with the given base handlers.
func NewHooks(b Base) *Hooks {
	h := &Hooks{}
	t := &h.Table
	h.PulseStart = hook.New(t, "stepper.pulse_start", b.PulseStart)
	h.ProbeGetState = hook.New(t, "probe.get_state", b.ProbeGetState)
	h.ConnectedToggle = hook.New(t, "probe.connected_toggle", b.ConnectedToggle)
	h.DriverReset = hook.New(t, "driver_reset", b.DriverReset)
	h.UserMCode = hook.New(t, "user_mcode", b.UserMCode)

	h.OnProbeStart = hook.New(t, "on_probe_start", b.OnProbeStart)
	h.OnProbeCompleted = hook.New(t, "on_probe_completed", b.OnProbeCompleted)
	h.OnProbeFixture = hook.New(t, "on_probe_fixture", b.OnProbeFixture)
	h.OnSpindleSelect = hook.New(t, "on_spindle_select", b.OnSpindleSelect)
	h.OnToolSelected = hook.New(t, "on_tool_selected", b.OnToolSelected)
	h.OnReportOptions = hook.New(t, "on_report_options", b.OnReportOptions)
	return h
}

// ProbeState reads the active probe input. With no handler installed the
// probe is reported connected and not triggered.
func (h *Hooks) ProbeState() ProbeState {
	if fn := h.ProbeGetState.Load(); fn != nil {
		return fn()
	}
	return ProbeState{Connected: true}
}
