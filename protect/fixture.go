package protect

import (
	"sync/atomic"

	"github.com/mastercactapus/probeguard/coord"
	"github.com/mastercactapus/probeguard/firmware"
)

// interlock records what was overridden for a toolsetter measurement.
type interlock struct {
	active bool

	invert     bool
	hardLimits bool

	// redirect is set while probe reads go to the toolsetter input. It is
	// read from the step-pulse path.
	redirect atomic.Bool
}

// FixtureActive returns true while toolsetter overrides are applied.
func (s *Supervisor) FixtureActive() bool { return s.fixture.active }

// probeState is the active probe source. While a toolsetter measurement
// redirects it, the toolsetter input is read instead of the probe.
func (s *Supervisor) probeState() firmware.ProbeState {
	if s.fixture.redirect.Load() {
		// the toolsetter is fixed to the machine
		return firmware.ProbeState{
			Triggered: s.env.Ports.Read(s.toolPort) != s.settings.Flags.ToolPinInvert,
			Connected: true,
		}
	}
	if s.next.probeState == nil {
		return firmware.ProbeState{Connected: true}
	}
	return s.next.probeState()
}

// probeFixture applies the toolsetter overrides when tool is set, which
// happens only while probing during a tool change.
func (s *Supervisor) probeFixture(tool *firmware.Tool, atG59_3, on bool) bool {
	if tool != nil {
		s.enterFixture()
	}
	if s.next.probeFixture != nil {
		return s.next.probeFixture(tool, atG59_3, on)
	}
	return true
}

func (s *Supervisor) enterFixture() {
	f := s.settings.Flags
	cfg := s.env.Settings

	if !s.fixture.active {
		s.fixture.active = true
		s.fixture.invert = cfg.InvertProbePin()
		s.fixture.hardLimits = cfg.HardLimitsEnabled()
	}

	if f.InvertToolProbe {
		cfg.SetInvertProbePin(!s.bootInvert)
	}
	if f.ToolPin && s.toolPinOK {
		s.fixture.redirect.Store(true)
	}
	if f.HardLimits && !cfg.HardLimitsEnabled() {
		s.env.Limits.EnableHardLimits(true)
	}

	s.settle()
}

func (s *Supervisor) probeStart(axes firmware.Axes, target coord.Point) bool {
	s.pulse.Suspend()
	if s.next.probeStart != nil {
		return s.next.probeStart(axes, target)
	}
	return true
}

func (s *Supervisor) probeCompleted() {
	s.pulse.Resume()
	s.restore()
	if s.next.probeCompleted != nil {
		s.next.probeCompleted()
	}
}

// restore undoes every toolsetter override. It is safe to call when nothing
// was overridden.
func (s *Supervisor) restore() {
	invert := s.bootInvert
	hardLimits := s.env.Settings.HardLimitsEnabled()
	if s.fixture.active {
		invert = s.fixture.invert
		hardLimits = s.fixture.hardLimits
	}

	s.env.Settings.SetInvertProbePin(invert)
	s.env.Limits.EnableHardLimits(hardLimits)
	s.fixture.redirect.Store(false)
	s.fixture.active = false
}

// reset is the driver reset handler. A reset may abort a probing move
// before it completes, so everything is restored here as well.
func (s *Supervisor) reset() {
	s.pulse.Resume()
	s.restore()
	if s.next.reset != nil {
		s.next.reset()
	}
}
