// Package protect is the probe protection plugin. It guards motion and the
// spindle while a probe is connected, and reconfigures the probe input while
// the toolsetter is measured during a tool change.
//
// All Supervisor state is owned by the controller goroutine. Pin interrupts
// only request a re-evaluation through the realtime queue.
package protect

import (
	"io"
	"log"
	"time"

	"github.com/mastercactapus/probeguard/firmware"
	"github.com/mastercactapus/probeguard/nvs"
)

// Owner is the name recorded on every extension point the plugin installs
// a handler on.
const Owner = "probe-protect"

// RelayDebounce is how long to wait after switching probe relays or the
// connected state before continuing.
const RelayDebounce = 50 * time.Millisecond

// ProbeToolID is the tool number of the probe. Selecting it marks the probe
// connected.
const ProbeToolID = 99

// ReportLine is written to the stream when build options are listed.
const ReportLine = "[PLUGIN:Probe Protection v0.01]"

// Env holds the collaborators of the Supervisor.
type Env struct {
	Hooks    *firmware.Hooks
	Settings *firmware.Settings
	Ports    firmware.Ports
	Store    nvs.Store
	Limits   firmware.Limits
	Realtime firmware.Realtime
	Messages firmware.Messenger
	Registry firmware.SettingsRegistry

	// Stream receives the report options line.
	Stream io.Writer

	// Delay waits for relays to settle. It defaults to time.Sleep.
	Delay func(time.Duration)

	// Debounce overrides RelayDebounce when set.
	Debounce time.Duration
}

// prior holds the handlers that were active before Init.
type prior struct {
	probeState     firmware.ProbeStateFunc
	toggle         func()
	reset          func()
	mcode          firmware.MCodeHandlers
	probeStart     firmware.ProbeStartFunc
	probeCompleted firmware.ProbeCompletedFunc
	probeFixture   firmware.ProbeFixtureFunc
	spindleSelect  firmware.SpindleSelectFunc
	toolSelected   firmware.ToolSelectedFunc
	reportOptions  firmware.ReportOptionsFunc
}

// Supervisor is the probe protection plugin.
type Supervisor struct {
	env      Env
	debounce time.Duration

	nPorts   int
	settings Settings
	hasStore bool
	addr     nvs.Address

	connectPort uint8
	toolPort    uint8
	extPinOK    bool
	toolPinOK   bool

	// bootInvert is the persisted probe polarity, restored after every
	// override.
	bootInvert bool

	contrib Contributors
	pulse   PulseGuard
	spindle SpindleGuard
	fixture interlock

	next prior
}

// Init creates the Supervisor, installs its handlers and loads its settings.
// It must be called during boot, before the hook table is sealed.
//
// Failures are reported as deferred operator warnings; the plugin keeps
// running with whatever could be set up.
func Init(env Env) *Supervisor {
	if env.Delay == nil {
		env.Delay = time.Sleep
	}
	s := &Supervisor{
		env:      env,
		debounce: env.Debounce,
		nPorts:   env.Ports.Available(),

		bootInvert: env.Settings.InvertProbePin(),
	}
	if s.debounce <= 0 {
		s.debounce = RelayDebounce
	}
	s.pulse.probe = env.Hooks.ProbeState
	s.pulse.alert = s.alert
	s.spindle.alert = s.alert

	s.install()

	ok := s.nPorts > 0
	if ok {
		addr, err := env.Store.Alloc(recordSize)
		if err != nil {
			log.Println("ERROR: allocate probe protection settings:", err)
			ok = false
		} else {
			s.addr = addr
			s.hasStore = true
		}
	}

	s.load()
	if ok && env.Registry != nil {
		env.Registry.RegisterSettings(s.settingGroup())
	}
	s.claimPins()

	if !ok {
		s.deferWarning("Probe protect plugin failed to initialize!")
	}
	if s.extPinOK {
		// pick up the level of the connected pin at power on
		env.Realtime.Defer(s.recompute)
	}
	return s
}

func (s *Supervisor) install() {
	h := s.env.Hooks
	s.pulse.next = h.PulseStart.Install(Owner, s.pulse.Pulse)
	s.next.probeState = h.ProbeGetState.Install(Owner, s.probeState)
	s.next.toggle = h.ConnectedToggle.Install(Owner, s.recompute)
	s.next.reset = h.DriverReset.Install(Owner, s.reset)
	s.next.mcode = h.UserMCode.Install(Owner, firmware.MCodeHandlers{
		Check:    s.mcodeCheck,
		Validate: s.mcodeValidate,
		Execute:  s.mcodeExecute,
	})
	s.next.probeStart = h.OnProbeStart.Install(Owner, s.probeStart)
	s.next.probeCompleted = h.OnProbeCompleted.Install(Owner, s.probeCompleted)
	s.next.probeFixture = h.OnProbeFixture.Install(Owner, s.probeFixture)
	s.next.spindleSelect = h.OnSpindleSelect.Install(Owner, s.spindleSelect)
	s.next.toolSelected = h.OnToolSelected.Install(Owner, s.toolSelected)
	s.next.reportOptions = h.OnReportOptions.Install(Owner, s.reportOptions)
}

func (s *Supervisor) message(text string, typ firmware.MessageType) {
	if s.env.Messages != nil {
		s.env.Messages.Message(text, typ)
	}
}

func (s *Supervisor) deferWarning(text string) {
	s.env.Realtime.Defer(func() { s.message(text, firmware.MessageWarning) })
}

// alert requests a stop and tells the operator why. It is called from the
// step-pulse path and must not allocate.
func (s *Supervisor) alert(text string) {
	s.env.Realtime.EnqueueStop()
	s.message(text, firmware.MessageWarning)
}

func (s *Supervisor) settle() { s.env.Delay(s.debounce) }

func (s *Supervisor) reportOptions(newopt bool) {
	if s.next.reportOptions != nil {
		s.next.reportOptions(newopt)
	}
	if !newopt && s.env.Stream != nil {
		io.WriteString(s.env.Stream, ReportLine+"\r\n")
	}
}

// Status is a snapshot of the plugin state.
type Status struct {
	Connected    bool         `json:"connected"`
	Contributors Contributors `json:"contributors"`
	PulseGuard   bool         `json:"pulseGuard"`
	SpindleGuard bool         `json:"spindleGuard"`
	Fixture      bool         `json:"fixture"`
	Settings     Settings     `json:"settings"`
}

// Status returns the current plugin state. It must be called from the
// controller goroutine.
func (s *Supervisor) Status() Status {
	return Status{
		Connected:    s.contrib.Connected(),
		Contributors: s.contrib,
		PulseGuard:   s.pulse.Installed(),
		SpindleGuard: s.spindle.Armed(),
		Fixture:      s.fixture.active,
		Settings:     s.settings,
	}
}
