package protect

import "github.com/mastercactapus/probeguard/firmware"

// Contributors are the independent sources of the probe connected state.
type Contributors struct {
	// Toggle is reserved for a hardware toggle source.
	Toggle bool `json:"toggle"`

	// MCode is set by M401 and cleared by M402.
	MCode bool `json:"mcode"`

	// ExtPin is the polarity corrected level of the connected input.
	ExtPin bool `json:"extPin"`

	// T99 is set while the probe tool is selected.
	T99 bool `json:"t99"`
}

// Connected returns true if any contributor is set.
func (c Contributors) Connected() bool {
	return c.Toggle || c.MCode || c.ExtPin || c.T99
}

// Contributors returns the current contributors.
func (s *Supervisor) Contributors() Contributors { return s.contrib }

// Connected returns the aggregate connected state.
func (s *Supervisor) Connected() bool { return s.contrib.Connected() }

// recompute re-reads the connected input and arms or disarms the guards.
// It is the handler of the connected-toggle extension point.
func (s *Supervisor) recompute() {
	f := s.settings.Flags
	if f.ExtPin && s.extPinOK {
		s.contrib.ExtPin = s.env.Ports.Read(s.connectPort) != f.ExtPinInvert
	}

	if s.contrib.ExtPin {
		s.message("External Probe connected!", firmware.MessageInfo)
	}
	if s.contrib.T99 {
		s.message("T99 Probe connected!", firmware.MessageInfo)
	}
	if s.contrib.MCode {
		s.message("Mcode Probe connected!", firmware.MessageInfo)
	}
	if s.contrib.Toggle {
		s.message("Probe connect toggled on", firmware.MessageInfo)
	}

	if s.contrib.Connected() {
		s.pulse.Arm()
		s.spindle.Arm()
	} else {
		s.pulse.Disarm()
		s.spindle.Disarm()
		s.message("Probe disconnected, protection off.", firmware.MessageInfo)
	}

	if !s.env.Hooks.ProbeState().Connected && s.next.toggle != nil {
		s.next.toggle()
	}
}

func (s *Supervisor) toolSelected(tool *firmware.Tool) {
	s.contrib.T99 = tool != nil && tool.ID == ProbeToolID
	s.recompute()

	if s.next.toolSelected != nil {
		s.next.toolSelected(tool)
	}
}
