package protect

import "github.com/mastercactapus/probeguard/firmware"

// M-codes handled by the plugin.
const (
	MCodeConnect    firmware.UserMCode = 401
	MCodeDisconnect firmware.UserMCode = 402
)

func (s *Supervisor) mcodeCheck(code firmware.UserMCode) firmware.UserMCode {
	switch code {
	case MCodeConnect, MCodeDisconnect:
		return code
	}
	if s.next.mcode.Check != nil {
		return s.next.mcode.Check(code)
	}
	return firmware.UserMCodeIgnore
}

func (s *Supervisor) mcodeValidate(b *firmware.ParserBlock) firmware.Status {
	switch b.UserMCode {
	case MCodeConnect, MCodeDisconnect:
		return firmware.StatusOK
	}
	if s.next.mcode.Validate != nil {
		return s.next.mcode.Validate(b)
	}
	return firmware.StatusUnhandled
}

func (s *Supervisor) mcodeExecute(state firmware.State, b *firmware.ParserBlock) {
	switch b.UserMCode {
	case MCodeConnect:
		if state != firmware.StateCheckMode {
			s.Connect()
		}
	case MCodeDisconnect:
		if state != firmware.StateCheckMode {
			s.Disconnect()
		}
	default:
		if s.next.mcode.Execute != nil {
			s.next.mcode.Execute(state, b)
		}
	}
}

// Connect asserts the M-code connected signal, as M401 does.
func (s *Supervisor) Connect() {
	if s.contrib.MCode {
		s.message("Probe connected signal already asserted!", firmware.MessageWarning)
		return
	}
	s.contrib.MCode = true
	s.recompute()
	s.settle()
}

// Disconnect clears the M-code connected signal, as M402 does.
func (s *Supervisor) Disconnect() {
	if !s.contrib.MCode {
		s.message("Probe connected signal not asserted!", firmware.MessageWarning)
		return
	}
	s.contrib.MCode = false
	s.recompute()
	s.settle()
}
