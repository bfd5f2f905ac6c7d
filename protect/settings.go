package protect

import (
	"errors"
	"fmt"
	"log"

	"github.com/mastercactapus/probeguard/firmware"
)

// Setting numbers of the plugin.
const (
	SettingProtectPort firmware.Setting = 457
	SettingToolPort    firmware.Setting = 458
	SettingFlags       firmware.Setting = 459
)

// FlagLabels names the bits of the flags setting, lowest bit first.
const FlagLabels = "Invert Tool Probe,Hard Limits,External Connected Pin,Invert External Connected Pin,Alternate Tool Probe Pin,Invert Tool Probe Pin"

const (
	recordVersion = 1
	recordSize    = 5
)

// ErrCorrupt is returned when a stored settings record cannot be decoded.
var ErrCorrupt = errors.New("corrupt probe protection settings")

// Flags are the boolean probe protection settings.
type Flags struct {
	// InvertToolProbe inverts the probe input while measuring the
	// toolsetter.
	InvertToolProbe bool `json:"invertToolProbe"`

	// HardLimits enables hard limits while measuring the toolsetter.
	HardLimits bool `json:"hardLimits"`

	// ExtPin uses an input as a connected signal.
	ExtPin       bool `json:"extPin"`
	ExtPinInvert bool `json:"extPinInvert"`

	// ToolPin reads the toolsetter from its own input while measuring it.
	ToolPin       bool `json:"toolPin"`
	ToolPinInvert bool `json:"toolPinInvert"`
}

const (
	flagInvertToolProbe = 1 << iota
	flagHardLimits
	flagExtPin
	flagExtPinInvert
	flagToolPin
	flagToolPinInvert

	flagMask = 1<<iota - 1
)

// Bits returns the flags as the value of the flags setting.
func (f Flags) Bits() uint8 {
	var v uint8
	set := func(on bool, bit uint8) {
		if on {
			v |= bit
		}
	}
	set(f.InvertToolProbe, flagInvertToolProbe)
	set(f.HardLimits, flagHardLimits)
	set(f.ExtPin, flagExtPin)
	set(f.ExtPinInvert, flagExtPinInvert)
	set(f.ToolPin, flagToolPin)
	set(f.ToolPinInvert, flagToolPinInvert)
	return v
}

// FlagsFromBits decodes the value of the flags setting. Unknown bits are
// ignored.
func FlagsFromBits(v uint8) Flags {
	return Flags{
		InvertToolProbe: v&flagInvertToolProbe != 0,
		HardLimits:      v&flagHardLimits != 0,
		ExtPin:          v&flagExtPin != 0,
		ExtPinInvert:    v&flagExtPinInvert != 0,
		ToolPin:         v&flagToolPin != 0,
		ToolPinInvert:   v&flagToolPinInvert != 0,
	}
}

// Settings are the persisted probe protection settings.
type Settings struct {
	// ProtectPort is the input used as the connected signal.
	ProtectPort uint8 `json:"protectPort"`

	// ToolPort is the input the toolsetter is read from.
	ToolPort uint8 `json:"toolPort"`

	Flags Flags `json:"flags"`
}

// DefaultSettings returns the settings used when none are stored: both
// ports on the last input and every flag cleared.
func DefaultSettings(nPorts int) Settings {
	port := lastPort(nPorts, 1)
	return Settings{ProtectPort: port, ToolPort: port}
}

func lastPort(nPorts, back int) uint8 {
	if nPorts-back < 0 {
		return 0
	}
	return uint8(nPorts - back)
}

// Clamp moves out of range ports back to usable inputs. The connected port
// falls back to the last input, the tool port to the one before it.
func (s Settings) Clamp(nPorts int) Settings {
	if int(s.ProtectPort) >= nPorts {
		s.ProtectPort = lastPort(nPorts, 1)
	}
	if int(s.ToolPort) >= nPorts {
		s.ToolPort = lastPort(nPorts, 2)
	}
	return s
}

func checksum(p []byte) byte {
	var sum byte
	for _, b := range p {
		sum = sum<<1 | sum>>7
		sum += b
	}
	return sum
}

// MarshalBinary encodes the settings as a stored record.
func (s Settings) MarshalBinary() ([]byte, error) {
	p := []byte{recordVersion, s.ProtectPort, s.ToolPort, s.Flags.Bits(), 0}
	p[recordSize-1] = checksum(p[:recordSize-1])
	return p, nil
}

// UnmarshalBinary decodes a stored record.
func (s *Settings) UnmarshalBinary(p []byte) error {
	if len(p) != recordSize {
		return fmt.Errorf("record size %d: %w", len(p), ErrCorrupt)
	}
	if p[0] != recordVersion {
		return fmt.Errorf("record version %d: %w", p[0], ErrCorrupt)
	}
	if checksum(p[:recordSize-1]) != p[recordSize-1] {
		return fmt.Errorf("checksum mismatch: %w", ErrCorrupt)
	}
	if p[3]&^flagMask != 0 {
		return fmt.Errorf("unknown flags %#x: %w", p[3], ErrCorrupt)
	}
	*s = Settings{
		ProtectPort: p[1],
		ToolPort:    p[2],
		Flags:       FlagsFromBits(p[3]),
	}
	return nil
}

// Settings returns the active settings.
func (s *Supervisor) Settings() Settings { return s.settings }

// load reads the stored settings, falling back to (and storing) the defaults
// if they can't be read.
func (s *Supervisor) load() {
	err := errors.New("no settings storage")
	if s.hasStore {
		p := make([]byte, recordSize)
		err = s.env.Store.Read(s.addr, p)
		if err == nil {
			err = s.settings.UnmarshalBinary(p)
		}
	}
	if err != nil {
		log.Println("ERROR: load probe protection settings:", err)
		s.restoreDefaults()
	}

	s.settings = s.settings.Clamp(s.nPorts)
	s.connectPort = s.settings.ProtectPort
	s.toolPort = s.settings.ToolPort
}

func (s *Supervisor) save() {
	if !s.hasStore {
		return
	}
	p, err := s.settings.MarshalBinary()
	if err == nil {
		err = s.env.Store.Write(s.addr, p)
	}
	if err != nil {
		log.Println("ERROR: save probe protection settings:", err)
	}
}

func (s *Supervisor) restoreDefaults() {
	s.settings = DefaultSettings(s.nPorts)
	s.save()
}

// claimPins reserves the inputs enabled by the flags. Changing the ports or
// flags requires a restart.
func (s *Supervisor) claimPins() {
	f := s.settings.Flags
	if f.ExtPin {
		s.extPinOK = s.claimConnectPin()
	}
	if f.ToolPin {
		port, err := s.env.Ports.Claim(s.settings.ToolPort, "Toolsetter G59.3")
		if err != nil {
			log.Printf("ERROR: claim toolsetter input %d: %v", s.settings.ToolPort, err)
			s.deferWarning("Probe plugin: configured port number is not available")
		} else {
			s.toolPort = port
			s.toolPinOK = true
		}
	}
}

func (s *Supervisor) claimConnectPin() bool {
	port, err := s.env.Ports.Claim(s.settings.ProtectPort, "Probe Connected")
	if err == nil {
		s.connectPort = port
		err = s.env.Ports.RegisterInterrupt(port, func(uint8, bool) {
			s.env.Realtime.EnqueueConnectedToggle()
		})
	}
	if err != nil {
		log.Printf("ERROR: probe connected input %d: %v", s.settings.ProtectPort, err)
		s.deferWarning("Probe plugin: configured port number is not available")
		return false
	}
	return true
}

func (s *Supervisor) settingGroup() *firmware.SettingGroup {
	maxPort := uint(lastPort(s.nPorts, 1))
	return &firmware.SettingGroup{
		Name: "Probe Protection",
		Details: []firmware.SettingDetail{
			{
				ID:     SettingProtectPort,
				Name:   "Probe Connected Aux Input",
				Format: firmware.FormatInt8,
				Max:    maxPort,
				Description: "Aux input port number to use for probe connected control.\n\n" +
					"NOTE: A hard reset of the controller is required after changing this setting.",
				Get: func() uint { return uint(s.settings.ProtectPort) },
				Set: func(v uint) { s.settings.ProtectPort = uint8(v) },
			},
			{
				ID:     SettingToolPort,
				Name:   "Tool Probe Aux Input",
				Format: firmware.FormatInt8,
				Max:    maxPort,
				Description: "Aux input port number to use for tool probing at G59.3.\n\n" +
					"NOTE: A hard reset of the controller is required after changing this setting.",
				Get: func() uint { return uint(s.settings.ToolPort) },
				Set: func(v uint) { s.settings.ToolPort = uint8(v) },
			},
			{
				ID:     SettingFlags,
				Name:   "Probe Protection Flags",
				Format: firmware.FormatBitfield,
				Labels: FlagLabels,
				Description: "Inversion setting for Probe signal during tool measurement.\n" +
					"Enable hard limits during tool probe.\n" +
					"Enable external pin input for probe connected signal.\n" +
					"Invert external pin input for probe connected signal.\n\n" +
					"Enable alternate pin input for Tool Probe signal.\n" +
					"Invert alternate pin input for Tool Probe signal.\n\n" +
					"NOTE: A hard reset of the controller is required after changing this setting.",
				Get: func() uint { return uint(s.settings.Flags.Bits()) },
				Set: func(v uint) { s.settings.Flags = FlagsFromBits(uint8(v)) },
			},
		},
		Save:    s.save,
		Load:    s.load,
		Restore: s.restoreDefaults,
	}
}
