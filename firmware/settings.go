package firmware

import (
	"errors"
	"sync/atomic"
)

// Settings holds the core settings plugins may override at runtime. Fields
// are read from the step-pulse path and written only by the control
// goroutine.
type Settings struct {
	invertProbePin atomic.Bool
	hardLimits     atomic.Bool
}

// NewSettings creates settings with the persisted values.
func NewSettings(invertProbePin, hardLimits bool) *Settings {
	s := &Settings{}
	s.invertProbePin.Store(invertProbePin)
	s.hardLimits.Store(hardLimits)
	return s
}

// InvertProbePin returns the active probe input polarity.
func (s *Settings) InvertProbePin() bool { return s.invertProbePin.Load() }

// SetInvertProbePin changes the active probe input polarity without
// persisting it.
func (s *Settings) SetInvertProbePin(on bool) { s.invertProbePin.Store(on) }

// HardLimitsEnabled returns true while hard limits are enabled.
func (s *Settings) HardLimitsEnabled() bool { return s.hardLimits.Load() }

// Setting is a numbered setting, listed and written with $<n>.
type Setting uint16

// Format is the value format of a setting.
type Format int

const (
	FormatInt8 Format = iota
	FormatBitfield
)

// ErrSettingValue is returned when a setting value is out of range.
var ErrSettingValue = errors.New("setting value out of range")

// SettingDetail describes one plugin setting.
type SettingDetail struct {
	ID     Setting
	Name   string
	Format Format

	// Labels is the comma separated list of bit names for bitfields.
	Labels string
	Min    uint
	Max    uint

	Description string

	Get func() uint
	Set func(v uint)
}

// SettingGroup is a set of plugin settings sharing one persisted record.
type SettingGroup struct {
	Name    string
	Details []SettingDetail

	Save    func()
	Load    func()
	Restore func()
}

// Detail returns the detail for id, if the group owns it.
func (g *SettingGroup) Detail(id Setting) (*SettingDetail, bool) {
	for i := range g.Details {
		if g.Details[i].ID == id {
			return &g.Details[i], true
		}
	}
	return nil, false
}

// Validate checks v against the limits of the setting.
func (d *SettingDetail) Validate(v uint) error {
	max := d.Max
	if d.Format == FormatBitfield && max == 0 {
		max = 1<<uint(countLabels(d.Labels)) - 1
	}
	if v < d.Min || v > max {
		return ErrSettingValue
	}
	return nil
}

func countLabels(s string) int {
	if s == "" {
		return 0
	}
	n := 1
	for _, c := range s {
		if c == ',' {
			n++
		}
	}
	return n
}

// SettingsRegistry accepts plugin setting groups at boot.
type SettingsRegistry interface {
	RegisterSettings(g *SettingGroup)
}
