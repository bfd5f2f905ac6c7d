// Package firmware models the host motion controller that probe protection
// plugs into: its extension points, the collaborators plugins consume, and
// the single control goroutine that owns all plugin state.
package firmware

import (
	"github.com/mastercactapus/probeguard/coord"
	"github.com/mastercactapus/probeguard/gcode"
)

// ProbeState is the state of the active probe input.
type ProbeState struct {
	Triggered bool
	Connected bool
}

// ProbeStateFunc reads the active probe input.
type ProbeStateFunc func() ProbeState

// Stepper describes the motion about to be generated.
type Stepper struct {
	Block gcode.Block
}

// PulseFunc is called once per step-pulse request. It runs on the hottest
// path of the controller and must not block or allocate.
type PulseFunc func(st *Stepper)

// SpindleState is a bit set of spindle outputs. The zero value is idle.
type SpindleState uint8

const (
	SpindleOn SpindleState = 1 << iota
	SpindleCCW
)

// SpindleIdle is the spindle stopped.
const SpindleIdle SpindleState = 0

func (s SpindleState) String() string {
	switch {
	case s == SpindleIdle:
		return "off"
	case s&SpindleCCW != 0:
		return "ccw"
	default:
		return "cw"
	}
}

// SpindleSetStateFunc changes the spindle output.
type SpindleSetStateFunc func(state SpindleState, rpm float64)

// Spindle is the set of functions of the selected spindle. Plugins may wrap
// SetState from the spindle-select hook.
type Spindle struct {
	ID       int
	SetState SpindleSetStateFunc
}

// SpindleSelectFunc is called when a spindle is selected.
type SpindleSelectFunc func(sp *Spindle) bool

// Tool is a tool table entry.
type Tool struct {
	ID uint32
}

// ToolSelectedFunc is called after a T word is executed.
type ToolSelectedFunc func(tool *Tool)

// Axes is a bit mask of axes.
type Axes uint8

const (
	AxisX Axes = 1 << iota
	AxisY
	AxisZ
)

// ProbeStartFunc is called before a probing move is started. Returning
// false aborts the move.
type ProbeStartFunc func(axes Axes, target coord.Point) bool

// ProbeCompletedFunc is called when a probing move has finished, including
// when it was aborted.
type ProbeCompletedFunc func()

// ProbeFixtureFunc is called before probing. tool is nil for ordinary
// probing and set when probing the toolsetter during a tool change.
type ProbeFixtureFunc func(tool *Tool, atG59_3, on bool) bool

// ReportOptionsFunc is called when build options are reported. newopt is
// false when the report is a plain listing.
type ReportOptionsFunc func(newopt bool)

// UserMCode is a plugin M-code number.
type UserMCode uint16

// UserMCodeIgnore is returned from a check handler for codes it does not own.
const UserMCodeIgnore UserMCode = 0

// Status is a command result code.
type Status int

const (
	StatusOK Status = iota
	StatusUnhandled
	StatusGcodeUnsupportedCommand
	StatusGcodeValueWordMissing
	StatusSettingDisabled
	StatusInvalidStatement
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnhandled:
		return "unhandled"
	case StatusGcodeUnsupportedCommand:
		return "unsupported command"
	case StatusGcodeValueWordMissing:
		return "value word missing"
	case StatusSettingDisabled:
		return "setting disabled"
	case StatusInvalidStatement:
		return "invalid statement"
	}
	return "unknown"
}

// ParserBlock is a parsed block handed to user M-code handlers.
type ParserBlock struct {
	UserMCode UserMCode
	Block     gcode.Block
}

// MCodeHandlers is the set of user M-code handlers. The set is replaced as
// a unit; see the user_mcode extension point.
type MCodeHandlers struct {
	Check    func(code UserMCode) UserMCode
	Validate func(b *ParserBlock) Status
	Execute  func(state State, b *ParserBlock)
}

// State is the controller state.
type State int

const (
	StateIdle State = iota
	StateCheckMode
	StateAlarm
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCheckMode:
		return "Check"
	case StateAlarm:
		return "Alarm"
	}
	return "Unknown"
}

// MessageType is the level of an operator message.
type MessageType int

const (
	MessagePlain MessageType = iota
	MessageInfo
	MessageWarning
)

func (t MessageType) String() string {
	switch t {
	case MessageInfo:
		return "info"
	case MessageWarning:
		return "warning"
	}
	return "plain"
}

// Messenger delivers operator messages. Message may be called from the
// step-pulse path and must not block.
type Messenger interface {
	Message(text string, typ MessageType)
}

// InterruptFunc is called from the pin driver when an input changes level.
type InterruptFunc func(port uint8, high bool)

// Ports is the digital input driver.
type Ports interface {
	// Available returns the number of digital inputs.
	Available() int

	// Claim reserves an input for a named function and returns the index
	// to use for subsequent calls.
	Claim(port uint8, name string) (uint8, error)

	// Read returns the current input level.
	Read(port uint8) bool

	// RegisterInterrupt calls fn whenever the input changes level.
	RegisterInterrupt(port uint8, fn InterruptFunc) error
}

// Realtime is the realtime command queue of the control goroutine. All
// methods are safe to call from any goroutine and never block.
type Realtime interface {
	// EnqueueStop requests a machine halt on the next control cycle.
	EnqueueStop()

	// EnqueueConnectedToggle requests a re-evaluation of the probe
	// connected state on the next control cycle.
	EnqueueConnectedToggle()

	// Defer runs fn on the control goroutine.
	Defer(fn func())
}

// Limits switches hard limits.
type Limits interface {
	EnableHardLimits(on bool)
}
