package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"

	"github.com/mastercactapus/probeguard/coord"
	"github.com/mastercactapus/probeguard/gcode"
)

// Realtime command bytes accepted by Controller.Realtime.
const (
	CmdReset                = 0x18
	CmdProbeConnectedToggle = 0xA0
)

var (
	// ErrLocked is returned for blocks sent while the controller is in alarm.
	ErrLocked = errors.New("alarm lock, use $X to unlock")

	// ErrBusy is returned when the downstream planner cannot accept a block.
	ErrBusy = errors.New("planner buffer full")

	// ErrUnsupported is returned for commands the controller does not know.
	ErrUnsupported = errors.New("unsupported command")

	// ErrProbeAborted is returned when a probe hook refused to start a
	// probing move.
	ErrProbeAborted = errors.New("probing aborted")
)

// Planner executes motion downstream of the controller. It sits at the
// bottom of the pulse, spindle, probe and reset chains.
type Planner interface {
	// Queue schedules a block. It must not block; false means the block
	// was not accepted.
	Queue(b gcode.Block) bool

	SetSpindle(state SpindleState, rpm float64)
	ProbeState() ProbeState
	ConfigureProbe(invert bool)
	EnableHardLimits(on bool)

	// Position returns the last known machine position.
	Position() coord.Point

	// Reset halts all motion and clears queued blocks.
	Reset()
}

// Config configures a Controller.
type Config struct {
	ToolChange *ToolChangeConfig

	// QueueSize is the capacity of the operator work queue.
	QueueSize int
}

type job struct {
	fn   func() error
	done chan error
}

// Controller is the control cycle. Everything that touches plugin state runs
// on the goroutine executing Run.
type Controller struct {
	Hooks    *Hooks
	Settings *Settings

	cfg     Config
	planner Planner
	msg     Messenger
	out     io.Writer

	stop     atomic.Bool
	wake     chan struct{}
	toggle   chan struct{}
	deferred chan func()
	work     chan job

	booted  bool
	state   atomic.Int32
	tool    Tool
	spindle *Spindle
	stepper Stepper
	dropped bool
	groups  []*SettingGroup
}

var (
	_ Realtime         = &Controller{}
	_ Limits           = &Controller{}
	_ SettingsRegistry = &Controller{}
)

// NewController creates a controller driving the given planner. Operator
// messages go to msg, reports to out.
func NewController(cfg Config, settings *Settings, p Planner, msg Messenger, out io.Writer) *Controller {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	c := &Controller{
		Settings: settings,
		cfg:      cfg,
		planner:  p,
		msg:      msg,
		out:      out,
		wake:     make(chan struct{}, 1),
		toggle:   make(chan struct{}, 1),
		deferred: make(chan func(), 16),
		work:     make(chan job, cfg.QueueSize),
	}
	c.Hooks = NewHooks(Base{
		PulseStart:       c.queuePulse,
		ProbeGetState:    p.ProbeState,
		DriverReset:      c.resetPlanner,
		OnProbeStart:     c.configureProbe,
		OnProbeCompleted: c.restoreProbe,
		OnReportOptions:  func(bool) {},
	})
	return c
}

func (c *Controller) queuePulse(st *Stepper) {
	if !c.planner.Queue(st.Block) {
		c.dropped = true
	}
}

func (c *Controller) configureProbe(axes Axes, target coord.Point) bool {
	c.planner.ConfigureProbe(c.Settings.InvertProbePin())
	return true
}

// restoreProbe pushes the probe polarity back downstream once plugins have
// restored it.
func (c *Controller) restoreProbe() {
	c.planner.ConfigureProbe(c.Settings.InvertProbePin())
}

func (c *Controller) resetPlanner() {
	c.planner.Reset()
	c.planner.ConfigureProbe(c.Settings.InvertProbePin())
}

// EnqueueStop requests a halt. Repeated requests before the next control
// cycle collapse into one.
func (c *Controller) EnqueueStop() {
	c.stop.Store(true)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// EnqueueConnectedToggle requests a run of the connected-toggle chain.
func (c *Controller) EnqueueConnectedToggle() {
	select {
	case c.toggle <- struct{}{}:
	default:
	}
}

// Defer runs fn on the control goroutine. If the deferred queue is full fn
// is dropped.
func (c *Controller) Defer(fn func()) {
	select {
	case c.deferred <- fn:
	default:
		log.Println("ERROR: deferred command queue full")
	}
}

// Realtime handles a realtime command byte.
func (c *Controller) Realtime(b byte) bool {
	switch b {
	case CmdReset:
		c.EnqueueStop()
	case CmdProbeConnectedToggle:
		c.EnqueueConnectedToggle()
	default:
		return false
	}
	return true
}

// EnableHardLimits switches hard limits on the planner.
func (c *Controller) EnableHardLimits(on bool) {
	c.Settings.hardLimits.Store(on)
	c.planner.EnableHardLimits(on)
}

// RegisterSettings adds a plugin setting group.
func (c *Controller) RegisterSettings(g *SettingGroup) { c.groups = append(c.groups, g) }

// State returns the controller state.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) { c.state.Store(int32(s)) }

// Boot ends plugin initialization: it selects the spindle and seals the
// hook table. Run calls Boot if it has not been called.
func (c *Controller) Boot() {
	if c.booted {
		return
	}
	c.booted = true

	sp := &Spindle{SetState: c.planner.SetSpindle}
	if fn := c.Hooks.OnSpindleSelect.Load(); fn != nil && !fn(sp) {
		log.Println("ERROR: spindle select rejected")
	}
	c.spindle = sp
	c.Hooks.Seal()
}

// Run executes the control cycle until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.Boot()
	for {
		if c.stop.Swap(false) {
			c.reset()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		case <-c.toggle:
			if fn := c.Hooks.ConnectedToggle.Load(); fn != nil {
				fn()
			}
		case fn := <-c.deferred:
			fn()
		case j := <-c.work:
			j.done <- j.fn()
		}
	}
}

func (c *Controller) reset() {
	if fn := c.Hooks.DriverReset.Load(); fn != nil {
		fn()
	}
	c.setState(StateAlarm)
	c.message("Reset to continue", MessagePlain)
}

func (c *Controller) message(text string, typ MessageType) {
	if c.msg != nil {
		c.msg.Message(text, typ)
	}
}

// Submit runs fn on the control goroutine and waits for its result.
func (c *Controller) Submit(ctx context.Context, fn func() error) error {
	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case c.work <- j:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exec runs one operator line on the control goroutine.
func (c *Controller) Exec(ctx context.Context, line string) error {
	return c.Submit(ctx, func() error { return c.ExecLine(line) })
}

// ExecLine executes one operator line. It must be called from the control
// goroutine (or before Run, during tests and boot scripts).
func (c *Controller) ExecLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if line[0] == '$' {
		return c.execSystem(line)
	}

	blocks, err := gcode.Parse(line)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		err = c.execBlock(b)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) execBlock(b gcode.Block) error {
	err := b.Validate()
	if err != nil {
		return err
	}
	state := c.State()
	if state == StateAlarm {
		return ErrLocked
	}

	if code, ok := b.UserMCode(); ok {
		return c.execUserMCode(state, UserMCode(code), b)
	}

	if ok, id := b.Arg('T'); ok {
		c.tool = Tool{ID: uint32(id)}
		if fn := c.Hooks.OnToolSelected.Load(); fn != nil && state != StateCheckMode {
			tool := c.tool
			fn(&tool)
		}
	}

	if w, ok := b.Modal(gcode.ModalGroupToolChange); ok && w.Arg == 6 && state != StateCheckMode {
		err = c.toolChange()
		if err != nil {
			return err
		}
	}

	if w, ok := b.Modal(gcode.ModalGroupSpindle); ok && state != StateCheckMode {
		_, rpm := b.Arg('S')
		c.spindle.SetState(spindleState(w.Arg), rpm)
	}

	if state == StateCheckMode {
		return nil
	}

	if b.IsProbe() {
		return c.probe(b, nil, c.atToolsetter())
	}
	if b.HasMotion() {
		return c.pulse(b)
	}
	return nil
}

func spindleState(m float64) SpindleState {
	switch m {
	case 3:
		return SpindleOn
	case 4:
		return SpindleOn | SpindleCCW
	}
	return SpindleIdle
}

func (c *Controller) execUserMCode(state State, code UserMCode, b gcode.Block) error {
	h := c.Hooks.UserMCode.Load()
	if h.Check == nil || h.Check(code) == UserMCodeIgnore {
		return fmt.Errorf("M%d: %w", code, ErrUnsupported)
	}
	pb := &ParserBlock{UserMCode: code, Block: b}
	if h.Validate != nil {
		if st := h.Validate(pb); st != StatusOK {
			return fmt.Errorf("M%d: %s", code, st)
		}
	}
	if h.Execute != nil {
		h.Execute(state, pb)
	}
	return nil
}

// pulse passes a motion block through the pulse chain.
func (c *Controller) pulse(b gcode.Block) error {
	c.stepper.Block = b
	c.dropped = false
	if fn := c.Hooks.PulseStart.Load(); fn != nil {
		fn(&c.stepper)
	}
	if c.dropped {
		return ErrBusy
	}
	return nil
}

func probeTarget(b gcode.Block) (Axes, coord.Point) {
	var axes Axes
	var p coord.Point
	for _, w := range b {
		switch w.W {
		case 'X':
			axes |= AxisX
			p.X = w.Arg
		case 'Y':
			axes |= AxisY
			p.Y = w.Arg
		case 'Z':
			axes |= AxisZ
			p.Z = w.Arg
		}
	}
	return axes, p
}

// probe runs a probing move. tool is set when probing the toolsetter
// during a tool change. The completed chain runs on every exit, including
// a fixture handler refusing the move after applying its overrides.
func (c *Controller) probe(b gcode.Block, tool *Tool, at bool) error {
	defer func() {
		if fn := c.Hooks.OnProbeCompleted.Load(); fn != nil {
			fn()
		}
	}()

	if fn := c.Hooks.OnProbeFixture.Load(); fn != nil && !fn(tool, at, true) {
		return ErrProbeAborted
	}

	axes, target := probeTarget(b)
	if fn := c.Hooks.OnProbeStart.Load(); fn != nil && !fn(axes, target) {
		return ErrProbeAborted
	}
	return c.pulse(b)
}

func (c *Controller) atToolsetter() bool {
	tc := c.cfg.ToolChange
	if tc == nil {
		return false
	}
	return tc.ProbePos.WithinXY(c.planner.Position(), tc.radius())
}
