// Package machine drives a grbl controller as the planner below the probe
// protection controller.
package machine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mastercactapus/probeguard/coord"
	"github.com/mastercactapus/probeguard/firmware"
	"github.com/mastercactapus/probeguard/gcode"
)

// CmdReset is the grbl soft-reset realtime byte.
const CmdReset = 0x18

// maxBatch limits how many queued blocks are streamed in one write.
const maxBatch = 32

type ProbeResult struct {
	coord.Point
	Valid bool
}

type State struct {
	Status string
	MPos   coord.Point
	WCO    coord.Point

	// Pins is the Pn field of the last status report.
	Pins string

	// Probe is the last probe result reported.
	Probe ProbeResult
}

// ProbeTriggered returns true if the last status report listed the probe
// input as active.
func (s State) ProbeTriggered() bool { return strings.ContainsRune(s.Pins, 'P') }

type item struct {
	block gcode.Block
	line  string
}

// Machine streams blocks to an Adapter. It implements the planner of the
// probe protection controller.
type Machine struct {
	Adapter

	queue chan item
}

var _ firmware.Planner = &Machine{}

func NewMachine(a Adapter, queueSize int) *Machine {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Machine{
		Adapter: a,
		queue:   make(chan item, queueSize),
	}
}

// Run streams queued commands to the adapter until ctx is done.
func (m *Machine) Run(ctx context.Context) {
	var pending *item
	for {
		var it item
		if pending != nil {
			it, pending = *pending, nil
		} else {
			select {
			case <-ctx.Done():
				return
			case it = <-m.queue:
			}
		}

		if it.block == nil {
			_, err := m.Adapter.Write([]byte(it.line + "\n"))
			if err != nil {
				log.Printf("ERROR: write %q: %v", it.line, err)
			}
			continue
		}

		batch := []gcode.Block{it.block}
	gather:
		for len(batch) < maxBatch {
			select {
			case next := <-m.queue:
				if next.block == nil {
					pending = &next
					break gather
				}
				batch = append(batch, next.block)
			default:
				break gather
			}
		}

		err := m.runBlocks(batch)
		if err != nil {
			log.Println("ERROR: run blocks:", err)
		}
	}
}

func (m *Machine) runBlocks(b []gcode.Block) error {
	_, err := m.Adapter.ReadFrom(gcode.NewBuffer(&gcode.BlocksReader{Blocks: b}))
	return err
}

func (m *Machine) push(it item) bool {
	select {
	case m.queue <- it:
		return true
	default:
		return false
	}
}

// Queue schedules a block without waiting.
func (m *Machine) Queue(b gcode.Block) bool {
	return m.push(item{block: b.Clone()})
}

func (m *Machine) queueLine(line string) {
	if !m.push(item{line: line}) {
		log.Printf("ERROR: queue full, dropped %q", line)
	}
}

func (m *Machine) SetSpindle(state firmware.SpindleState, rpm float64) {
	b := gcode.Block{{W: 'M', Arg: 5}}
	switch {
	case state == firmware.SpindleIdle:
	case state&firmware.SpindleCCW != 0:
		b = gcode.Block{{W: 'M', Arg: 4}, {W: 'S', Arg: rpm}}
	default:
		b = gcode.Block{{W: 'M', Arg: 3}, {W: 'S', Arg: rpm}}
	}
	if !m.Queue(b) {
		log.Println("ERROR: queue full, dropped spindle", state)
	}
}

// ProbeState reports the probe input from the last status report. grbl has
// no connected signal so the probe is always reported connected.
func (m *Machine) ProbeState() firmware.ProbeState {
	return firmware.ProbeState{
		Triggered: m.CurrentState().ProbeTriggered(),
		Connected: true,
	}
}

func boolSetting(v bool) int {
	if v {
		return 1
	}
	return 0
}

// ConfigureProbe sets the probe pin inversion ($6).
func (m *Machine) ConfigureProbe(invert bool) {
	m.queueLine(fmt.Sprintf("$6=%d", boolSetting(invert)))
}

// EnableHardLimits sets hard limits ($21).
func (m *Machine) EnableHardLimits(on bool) {
	m.queueLine(fmt.Sprintf("$21=%d", boolSetting(on)))
}

func (m *Machine) Position() coord.Point { return m.CurrentState().MPos }

// Reset drops everything queued and soft-resets the controller.
func (m *Machine) Reset() {
drain:
	for {
		select {
		case <-m.queue:
		default:
			break drain
		}
	}
	err := m.Adapter.WriteByte(CmdReset)
	if err != nil {
		log.Println("ERROR: reset:", err)
	}
}
