package ioport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mastercactapus/probeguard/firmware"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgePoll bounds how long an interrupt goroutine waits before checking
// for Close.
const edgePoll = 250 * time.Millisecond

// Periph drives inputs on host GPIO pins through periph.io. Port n is the
// n'th pin name given to NewPeriph.
type Periph struct {
	bank

	pins []gpio.PinIO

	done chan struct{}
	wg   sync.WaitGroup
}

var _ firmware.Ports = &Periph{}

// NewPeriph initializes the host drivers and looks up the named pins, for
// example "GPIO17".
func NewPeriph(names []string) (*Periph, error) {
	_, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("init host gpio: %w", err)
	}

	p := &Periph{
		bank: newBank(names),
		pins: make([]gpio.PinIO, len(names)),
		done: make(chan struct{}),
	}
	for i, name := range names {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("gpio pin %q: %w", name, ErrNoPort)
		}
		p.pins[i] = pin
	}
	return p, nil
}

func (p *Periph) Available() int { return len(p.pins) }

// Claim reserves the input and configures it with a pull-up.
func (p *Periph) Claim(port uint8, name string) (uint8, error) {
	err := p.claim(port, name)
	if err != nil {
		return 0, err
	}
	err = p.pins[port].In(gpio.PullUp, gpio.NoEdge)
	if err != nil {
		return 0, fmt.Errorf("configure %s: %w", p.pins[port], err)
	}
	return port, nil
}

func (p *Periph) Read(port uint8) bool {
	if p.check(port) != nil {
		return false
	}
	return p.pins[port].Read() == gpio.High
}

// RegisterInterrupt enables edge detection on the input and calls fn from a
// dedicated goroutine on every level change.
func (p *Periph) RegisterInterrupt(port uint8, fn firmware.InterruptFunc) error {
	if err := p.check(port); err != nil {
		return err
	}
	pin := p.pins[port]
	err := pin.In(gpio.PullUp, gpio.BothEdges)
	if err != nil {
		return fmt.Errorf("edge detection on %s: %w", pin, err)
	}

	p.wg.Add(1)
	go p.watch(port, pin, fn)
	return nil
}

func (p *Periph) watch(port uint8, pin gpio.PinIO, fn firmware.InterruptFunc) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		default:
		}
		if pin.WaitForEdge(edgePoll) {
			fn(port, pin.Read() == gpio.High)
		}
	}
}

// Describe lists every input and its claim.
func (p *Periph) Describe() []Description { return p.describe() }

// Close stops interrupt delivery and releases the pins.
func (p *Periph) Close() error {
	close(p.done)
	var errs []error
	for _, pin := range p.pins {
		if err := pin.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	p.wg.Wait()
	return errors.Join(errs...)
}
