package ioport

import (
	"fmt"
	"sync"

	"github.com/mastercactapus/probeguard/firmware"
)

// Sim is a set of simulated inputs. Levels are changed with Set.
type Sim struct {
	bank

	mx       sync.Mutex
	levels   []bool
	handlers []firmware.InterruptFunc
}

var _ firmware.Ports = &Sim{}

// NewSim creates n simulated inputs, all low.
func NewSim(n int) *Sim {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("sim%d", i)
	}
	return &Sim{
		bank:     newBank(names),
		levels:   make([]bool, n),
		handlers: make([]firmware.InterruptFunc, n),
	}
}

func (s *Sim) Available() int { return len(s.levels) }

func (s *Sim) Claim(port uint8, name string) (uint8, error) {
	return port, s.claim(port, name)
}

func (s *Sim) Read(port uint8) bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.check(port) != nil {
		return false
	}
	return s.levels[port]
}

func (s *Sim) RegisterInterrupt(port uint8, fn firmware.InterruptFunc) error {
	if err := s.check(port); err != nil {
		return err
	}
	s.mx.Lock()
	s.handlers[port] = fn
	s.mx.Unlock()
	return nil
}

// Set changes the level of an input. A registered interrupt handler is
// called, from the calling goroutine, if the level changed.
func (s *Sim) Set(port uint8, high bool) error {
	if err := s.check(port); err != nil {
		return err
	}
	s.mx.Lock()
	changed := s.levels[port] != high
	s.levels[port] = high
	fn := s.handlers[port]
	s.mx.Unlock()

	if changed && fn != nil {
		fn(port, high)
	}
	return nil
}

// Describe lists every input and its claim.
func (s *Sim) Describe() []Description { return s.describe() }
