// Package ioport provides digital input drivers for the controller.
package ioport

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoPort is returned for a port number that does not exist.
	ErrNoPort = errors.New("no such input port")

	// ErrClaimed is returned when claiming a port twice.
	ErrClaimed = errors.New("input port already claimed")
)

// bank tracks which inputs have been claimed and by whom.
type bank struct {
	mx     sync.Mutex
	names  []string
	claims []string
}

func newBank(names []string) bank {
	return bank{
		names:  names,
		claims: make([]string, len(names)),
	}
}

func (b *bank) claim(port uint8, name string) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if int(port) >= len(b.names) {
		return fmt.Errorf("input %d: %w", port, ErrNoPort)
	}
	if b.claims[port] != "" {
		return fmt.Errorf("input %d (%s): %w", port, b.claims[port], ErrClaimed)
	}
	b.claims[port] = name
	return nil
}

func (b *bank) check(port uint8) error {
	if int(port) >= len(b.names) {
		return fmt.Errorf("input %d: %w", port, ErrNoPort)
	}
	return nil
}

// Description is the state of one input.
type Description struct {
	Port  uint8  `json:"port"`
	Pin   string `json:"pin"`
	Claim string `json:"claim,omitempty"`
}

func (b *bank) describe() []Description {
	b.mx.Lock()
	defer b.mx.Unlock()
	res := make([]Description, len(b.names))
	for i, name := range b.names {
		res[i] = Description{Port: uint8(i), Pin: name, Claim: b.claims[i]}
	}
	return res
}
