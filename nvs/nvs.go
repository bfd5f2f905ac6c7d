// Package nvs provides the non-volatile settings storage used by plugins.
//
// A Store is a flat byte area. Plugins reserve a region once with Alloc and
// then read and write it as a whole record.
package nvs

import (
	"errors"
	"sync"
)

// Address is the offset of an allocated region.
type Address int

var (
	// ErrNoSpace is returned from Alloc when the store is full.
	ErrNoSpace = errors.New("nvs: no space left")

	// ErrRange is returned for transfers outside of the store.
	ErrRange = errors.New("nvs: address out of range")

	// ErrUnwritten is returned when reading a region that was never written.
	ErrUnwritten = errors.New("nvs: region not written")
)

// Store is a persistent byte area.
type Store interface {
	Alloc(size int) (Address, error)
	Read(addr Address, p []byte) error
	Write(addr Address, p []byte) error
}

// Memory is a volatile Store, mostly useful for tests and simulation.
type Memory struct {
	mx      sync.Mutex
	data    []byte
	written []bool
	next    int
}

var _ Store = &Memory{}

// NewMemory creates a Memory store of the given size.
func NewMemory(size int) *Memory {
	return &Memory{
		data:    make([]byte, size),
		written: make([]bool, size),
	}
}

func (m *Memory) Alloc(size int) (Address, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return alloc(&m.next, len(m.data), size)
}

func (m *Memory) Read(addr Address, p []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := checkRange(addr, len(p), len(m.data)); err != nil {
		return err
	}
	for _, w := range m.written[addr : int(addr)+len(p)] {
		if !w {
			return ErrUnwritten
		}
	}
	copy(p, m.data[addr:])
	return nil
}

func (m *Memory) Write(addr Address, p []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := checkRange(addr, len(p), len(m.data)); err != nil {
		return err
	}
	copy(m.data[addr:], p)
	for i := range p {
		m.written[int(addr)+i] = true
	}
	return nil
}

// Corrupt overwrites a region without going through a record codec.
func (m *Memory) Corrupt(addr Address, p []byte) {
	m.mx.Lock()
	defer m.mx.Unlock()
	copy(m.data[addr:], p)
}

func alloc(next *int, capacity, size int) (Address, error) {
	if size <= 0 || *next+size > capacity {
		return 0, ErrNoSpace
	}
	addr := Address(*next)
	*next += size
	return addr, nil
}

func checkRange(addr Address, n, capacity int) error {
	if addr < 0 || int(addr)+n > capacity {
		return ErrRange
	}
	return nil
}
