package nvs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store backed by a single file. The file is rewritten as a whole
// on every Write so a crash never leaves a half-written record behind.
type File struct {
	path string
	lock *os.File

	mx   sync.Mutex
	data []byte
	size int
	next int
}

var _ Store = &File{}

// OpenFile opens (or creates) the store at path with the given capacity and
// takes an exclusive lock on it for the lifetime of the process.
func OpenFile(path string, size int) (*File, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, err
	}
	lock, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	err = lockFile(lock)
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("nvs: lock %s: %w", path, err)
	}

	f := &File{path: path, lock: lock, size: size}
	f.data, err = os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Close releases the lock.
func (f *File) Close() error {
	unlockFile(f.lock)
	return f.lock.Close()
}

func (f *File) Alloc(size int) (Address, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	return alloc(&f.next, f.size, size)
}

func (f *File) Read(addr Address, p []byte) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if err := checkRange(addr, len(p), f.size); err != nil {
		return err
	}
	if int(addr)+len(p) > len(f.data) {
		return io.ErrUnexpectedEOF
	}
	copy(p, f.data[addr:])
	return nil
}

func (f *File) Write(addr Address, p []byte) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if err := checkRange(addr, len(p), f.size); err != nil {
		return err
	}
	data := f.data
	if end := int(addr) + len(p); end > len(data) {
		data = make([]byte, end)
		copy(data, f.data)
	} else {
		data = append([]byte(nil), data...)
	}
	copy(data[addr:], p)

	tmp := f.path + ".tmp"
	err := os.WriteFile(tmp, data, 0644)
	if err != nil {
		return err
	}
	err = os.Rename(tmp, f.path)
	if err != nil {
		return err
	}
	f.data = data
	return nil
}
