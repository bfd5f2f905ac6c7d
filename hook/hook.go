// Package hook implements chained extension points.
//
// A Point holds the active handler for one extension point. Plugins wrap it
// at boot by calling Install, which returns the handler they replaced so the
// new handler can forward to it. Reads are lock-free so the active handler
// may be fetched from a step-pulse context.
package hook

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Point is a single extension point holding a handler of type F.
type Point[F any] struct {
	name  string
	table *Table

	fn atomic.Pointer[F]

	mx     sync.Mutex
	owners []string
}

// Load returns the active handler, or the zero value if none is set.
func (p *Point[F]) Load() F {
	if fn := p.fn.Load(); fn != nil {
		return *fn
	}
	var zero F
	return zero
}

// Name returns the extension point name.
func (p *Point[F]) Name() string { return p.name }

// Install makes fn the active handler and returns the handler it replaced.
//
// Install panics if the owning table has been sealed.
func (p *Point[F]) Install(owner string, fn F) (prior F) {
	if p.table != nil && p.table.Sealed() {
		panic(fmt.Sprintf("hook: install of %q on %s after boot", owner, p.name))
	}
	p.mx.Lock()
	defer p.mx.Unlock()

	prior = p.Load()
	p.fn.Store(&fn)
	p.owners = append(p.owners, owner)
	return prior
}

// Owners returns the install record, oldest first. The base handler
// registered with the point is listed as "base".
func (p *Point[F]) Owners() []string {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]string(nil), p.owners...)
}

// Table groups the extension points that are composed during boot.
type Table struct {
	sealed atomic.Bool

	mx     sync.Mutex
	points []string
}

// Seal ends the boot phase. Any Install after Seal panics.
func (t *Table) Seal() { t.sealed.Store(true) }

// Sealed returns true once boot has completed.
func (t *Table) Sealed() bool { return t.sealed.Load() }

// Points returns the names of every registered point.
func (t *Table) Points() []string {
	t.mx.Lock()
	defer t.mx.Unlock()
	return append([]string(nil), t.points...)
}

// New registers a new extension point with base as its initial handler.
// A nil table creates a free-standing point that can never be sealed.
func New[F any](t *Table, name string, base F) *Point[F] {
	p := &Point[F]{name: name, table: t}
	p.fn.Store(&base)
	p.owners = []string{"base"}
	if t != nil {
		t.mx.Lock()
		t.points = append(t.points, name)
		t.mx.Unlock()
	}
	return p
}
