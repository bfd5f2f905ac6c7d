package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint_Install(t *testing.T) {
	var calls []string
	var table Table
	p := New(&table, "on_tool_selected", func(id int) { calls = append(calls, "base") })

	var prior func(int)
	prior = p.Install("first", func(id int) {
		calls = append(calls, "first")
		prior(id)
	})
	assert.NotNil(t, prior)

	var prior2 func(int)
	prior2 = p.Install("second", func(id int) {
		calls = append(calls, "second")
		prior2(id)
	})

	p.Load()(99)
	assert.Equal(t, []string{"second", "first", "base"}, calls)
	assert.Equal(t, []string{"base", "first", "second"}, p.Owners())
	assert.Equal(t, []string{"on_tool_selected"}, table.Points())
}

func TestPoint_NilBase(t *testing.T) {
	p := New[func()](nil, "driver_reset", nil)
	assert.Nil(t, p.Load())

	prior := p.Install("plugin", func() {})
	assert.Nil(t, prior)
	assert.NotNil(t, p.Load())
}

func TestTable_Seal(t *testing.T) {
	var table Table
	p := New(&table, "pulse_start", func() {})
	table.Seal()

	assert.True(t, table.Sealed())
	assert.Panics(t, func() { p.Install("late", func() {}) })
}
