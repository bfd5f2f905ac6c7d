package protect

import (
	"testing"

	"github.com/mastercactapus/probeguard/firmware"
	"github.com/stretchr/testify/assert"
)

func TestSupervisor_RecomputeCombinations(t *testing.T) {
	for _, invert := range []bool{false, true} {
		set := DefaultSettings(4)
		set.Flags.ExtPin = true
		set.Flags.ExtPinInvert = invert
		h := newHarness(t, withStored(set))

		for i := 0; i < 16; i++ {
			h.s.contrib = Contributors{
				Toggle: i&1 != 0,
				MCode:  i&2 != 0,
				T99:    i&8 != 0,
			}
			extPin := i&4 != 0
			h.ports.levels[set.ProtectPort] = extPin != invert

			h.s.recompute()

			expected := i != 0
			assert.Equal(t, extPin, h.s.contrib.ExtPin, "combination %d invert=%v", i, invert)
			assert.Equal(t, expected, h.s.Connected(), "combination %d invert=%v", i, invert)
			assert.Equal(t, expected, h.s.pulse.Installed(), "combination %d invert=%v", i, invert)
			assert.Equal(t, expected, h.s.spindle.Armed(), "combination %d invert=%v", i, invert)
		}
	}
}

func TestSupervisor_RecomputeMessages(t *testing.T) {
	h := newHarness(t)

	h.s.contrib = Contributors{Toggle: true, MCode: true, T99: true}
	h.s.recompute()
	assert.Equal(t, []string{
		"T99 Probe connected!",
		"Mcode Probe connected!",
		"Probe connect toggled on",
	}, h.msg.texts(firmware.MessageInfo))

	h.msg.msgs = nil
	h.s.contrib = Contributors{}
	h.s.recompute()
	assert.Equal(t, []string{"Probe disconnected, protection off."}, h.msg.texts(firmware.MessageInfo))
}

func TestSupervisor_RecomputeRawDisconnected(t *testing.T) {
	h := newHarness(t)

	h.s.recompute()
	assert.Equal(t, 0, h.toggles)

	h.probe.Connected = false
	h.s.recompute()
	assert.Equal(t, 1, h.toggles)

	// the toggle hook runs the same path
	h.hooks.ConnectedToggle.Load()()
	assert.Equal(t, 2, h.toggles)
}

func TestSupervisor_ExtPinInterrupt(t *testing.T) {
	set := DefaultSettings(4)
	set.ProtectPort = 1
	set.Flags.ExtPin = true
	h := newHarness(t, withStored(set))

	assert.Equal(t, "Probe Connected", h.ports.claimed[1])
	if assert.Contains(t, h.ports.irq, uint8(1)) {
		h.ports.irq[1](1, true)
	}
	assert.Equal(t, 1, h.rt.toggles)
	assert.False(t, h.s.Connected())

	// the power-on level is evaluated once the controller runs
	h.ports.levels[1] = true
	h.rt.runDeferred()
	assert.True(t, h.s.Connected())
	assert.Equal(t, []string{"External Probe connected!"}, h.msg.texts(firmware.MessageInfo))
}

func TestSupervisor_ToolSelected(t *testing.T) {
	var selected []uint32
	h := newHarness(t, func(h *harness, env *Env) {
		h.hooks.OnToolSelected.Install("test", func(tool *firmware.Tool) {
			selected = append(selected, tool.ID)
		})
	})
	h.s.contrib.Toggle = true

	h.hooks.OnToolSelected.Load()(&firmware.Tool{ID: 99})
	assert.True(t, h.s.contrib.T99)
	assert.True(t, h.s.Connected())

	h.hooks.OnToolSelected.Load()(&firmware.Tool{ID: 5})
	assert.Equal(t, Contributors{Toggle: true}, h.s.Contributors())
	assert.True(t, h.s.Connected())

	h.s.contrib.Toggle = false
	h.hooks.OnToolSelected.Load()(&firmware.Tool{ID: 99})
	assert.True(t, h.s.Connected())
	h.hooks.OnToolSelected.Load()(&firmware.Tool{ID: 5})
	assert.False(t, h.s.Connected())
	assert.False(t, h.s.pulse.Installed())

	assert.Equal(t, []uint32{99, 5, 99, 5}, selected)
}
