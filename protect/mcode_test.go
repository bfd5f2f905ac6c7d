package protect

import (
	"testing"

	"github.com/mastercactapus/probeguard/firmware"
	"github.com/stretchr/testify/assert"
)

func TestMCode_ConnectTwice(t *testing.T) {
	h := newHarness(t)
	exec := h.hooks.UserMCode.Load().Execute

	exec(firmware.StateIdle, &firmware.ParserBlock{UserMCode: MCodeConnect})
	assert.True(t, h.s.contrib.MCode)
	assert.Empty(t, h.msg.texts(firmware.MessageWarning))
	assert.Equal(t, []string{"Mcode Probe connected!"}, h.msg.texts(firmware.MessageInfo))
	assert.Len(t, h.delays, 1)

	h.msg.msgs = nil
	exec(firmware.StateIdle, &firmware.ParserBlock{UserMCode: MCodeConnect})
	assert.True(t, h.s.contrib.MCode)
	assert.Equal(t, []string{"Probe connected signal already asserted!"}, h.msg.texts(firmware.MessageWarning))
	assert.Empty(t, h.msg.texts(firmware.MessageInfo))
	assert.Len(t, h.delays, 1)
}

func TestMCode_DisconnectTwice(t *testing.T) {
	h := newHarness(t)
	exec := h.hooks.UserMCode.Load().Execute
	h.s.Connect()
	h.msg.msgs = nil

	exec(firmware.StateIdle, &firmware.ParserBlock{UserMCode: MCodeDisconnect})
	assert.False(t, h.s.contrib.MCode)
	assert.False(t, h.s.pulse.Installed())
	assert.Empty(t, h.msg.texts(firmware.MessageWarning))

	exec(firmware.StateIdle, &firmware.ParserBlock{UserMCode: MCodeDisconnect})
	assert.False(t, h.s.contrib.MCode)
	assert.Equal(t, []string{"Probe connected signal not asserted!"}, h.msg.texts(firmware.MessageWarning))
}

func TestMCode_CheckMode(t *testing.T) {
	h := newHarness(t)
	exec := h.hooks.UserMCode.Load().Execute

	exec(firmware.StateCheckMode, &firmware.ParserBlock{UserMCode: MCodeConnect})
	assert.False(t, h.s.contrib.MCode)
	assert.Empty(t, h.msg.msgs)
	assert.Empty(t, h.delays)
}

func TestMCode_Delegation(t *testing.T) {
	var executed []firmware.UserMCode
	h := newHarness(t, func(h *harness, env *Env) {
		h.hooks.UserMCode.Install("spindle-plugin", firmware.MCodeHandlers{
			Check: func(code firmware.UserMCode) firmware.UserMCode {
				if code == 300 {
					return code
				}
				return firmware.UserMCodeIgnore
			},
			Validate: func(b *firmware.ParserBlock) firmware.Status {
				if b.UserMCode == 300 {
					return firmware.StatusOK
				}
				return firmware.StatusUnhandled
			},
			Execute: func(state firmware.State, b *firmware.ParserBlock) {
				executed = append(executed, b.UserMCode)
			},
		})
	})
	m := h.hooks.UserMCode.Load()

	assert.Equal(t, MCodeConnect, m.Check(MCodeConnect))
	assert.Equal(t, MCodeDisconnect, m.Check(MCodeDisconnect))
	assert.Equal(t, firmware.UserMCode(300), m.Check(300))
	assert.Equal(t, firmware.UserMCodeIgnore, m.Check(301))

	assert.Equal(t, firmware.StatusOK, m.Validate(&firmware.ParserBlock{UserMCode: MCodeConnect}))
	assert.Equal(t, firmware.StatusOK, m.Validate(&firmware.ParserBlock{UserMCode: 300}))
	assert.Equal(t, firmware.StatusUnhandled, m.Validate(&firmware.ParserBlock{UserMCode: 301}))

	m.Execute(firmware.StateIdle, &firmware.ParserBlock{UserMCode: 300})
	m.Execute(firmware.StateIdle, &firmware.ParserBlock{UserMCode: MCodeConnect})
	assert.Equal(t, []firmware.UserMCode{300}, executed)
	assert.True(t, h.s.contrib.MCode)
}

func TestMCode_NoPrior(t *testing.T) {
	h := newHarness(t)
	m := h.hooks.UserMCode.Load()

	assert.Equal(t, firmware.UserMCodeIgnore, m.Check(300))
	assert.Equal(t, firmware.StatusUnhandled, m.Validate(&firmware.ParserBlock{UserMCode: 300}))
	m.Execute(firmware.StateIdle, &firmware.ParserBlock{UserMCode: 300})
	assert.Empty(t, h.msg.msgs)
}
