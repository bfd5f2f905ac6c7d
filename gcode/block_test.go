package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlock_UserMCode(t *testing.T) {
	b := MustParse("M401\n")[0]
	code, ok := b.UserMCode()
	assert.True(t, ok)
	assert.Equal(t, uint16(401), code)
	assert.Equal(t, ModalGroup(ModalGroupUser), b[0].ModalGroup())

	_, ok = MustParse("M3 S1000\n")[0].UserMCode()
	assert.False(t, ok)
}

func TestBlock_IsProbe(t *testing.T) {
	assert.True(t, MustParse("G91 G38.2 Z-10 F100")[0].IsProbe())
	assert.True(t, MustParse("G38.5 Z5")[0].IsProbe())
	assert.False(t, MustParse("G1 Z-10 F100")[0].IsProbe())
	assert.False(t, MustParse("T99")[0].IsProbe())
}

func TestBlock_Modal(t *testing.T) {
	b := MustParse("M4 S12000")[0]
	w, ok := b.Modal(ModalGroupSpindle)
	assert.True(t, ok)
	assert.Equal(t, Word{W: 'M', Arg: 4}, w)

	ok, rpm := b.Arg('S')
	assert.True(t, ok)
	assert.Equal(t, 12000.0, rpm)
}

func TestBlock_String(t *testing.T) {
	b := MustParse("g53 g0 x-10.5 y2 ; go home")[0]
	assert.Equal(t, "G53G0X-10.5Y2", b.String())
	assert.True(t, b.HasMotion())
	assert.True(t, b.Has('G', 53))
}

func TestBlock_Validate(t *testing.T) {
	assert.NoError(t, MustParse("G91 G38.2 Z-10 F100")[0].Validate())
	assert.Error(t, MustParse("G0 G1 X1")[0].Validate())
	assert.Error(t, MustParse("G0 X1 X2")[0].Validate())
}
