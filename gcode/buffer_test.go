package gcode

import (
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocksReader(t *testing.T) {
	r := &BlocksReader{Blocks: MustParse("G53 G0 Z-2\nM401")}

	b, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, Block{{W: 'G', Arg: 53}, {W: 'G', Arg: 0}, {W: 'Z', Arg: -2}}, b)

	b, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, Block{{W: 'M', Arg: 401}}, b)

	b, err = r.Read()
	assert.Equal(t, io.EOF, err)
	assert.Nil(t, b)
}

func TestBuffer_Read(t *testing.T) {
	r := &BlocksReader{Blocks: MustParse("M401\nG38.2 Z-10 F100")}
	b := NewBuffer(r)

	buf := make([]byte, 32)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "M401\nG38.2Z-10F100\n", string(buf[:n]))

	n, err = b.Read(buf)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, n)
}

func TestBuffer_Parser(t *testing.T) {
	b := NewBuffer(NewParser(strings.NewReader("T5 M6\n(retract)\nG53 G0 Z-2\n")))

	data, err := ioutil.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "T5M6\nG53G0Z-2\n", string(data))
}

func TestBuffer_ParseError(t *testing.T) {
	b := NewBuffer(NewParser(strings.NewReader("G0 Z5\nG0 Z\n")))

	_, err := ioutil.ReadAll(b)
	assert.EqualError(t, err, "line 2: invalid or unhandled line: G0Z")
}
