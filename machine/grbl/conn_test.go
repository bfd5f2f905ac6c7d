package grbl

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeRW struct {
	io.Reader
	io.Writer
}

// fakeGrbl acknowledges every line it receives. Lines containing "X9" are
// rejected and a 0x18 byte restarts it with a banner instead of an ack.
func fakeGrbl(t *testing.T) (*Conn, chan string) {
	devR, hostW := io.Pipe()
	hostR, devW := io.Pipe()
	lines := make(chan string, 100)

	go func() {
		s := bufio.NewScanner(devR)
		for s.Scan() {
			line := s.Text()
			lines <- line
			resp := "ok\n"
			switch {
			case strings.Contains(line, "\x18"):
				resp = "GrblHAL 1.1f ['$' or '$HELP' for help]\n"
			case strings.Contains(line, "X9"):
				resp = "error:20\n"
			}
			if _, err := io.WriteString(devW, resp); err != nil {
				return
			}
		}
	}()

	c := NewConn(pipeRW{Reader: hostR, Writer: hostW})
	go func() {
		buf := make([]byte, 256)
		for {
			_, err := c.Read(buf)
			if err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		c.Close()
		hostW.Close()
		devW.Close()
	})
	return c, lines
}

func TestConn_Write(t *testing.T) {
	c, lines := fakeGrbl(t)

	n, err := c.Write([]byte("G0 X1\nG0 X2\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, "G0 X1", <-lines)
	assert.Equal(t, "G0 X2", <-lines)

	_, err = c.Write([]byte("G0 X9\nG0 X3\n"))
	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 20, cerr.Code)
	assert.Equal(t, "G0 X9", cerr.Line)
	assert.EqualError(t, err, "grbl error:20 (unsupported or invalid g-code command): G0 X9")
	assert.Equal(t, "G0 X9", <-lines)
	assert.Equal(t, "G0 X3", <-lines)

	_, err = c.Write([]byte("G0 X4\n"))
	assert.NoError(t, err)
	assert.Equal(t, "G0 X4", <-lines)
}

func TestConn_WriteUnterminated(t *testing.T) {
	c, lines := fakeGrbl(t)

	n, err := c.Write([]byte("M401\nG38.2 Z-10 F100"))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, "M401", <-lines)
	assert.Equal(t, "G38.2 Z-10 F100", <-lines)
}

func TestConn_Reset(t *testing.T) {
	c, lines := fakeGrbl(t)

	_, err := c.Write([]byte("G0 Z5\n\x18\n"))
	assert.Equal(t, ErrGrblReset, err)
	assert.Equal(t, "G0 Z5", <-lines)
	<-lines

	_, err = c.Write([]byte("G0 Z6\n"))
	assert.NoError(t, err)
	assert.Equal(t, "G0 Z6", <-lines)
}

func TestParseAck(t *testing.T) {
	ok, err := parseAck([]byte("ok"))
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = parseAck([]byte("error:9"))
	assert.True(t, ok)
	assert.EqualError(t, err, "grbl error:9 (locked out during alarm or jog)")

	ok, err = parseAck([]byte("error:Bad"))
	assert.True(t, ok)
	assert.EqualError(t, err, "grbl: error:Bad")

	ok, _ = parseAck([]byte("<Idle|MPos:0.000,0.000,0.000>"))
	assert.False(t, ok)
}
