package grbl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// rxBufferSize is the size of the controller's serial receive buffer. Lines
// are only sent while the unacknowledged total fits.
const rxBufferSize = 128

// ErrGrblReset is returned from write methods if the controller restarted
// (for example after a realtime reset) before all lines were acknowledged.
var ErrGrblReset = errors.New("grbl reset")

// CommandError is a line rejected by the controller with error:N.
type CommandError struct {
	Code int
	Line string
}

var errorText = map[int]string{
	1:  "expected command letter",
	2:  "bad number format",
	3:  "invalid $ statement",
	8:  "not idle",
	9:  "locked out during alarm or jog",
	15: "travel exceeded",
	20: "unsupported or invalid g-code command",
	22: "feed rate has not yet been set",
	33: "invalid target for motion",
}

func (e *CommandError) Error() string {
	msg := "grbl error:" + strconv.Itoa(e.Code)
	if text, ok := errorText[e.Code]; ok {
		msg += " (" + text + ")"
	}
	if e.Line != "" {
		msg += ": " + e.Line
	}
	return msg
}

func parseAck(data []byte) (ok bool, err error) {
	switch {
	case bytes.Equal(data, []byte("ok")):
		return true, nil
	case bytes.HasPrefix(data, []byte("error:")):
		code, cerr := strconv.Atoi(strings.TrimSpace(string(data[6:])))
		if cerr != nil {
			return true, fmt.Errorf("grbl: %s", bytes.TrimSpace(data))
		}
		return true, &CommandError{Code: code}
	}
	return false, nil
}

type pendingLine struct {
	size int
	text string
}

// Conn is a line-protocol connection to a grbl controller. Lines are
// streamed as long as they fit the controller's receive buffer and matched
// to their ok/error acknowledgements in order.
type Conn struct {
	rw io.ReadWriter

	readBuf []byte
	scan    *bufio.Scanner
	ackCh   chan error
	resetCh chan struct{}
	closeCh chan struct{}

	mx        sync.Mutex
	wMx       sync.Mutex
	closeOnce sync.Once

	queued  int
	pending []pendingLine

	wroteLines int64
	readLines  int64
}

func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		scan:    bufio.NewScanner(rw),
		rw:      rw,
		ackCh:   make(chan error),
		resetCh: make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

// Close aborts any in-progress writes and closes the underlying
// ReadWriter, if it implements io.Closer.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Conn) sent(line []byte) int64 {
	c.queued += len(line)
	c.wroteLines++
	c.pending = append(c.pending, pendingLine{
		size: len(line),
		text: string(bytes.TrimSpace(line)),
	})
	return c.wroteLines
}

// forget drops every unacknowledged line; the controller discarded them.
func (c *Conn) forget() error {
	c.queued = 0
	c.pending = nil
	c.readLines = c.wroteLines
	return ErrGrblReset
}

func (c *Conn) acked(err error) error {
	c.readLines++
	line := c.pending[0]
	c.queued -= line.size
	c.pending = c.pending[1:]

	var cerr *CommandError
	if errors.As(err, &cerr) {
		cerr.Line = line.text
	}
	return err
}

// next waits for one acknowledgement. A pending reset wins over queued
// acknowledgements.
func (c *Conn) next() error {
	if c.closed() {
		return io.ErrClosedPipe
	}
	select {
	case <-c.resetCh:
		return c.forget()
	default:
	}

	select {
	case <-c.closeCh:
		return io.ErrClosedPipe
	case <-c.resetCh:
		return c.forget()
	case e := <-c.ackCh:
		return c.acked(e)
	}
}

func (c *Conn) waitForSpace(n int) error {
	for c.queued+n > rxBufferSize {
		err := c.next()
		if err != nil {
			return err
		}
	}
	return nil
}

// waitFor blocks until line id is acknowledged and returns the first
// error seen on the way.
func (c *Conn) waitFor(id int64) (err error) {
	for c.readLines < id {
		e := c.next()
		if e == io.ErrClosedPipe {
			return e
		}
		if err == nil {
			err = e
		}
	}
	return err
}

func (c *Conn) writeLine(line []byte) (id int64, err error) {
	err = c.waitForSpace(len(line))
	if err != nil {
		return 0, err
	}
	c.mx.Lock()
	_, err = c.rw.Write(line)
	c.mx.Unlock()
	if err != nil {
		return 0, err
	}
	return c.sent(line), nil
}

// splitLines is bufio.ScanLines keeping the newline, which counts against
// the receive buffer.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ReadFrom streams every line of r and returns once all of them have been
// acknowledged. The first rejected line is returned as a *CommandError.
func (c *Conn) ReadFrom(r io.Reader) (n int64, err error) {
	c.wMx.Lock()
	defer c.wMx.Unlock()
	if c.closed() {
		return 0, io.ErrClosedPipe
	}

	scanner := bufio.NewScanner(r)
	scanner.Split(splitLines)

	lastID := c.wroteLines
	for scanner.Scan() {
		line := scanner.Bytes()
		if line[len(line)-1] != '\n' {
			line = append(append([]byte(nil), line...), '\n')
		}
		lastID, err = c.writeLine(line)
		if err != nil {
			return n, err
		}
		n += int64(len(scanner.Bytes()))
	}
	if err = scanner.Err(); err != nil {
		return n, err
	}

	return n, c.waitFor(lastID)
}

// Write sends p as lines and returns once all have been acknowledged.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.ReadFrom(bytes.NewReader(p))
	return int(n), err
}

// WriteByte sends a realtime command (reset, status query, feed hold)
// outside of the line accounting.
func (c *Conn) WriteByte(p byte) (err error) {
	if c.closed() {
		return io.ErrClosedPipe
	}
	c.mx.Lock()
	_, err = c.rw.Write([]byte{p})
	c.mx.Unlock()
	return err
}

func (c *Conn) deliver(err error) error {
	select {
	case c.ackCh <- err:
		return nil
	case <-c.closeCh:
		return io.ErrClosedPipe
	}
}

// Read reads the next line from the controller. Acknowledgements are
// matched to written lines as a side effect, so a reader must be running
// for writes to complete.
func (c *Conn) Read(p []byte) (n int, err error) {
	if c.closed() {
		return 0, io.ErrClosedPipe
	}

	if c.readBuf != nil {
		if len(p) < len(c.readBuf) {
			return 0, io.ErrShortBuffer
		}
		n = copy(p, c.readBuf)
		c.readBuf = nil
		return n, nil
	}
	if !c.scan.Scan() {
		return 0, c.scan.Err()
	}
	data := c.scan.Bytes()

	if ack, aerr := parseAck(data); ack {
		if err := c.deliver(aerr); err != nil {
			return 0, err
		}
	} else if bytes.HasPrefix(data, []byte("Grbl")) {
		// startup banner, Grbl or GrblHAL
		select {
		case c.resetCh <- struct{}{}:
		default:
		}
	}

	if len(p) < len(data) {
		c.readBuf = append([]byte(nil), data...)
		return 0, io.ErrShortBuffer
	}

	return copy(p, data), nil
}
