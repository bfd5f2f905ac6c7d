package grbl

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/mastercactapus/probeguard/machine"
)

// statusInterval is how often a status report is requested.
const statusInterval = 200 * time.Millisecond

// SerialAdapter talks to grbl over a serial line.
type SerialAdapter struct {
	*Conn

	mx      sync.Mutex
	last    machine.State
	state   chan machine.State
	message chan string
	data    chan string
	done    chan struct{}
}

var _ machine.Adapter = &SerialAdapter{}

func NewSerialAdapter(rw io.ReadWriter) *SerialAdapter {
	adapter := &SerialAdapter{
		Conn: NewConn(rw),

		state:   make(chan machine.State),
		message: make(chan string, 16),
		data:    make(chan string),
		done:    make(chan struct{}),
	}
	go adapter.pollLoop()
	go adapter.loop()
	go adapter.readLoop()

	return adapter
}

func (adapter *SerialAdapter) pollLoop() {
	t := time.NewTicker(statusInterval)
	defer t.Stop()
	for {
		select {
		case <-adapter.done:
			return
		case <-t.C:
			adapter.WriteByte('?')
		}
	}
}

func (adapter *SerialAdapter) readLoop() {
	buf := make([]byte, 1024)
	for {
		n, err := adapter.Read(buf)
		if err == io.ErrClosedPipe {
			return
		}
		if err != nil {
			log.Println("ERROR: read from port: ", err)
			select {
			case <-adapter.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		select {
		case adapter.data <- string(buf[:n]):
		case <-adapter.done:
			return
		}
	}
}

func (adapter *SerialAdapter) State() chan machine.State { return adapter.state }
func (adapter *SerialAdapter) Messages() chan string     { return adapter.message }
func (adapter *SerialAdapter) CurrentState() machine.State {
	adapter.mx.Lock()
	state := adapter.last
	adapter.mx.Unlock()
	return state
}

func (adapter *SerialAdapter) loop() {
	for {
		select {
		case <-adapter.done:
			return
		case data := <-adapter.data:
			stat, msg, err := parseLine(adapter.CurrentState(), data)
			if err != nil {
				log.Println("ERROR: parse:", err)
				continue
			}
			adapter.mx.Lock()
			adapter.last = stat
			adapter.mx.Unlock()
			select {
			case adapter.state <- stat:
			default:
			}
			if msg != "" {
				select {
				case adapter.message <- msg:
				default:
				}
			}
		}
	}
}

// Close stops polling and closes the connection.
func (adapter *SerialAdapter) Close() error {
	select {
	case <-adapter.done:
	default:
		close(adapter.done)
	}
	return adapter.Conn.Close()
}
