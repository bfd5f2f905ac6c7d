package grbl

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mastercactapus/probeguard/machine"
	"github.com/mastercactapus/probeguard/spjs"
)

var lastID int64

func nextID() string {
	id := atomic.AddInt64(&lastID, 1)
	return "cmd_" + strconv.FormatInt(id, 36)
}

// ErrWipedQueue is returned for commands dropped by the server.
var ErrWipedQueue = errors.New("wiped queue")

// SPJSAdapter talks to grbl through a serial-port-json-server.
type SPJSAdapter struct {
	sp   *spjs.SPJS
	port string
	baud int

	cmds    chan adapterMessage
	waiting map[string]chan error

	mx      sync.Mutex
	last    machine.State
	state   chan machine.State
	message chan string
}

var _ machine.Adapter = &SPJSAdapter{}

type adapterMessage struct {
	spjs.JSON
	wait chan error
}

func NewSPJSAdapter(sp *spjs.SPJS, port string, baud int) *SPJSAdapter {
	adapter := &SPJSAdapter{
		sp:      sp,
		port:    port,
		baud:    baud,
		waiting: make(map[string]chan error, 100),
		cmds:    make(chan adapterMessage, 1000),
		state:   make(chan machine.State),
		message: make(chan string, 16),
	}
	go adapter.loop()

	return adapter
}

func (adapter *SPJSAdapter) CurrentState() machine.State {
	adapter.mx.Lock()
	defer adapter.mx.Unlock()
	return adapter.last
}
func (adapter *SPJSAdapter) Messages() chan string { return adapter.message }

func (adapter *SPJSAdapter) setMachineState(state machine.State) {
	adapter.mx.Lock()
	adapter.last = state
	adapter.mx.Unlock()
	select {
	case adapter.state <- state:
	default:
	}
}

func (adapter *SPJSAdapter) handleData(data string) {
	stat, msg, err := parseLine(adapter.CurrentState(), data)
	if err != nil {
		log.Println("ERROR: parse:", err)
		return
	}
	adapter.setMachineState(stat)
	if msg != "" {
		select {
		case adapter.message <- msg:
		default:
		}
	}
}

func (adapter *SPJSAdapter) loop() {
	for {
		select {
		case resp := <-adapter.sp.Messages():
			switch msg := resp.(type) {
			case *spjs.DataFrame:
				if msg.Port != "" && msg.Port != adapter.port {
					continue
				}
				adapter.handleData(msg.Data)
			case *spjs.CmdStatus:
				switch msg.Cmd {
				case "WipedQueue":
					for key, ch := range adapter.waiting {
						ch <- ErrWipedQueue
						delete(adapter.waiting, key)
					}
				case "Complete":
					if adapter.waiting[msg.ID] != nil {
						adapter.waiting[msg.ID] <- nil
						delete(adapter.waiting, msg.ID)
					}
				}
			case *spjs.SerialPortList:
				for _, port := range msg.SerialPorts {
					if port.Name != adapter.port {
						continue
					}
					if !port.IsOpen {
						adapter.sp.WriteString("open " + adapter.port + " grbl " + strconv.Itoa(adapter.baud))
					}
				}
			case *spjs.ErrorMessage:
				log.Println("ERROR: spjs:", msg.Error)
			}
		case msg := <-adapter.cmds:
			adapter.sp.SendJSON(msg.JSON)
			if msg.wait != nil {
				adapter.waiting[msg.Data[len(msg.Data)-1].ID] = msg.wait
			}
		}
	}
}

func (adapter *SPJSAdapter) State() chan machine.State {
	return adapter.state
}

func (adapter *SPJSAdapter) ReadFrom(r io.Reader) (n int64, err error) {
	scan := bufio.NewScanner(r)
	var wait chan error
	for {
		var j spjs.JSON
		j.Port = adapter.port
		for scan.Scan() {
			n += int64(len(scan.Bytes()))
			j.Data = append(j.Data, spjs.Data{
				Data: strings.TrimSpace(scan.Text()) + "\n",
				ID:   nextID(),
			})
			if len(j.Data) == 100 {
				break
			}
		}
		if len(j.Data) == 0 {
			break
		}
		wait = make(chan error, 1)
		adapter.cmds <- adapterMessage{JSON: j, wait: wait}
	}

	if wait == nil {
		return 0, scan.Err()
	}

	// wait for last channel
	return n, <-wait
}

// WriteByte sends a realtime command without waiting for it to be
// processed.
func (adapter *SPJSAdapter) WriteByte(b byte) error {
	adapter.sp.WriteString("send " + adapter.port + " " + string([]byte{b}))
	return nil
}

func (adapter *SPJSAdapter) Write(p []byte) (int, error) {
	n, err := adapter.ReadFrom(bytes.NewReader(p))
	return int(n), err
}
