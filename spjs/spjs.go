// Package spjs is a client for serial-port-json-server, which shares a
// serial port over a websocket.
package spjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ReconnectDelay is how long to wait before dialing again after the
// connection is lost.
var ReconnectDelay = 3 * time.Second

type SPJS struct {
	url string

	outgoing chan message
	incoming chan interface{}

	done      chan struct{}
	closeOnce sync.Once
}

type message struct {
	done    chan struct{}
	payload []byte
}

type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}
type SerialPortList struct {
	SerialPorts []SerialPort
}
type SerialPort struct {
	Name            string
	Friendly        string
	IsOpen          bool
	IsPrimary       bool
	Baud            int
	BufferAlgorithm string
}

// ErrClosed is returned for writes after Close.
var ErrClosed = errors.New("spjs: closed")

func NewSPJS(url string) *SPJS {
	sp := &SPJS{
		url:      url,
		outgoing: make(chan message, 1000),
		incoming: make(chan interface{}, 1000),
		done:     make(chan struct{}),
	}

	go sp.loop()

	return sp
}

// Messages receives every decoded server message.
func (sp *SPJS) Messages() chan interface{} {
	return sp.incoming
}

func parseSPJSMessage(data []byte) (val interface{}, err error) {
	var msg map[string]json.RawMessage
	err = json.Unmarshal(data, &msg)
	if err != nil {
		return nil, err
	}
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Cmd", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (sp *SPJS) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Println("ERROR: read:", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		val, err := parseSPJSMessage(data)
		if err != nil {
			log.Println("ERROR: parse:", err)
			continue
		}
		select {
		case sp.incoming <- val:
		case <-sp.done:
			return
		}
	}
}

func (sp *SPJS) wait(d time.Duration) bool {
	select {
	case <-sp.done:
		return false
	case <-time.After(d):
		return true
	}
}

func (sp *SPJS) loop() {
	var nextUp message

	for {
		log.Println("Connecting to", sp.url)
		ws, _, err := websocket.DefaultDialer.Dial(sp.url, nil)
		if err != nil {
			log.Println("ERROR: connect:", err)
			if !sp.wait(ReconnectDelay) {
				return
			}
			continue
		}
		log.Println("Connected.")
		readDone := make(chan struct{})
		go sp.readLoop(ws, readDone)

		// refresh the port list on every connect
		err = ws.WriteMessage(websocket.TextMessage, []byte("list"))
		if err == nil {
			err = sp.session(ws, readDone, &nextUp)
		}
		ws.Close()
		if err == ErrClosed {
			return
		}
		if err != nil {
			log.Println("ERROR: send:", err)
		}
		<-readDone
		if !sp.wait(ReconnectDelay) {
			return
		}
	}
}

// session sends messages until the connection fails. A message that could
// not be sent is kept in nextUp and retried after reconnecting.
func (sp *SPJS) session(ws *websocket.Conn, readDone chan struct{}, nextUp *message) error {
	for {
		if nextUp.done != nil {
			err := ws.WriteMessage(websocket.TextMessage, nextUp.payload)
			if err != nil {
				return err
			}
			close(nextUp.done)
			nextUp.done = nil
		}

		select {
		case <-sp.done:
			return ErrClosed
		case <-readDone:
			return nil
		case *nextUp = <-sp.outgoing:
		}
	}
}

type JSON struct {
	Port string `json:"P"`
	Data []Data
}
type Data struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

func (sp *SPJS) send(payload []byte) {
	ch := make(chan struct{})
	select {
	case sp.outgoing <- message{done: ch, payload: payload}:
	case <-sp.done:
		return
	}
	select {
	case <-ch:
	case <-sp.done:
	}
}

// SendJSON queues a buffered write and returns once it has been sent.
func (sp *SPJS) SendJSON(v JSON) {
	data, err := json.Marshal(v)
	if err != nil {
		// shouldn't happen since we control everything that's sent out
		log.Panicln("ERROR: sendjson (marshal):", err)
		return
	}

	sp.send(append([]byte("sendjson "), data...))
}

// WriteString sends a raw server command and returns once it has been
// sent.
func (sp *SPJS) WriteString(data string) {
	sp.send([]byte(data))
}

// Close disconnects and stops reconnecting.
func (sp *SPJS) Close() error {
	sp.closeOnce.Do(func() { close(sp.done) })
	return nil
}
