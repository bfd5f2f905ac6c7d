// Package report distributes operator messages and report lines to the log
// and to any number of subscribers.
package report

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/mastercactapus/probeguard/firmware"
)

// Kind is the kind of an Event.
type Kind string

const (
	KindMessage Kind = "message"
	KindReport  Kind = "report"
)

// Event is a single message or report line.
type Event struct {
	Kind Kind                 `json:"kind"`
	Type firmware.MessageType `json:"type"`
	Text string               `json:"text"`
	Time time.Time            `json:"time"`
}

// Line formats the event the way the controller prints it.
func (e Event) Line() string {
	if e.Kind == KindReport {
		return e.Text
	}
	switch e.Type {
	case firmware.MessageInfo:
		return "[MSG:Info: " + e.Text + "]"
	case firmware.MessageWarning:
		return "[MSG:Warning: " + e.Text + "]"
	}
	return "[MSG:" + e.Text + "]"
}

// Hub fans events out to subscribers. Publishing never blocks; events are
// dropped when the hub falls behind.
type Hub struct {
	in      chan Event
	dropped atomic.Uint64

	mx      sync.Mutex
	backlog *queue.Queue
	size    int
	subs    map[chan Event]struct{}
}

var _ firmware.Messenger = &Hub{}

// NewHub creates a Hub that keeps the last backlog events for new
// subscribers.
func NewHub(backlog int) *Hub {
	return &Hub{
		in:      make(chan Event, 256),
		backlog: queue.New(),
		size:    backlog,
		subs:    make(map[chan Event]struct{}),
	}
}

func (h *Hub) publish(e Event) {
	select {
	case h.in <- e:
	default:
		h.dropped.Add(1)
	}
}

// Message publishes an operator message. It is safe to call from the
// step-pulse path.
func (h *Hub) Message(text string, typ firmware.MessageType) {
	h.publish(Event{Kind: KindMessage, Type: typ, Text: text, Time: time.Now()})
}

// Write publishes every line of p as a report event.
func (h *Hub) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		h.publish(Event{Kind: KindReport, Text: line, Time: time.Now()})
	}
	return len(p), nil
}

// Dropped returns the number of events lost because the hub was busy.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Run delivers events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-h.in:
			h.deliver(e)
		}
	}
}

func (h *Hub) deliver(e Event) {
	if e.Kind == KindMessage {
		log.Println(e.Line())
	}

	h.mx.Lock()
	defer h.mx.Unlock()
	h.backlog.Add(e)
	for h.backlog.Length() > h.size {
		h.backlog.Remove()
	}
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Backlog returns the retained events, oldest first.
func (h *Hub) Backlog() []Event {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.backlogLocked()
}

func (h *Hub) backlogLocked() []Event {
	res := make([]Event, h.backlog.Length())
	for i := range res {
		res[i] = h.backlog.Get(i).(Event)
	}
	return res
}

// Subscribe returns the current backlog and a channel receiving every
// following event. The returned function ends the subscription.
func (h *Hub) Subscribe() ([]Event, <-chan Event, func()) {
	ch := make(chan Event, 64)

	h.mx.Lock()
	backlog := h.backlogLocked()
	h.subs[ch] = struct{}{}
	h.mx.Unlock()

	var once sync.Once
	return backlog, ch, func() {
		once.Do(func() {
			h.mx.Lock()
			delete(h.subs, ch)
			h.mx.Unlock()
		})
	}
}
