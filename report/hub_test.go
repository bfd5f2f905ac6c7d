package report

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mastercactapus/probeguard/firmware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestHub(t *testing.T) {
	h := NewHub(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	_, ch, done := h.Subscribe()
	defer done()

	h.Message("PROBE PROTECTED!", firmware.MessageWarning)
	e := next(t, ch)
	assert.Equal(t, KindMessage, e.Kind)
	assert.Equal(t, "[MSG:Warning: PROBE PROTECTED!]", e.Line())

	io.WriteString(h, "[VER:1.1f]\r\n[PLUGIN:Probe Protection v0.01]\r\n")
	assert.Equal(t, "[VER:1.1f]", next(t, ch).Line())
	assert.Equal(t, "[PLUGIN:Probe Protection v0.01]", next(t, ch).Line())

	backlog, ch2, done2 := h.Subscribe()
	defer done2()
	require.Len(t, backlog, 2)
	assert.Equal(t, "[VER:1.1f]", backlog[0].Text)

	h.Message("Probe disconnected, protection off.", firmware.MessageInfo)
	assert.Equal(t, "[MSG:Info: Probe disconnected, protection off.]", next(t, ch2).Line())
	assert.Equal(t, "Probe disconnected, protection off.", next(t, ch).Text)
}

func TestHub_Full(t *testing.T) {
	h := NewHub(4)
	for i := 0; i < cap(h.in)+3; i++ {
		h.Message("x", firmware.MessagePlain)
	}
	assert.Equal(t, uint64(3), h.Dropped())
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub(4)
	_, _, done := h.Subscribe()
	done()
	done()
	assert.Empty(t, h.subs)
}
