package spjs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSPJSMessage(t *testing.T) {
	val, err := parseSPJSMessage([]byte(`{"P":"/dev/ttyUSB0","D":"<Idle|MPos:0.000,0.000,0.000>"}`))
	require.NoError(t, err)
	assert.Equal(t, &DataFrame{Port: "/dev/ttyUSB0", Data: "<Idle|MPos:0.000,0.000,0.000>"}, val)

	val, err = parseSPJSMessage([]byte(`{"Cmd":"Complete","Id":"cmd_1","P":"/dev/ttyUSB0"}`))
	require.NoError(t, err)
	assert.Equal(t, &CmdStatus{Cmd: "Complete", ID: "cmd_1"}, val)

	val, err = parseSPJSMessage([]byte(`{"Error":"port not open"}`))
	require.NoError(t, err)
	assert.Equal(t, &ErrorMessage{Error: "port not open"}, val)

	_, err = parseSPJSMessage([]byte(`{"Version":"1.96"}`))
	assert.Error(t, err)
}

func TestSPJS(t *testing.T) {
	received := make(chan string, 10)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
			if string(data) == "list" {
				ws.WriteMessage(websocket.TextMessage, []byte(`{"SerialPorts":[{"Name":"/dev/ttyUSB0","IsOpen":true,"Baud":115200}]}`))
			}
		}
	}))
	defer srv.Close()

	sp := NewSPJS("ws" + strings.TrimPrefix(srv.URL, "http"))
	defer sp.Close()

	select {
	case msg := <-sp.Messages():
		list, ok := msg.(*SerialPortList)
		require.True(t, ok)
		require.Len(t, list.SerialPorts, 1)
		assert.Equal(t, "/dev/ttyUSB0", list.SerialPorts[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for port list")
	}
	assert.Equal(t, "list", <-received)

	sp.SendJSON(JSON{Port: "/dev/ttyUSB0", Data: []Data{{Data: "G0X1\n", ID: "cmd_1"}}})
	assert.Equal(t, `sendjson {"P":"/dev/ttyUSB0","Data":[{"D":"G0X1\n","Id":"cmd_1"}]}`, <-received)
}
