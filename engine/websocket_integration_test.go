package engine

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestWebSocketUpgrade_GorillaClientRoundTrip drives the hand-rolled
// upgrade/framing (websocket.go) end to end with github.com/gorilla/
// websocket as the client, the way DESIGN.md's Tests section describes:
// the server implementation never imports gorilla/websocket, only the
// test suite does, to exercise RFC 6455 compliance against a real client
// rather than re-testing our own frame encoder against itself.
func TestWebSocketUpgrade_GorillaClientRoundTrip(t *testing.T) {
	sc := NewServerContext(nil, nil)
	sc.Scheduler().Start()
	defer sc.Scheduler().Stop()

	echoed := make(chan string, 1)
	sc.OnWebSocketMessage(func(rc *RequestContext, frame *WSFrame) {
		echoed <- string(frame.Payload)
		_ = WriteWSText(rc.Socket, "echo:"+string(frame.Payload))
	})

	ep := &Endpoint{Protocol: ProtoWS, Address: "127.0.0.1", Port: 0}
	l := NewListener(ep, sc)
	require.NoError(t, l.Open())
	defer l.Shut()
	go l.Serve(sc.Scheduler())

	url := "ws://" + l.net.Addr().String() + "/"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{})
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	select {
	case got := <-echoed:
		require.Equal(t, "hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the client's text frame")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "echo:hello", string(msg))
}
