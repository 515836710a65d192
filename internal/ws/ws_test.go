package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_RoundTrip(t *testing.T) {
	msg, err := NewEnvelope(TypeSimProgress, SimProgressPayload{RunID: "run-1", Fraction: 0.25})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeSimProgress, env.Type)

	var payload SimProgressPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "run-1", payload.RunID)
	assert.Equal(t, 0.25, payload.Fraction)
}

func TestNewEnvelope_NilPayload(t *testing.T) {
	msg, err := NewEnvelope(TypeSimError, nil)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeSimError, env.Type)
	assert.Empty(t, env.Payload)
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	var counts []int
	hub.OnCountChange(func(n int) { counts = append(counts, n) })

	c1 := &Client{hub: hub, send: make(chan []byte, 1)}
	c2 := &Client{hub: hub, send: make(chan []byte, 1)}

	hub.Register(c1)
	hub.Register(c2)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(c1)
	assert.Equal(t, 1, hub.ClientCount())
	// Unregistering twice is harmless.
	hub.Unregister(c1)
	assert.Equal(t, 1, hub.ClientCount())

	assert.Equal(t, []int{1, 2, 1, 1}, counts)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(nil)
	c1 := &Client{hub: hub, send: make(chan []byte, 4)}
	c2 := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast([]byte("hello"))

	assert.Equal(t, []byte("hello"), <-c1.send)
	assert.Equal(t, []byte("hello"), <-c2.send)
}

func TestHub_BroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast([]byte("one"))
	hub.Broadcast([]byte("two")) // dropped, buffer full

	assert.Equal(t, []byte("one"), <-c.send)
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected second message %q", msg)
	default:
	}
}

func TestHandler_StreamsBroadcasts(t *testing.T) {
	hub := NewHub(nil)
	handler := NewHandler(hub, nil)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	handler.BroadcastProgress("run-1", 0.5)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeSimProgress, env.Type)

	var payload SimProgressPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 0.5, payload.Fraction)
}

func TestHandler_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	handler := NewHandler(hub, nil)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}
