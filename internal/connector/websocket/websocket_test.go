package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/httpd"
)

type harness struct {
	ws     *WebSocket
	server *httptest.Server
	out    chan event.Event
	cancel context.CancelFunc
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	reg := event.NewRegistry()
	require.NoError(t, event.RegisterCore(reg))

	surface := httpd.New(httpd.Config{}, zerolog.Nop())
	ws := New(cfg, reg, surface, zerolog.Nop())
	require.NoError(t, ws.Connect(context.Background()))

	ts := httptest.NewServer(surface.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan event.Event, 8)
	require.NoError(t, ws.Listen(ctx, out))

	h := &harness{ws: ws, server: ts, out: out, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return h
}

func (h *harness) allocateSocket(t *testing.T) string {
	t.Helper()
	resp, err := http.Post(h.server.URL+"/connector/websocket", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["socket"])
	return body["socket"]
}

func (h *harness) dial(t *testing.T, socket string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/connector/websocket/" + socket
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandshake_AllocateThenUpgrade(t *testing.T) {
	h := newHarness(t, Config{})
	socket := h.allocateSocket(t)
	conn := h.dial(t, socket)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello bot")))

	select {
	case ev := <-h.out:
		msg := ev.(*event.Message)
		assert.Equal(t, "hello bot", msg.Text)
		assert.Equal(t, socket, msg.Target)
		assert.Equal(t, socket, msg.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestHandshake_UnknownSocketRejected(t *testing.T) {
	h := newHarness(t, Config{})
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/connector/websocket/not-allocated"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandshake_SocketIDIsSingleUse(t *testing.T) {
	h := newHarness(t, Config{})
	socket := h.allocateSocket(t)
	h.dial(t, socket)

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/connector/websocket/" + socket
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSend_RepliesOverSocket(t *testing.T) {
	h := newHarness(t, Config{})
	socket := h.allocateSocket(t)
	conn := h.dial(t, socket)

	// wait for the server side to register the client
	require.Eventually(t, func() bool {
		h.ws.mu.Lock()
		defer h.ws.mu.Unlock()
		_, ok := h.ws.clients[socket]
		return ok
	}, time.Second, 10*time.Millisecond)

	reply := event.NewMessage("pong")
	reply.Target = socket
	require.NoError(t, h.ws.Send(context.Background(), reply))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))
}

func TestSend_NoSuchSocket(t *testing.T) {
	h := newHarness(t, Config{})
	reply := event.NewMessage("pong")
	reply.Target = "gone"
	assert.Error(t, h.ws.Send(context.Background(), reply))
}

func TestMaxConnections(t *testing.T) {
	h := newHarness(t, Config{MaxConnections: 1})
	first := h.allocateSocket(t)
	h.dial(t, first)

	require.Eventually(t, func() bool {
		h.ws.mu.Lock()
		defer h.ws.mu.Unlock()
		return len(h.ws.clients) == 1
	}, time.Second, 10*time.Millisecond)

	second := h.allocateSocket(t)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/connector/websocket/" + second
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestConnect_Idempotent(t *testing.T) {
	h := newHarness(t, Config{})
	routes := len(h.ws.surface.Routes())
	require.NoError(t, h.ws.Connect(context.Background()))
	assert.Len(t, h.ws.surface.Routes(), routes)
}

func TestDisconnect_ClosesClients(t *testing.T) {
	h := newHarness(t, Config{})
	socket := h.allocateSocket(t)
	conn := h.dial(t, socket)

	require.Eventually(t, func() bool {
		h.ws.mu.Lock()
		defer h.ws.mu.Unlock()
		return len(h.ws.clients) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, h.ws.Disconnect(context.Background()))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
