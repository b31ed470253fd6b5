// Package websocket is a generic websocket connector. Clients POST to the
// shared surface to allocate a socket id, then upgrade on it; text frames
// flow in as Message events and Message replies flow back on the socket.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/connector"
	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/httpd"
)

const (
	newSocketPath = "/connector/websocket"
	socketPath    = "/connector/websocket/{socket}"

	// pendingTTL is how long an allocated socket id may stay unclaimed.
	pendingTTL = 60 * time.Second

	maxMessageSize = 1 << 16
)

// Config configures the websocket connector.
type Config struct {
	// BotName is the bot identity stamped on replies. Default "warble".
	BotName string

	// MaxConnections bounds concurrently open sockets. Default 10.
	MaxConnections int

	// Delays are the thinking/typing delays applied to replies.
	Delays event.Delays
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// WebSocket is the websocket connector. Inbound traffic arrives via routes
// on the shared HTTP surface, so Listen returns immediately.
type WebSocket struct {
	connector.Base
	cfg      Config
	surface  *httpd.Server
	dispatch *connector.Dispatch
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	clients map[string]*client

	listenCtx context.Context
	out       chan<- event.Event
}

// New creates a websocket connector bound to the shared surface.
func New(cfg Config, reg *event.Registry, surface *httpd.Server, logger zerolog.Logger) *WebSocket {
	if cfg.BotName == "" {
		cfg.BotName = "warble"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}

	w := &WebSocket{
		Base: connector.Base{
			ConnectorName: "websocket",
			BotName:       cfg.BotName,
			DelayConfig:   cfg.Delays,
		},
		cfg:     cfg,
		surface: surface,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger.With().Str("component", "connector").Str("connector", "websocket").Logger(),
		pending: make(map[string]time.Time),
		clients: make(map[string]*client),
	}

	d := connector.NewDispatch(reg)
	d.MustHandle(event.KindMessage, w.sendMessage, connector.WithSubclasses())
	w.dispatch = d
	return w
}

// Connect registers the connector's routes on the shared surface.
// Idempotent: re-registering an existing route is not attempted.
func (w *WebSocket) Connect(_ context.Context) error {
	for _, r := range w.surface.Routes() {
		if r == http.MethodPost+" "+newSocketPath {
			return nil
		}
	}
	if err := w.surface.AddRoute(http.MethodPost, newSocketPath, http.HandlerFunc(w.handleNewSocket)); err != nil {
		return err
	}
	return w.surface.AddRoute(http.MethodGet, socketPath, http.HandlerFunc(w.handleSocket))
}

// Listen wires the dispatcher channel. Traffic is webhook-driven, so this
// returns immediately.
func (w *WebSocket) Listen(ctx context.Context, out chan<- event.Event) error {
	w.mu.Lock()
	w.listenCtx = ctx
	w.out = out
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.closeAll()
	}()
	return nil
}

// Send dispatches on the event kind.
func (w *WebSocket) Send(ctx context.Context, ev event.Event) error {
	return w.dispatch.Send(ctx, ev)
}

// Disconnect closes every open socket.
func (w *WebSocket) Disconnect(_ context.Context) error {
	w.closeAll()
	return nil
}

func (w *WebSocket) handleNewSocket(rw http.ResponseWriter, _ *http.Request) {
	id := uuid.NewString()

	w.mu.Lock()
	now := time.Now()
	for sid, created := range w.pending {
		if now.Sub(created) > pendingTTL {
			delete(w.pending, sid)
		}
	}
	w.pending[id] = now
	w.mu.Unlock()

	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]string{"socket": id})
}

func (w *WebSocket) handleSocket(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("socket")

	w.mu.Lock()
	created, ok := w.pending[id]
	if ok {
		delete(w.pending, id)
	}
	full := len(w.clients) >= w.cfg.MaxConnections
	ctx, out := w.listenCtx, w.out
	w.mu.Unlock()

	if !ok || time.Since(created) > pendingTTL {
		http.Error(rw, "unknown socket", http.StatusNotFound)
		return
	}
	if full {
		http.Error(rw, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if out == nil {
		http.Error(rw, "not listening", http.StatusServiceUnavailable)
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn}
	w.mu.Lock()
	w.clients[id] = c
	w.mu.Unlock()
	w.logger.Info().Str("socket", id).Msg("socket connected")

	go w.readLoop(ctx, id, c, out)
}

func (w *WebSocket) readLoop(ctx context.Context, id string, c *client, out chan<- event.Event) {
	defer func() {
		w.mu.Lock()
		delete(w.clients, id)
		w.mu.Unlock()
		_ = c.conn.Close()
		w.logger.Info().Str("socket", id).Msg("socket closed")
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg := event.NewMessage(string(data))
		msg.User = id
		msg.UserID = id
		msg.Target = id
		msg.Connector = w

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (w *WebSocket) sendMessage(_ context.Context, ev event.Event) error {
	fp, ok := ev.(event.FieldProvider)
	if !ok {
		return nil
	}
	text, _ := fp.Field("text")
	target := ev.Meta().Target

	w.mu.Lock()
	c, ok := w.clients[target]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("websocket: no open socket %q", target)
	}
	return c.write(websocket.TextMessage, []byte(text))
}

func (w *WebSocket) closeAll() {
	w.mu.Lock()
	clients := w.clients
	w.clients = make(map[string]*client)
	w.mu.Unlock()

	for id, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
		w.logger.Debug().Str("socket", id).Msg("socket closed on drain")
	}
}
