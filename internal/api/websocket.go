package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/sentinel-core/internal/auth"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/logging"
)

// Message types exchanged over /ws.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels and the permission each one needs.
const (
	ChannelAccessEvent     = "access.event"
	ChannelResourceChanged = "resource.changed"
)

var channelPermissions = map[string]auth.Permission{
	ChannelAccessEvent:     auth.PermAccessLogRead,
	ChannelResourceChanged: auth.PermResourceRead,
}

const clientQueueSize = 256

// WSMessage is the envelope the server writes.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is the envelope the server reads.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // CORS middleware decides
}

// Hub fans events out to subscribed WebSocket clients.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub returns an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*wsClient]struct{})}
}

// Run waits for ctx and then drops every connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.out)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "user_id", c.principal.ID, "clients", n)
}

// remove closes the client's queue exactly once.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.out)
		h.logger.Debug("websocket client disconnected", "user_id", c.principal.ID, "clients", n)
	}
}

// Broadcast delivers payload to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.subscribed(channel) {
			c.enqueue(data)
		}
	}
}

// ClientCount reports the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// wsClient is one upgraded connection and the channels it listens on.
type wsClient struct {
	hub       *Hub
	conn      *websocket.Conn
	out       chan []byte
	principal auth.Principal

	// idle is how long a silent peer is tolerated; ping is the keepalive period.
	idle time.Duration
	ping time.Duration

	mu       sync.RWMutex
	channels map[string]struct{}
}

// handleWebSocket upgrades a request carrying a ticket from POST /auth/ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	principal, ok := s.tickets.redeem(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "user_id", principal.ID)
		return
	}
	conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))

	ping := time.Duration(s.wsCfg.PingInterval) * time.Second
	c := &wsClient{
		hub:       s.hub,
		conn:      conn,
		out:       make(chan []byte, clientQueueSize),
		principal: principal,
		ping:      ping,
		idle:      ping + time.Duration(s.wsCfg.PongTimeout)*time.Second,
		channels:  make(map[string]struct{}),
	}
	s.hub.add(c)

	go c.writeLoop()
	go c.readLoop()
}

func (c *wsClient) extendDeadline() error {
	return c.conn.SetReadDeadline(time.Now().Add(c.idle))
}

func (c *wsClient) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.extendDeadline() //nolint:errcheck // a failed deadline surfaces on read
	c.conn.SetPongHandler(func(string) error { return c.extendDeadline() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "user_id", c.principal.ID, "error", err)
			}
			return
		}
		c.extendDeadline() //nolint:errcheck // a failed deadline surfaces on read
		c.dispatch(data)
	}
}

func (c *wsClient) writeLoop() {
	keepalive := time.NewTicker(c.ping)
	defer func() {
		keepalive.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(c.idle - c.ping)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, open := <-c.out:
			if !open {
				write(websocket.CloseMessage, nil) //nolint:errcheck // peer may be gone
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-keepalive.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *wsClient) dispatch(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &p) != nil {
			c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
			return
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(req.ID, p.Channels)
		} else {
			c.unsubscribe(req.ID, p.Channels)
		}
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

// subscribe is all-or-nothing: one unknown or forbidden channel rejects the request.
func (c *wsClient) subscribe(id string, channels []string) {
	for _, ch := range channels {
		perm, known := channelPermissions[ch]
		switch {
		case !known:
			c.reply(id, WSTypeError, errorPayload("unknown channel: "+ch))
			return
		case !auth.HasPermission(c.principal.Role, perm):
			c.reply(id, WSTypeError, errorPayload("not permitted to subscribe to "+ch))
			return
		}
	}

	c.mu.Lock()
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Info("websocket client subscribed", "user_id", c.principal.ID, "channels", channels)
	c.reply(id, WSTypeResponse, map[string]any{"subscribed": channels})
}

func (c *wsClient) unsubscribe(id string, channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.channels, ch)
	}
	c.mu.Unlock()
	c.reply(id, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// enqueue drops data when the queue is full or already closed.
func (c *wsClient) enqueue(data []byte) {
	defer func() { _ = recover() }() // send on closed channel after disconnect

	select {
	case c.out <- data:
	default:
	}
}

func (c *wsClient) reply(id, kind string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		c.enqueue(data)
	}
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"message": msg}
}
