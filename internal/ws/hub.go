package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // widget embeds on arbitrary customer sites
	},
}

// InboundFunc receives messages a widget client sends over the socket.
type InboundFunc func(tenantID string, raw []byte)

// Client is one connected widget session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	tenantID  string
	sessionID string
}

// Hub tracks connected widget clients by session ID so bot and agent replies
// can be pushed to the right browser tab.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Client

	register   chan *Client
	unregister chan *Client

	inbound InboundFunc
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions:   make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// SetInboundHandler wires socket messages into the message pipeline. Must be
// called before Run.
func (h *Hub) SetInboundHandler(fn InboundFunc) {
	h.inbound = fn
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.sessions[client.sessionID]; ok {
				close(old.send)
			}
			h.sessions[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("widget session connected", "session_id", client.sessionID, "tenant_id", client.tenantID)
		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.sessions[client.sessionID]; ok && current == client {
				delete(h.sessions, client.sessionID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("widget session disconnected", "session_id", client.sessionID)
		}
	}
}

// Push delivers a payload to one widget session. Implements the web channel's
// delivery contract.
func (h *Hub) Push(sessionID string, payload []byte) error {
	h.mu.Lock()
	client, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("widget session %s not connected", sessionID)
	}

	select {
	case client.send <- payload:
		return nil
	default:
		return fmt.Errorf("widget session %s send buffer full", sessionID)
	}
}

// ServeWs upgrades the connection and attaches the widget session. The
// session ID comes from the client (reconnects) or is minted here.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, tenantID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		tenantID:  tenantID,
		sessionID: sessionID,
	}
	h.register <- client

	// Tell the widget its session ID so it can tag subsequent messages.
	hello, _ := json.Marshal(map[string]string{"type": "session", "session_id": sessionID})
	client.send <- hello

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if c.hub.inbound == nil {
			continue
		}
		// Stamp the session ID so the web adapter can route the reply.
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		msg["session_id"] = c.sessionID
		stamped, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		c.hub.inbound(c.tenantID, stamped)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
