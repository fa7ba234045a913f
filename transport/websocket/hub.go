package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/merge2048/game/autoplay"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound messages queued before new ones are dropped. Renders happen
	// while the engine holds its lock, so broadcasting never blocks.
	broadcastBuffer = 1024

	// Time allowed to handle one inbound input event.
	inputTimeout = 30 * time.Second
)

// Outbound event names.
const (
	EventRender       = "render"
	EventClearMessage = "clear_message"
	EventStateUpdate  = "state_update"
	EventInputResult  = "input_result"
	EventError        = "error"
	eventAgentPrefix  = "agent_"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	SessionID string            `json:"session_id"`
	GameState *engine.GameState `json:"game_state,omitempty"`
	Event     string            `json:"event,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
}

// RenderPayload is the data of a render event.
type RenderPayload struct {
	Grid     engine.SerializedGrid `json:"grid"`
	Board    []int                 `json:"board"`
	Metadata engine.Metadata       `json:"metadata"`
}

// InputHandler processes an input event sent by a client.
type InputHandler func(ctx context.Context, sessionID string, input service.InputEvent) (*service.InputResult, error)

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type directMessage struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by session ID; written only by the Run goroutine
	sessions map[string]map[*Client]bool
	mu       sync.RWMutex

	// Outbound messages for all clients of a session
	broadcast chan *Message

	// Replies for a single client
	direct chan directMessage

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	inputMu sync.RWMutex
	input   InputHandler
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		direct:     make(chan directMessage, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetInputHandler sets the handler for inbound client events. Without one,
// inbound messages are ignored.
func (h *Hub) SetInputHandler(handler InputHandler) {
	h.inputMu.Lock()
	defer h.inputMu.Unlock()
	h.input = handler
}

func (h *Hub) inputHandler() InputHandler {
	h.inputMu.RLock()
	defer h.inputMu.RUnlock()
	return h.input
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case dm := <-h.direct:
			h.sendDirect(dm)
		}
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}

	client.hub.register <- client

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// enqueue hands a message to the Run goroutine without blocking.
func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn().Str("session", message.SessionID).Str("event", message.Event).Msg("websocket broadcast queue full, dropping message")
	}
}

// BroadcastToSession sends a game state update to all clients in a session
func (h *Hub) BroadcastToSession(sessionID string, state *engine.GameState) {
	h.enqueue(&Message{
		SessionID: sessionID,
		GameState: state,
		Event:     EventStateUpdate,
	})
}

// BroadcastEvent sends a custom event to all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	h.enqueue(&Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	})
}

// BroadcastAgentEvent forwards an autoplay event as agent_<type>.
func (h *Hub) BroadcastAgentEvent(sessionID string, ev autoplay.Event) {
	h.BroadcastEvent(sessionID, eventAgentPrefix+string(ev.Type), ev)
}

// Renderer returns a render sink that pushes every render of the session's
// engine to its clients.
func (h *Hub) Renderer(sessionID string) engine.Renderer {
	return &sessionRenderer{hub: h, sessionID: sessionID}
}

type sessionRenderer struct {
	hub       *Hub
	sessionID string
}

func (r *sessionRenderer) Render(board *engine.Board, meta engine.Metadata) {
	r.hub.BroadcastEvent(r.sessionID, EventRender, RenderPayload{
		Grid:     board.Serialize(),
		Board:    board.Log2Values(),
		Metadata: meta,
	})
}

func (r *sessionRenderer) ClearMessage() {
	r.hub.BroadcastEvent(r.sessionID, EventClearMessage, nil)
}

// ClientCount returns the number of clients connected to a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	log.Debug().Str("session", client.sessionID).Int("clients", len(h.sessions[client.sessionID])).
		Msg("websocket client registered")
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClient(client)
}

// removeClient closes a client's send channel. The caller holds h.mu.
func (h *Hub) removeClient(client *Client) {
	if clients, ok := h.sessions[client.sessionID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			// Clean up empty sessions
			if len(clients) == 0 {
				delete(h.sessions, client.sessionID)
			}

			log.Debug().Str("session", client.sessionID).Int("clients", len(clients)).
				Msg("websocket client unregistered")
		}
	}
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("event", message.Event).Msg("failed to marshal broadcast message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.sessions[message.SessionID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				// Client's send channel is full, close it
				h.removeClient(client)
			}
		}
	}
}

// sendDirect delivers a reply to one client if it is still registered.
func (h *Hub) sendDirect(dm directMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.sessions[dm.client.sessionID][dm.client] {
		return
	}
	select {
	case dm.client.send <- dm.data:
	default:
		h.removeClient(dm.client)
	}
}

// reply queues a message for this client only.
func (c *Client) reply(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, data: data}:
	default:
		log.Warn().Str("session", c.sessionID).Msg("websocket reply queue full, dropping reply")
	}
}

// handleInput decodes an inbound message and dispatches it.
func (c *Client) handleInput(raw []byte) {
	handler := c.hub.inputHandler()
	if handler == nil {
		return
	}

	var input service.InputEvent
	if err := json.Unmarshal(raw, &input); err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Data: map[string]string{"error": "invalid message: " + err.Error()}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), inputTimeout)
	defer cancel()

	result, err := handler(ctx, c.sessionID, input)
	if err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Data: map[string]string{
			"type":  string(input.Type),
			"error": err.Error(),
		}})
		return
	}
	c.reply(&Message{SessionID: c.sessionID, Event: EventInputResult, GameState: result.GameState, Data: result})
}

// readPump pumps input events from the WebSocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("session", c.sessionID).Msg("websocket read error")
			}
			break
		}
		c.handleInput(raw)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
