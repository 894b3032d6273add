package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"storefront/internal/platform/logger"
	"storefront/internal/resilience"
)

// Message is what circuit feed clients receive: one snapshot on connect, then
// one transition per breaker state change.
type Message struct {
	Type   string                       `json:"type"`
	States []resilience.DependencyState `json:"states,omitempty"`
	Change *resilience.StateChange      `json:"change,omitempty"`
}

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 5 * time.Second
	// sendQueue is how many frames a client may lag behind before it is dropped.
	sendQueue = 16
)

// client is one feed subscriber. Only its writer goroutine touches conn for writes.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket clients and broadcasts breaker transitions to them.
type Hub struct {
	connections map[*client]struct{}
	register    chan *client
	unregister  chan *client
	broadcast   chan []byte
	upgrader    websocket.Upgrader
	snapshot    func() []resilience.DependencyState
	log         *logger.Logger
	mu          sync.Mutex
}

// NewHub constructs a Hub. snapshot, when set, supplies the states sent to a
// client as soon as it connects.
func NewHub(snapshot func() []resilience.DependencyState, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		connections: make(map[*client]struct{}),
		register:    make(chan *client),
		unregister:  make(chan *client),
		broadcast:   make(chan []byte, 64),
		snapshot:    snapshot,
		log:         log,
	}
}

// Run processes register/unregister/broadcast events until ctx is done. A
// client whose queue is full is dropped rather than delaying the others.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.connections {
				h.drop(c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.connections[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.connections {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("circuit feed client too slow, disconnecting")
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *client) {
	if _, ok := h.connections[c]; !ok {
		return
	}
	delete(h.connections, c)
	close(c.send)
}

// writeLoop drains c.send until the hub drops the client or a write fails.
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Publish queues a transition for every client. It never blocks the caller;
// when the queue is full the transition is dropped.
func (h *Hub) Publish(change resilience.StateChange) {
	data, err := json.Marshal(Message{Type: "transition", Change: &change})
	if err != nil {
		h.log.Warn("encode circuit transition", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("circuit feed full, dropping transition", "dependency", change.Dependency, "to", change.To)
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	if h.snapshot != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(Message{Type: "snapshot", States: h.snapshot()}); err != nil {
			conn.Close()
			return
		}
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueue)}
	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close()
		return
	}
	go h.writeLoop(c)

	for {
		if _, _, err := conn.NextReader(); err != nil {
			select {
			case h.unregister <- c:
			case <-r.Context().Done():
			}
			return
		}
	}
}
