// Package hub bridges WebSocket operator sessions to the interactive
// selection loop: inbound pointer messages become pointer events,
// outbound marker messages drive the client-side crosshair.
package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rpattn/scenekit/internal/selection"
)

const (
	writeWait      = 10 * time.Second
	pointerBacklog = 64
)

type clientMessage struct {
	Type string                     `json:"type"`
	Kind selection.PointerEventKind `json:"kind,omitempty"`
	X    float64                    `json:"x,omitempty"`
	Y    float64                    `json:"y,omitempty"`
	IDs  []uuid.UUID                `json:"ids,omitempty"`
}

type serverMessage struct {
	Type   string      `json:"type"`
	Action string      `json:"action,omitempty"`
	X      float64     `json:"x,omitempty"`
	Y      float64     `json:"y,omitempty"`
	IDs    []uuid.UUID `json:"ids,omitempty"`
}

// Client is one connected operator session. It feeds pointer events to
// subscribers and renders the selection marker by messaging the peer.
type Client struct {
	ID string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu         sync.Mutex
	subs       map[int]chan selection.PointerEvent
	nextSub    int
	controlled []uuid.UUID
	closed     bool
}

// Subscribe registers a pointer event listener. The returned function
// deregisters it; the channel is closed on deregistration or when the
// session ends.
func (c *Client) Subscribe() (<-chan selection.PointerEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan selection.PointerEvent, pointerBacklog)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// ShowMarker tells the peer to display the selection marker.
func (c *Client) ShowMarker(x, y float64) {
	c.send(serverMessage{Type: "marker", Action: "show", X: x, Y: y})
}

// MoveMarker tells the peer to move the selection marker.
func (c *Client) MoveMarker(x, y float64) {
	c.send(serverMessage{Type: "marker", Action: "move", X: x, Y: y})
}

// DestroyMarker tells the peer to remove the selection marker.
func (c *Client) DestroyMarker() {
	c.send(serverMessage{Type: "marker", Action: "destroy"})
}

// Controlled returns the placements the peer currently controls.
func (c *Client) Controlled() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uuid.UUID, len(c.controlled))
	copy(out, c.controlled)
	return out
}

// Restore pushes a controlled set back to the peer.
func (c *Client) Restore(ids []uuid.UUID) {
	c.mu.Lock()
	c.controlled = append([]uuid.UUID(nil), ids...)
	c.mu.Unlock()
	c.send(serverMessage{Type: "controlled", IDs: ids})
}

func (c *Client) send(msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[HUB] failed to marshal message for %s: %v", c.ID, err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[HUB] write to %s failed: %v", c.ID, err)
	}
}

func (c *Client) dispatch(event selection.PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		select {
		case sub <- event:
		default:
			// Slow subscriber; drop rather than stall the read loop.
		}
	}
}

func (c *Client) setControlled(ids []uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controlled = append([]uuid.UUID(nil), ids...)
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub)
	}
}

// Hub tracks connected operator sessions by id.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client

	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Client returns the session with the given id, if connected.
func (h *Hub) Client(id string) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[id]
	return client, ok
}

// HandleWS upgrades an operator connection and runs its read loop
// until the peer disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("id")
	if clientID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HUB] upgrade failed for %s: %v", clientID, err)
		return
	}

	client := &Client{
		ID:   clientID,
		conn: conn,
		subs: make(map[int]chan selection.PointerEvent),
	}

	h.mu.Lock()
	if previous, ok := h.clients[clientID]; ok {
		previous.shutdown()
		previous.conn.Close()
	}
	h.clients[clientID] = client
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.clients[clientID] == client {
			delete(h.clients, clientID)
		}
		h.mu.Unlock()
		client.shutdown()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("[HUB] discarding malformed message from %s: %v", clientID, err)
			continue
		}

		switch msg.Type {
		case "pointer":
			switch msg.Kind {
			case selection.PointerMove, selection.PointerPrimaryPress, selection.PointerSecondaryPress:
				client.dispatch(selection.PointerEvent{Kind: msg.Kind, X: msg.X, Y: msg.Y})
			default:
				log.Printf("[HUB] unknown pointer kind %q from %s", msg.Kind, clientID)
			}
		case "controlled":
			client.setControlled(msg.IDs)
		default:
			log.Printf("[HUB] unknown message type %q from %s", msg.Type, clientID)
		}
	}
}

var (
	_ selection.PointerSource = (*Client)(nil)
	_ selection.Renderer      = (*Client)(nil)
	_ selection.ControlledSet = (*Client)(nil)
)
