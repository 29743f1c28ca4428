// Package hub fans agent-state snapshots out to websocket observers.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/runwatch/internal/state"
)

// Message types sent to observers.
const (
	TypeSnapshot = "snapshot"
)

// Message is the envelope of everything written to an observer.
type Message struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
	Data any    `json:"data"`
}

// Connection represents a single websocket observer.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	mu   sync.Mutex
}

type registration struct {
	conn    *Connection
	current func() state.Snapshot
}

// Hub tracks observer connections and broadcasts to all of them.
type Hub struct {
	connections map[string]*Connection

	register   chan registration
	unregister chan *Connection
	broadcast  chan []byte
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		register:    make(chan registration),
		unregister:  make(chan *Connection),
		broadcast:   make(chan []byte, 256),
		done:        make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is done, closing every
// connection's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, conn := range h.connections {
			close(conn.Send)
			delete(h.connections, id)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case reg := <-h.register:
			h.mu.Lock()
			h.connections[reg.conn.ID] = reg.conn
			h.mu.Unlock()
			slog.Debug("observer registered", "conn_id", reg.conn.ID)
			if reg.current != nil {
				h.greet(reg.conn, reg.current())
			}

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				close(conn.Send)
			}
			h.mu.Unlock()
			slog.Debug("observer unregistered", "conn_id", conn.ID)

		case data := <-h.broadcast:
			h.mu.RLock()
			for id, conn := range h.connections {
				select {
				case conn.Send <- data:
				default:
					slog.Warn("observer buffer full, closing", "conn_id", id)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection wraps ws; it is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   "obs_" + uuid.New().String()[:8],
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

// Register adds conn to the broadcast set.
func (h *Hub) Register(conn *Connection) {
	h.join(registration{conn: conn})
}

// RegisterWithSnapshot adds conn to the broadcast set and queues the result
// of current as its first message. Both happen on the hub loop, so every
// broadcast conn receives afterwards is at least as new as that snapshot.
func (h *Hub) RegisterWithSnapshot(conn *Connection, current func() state.Snapshot) {
	h.join(registration{conn: conn, current: current})
}

func (h *Hub) join(reg registration) {
	select {
	case h.register <- reg:
	case <-h.done:
	}
}

func (h *Hub) greet(conn *Connection, snap state.Snapshot) {
	if err := h.SendJSONToConnection(conn, TypeSnapshot, snap); err != nil {
		slog.Warn("failed to queue initial snapshot", "conn_id", conn.ID, "error", err)
	}
}

// Unregister removes conn and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast sends data to every registered connection.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// BroadcastJSON sends a typed message to every registered connection.
func (h *Hub) BroadcastJSON(msgType string, v any) error {
	data, err := encode(msgType, v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// SendJSONToConnection queues a typed message for one connection.
func (h *Hub) SendJSONToConnection(conn *Connection, msgType string, v any) error {
	data, err := encode(msgType, v)
	if err != nil {
		return err
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ObserveSnapshot broadcasts snap. It has the state.Observer signature so it
// can be subscribed to the store directly.
func (h *Hub) ObserveSnapshot(snap state.Snapshot) {
	if err := h.BroadcastJSON(TypeSnapshot, snap); err != nil {
		slog.Error("failed to broadcast snapshot", "generation", snap.Generation, "error", err)
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func encode(msgType string, v any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Ts: time.Now().UnixMilli(), Data: v})
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Close closes the underlying websocket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}
