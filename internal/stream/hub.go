// Package stream pushes desk events to websocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	bufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is the JSON frame written to clients.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	lock      sync.Mutex
	now       func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, bufferSize),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run writes queued frames to every client until ctx is done, then closes
// all connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case message := <-h.broadcast:
			h.lock.Lock()
			for client := range h.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					slog.Debug("Dropping websocket client", "remote", client.RemoteAddr().String(), "error", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.lock.Unlock()
		}
	}
}

// Publish queues an event for broadcast. It never blocks: when the queue is
// full the event is dropped, since the next ledger event supersedes it.
func (h *Hub) Publish(kind string, payload any) {
	msg, err := json.Marshal(Event{Type: kind, Time: h.now(), Data: payload})
	if err != nil {
		slog.Error("Failed to encode stream event", "type", kind, "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("Stream buffer full, dropping event", "type", kind)
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WS upgrade error", "error", err)
		return
	}
	h.lock.Lock()
	h.clients[conn] = true
	h.lock.Unlock()

	go h.readPump(conn)
}

// readPump discards client frames and unregisters the client once the
// connection is closed.
func (h *Hub) readPump(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for client := range h.clients {
		_ = client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		client.Close()
		delete(h.clients, client)
	}
}
