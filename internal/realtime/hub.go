// Package realtime streams saga run events to WebSocket subscribers.
package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks WebSocket subscribers and fans messages out to them. Writes to
// a dead connection drop the subscriber.
type Hub struct {
	subscribers map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	Broadcast   chan []byte
	mu          sync.Mutex
}

// NewHub constructs a Hub. Broadcast is buffered so event publishers are not
// blocked by slow subscribers.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		Broadcast:   make(chan []byte, 64),
	}
}

// Run processes register, unregister and broadcast events until the process
// exits.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.mu.Lock()
			h.subscribers[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.subscribers, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.Broadcast:
			h.mu.Lock()
			for conn := range h.subscribers {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.subscribers, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish offers a message to the broadcast channel without blocking; the
// message is dropped when the buffer is full.
func (h *Hub) Publish(msg []byte) {
	select {
	case h.Broadcast <- msg:
	default:
	}
}
