// Package ws implements the broadcast fan-out for live updates: a hub of
// connected clients that every state-change event is pushed to, best effort,
// with no rooms, no acknowledgments and no backfill. A client that missed an
// event reconciles on its next full re-fetch.
package ws

import (
	"encoding/json"
	"log"
)

// Hub keeps the set of active clients and fans broadcast messages out to
// all of them.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes register, unregister and broadcast events. It must run in
// its own goroutine for the hub's lifetime.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Event is the JSON envelope pushed to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Notifier is the capability handlers use to announce state changes.
// Production wires it to a Hub; tests wire it to a recording stub.
type Notifier interface {
	Emit(event string, payload interface{})
}

// HubNotifier adapts a Hub to the Notifier interface.
type HubNotifier struct {
	Hub *Hub
}

// Emit marshals the event envelope and hands it to the hub. Fire and
// forget: marshal failures are logged and dropped.
func (n *HubNotifier) Emit(event string, payload interface{}) {
	msg, err := json.Marshal(Event{Type: event, Data: payload})
	if err != nil {
		log.Printf("Error marshalling WS event %q: %v", event, err)
		return
	}
	n.Hub.Broadcast <- msg
}
