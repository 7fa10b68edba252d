package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// channelEvent is an internal struct for routing events to named channels
type channelEvent struct {
	Channel string
	Event   Event
}

// Hub maintains the set of active dashboard clients and broadcasts order
// events to them. Clients subscribe to named channels ("orders" today;
// the channel key keeps per-station feeds possible later).
type Hub struct {
	// Registered clients by channel name
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *channelEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *channelEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.channel] == nil {
				h.rooms[client.channel] = make(map[*Client]bool)
			}
			h.rooms[client.channel][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.channel]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.channel)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Channel]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients on this channel
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.Channel], client)
					if len(h.rooms[event.Channel]) == 0 {
						delete(h.rooms, event.Channel)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all clients subscribed to a channel.
// This is the public API for handlers to push order updates.
func (h *Hub) Broadcast(channel string, event Event) {
	h.broadcast <- &channelEvent{
		Channel: channel,
		Event:   event,
	}
}

// BroadcastSnapshot marshals payload and broadcasts it as an event of the
// given type. Marshal failures are logged and dropped; dashboards re-sync
// from the API on load.
func (h *Hub) BroadcastSnapshot(channel, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("ws: marshal broadcast payload")
		return
	}
	h.Broadcast(channel, Event{Type: eventType, Payload: raw})
}
