package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/distrimax/fulfillgo/internal/packing"
)

// ChannelPacking receives every packing progress update; order-scoped
// channels are named "order:<id>".
const ChannelPacking = "packing"

// Hub maintains the set of active clients and their channel
// subscriptions. Broadcasts are best-effort, at-most-once: a full client
// buffer drops the message rather than blocking a mutation path.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Channel name -> subscribed clients
	subscriptions map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Mutex for thread-safe access to the maps
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			log.Printf("📱 Observer connected: %s", client.ID)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for channel := range client.channels {
					delete(h.subscriptions[channel], client)
				}
				close(client.send)
				log.Printf("📴 Observer disconnected: %s", client.ID)
			}
			h.mu.Unlock()
		}
	}
}

// Subscribe adds the client to a channel
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscriptions[channel] == nil {
		h.subscriptions[channel] = make(map[*Client]bool)
	}
	h.subscriptions[channel][client] = true
	client.channels[channel] = true
}

// Unsubscribe removes the client from a channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subscriptions[channel], client)
	delete(client.channels, channel)
}

// Broadcast sends a message to every subscriber of a channel.
// Slow clients miss the message; they can always re-fetch the snapshot.
func (h *Hub) Broadcast(channel string, message interface{}) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.subscriptions[channel] {
		select {
		case client.send <- jsonMsg:
		default:
			// Buffer full or client dead
		}
	}
}

// PublishProgress implements packing.Publisher: updates go to the global
// packing channel and to the order's own channel.
func (h *Hub) PublishProgress(p packing.Progress) {
	msg := map[string]interface{}{
		"type": "PACKING_PROGRESS",
		"data": p,
	}
	h.Broadcast(ChannelPacking, msg)
	h.Broadcast(OrderChannel(p.OrderID), msg)
}

// OrderChannel returns the channel name for one order's updates
func OrderChannel(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}
