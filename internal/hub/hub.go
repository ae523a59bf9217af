// Package hub fans typed MTA events out to connected dashboard clients over
// WebSocket, honoring each client's subscription set.
package hub

import (
	"context"
	"log"
	"sync"

	"github.com/mailboard-io/mailboard-ce/internal/metrics"
	"github.com/mailboard-io/mailboard-ce/internal/models"
)

// Hub manages all active event stream connections. Registration,
// deregistration, and broadcast flow through the run loop so client
// bookkeeping stays single-threaded.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.Event

	mu      sync.RWMutex
	clients map[*Client]bool
}

func New() *Hub {
	return &Hub{
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan models.Event, 256),
		clients:    make(map[*Client]bool),
	}
}

// Run drives the hub until ctx is canceled. All remaining clients are
// closed on exit.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WSConnections.Inc()
			log.Printf("hub: client connected: user=%s role=%s", client.user.Email, client.user.Role)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WSConnections.Dec()
				log.Printf("hub: client disconnected: user=%s", client.user.Email)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				metrics.WSConnections.Dec()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues an event for fan-out to every matching subscriber.
func (h *Hub) Broadcast(event models.Event) {
	select {
	case h.broadcast <- event:
	default:
		// Broadcast queue full; the dashboard tolerates lost updates.
		metrics.EventsDropped.Inc()
		log.Printf("hub: broadcast queue full, dropping %s event", event.Type)
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(event models.Event) {
	metrics.EventsBroadcast.WithLabelValues(string(event.Type)).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		subID, ok := client.match(event.Type)
		if !ok {
			continue
		}
		frame := models.ServerFrame{Event: event, SubscriptionID: subID}
		select {
		case client.send <- frame:
		default:
			// Slow client: evict rather than block the fan-out.
			delete(h.clients, client)
			close(client.send)
			metrics.WSConnections.Dec()
			metrics.EventsDropped.Inc()
			log.Printf("hub: evicting slow client: user=%s", client.user.Email)
		}
	}
}
