package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
)

// Client is one attached event stream connection and its subscription set.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.ServerFrame
	user *models.User

	mu   sync.Mutex
	subs map[models.EventType]string // event type -> subscription id
}

// Attach wraps an upgraded connection, registers it, and starts the read
// and write pumps.
func (h *Hub) Attach(conn *websocket.Conn, user *models.User) *Client {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan models.ServerFrame, sendBufferSize),
		user: user,
		subs: make(map[models.EventType]string),
	}
	h.register <- client
	go client.writePump()
	go client.readPump()
	return client
}

// match returns the subscription id covering the event type, preferring a
// wildcard subscription when both exist.
func (c *Client) match(t models.EventType) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.subs[models.EventAll]; ok {
		return id, true
	}
	id, ok := c.subs[t]
	return id, ok
}

// readPump consumes client frames: keepalive pings, and subscribe /
// unsubscribe notices that maintain the subscription set.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame models.ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("hub: read error: user=%s: %v", c.user.Email, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Type {
		case models.FrameTypePing:
			c.enqueuePong()
		case models.FrameTypeSubscribe:
			if frame.Subscription != nil {
				c.mu.Lock()
				c.subs[frame.Subscription.EventType] = frame.Subscription.ID
				c.mu.Unlock()
			}
		case models.FrameTypeUnsubscribe:
			c.removeSubscription(frame.SubscriptionID)
		default:
			log.Printf("hub: ignoring unknown frame type %q from user=%s", frame.Type, c.user.Email)
		}
	}
}

func (c *Client) enqueuePong() {
	payload, _ := json.Marshal(map[string]time.Time{"timestamp": time.Now().UTC()})
	frame := models.ServerFrame{Event: models.Event{Type: models.EventPong, Data: payload}}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) removeSubscription(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for t, subID := range c.subs {
		if subID == id {
			delete(c.subs, t)
			return
		}
	}
}

// writePump serializes all writes to the connection and keeps a transport
// level ping going to detect silently dead peers.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
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
