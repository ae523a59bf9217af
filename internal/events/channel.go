package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

const (
	defaultPingInterval = 30 * time.Second
	writeTimeout        = 10 * time.Second
)

// Handler receives one event per invocation. Handlers for the same event
// are isolated from each other: a panicking handler does not stop dispatch
// to the rest.
type Handler func(models.Event)

// StateHandler observes connection state transitions. It is called
// synchronously with a full snapshot, not a diff.
type StateHandler func(State)

// State is the externally observable connection state of a Channel.
type State struct {
	Connected     bool
	Reconnecting  bool
	Err           string
	LastPing      time.Time
	Subscriptions []models.Subscription
}

// ChannelConfig configures a Channel. URL is required.
type ChannelConfig struct {
	URL          string
	PingInterval time.Duration
	Reconnect    ReconnectConfig
	Dialer       *websocket.Dialer
}

// Channel maintains at most one logical WebSocket connection to the event
// gateway, delivers typed events to subscribers, and recovers from
// transport failures through the reconnect policy without subscriber
// intervention.
//
// There is deliberately no package-level default channel; callers construct
// one Channel at startup and pass it down.
type Channel struct {
	cfg    ChannelConfig
	policy *ReconnectPolicy

	mu            sync.Mutex
	conn          *websocket.Conn
	gen           uint64 // bumped on connect and disconnect so stale read loops are ignored
	connecting    bool
	connected     bool
	reconnecting  bool
	errStr        string
	lastPing      time.Time
	pingStop      chan struct{}
	nextToken     int
	handlers      map[models.EventType]map[int]Handler
	subs          map[models.EventType]models.Subscription
	stateHandlers map[int]StateHandler
}

func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Channel{
		cfg:           cfg,
		policy:        NewReconnectPolicy(cfg.Reconnect),
		handlers:      make(map[models.EventType]map[int]Handler),
		subs:          make(map[models.EventType]models.Subscription),
		stateHandlers: make(map[int]StateHandler),
	}
}

// Connect dials the gateway. A call while already connecting or connected
// is a logged no-op. On success the reconnect policy is reset, every live
// subscription is replayed to the server, and the keepalive starts. On
// failure the error is recorded in state and the reconnect policy takes
// over, so an explicit caller retry is only needed once the policy is
// exhausted.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connecting || c.connected {
		c.mu.Unlock()
		log.Printf("events: connect ignored, channel already connecting or connected")
		return nil
	}
	c.connecting = true
	dialGen := c.gen
	c.mu.Unlock()

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		c.handleTransportFailure(err, dialGen)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.gen++
	gen := c.gen
	c.connecting = false
	c.connected = true
	c.reconnecting = false
	c.errStr = ""
	c.policy.Reset()
	for _, sub := range c.subs {
		s := sub
		c.writeLocked(models.ClientFrame{Type: models.FrameTypeSubscribe, Subscription: &s})
	}
	stop := make(chan struct{})
	c.pingStop = stop
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	go c.keepalive(stop)
	c.notifyState()
	return nil
}

// Disconnect is a clean shutdown: it cancels any pending reconnect, stops
// the keepalive, and closes the transport. It never triggers the reconnect
// policy.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
		c.conn = nil
	}
	c.connecting = false
	c.connected = false
	c.reconnecting = false
	c.mu.Unlock()

	// Cancel after the generation bump: a transport failure racing this
	// disconnect either armed its timer before the bump (stopped here) or
	// sees the stale generation and never schedules.
	c.policy.CancelReconnect()
	c.notifyState()
}

// Subscribe registers a handler for one event type, or for every event via
// models.EventAll. The returned func removes exactly that handler; when the
// last handler for a type goes away a best-effort unsubscribe notice is
// sent upstream.
func (c *Channel) Subscribe(eventType models.EventType, handler Handler) (unsubscribe func()) {
	c.mu.Lock()
	token := c.nextToken
	c.nextToken++
	if c.handlers[eventType] == nil {
		c.handlers[eventType] = make(map[int]Handler)
	}
	c.handlers[eventType][token] = handler
	if _, ok := c.subs[eventType]; !ok {
		sub := models.Subscription{ID: uuid.NewString(), EventType: eventType}
		c.subs[eventType] = sub
		if c.connected {
			c.writeLocked(models.ClientFrame{Type: models.FrameTypeSubscribe, Subscription: &sub})
		}
	}
	c.mu.Unlock()
	c.notifyState()

	var once sync.Once
	return func() {
		once.Do(func() { c.removeHandler(eventType, token) })
	}
}

func (c *Channel) removeHandler(eventType models.EventType, token int) {
	c.mu.Lock()
	if hs := c.handlers[eventType]; hs != nil {
		delete(hs, token)
		if len(hs) == 0 {
			delete(c.handlers, eventType)
			if sub, ok := c.subs[eventType]; ok {
				delete(c.subs, eventType)
				if c.connected {
					c.writeLocked(models.ClientFrame{Type: models.FrameTypeUnsubscribe, SubscriptionID: sub.ID})
				} else {
					log.Printf("events: unsubscribe notice for %s dropped, channel not connected", eventType)
				}
			}
		}
	}
	c.mu.Unlock()
	c.notifyState()
}

// OnStateChange registers a state observer and returns its removal func.
func (c *Channel) OnStateChange(fn StateHandler) (remove func()) {
	c.mu.Lock()
	token := c.nextToken
	c.nextToken++
	c.stateHandlers[token] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.stateHandlers, token)
			c.mu.Unlock()
		})
	}
}

// Send transmits an arbitrary payload upstream. While disconnected the
// payload is dropped with a logged warning; sends are never queued for
// later delivery.
func (c *Channel) Send(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		log.Printf("events: send dropped, channel not connected")
		return
	}
	c.writeLocked(v)
}

// State returns a snapshot of the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Channel) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			c.dispatch(data)
			continue
		}

		c.mu.Lock()
		stale := gen != c.gen
		if !stale {
			c.connected = false
			c.conn = nil
			if c.pingStop != nil {
				close(c.pingStop)
				c.pingStop = nil
			}
		}
		c.mu.Unlock()
		conn.Close()

		if stale {
			// Closed by Disconnect or superseded by a newer connection.
			return
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.Printf("events: connection lost: %v", err)
		}
		c.handleTransportFailure(err, gen)
		return
	}
}

// handleTransportFailure records the error, flips to reconnecting, and asks
// the policy for a retry. Exhaustion becomes a terminal error state that
// only an explicit Connect can leave. A failure carrying a stale generation
// was superseded by Disconnect or a newer connection and must not arm a
// retry timer.
func (c *Channel) handleTransportFailure(err error, gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.errStr = err.Error()
	c.reconnecting = true
	c.mu.Unlock()
	c.notifyState()

	scheduled := c.policy.ScheduleReconnect(func() {
		if cerr := c.Connect(context.Background()); cerr != nil {
			log.Printf("events: reconnect attempt failed: %v", cerr)
		}
	})
	if !scheduled {
		c.mu.Lock()
		c.reconnecting = false
		c.errStr = "reconnect attempts exhausted"
		c.mu.Unlock()
		c.notifyState()
		log.Printf("events: reconnect attempts exhausted, explicit connect required")
	}
}

func (c *Channel) dispatch(data []byte) {
	var frame models.ServerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("events: dropping malformed frame: %v", err)
		return
	}
	if frame.Event.Type == "" {
		log.Printf("events: dropping frame without event type")
		return
	}

	if frame.Event.Type == models.EventPong {
		c.mu.Lock()
		c.lastPing = time.Now()
		c.mu.Unlock()
		c.notifyState()
		return
	}

	// Wildcard handlers run before type-specific ones.
	c.mu.Lock()
	targets := make([]Handler, 0, len(c.handlers[models.EventAll])+len(c.handlers[frame.Event.Type]))
	for _, h := range c.handlers[models.EventAll] {
		targets = append(targets, h)
	}
	for _, h := range c.handlers[frame.Event.Type] {
		targets = append(targets, h)
	}
	c.mu.Unlock()

	for _, h := range targets {
		c.invoke(h, frame.Event)
	}
}

func (c *Channel) invoke(h Handler, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler panic on %s event: %v", ev.Type, r)
		}
	}()
	h(ev)
}

func (c *Channel) keepalive(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if c.connected {
				c.writeLocked(models.ClientFrame{Type: models.FrameTypePing})
			}
			c.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// writeLocked writes v as a JSON text frame. Callers hold c.mu.
func (c *Channel) writeLocked(v any) {
	if c.conn == nil {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		log.Printf("events: write failed: %v", err)
	}
}

func (c *Channel) snapshotLocked() State {
	subs := make([]models.Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	return State{
		Connected:     c.connected,
		Reconnecting:  c.reconnecting,
		Err:           c.errStr,
		LastPing:      c.lastPing,
		Subscriptions: subs,
	}
}

func (c *Channel) notifyState() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	observers := make([]StateHandler, 0, len(c.stateHandlers))
	for _, fn := range c.stateHandlers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}
