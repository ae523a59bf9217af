package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

type hubHarness struct {
	hub    *Hub
	srv    *httptest.Server
	cancel context.CancelFunc
}

func newHubHarness(t *testing.T) *hubHarness {
	t.Helper()
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Attach(conn, &models.User{ID: 1, Email: "op@example.com", Role: models.RoleOperator})
	}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &hubHarness{hub: h, srv: srv, cancel: cancel}
}

func (h *hubHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// roundTrip sends a keepalive ping and waits for the pong, guaranteeing every
// frame written before it has been processed by the read pump.
func roundTrip(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(models.ClientFrame{Type: models.FrameTypePing}))
	frame := readFrame(t, conn)
	require.Equal(t, models.EventPong, frame.Event.Type)
}

func readFrame(t *testing.T, conn *websocket.Conn) models.ServerFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame models.ServerFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func subscribe(t *testing.T, conn *websocket.Conn, eventType models.EventType) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, conn.WriteJSON(models.ClientFrame{
		Type:         models.FrameTypeSubscribe,
		Subscription: &models.Subscription{ID: id, EventType: eventType},
	}))
	return id
}

func bounceEvent(t *testing.T) models.Event {
	t.Helper()
	ev, err := models.NewEvent(models.EventBounce, models.BounceData{
		MessageID: "m1",
		Domain:    "example.com",
		Recipient: "user@example.com",
		Code:      550,
		Reason:    "mailbox unavailable",
		Permanent: true,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return ev
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t)

	subID := subscribe(t, conn, models.EventBounce)
	roundTrip(t, conn)

	h.hub.Broadcast(bounceEvent(t))

	frame := readFrame(t, conn)
	assert.Equal(t, models.EventBounce, frame.Event.Type)
	assert.Equal(t, subID, frame.SubscriptionID)

	var data models.BounceData
	require.NoError(t, frame.Event.Decode(&data))
	assert.Equal(t, 550, data.Code)
	assert.True(t, data.Permanent)
}

func TestBroadcastSkipsNonSubscribers(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t)

	subscribe(t, conn, models.EventDelivery)
	roundTrip(t, conn)

	h.hub.Broadcast(bounceEvent(t))

	// Nothing matches: the next frame the client sees is its own pong.
	roundTrip(t, conn)
}

func TestWildcardSubscriptionWins(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t)

	subscribe(t, conn, models.EventBounce)
	wildcardID := subscribe(t, conn, models.EventAll)
	roundTrip(t, conn)

	h.hub.Broadcast(bounceEvent(t))

	frame := readFrame(t, conn)
	assert.Equal(t, models.EventBounce, frame.Event.Type)
	assert.Equal(t, wildcardID, frame.SubscriptionID)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t)

	subID := subscribe(t, conn, models.EventBounce)
	roundTrip(t, conn)

	require.NoError(t, conn.WriteJSON(models.ClientFrame{
		Type:           models.FrameTypeUnsubscribe,
		SubscriptionID: subID,
	}))
	roundTrip(t, conn)

	h.hub.Broadcast(bounceEvent(t))
	roundTrip(t, conn)
}

func TestClientCountTracksAttachment(t *testing.T) {
	h := newHubHarness(t)
	assert.Equal(t, 0, h.hub.ClientCount())

	conn := h.dial(t)
	assert.Eventually(t, func() bool { return h.hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	second := h.dial(t)
	assert.Eventually(t, func() bool { return h.hub.ClientCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	second.Close()
	assert.Eventually(t, func() bool { return h.hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestUnknownFrameTypeIsIgnored(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t)

	require.NoError(t, conn.WriteJSON(models.ClientFrame{Type: "shout"}))
	roundTrip(t, conn)
	assert.Equal(t, 1, h.hub.ClientCount())
}
