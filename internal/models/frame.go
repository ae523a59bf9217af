package models

// Frame type constants for the client-to-server direction.
const (
	FrameTypePing        = "ping"
	FrameTypeSubscribe   = "subscribe"
	FrameTypeUnsubscribe = "unsubscribe"
)

// Subscription is a client-side registration of interest in one event type
// (or the wildcard), mirrored to the server as subscribe/unsubscribe frames.
type Subscription struct {
	ID        string    `json:"id"`
	EventType EventType `json:"event_type"`
}

// ClientFrame is the envelope for everything a dashboard client sends
// upstream over the event socket.
type ClientFrame struct {
	Type           string        `json:"type"`
	Subscription   *Subscription `json:"subscription,omitempty"`
	SubscriptionID string        `json:"subscription_id,omitempty"`
}

// ServerFrame is the envelope for everything the gateway pushes down.
// SubscriptionID is set when the event was matched to a specific
// subscription rather than a wildcard.
type ServerFrame struct {
	Event          Event  `json:"event"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}
