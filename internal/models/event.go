package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminates the tagged union of events pushed to dashboard
// clients. The set is closed; the backend never emits a type outside it.
type EventType string

const (
	EventQueueUpdate  EventType = "queue_update"
	EventMetricUpdate EventType = "metric_update"
	EventDelivery     EventType = "delivery"
	EventBounce       EventType = "bounce"
	EventQueueSuspend EventType = "queue_suspend"
	EventQueueResume  EventType = "queue_resume"
	EventSystemMetric EventType = "system_metric"
	EventError        EventType = "error"

	// EventPong is internal liveness traffic; it is never forwarded to
	// subscribers.
	EventPong EventType = "pong"

	// EventAll is the client-side wildcard subscription key. It is not a
	// wire event type.
	EventAll EventType = "all"
)

// EventTypes lists the closed set of subscribable wire event types.
func EventTypes() []EventType {
	return []EventType{
		EventQueueUpdate, EventMetricUpdate, EventDelivery, EventBounce,
		EventQueueSuspend, EventQueueResume, EventSystemMetric, EventError,
	}
}

// Event is a single server-pushed event. Data carries the type-specific
// payload; events are immutable and ephemeral.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event with the payload marshaled into Data.
func NewEvent(t EventType, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return Event{Type: t, Data: data}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type QueueUpdateData struct {
	QueueName    string    `json:"queue_name"`
	Domain       string    `json:"domain"`
	MessageCount int       `json:"message_count"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

type MetricUpdateData struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Window    string    `json:"window,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type DeliveryData struct {
	MessageID string    `json:"message_id"`
	QueueName string    `json:"queue_name"`
	Domain    string    `json:"domain"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
}

type BounceData struct {
	MessageID string    `json:"message_id"`
	Domain    string    `json:"domain"`
	Recipient string    `json:"recipient"`
	Code      int       `json:"code"`
	Reason    string    `json:"reason"`
	Permanent bool      `json:"permanent"`
	Timestamp time.Time `json:"timestamp"`
}

type QueueSuspendData struct {
	QueueName string    `json:"queue_name"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

type QueueResumeData struct {
	QueueName string    `json:"queue_name"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

type SystemMetricData struct {
	Host          string    `json:"host"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	Connections   int       `json:"connections"`
	Timestamp     time.Time `json:"timestamp"`
}

type ErrorData struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
