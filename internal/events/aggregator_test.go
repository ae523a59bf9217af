package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

// fakeSource is an in-memory Subscriber that lets tests drive handlers
// directly without a transport.
type fakeSource struct {
	mu       sync.Mutex
	handlers map[models.EventType][]Handler
	unsubbed int
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[models.EventType][]Handler)}
}

func (f *fakeSource) Subscribe(eventType models.EventType, handler Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[eventType] = append(f.handlers[eventType], handler)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubbed++
	}
}

func (f *fakeSource) emit(ev models.Event) {
	f.mu.Lock()
	handlers := append([]Handler(nil), f.handlers[ev.Type]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func deliveryEvent(t *testing.T, msgID string) models.Event {
	t.Helper()
	ev, err := models.NewEvent(models.EventDelivery, models.DeliveryData{
		MessageID: msgID,
		Domain:    "example.com",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return ev
}

func TestAggregatorBatchesWithinWindow(t *testing.T) {
	src := newFakeSource()
	batches := make(chan []models.Event, 4)

	agg := NewAggregator(src, models.EventDelivery, 30*time.Millisecond, func(batch []models.Event) {
		batches <- batch
	})
	defer agg.Stop()

	src.emit(deliveryEvent(t, "m1"))
	src.emit(deliveryEvent(t, "m2"))
	src.emit(deliveryEvent(t, "m3"))

	select {
	case batch := <-batches:
		assert.Len(t, batch, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("window elapsed without a flush")
	}
}

func TestAggregatorSkipsEmptyWindows(t *testing.T) {
	src := newFakeSource()
	batches := make(chan []models.Event, 4)

	agg := NewAggregator(src, models.EventDelivery, 10*time.Millisecond, func(batch []models.Event) {
		batches <- batch
	})
	defer agg.Stop()

	select {
	case batch := <-batches:
		t.Fatalf("flush with no events: %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAggregatorStopFlushesRemainder(t *testing.T) {
	src := newFakeSource()
	batches := make(chan []models.Event, 4)

	agg := NewAggregator(src, models.EventDelivery, time.Hour, func(batch []models.Event) {
		batches <- batch
	})

	src.emit(deliveryEvent(t, "m1"))
	agg.Stop()

	select {
	case batch := <-batches:
		require.Len(t, batch, 1)
		var data models.DeliveryData
		require.NoError(t, batch[0].Decode(&data))
		assert.Equal(t, "m1", data.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not flush the buffered event")
	}

	src.mu.Lock()
	assert.Equal(t, 1, src.unsubbed)
	src.mu.Unlock()

	// Stop is idempotent and late events are ignored.
	agg.Stop()
	src.emit(deliveryEvent(t, "m2"))
	select {
	case batch := <-batches:
		t.Fatalf("flush after stop: %v", batch)
	case <-time.After(50 * time.Millisecond):
	}
}
