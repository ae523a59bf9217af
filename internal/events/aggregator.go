package events

import (
	"sync"
	"time"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

// Subscriber is the subset of Channel the aggregator decorates. Kept as an
// interface so consumers can batch over any event source with the same
// subscribe contract.
type Subscriber interface {
	Subscribe(eventType models.EventType, handler Handler) (unsubscribe func())
}

// Aggregator batches events of one type over a fixed time window and hands
// each batch to a flush callback. It is a decorator over the channel's
// subscribe interface; the channel's own dispatch path stays synchronous
// and unbatched.
type Aggregator struct {
	window  time.Duration
	flush   func([]models.Event)
	unsub   func()
	done    chan struct{}
	mu      sync.Mutex
	pending []models.Event
	stopped bool
}

// NewAggregator subscribes to eventType on src and starts the flush timer.
// Call Stop to unsubscribe; any still-buffered events are flushed on stop.
func NewAggregator(src Subscriber, eventType models.EventType, window time.Duration, flush func([]models.Event)) *Aggregator {
	a := &Aggregator{
		window: window,
		flush:  flush,
		done:   make(chan struct{}),
	}
	a.unsub = src.Subscribe(eventType, a.collect)
	go a.run()
	return a
}

func (a *Aggregator) collect(ev models.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.pending = append(a.pending, ev)
}

func (a *Aggregator) run() {
	ticker := time.NewTicker(a.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.flushPending()
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) flushPending() {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()
	if len(batch) > 0 {
		a.flush(batch)
	}
}

// Stop unsubscribes from the source, stops the timer, and flushes whatever
// is still buffered.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.mu.Unlock()

	a.unsub()
	close(a.done)
	a.flushPending()
}
