package events

import (
	"log"
	"sync/atomic"
	"time"
)

// Emitter delivers events to a single subscriber channel.
// It provides a simple, thread-safe way to publish events without blocking
// the component doing the publishing.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEmitter creates a new Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{
		events: make(chan Event, bufferSize),
	}
}

// Publish sends an event to the events channel.
// If the channel is full, it tries with a timeout before dropping the event.
func (e *Emitter) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Try immediate send first
	select {
	case e.events <- event:
		return
	default:
		// Channel full, try with timeout
	}

	// Give the receiver 100ms to drain before dropping
	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[events] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
// This is used by subscribers (CLI, watch view) to receive updates.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel.
// Call only after all publishers have stopped.
func (e *Emitter) Close() {
	close(e.events)
}

// Verify Emitter implements Publisher at compile time.
var _ Publisher = (*Emitter)(nil)
