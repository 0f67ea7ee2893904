package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event type names published by the engine
const (
	EventExecutionStarted   = "execution:started"
	EventExecutionCompleted = "execution:completed"
	EventExecutionFailed    = "execution:failed"
	EventStepStarted        = "step:started"
	EventStepCompleted      = "step:completed"
	EventStepFailed         = "step:failed"
	EventStepSkipped        = "step:skipped"
)

// Event is the base interface for all engine events
type Event interface {
	EventType() string
	Timestamp() time.Time
	ExecutionID() string
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Type      string    `json:"type"`
	Time      time.Time `json:"timestamp"`
	Execution string    `json:"execution_id"`
	Workflow  string    `json:"workflow_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) ExecutionID() string  { return e.Execution }

// ExecutionEvent marks an execution lifecycle transition
type ExecutionEvent struct {
	BaseEvent
	Error string `json:"error,omitempty"`
}

// StepEvent marks a step lifecycle transition within an execution
type StepEvent struct {
	BaseEvent
	StepID   string `json:"step_id"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

type subscriber struct {
	ch    chan Event
	types map[string]bool // empty means all types
}

// Bus provides pub/sub for engine events with backpressure control.
// Subscribers with full buffers lose the oldest event rather than
// blocking an execution.
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// NewBus creates an event bus with the given subscriber buffer size
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe creates a subscription for specific event types.
// If no types are specified, subscribes to all events.
func (b *Bus) Subscribe(types ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, b.bufferSize),
		types: make(map[string]bool),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.ch != ch {
			kept = append(kept, sub)
		} else {
			close(sub.ch)
		}
	}
	b.subscribers = kept
}

// Publish sends an event to all matching subscribers. A subscriber
// with a full buffer drops its oldest event (ring buffer behavior).
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	eventType := event.EventType()
	for _, sub := range b.subscribers {
		if len(sub.types) != 0 && !sub.types[eventType] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			select {
			case <-sub.ch:
				atomic.AddInt64(&b.droppedCount, 1)
			default:
			}
			select {
			case sub.ch <- event:
			default:
				atomic.AddInt64(&b.droppedCount, 1)
			}
		}
	}
}

// DroppedCount returns the total number of dropped events
func (b *Bus) DroppedCount() int64 {
	return atomic.LoadInt64(&b.droppedCount)
}

// Close closes the bus and all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}
