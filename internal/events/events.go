package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"courtbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types.
const (
	SlotBooked = "slot.booked"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus provides in-process pub/sub for events. Publish delivers
// synchronously; Dispatch enqueues for the Run loop and drops the event
// when the queue is full.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	queue       chan Event
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus with an async queue of queueSize.
func NewEventBus(queueSize int, logger *zerolog.Logger) *EventBus {
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		queue:       make(chan Event, queueSize),
		logger:      logger,
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type in the caller's goroutine.
func (b *EventBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Msg("event handler failed")
		}
	}
}

// Dispatch queues the event for asynchronous delivery.
func (b *EventBus) Dispatch(event Event) bool {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	select {
	case b.queue <- event:
		return true
	default:
		metrics.IncEventDropped(event.Type)
		b.logger.Warn().Str("event_type", event.Type).Msg("event queue full, dropping event")
		return false
	}
}

// PublishJSON marshals payload and dispatches it asynchronously.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	b.Dispatch(Event{Type: eventType, Payload: data})
	return nil
}

// Run delivers queued events until ctx is done, then drains what is left.
func (b *EventBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.drain()
			return
		case event := <-b.queue:
			b.Publish(ctx, event)
		}
	}
}

func (b *EventBus) drain() {
	// Handlers get a fresh context; the run context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-b.queue:
			b.Publish(ctx, event)
		default:
			return
		}
	}
}
