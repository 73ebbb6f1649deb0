package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the booking service.
const (
	TypeBookingsCreated = "bookings.created"
	TypeBookingsDeleted = "bookings.deleted"
	TypeRoomCreated     = "room.created"
	TypeRoomDeleted     = "room.deleted"
	TypeSquadCreated    = "squad.created"
	TypeSquadDeleted    = "squad.deleted"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// BookingChange is the payload of booking events.
type BookingChange struct {
	RoomIDs    []string  `json:"room_ids"`
	BookingIDs []string  `json:"booking_ids"`
	SeriesID   string    `json:"series_id,omitempty"`
	Count      int       `json:"count"`
	At         time.Time `json:"at"`
}

// DirectoryChange is the payload of room and squad events.
type DirectoryChange struct {
	ID   string    `json:"id"`
	Name string    `json:"name,omitempty"`
	At   time.Time `json:"at"`
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	wildcard    []EventHandler
	mu          sync.RWMutex
	seq         atomic.Int64
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish notifies subscribers of the event type and returns the first handler error.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.ID == 0 {
		event.ID = b.seq.Add(1)
	}

	var firstErr error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishJSON encodes payload and publishes it under eventType.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return b.Publish(Event{Type: eventType, Payload: data})
}
