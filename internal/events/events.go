// Package events is a small in-process pub/sub used to decouple side effects
// (notifications, cache invalidation) from the booking services.
package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Event types published by the services.
const (
	GigCreated      = "gig.created"
	GigUpdated      = "gig.updated"
	GigDeleted      = "gig.deleted"
	BookingCreated  = "booking.created"
	BookingApproved = "booking.approved"
	BookingRejected = "booking.rejected"
	BookingRemoved  = "booking.removed"
	LineupUpdated   = "lineup.updated"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// Publisher is what services depend on.
type Publisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
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

// Publish runs every handler of the event type synchronously and joins their errors.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON marshals payload and publishes it.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Publish(Event{Type: eventType, Payload: data})
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishJSON(string, interface{}) error { return nil }

// GigPayload accompanies gig and lineup events.
type GigPayload struct {
	GigID  string `json:"gigId"`
	Notify bool   `json:"notify,omitempty"` // gig.created: announce to comedians
}

// BookingPayload accompanies booking events.
type BookingPayload struct {
	BookingID  string `json:"bookingId"`
	GigID      string `json:"gigId"`
	ComedianID string `json:"comedianId"`
	Status     string `json:"status"`
	SpotIndex  *int   `json:"spotIndex,omitempty"`
	Actor      string `json:"actor,omitempty"`
}
