package events

import (
	"encoding/json"
	"sync"
	"time"

	"rentcrm/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingModified  = "booking_modified"
	EventBookingCancelled = "booking_cancelled"
	EventNoteAdded        = "note_added"
)

// BookingEventTypes lists every booking event, in lifecycle order.
var BookingEventTypes = []string{
	EventBookingCreated,
	EventBookingModified,
	EventBookingCancelled,
	EventNoteAdded,
}

// BookingEventPayload describes the booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID     string               `json:"booking_id"`
	Status        string               `json:"status"`
	Version       int64                `json:"version"`
	CustomerName  string               `json:"customer_name"`
	CustomerEmail string               `json:"customer_email,omitempty"`
	RentalCompany string               `json:"rental_company,omitempty"`
	PickupDate    string               `json:"pickup_date,omitempty"`
	AgentID       string               `json:"agent_id"`
	AgentName     string               `json:"agent_name"`
	Message       string               `json:"message,omitempty"`
	Changes       []models.FieldChange `json:"changes,omitempty"`
	NoteID        string               `json:"note_id,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NewBookingPayload snapshots b together with the entry that was just recorded.
func NewBookingPayload(b *models.Booking, entry *models.TimelineEntry) BookingEventPayload {
	p := BookingEventPayload{
		BookingID:     b.ID,
		Status:        b.Status,
		Version:       b.Version,
		CustomerName:  b.FullName,
		CustomerEmail: b.Email,
		RentalCompany: b.RentalCompany,
		PickupDate:    b.PickupDate,
		AgentID:       b.AgentID,
		OccurredAt:    b.UpdatedAt,
	}
	if entry != nil {
		p.AgentName = entry.AgentName
		p.Message = entry.Message
		p.Changes = entry.Changes
		p.OccurredAt = entry.Date
	}
	return p
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into a booking payload.
func (e *Event) Decode() (BookingEventPayload, error) {
	var p BookingEventPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger
// when it is non-nil.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type. Handlers run synchronously
// and their errors never reach the publisher.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Error().Err(err).Str("event", event.Type).Msg("Event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
