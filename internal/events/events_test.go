package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rentcrm/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	callCount := 0
	bus.Subscribe(func(event *Event) error {
		received = event
		callCount++
		return nil
	}, "test_event")

	require.NoError(t, bus.PublishJSON("test_event", map[string]string{"foo": "bar"}))

	assert.Equal(t, 1, callCount)
	assert.Equal(t, "test_event", received.Type)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "bar", decoded["foo"])
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe(func(_ *Event) error { count1++; return nil }, EventBookingCreated, EventBookingCancelled)
	bus.Subscribe(func(_ *Event) error { count2++; return errors.New("ignored") }, EventBookingCreated)

	bus.Publish(&Event{Type: EventBookingCreated})
	bus.Publish(&Event{Type: EventBookingCancelled})

	assert.Equal(t, 2, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusHandlerErrorsAreLogged(t *testing.T) {
	logger := zerolog.Nop()
	bus := NewEventBus(&logger)
	bus.Subscribe(func(_ *Event) error { return errors.New("boom") }, "x")

	assert.NotPanics(t, func() { bus.Publish(&Event{Type: "x"}) })
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	bus.Publish(&Event{Type: "unknown"})
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestNewBookingPayload(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	b := &models.Booking{ID: "b-1", FullName: "Jane", Email: "j@x.io", Status: models.StatusCancelled, Version: 3, AgentID: "a-1"}
	entry := &models.TimelineEntry{
		Date: at, Message: "Cancellation processed by Sam", AgentName: "Sam",
		Changes: []models.FieldChange{{Field: "mco", Label: models.LabelMCO, OldValue: "100", NewValue: "50", Kind: models.ChangeMCO}},
	}

	p := NewBookingPayload(b, entry)
	assert.Equal(t, "b-1", p.BookingID)
	assert.Equal(t, "Sam", p.AgentName)
	assert.Equal(t, at, p.OccurredAt)
	require.Len(t, p.Changes, 1)

	ev := &Event{Type: EventBookingCancelled}
	ev.Payload, _ = json.Marshal(p)
	decoded, err := ev.Decode()
	require.NoError(t, err)
	assert.Equal(t, "MCO changed from $100 to $50", decoded.Changes[0].Render())
}
