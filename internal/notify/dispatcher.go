package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/events"
	"rentcrm/internal/models"
	"rentcrm/internal/worker"

	"github.com/rs/zerolog"
)

const enqueueTimeout = 5 * time.Second

// Channels selects which outbox tasks the dispatcher creates.
type Channels struct {
	Email    bool
	Telegram bool
	Sheets   bool
}

// EventTask is the outbox payload of email and telegram tasks.
type EventTask struct {
	EventType string                     `json:"event_type"`
	Booking   events.BookingEventPayload `json:"booking"`
}

// Dispatcher turns bus events into outbox tasks. Failures are logged and
// never reach the lifecycle action that published the event.
type Dispatcher struct {
	queue    domain.TaskQueue
	channels Channels
	logger   *zerolog.Logger
}

func NewDispatcher(queue domain.TaskQueue, channels Channels, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{queue: queue, channels: channels, logger: logger}
}

// Attach subscribes the dispatcher to every booking event.
func (d *Dispatcher) Attach(bus *events.EventBus) {
	bus.Subscribe(d.Handle, events.BookingEventTypes...)
}

func (d *Dispatcher) Handle(event *events.Event) error {
	p, err := event.Decode()
	if err != nil {
		return fmt.Errorf("decode %s event: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	task := EventTask{EventType: event.Type, Booking: p}
	lifecycleEvent := event.Type != events.EventNoteAdded

	var errs []error
	if d.channels.Email && lifecycleEvent && p.CustomerEmail != "" {
		errs = append(errs, d.enqueue(ctx, worker.TaskEmail, p.BookingID, task))
	}
	if d.channels.Telegram {
		errs = append(errs, d.enqueue(ctx, worker.TaskTelegram, p.BookingID, task))
	}
	if d.channels.Sheets && lifecycleEvent {
		errs = append(errs, d.enqueue(ctx, worker.TaskSheetsUpsert, p.BookingID, nil))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) enqueue(ctx context.Context, taskType, bookingID string, payload interface{}) error {
	if err := d.queue.Enqueue(ctx, taskType, bookingID, payload); err != nil {
		d.logger.Error().Err(err).Str("task_type", taskType).Str("booking_id", bookingID).Msg("Failed to enqueue notification")
		return err
	}
	return nil
}

func decodeEventTask(task models.OutboxTask) (EventTask, error) {
	var et EventTask
	if err := json.Unmarshal([]byte(task.Payload), &et); err != nil {
		return et, fmt.Errorf("%w: decode task payload: %w", worker.ErrPermanent, err)
	}
	return et, nil
}

// EmailHandler delivers customer emails queued by the dispatcher.
func EmailHandler(n domain.Notifier, baseURL string) worker.TaskHandler {
	return func(ctx context.Context, task models.OutboxTask) error {
		et, err := decodeEventTask(task)
		if err != nil {
			return err
		}
		email, err := RenderBookingEmail(et.EventType, et.Booking, baseURL)
		if err != nil {
			return fmt.Errorf("%w: %w", worker.ErrPermanent, err)
		}
		return n.Notify(ctx, et.Booking.CustomerEmail, email.Subject, email.HTML)
	}
}

// ManagerAlerter is implemented by TelegramNotifier.
type ManagerAlerter interface {
	AlertManagers(ctx context.Context, text string) error
}

// TelegramHandler delivers manager alerts queued by the dispatcher.
func TelegramHandler(a ManagerAlerter) worker.TaskHandler {
	return func(ctx context.Context, task models.OutboxTask) error {
		et, err := decodeEventTask(task)
		if err != nil {
			return err
		}
		return a.AlertManagers(ctx, RenderManagerAlert(et.EventType, et.Booking))
	}
}
