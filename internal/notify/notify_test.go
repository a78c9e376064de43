package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"rentcrm/internal/config"
	"rentcrm/internal/domain"
	"rentcrm/internal/events"
	"rentcrm/internal/models"
	"rentcrm/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func samplePayload() events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:     "b-1",
		Status:        models.StatusCancelled,
		CustomerName:  "Jane <Doe>",
		CustomerEmail: "jane@example.com",
		RentalCompany: "Hertz",
		PickupDate:    "2026-11-02",
		AgentName:     "Sam",
		Changes: []models.FieldChange{
			{Field: "mco", Label: models.LabelMCO, OldValue: "100", NewValue: "50", Kind: models.ChangeMCO},
		},
		OccurredAt: time.Now(),
	}
}

func TestRenderBookingEmail(t *testing.T) {
	email, err := RenderBookingEmail(events.EventBookingCancelled, samplePayload(), "https://crm.example.com/")
	require.NoError(t, err)

	assert.Equal(t, "Your booking has been cancelled (Hertz)", email.Subject)
	assert.Contains(t, email.HTML, "MCO changed from $100 to $50")
	assert.Contains(t, email.HTML, "Jane &lt;Doe&gt;")
	assert.Contains(t, email.HTML, `href="https://crm.example.com/bookings/b-1"`)

	_, err = RenderBookingEmail(events.EventNoteAdded, samplePayload(), "")
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestRenderManagerAlert(t *testing.T) {
	text := RenderManagerAlert(events.EventBookingCancelled, samplePayload())
	assert.Contains(t, text, "Booking cancelled")
	assert.Contains(t, text, "- MCO changed from $100 to $50")
	assert.Contains(t, text, "ID: b-1")
}

type mockMailSender struct{ mock.Mock }

func (m *mockMailSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(ctx, email)
	resp, _ := args.Get(0).(*rest.Response)
	return resp, args.Error(1)
}

func TestSendGridNotifier_Notify(t *testing.T) {
	cfg := config.EmailConfig{FromEmail: "crm@example.com", FromName: "Rent CRM"}

	tests := []struct {
		name      string
		resp      *rest.Response
		sendErr   error
		permanent bool
		external  bool
	}{
		{name: "Accepted", resp: &rest.Response{StatusCode: http.StatusAccepted}},
		{name: "BadRequest", resp: &rest.Response{StatusCode: http.StatusBadRequest, Body: "bad"}, permanent: true},
		{name: "Throttled", resp: &rest.Response{StatusCode: http.StatusTooManyRequests}, external: true},
		{name: "ServerError", resp: &rest.Response{StatusCode: http.StatusBadGateway}, external: true},
		{name: "TransportError", sendErr: errors.New("dial tcp"), external: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockMailSender)
			client.On("SendWithContext", mock.Anything, mock.MatchedBy(func(m *mail.SGMailV3) bool {
				return m.Subject == "Hi" && m.From.Address == "crm@example.com"
			})).Return(tt.resp, tt.sendErr)

			n := newSendGridNotifier(client, cfg, nil)
			err := n.Notify(context.Background(), "jane@example.com", "Hi", "<p>hi</p>")

			switch {
			case tt.permanent:
				assert.ErrorIs(t, err, worker.ErrPermanent)
			case tt.external:
				assert.ErrorIs(t, err, domain.ErrExternal)
				assert.NotErrorIs(t, err, worker.ErrPermanent)
			default:
				assert.NoError(t, err)
			}
			client.AssertExpectations(t)
		})
	}
}

func TestSendGridNotifier_RequiresRecipient(t *testing.T) {
	n := newSendGridNotifier(new(mockMailSender), config.EmailConfig{}, nil)
	err := n.Notify(context.Background(), "", "Hi", "body")
	assert.ErrorIs(t, err, worker.ErrPermanent)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type fakeSender struct {
	failFor map[int64]bool
	sent    []int64
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if f.failFor[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, msg.ChatID)
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifier_AlertManagers(t *testing.T) {
	ctx := context.Background()

	sender := &fakeSender{failFor: map[int64]bool{2: true}}
	n := newTelegramNotifier(sender, []int64{1, 2, 3}, nil)
	require.NoError(t, n.AlertManagers(ctx, "hello"))
	assert.Equal(t, []int64{1, 3}, sender.sent)

	allFail := newTelegramNotifier(&fakeSender{failFor: map[int64]bool{1: true}}, []int64{1}, nil)
	assert.Error(t, allFail.AlertManagers(ctx, "hello"))

	none := newTelegramNotifier(&fakeSender{}, nil, nil)
	assert.NoError(t, none.AlertManagers(ctx, "hello"))
}

type enqueued struct {
	taskType  string
	bookingID string
	payload   interface{}
}

type fakeQueue struct {
	tasks []enqueued
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, taskType, bookingID string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, enqueued{taskType, bookingID, payload})
	return nil
}

func taskTypes(q *fakeQueue) []string {
	out := make([]string, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.taskType)
	}
	return out
}

func TestDispatcher_RoutesEvents(t *testing.T) {
	q := &fakeQueue{}
	bus := events.NewEventBus(nil)
	NewDispatcher(q, Channels{Email: true, Telegram: true, Sheets: true}, nil).Attach(bus)

	require.NoError(t, bus.PublishJSON(events.EventBookingCancelled, samplePayload()))
	assert.Equal(t, []string{worker.TaskEmail, worker.TaskTelegram, worker.TaskSheetsUpsert}, taskTypes(q))

	q.tasks = nil
	require.NoError(t, bus.PublishJSON(events.EventNoteAdded, samplePayload()))
	assert.Equal(t, []string{worker.TaskTelegram}, taskTypes(q))

	q.tasks = nil
	noEmail := samplePayload()
	noEmail.CustomerEmail = ""
	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, noEmail))
	assert.Equal(t, []string{worker.TaskTelegram, worker.TaskSheetsUpsert}, taskTypes(q))
}

func TestDispatcher_ChannelsAndErrors(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, Channels{Sheets: true}, nil)

	raw, _ := json.Marshal(samplePayload())
	require.NoError(t, d.Handle(&events.Event{Type: events.EventBookingModified, Payload: raw}))
	assert.Equal(t, []string{worker.TaskSheetsUpsert}, taskTypes(q))

	failing := NewDispatcher(&fakeQueue{err: errors.New("db locked")}, Channels{Telegram: true}, nil)
	assert.Error(t, failing.Handle(&events.Event{Type: events.EventBookingModified, Payload: raw}))

	assert.Error(t, d.Handle(&events.Event{Type: events.EventBookingModified, Payload: []byte("{")}))
}

type recordingNotifier struct {
	recipient, subject, body string
	err                      error
}

func (r *recordingNotifier) Notify(_ context.Context, recipient, subject, body string) error {
	r.recipient, r.subject, r.body = recipient, subject, body
	return r.err
}

func outboxTask(t *testing.T, taskType, eventType string) models.OutboxTask {
	t.Helper()
	raw, err := json.Marshal(EventTask{EventType: eventType, Booking: samplePayload()})
	require.NoError(t, err)
	return models.OutboxTask{TaskType: taskType, BookingID: "b-1", Payload: string(raw)}
}

func TestEmailHandler(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	h := EmailHandler(n, "")

	require.NoError(t, h(ctx, outboxTask(t, worker.TaskEmail, events.EventBookingCancelled)))
	assert.Equal(t, "jane@example.com", n.recipient)
	assert.Contains(t, n.body, "MCO changed from $100 to $50")

	err := h(ctx, outboxTask(t, worker.TaskEmail, events.EventNoteAdded))
	assert.ErrorIs(t, err, worker.ErrPermanent)

	err = h(ctx, models.OutboxTask{TaskType: worker.TaskEmail, Payload: "not json"})
	assert.ErrorIs(t, err, worker.ErrPermanent)
}

type recordingAlerter struct{ text string }

func (r *recordingAlerter) AlertManagers(_ context.Context, text string) error {
	r.text = text
	return nil
}

func TestTelegramHandler(t *testing.T) {
	a := &recordingAlerter{}
	h := TelegramHandler(a)
	require.NoError(t, h(context.Background(), outboxTask(t, worker.TaskTelegram, events.EventBookingCreated)))
	assert.Contains(t, a.text, "New booking")
}
