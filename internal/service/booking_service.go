package service

import (
	"context"
	"strings"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/events"
	"rentcrm/internal/lifecycle"
	"rentcrm/internal/metrics"
	"rentcrm/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService runs lifecycle actions against the repository. Every action
// is one repository call so the patch, status, version and timeline entry
// are committed together; events are published only after the commit.
type BookingService struct {
	repo     domain.BookingRepository
	eventBus domain.EventPublisher
	policy   lifecycle.Policy
	logger   *zerolog.Logger
	now      func() time.Time
	newID    func() string
}

func NewBookingService(repo domain.BookingRepository, eventBus domain.EventPublisher, policy lifecycle.Policy, logger *zerolog.Logger) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:     repo,
		eventBus: eventBus,
		policy:   policy,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, agent domain.Identity, draft *models.Booking) (booking *models.Booking, err error) {
	defer func() { metrics.ObserveLifecycle(string(lifecycle.ActionCreate), err) }()

	if agent.AgentID == "" {
		return nil, domain.ErrUnauthorized
	}
	if draft == nil {
		return nil, domain.Validationf("booking is required")
	}

	d := draft.Clone()
	d.ID = s.newID()
	booking, err = lifecycle.Create(d, agent, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	entry := booking.Timeline[0]
	s.publishEvent(events.EventBookingCreated, booking, &entry)
	return booking, nil
}

// ModifyBooking records the agent's selection. expectedVersion, when set, is
// the version the agent was looking at; otherwise the freshly read one is used.
func (s *BookingService) ModifyBooking(ctx context.Context, agent domain.Identity, id string, selection []lifecycle.Selection, expectedVersion *int64) (booking *models.Booking, err error) {
	defer func() { metrics.ObserveLifecycle(string(lifecycle.ActionModify), err) }()

	prev, version, err := s.snapshot(ctx, agent, id, expectedVersion)
	if err != nil {
		return nil, err
	}

	next, entry, err := lifecycle.BuildModification(prev, selection, agent, s.now(), s.policy)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBooking(ctx, next, version, entry); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingModified, next, &entry)
	return next, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, agent domain.Identity, id string, req lifecycle.CancelRequest, expectedVersion *int64) (booking *models.Booking, err error) {
	defer func() { metrics.ObserveLifecycle(string(lifecycle.ActionCancel), err) }()

	prev, version, err := s.snapshot(ctx, agent, id, expectedVersion)
	if err != nil {
		return nil, err
	}

	next, entry, err := lifecycle.BuildCancellation(prev, req, agent, s.now(), s.policy)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBooking(ctx, next, version, entry); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCancelled, next, &entry)
	return next, nil
}

// CreateCancelledBooking stores a booking that is cancelled on arrival: the
// creation and cancellation entries are written in one insert.
func (s *BookingService) CreateCancelledBooking(ctx context.Context, agent domain.Identity, draft *models.Booking, req lifecycle.CancelRequest) (booking *models.Booking, err error) {
	defer func() { metrics.ObserveLifecycle("create_cancelled", err) }()

	if agent.AgentID == "" {
		return nil, domain.ErrUnauthorized
	}
	if draft == nil {
		return nil, domain.Validationf("booking is required")
	}

	now := s.now()
	d := draft.Clone()
	d.ID = s.newID()
	created, err := lifecycle.Create(d, agent, now)
	if err != nil {
		return nil, err
	}
	booking, entry, err := lifecycle.BuildCancellation(created, req, agent, now, s.policy)
	if err != nil {
		return nil, err
	}
	booking.Timeline = append(booking.Timeline, entry)

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCancelled, booking, &entry)
	return booking, nil
}

func (s *BookingService) snapshot(ctx context.Context, agent domain.Identity, id string, expectedVersion *int64) (*models.Booking, int64, error) {
	if agent.AgentID == "" {
		return nil, 0, domain.ErrUnauthorized
	}
	prev, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if expectedVersion != nil && *expectedVersion != prev.Version {
		return nil, 0, domain.ErrConcurrentModification
	}
	return prev, prev.Version, nil
}

func (s *BookingService) AddNote(ctx context.Context, agent domain.Identity, bookingID, text string) (note *models.Note, err error) {
	defer func() { metrics.ObserveLifecycle("note_add", err) }()

	if agent.AgentID == "" {
		return nil, domain.ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Validationf("note text is required")
	}

	note = &models.Note{
		ID:        s.newID(),
		Text:      text,
		AgentID:   agent.AgentID,
		AgentName: agent.AgentName,
		CreatedAt: s.now(),
	}
	if err := s.repo.AppendNote(ctx, bookingID, note); err != nil {
		return nil, err
	}

	if booking, err := s.repo.GetBooking(ctx, bookingID); err == nil {
		payload := events.NewBookingPayload(booking, nil)
		payload.AgentName = agent.AgentName
		payload.NoteID = note.ID
		payload.OccurredAt = note.CreatedAt
		s.publish(events.EventNoteAdded, bookingID, payload)
	}
	return note, nil
}

func (s *BookingService) EditNote(ctx context.Context, agent domain.Identity, bookingID, noteID, text string) (err error) {
	defer func() { metrics.ObserveLifecycle("note_edit", err) }()

	if agent.AgentID == "" {
		return domain.ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Validationf("note text is required")
	}
	return s.repo.UpdateNote(ctx, bookingID, noteID, text, s.now())
}

func (s *BookingService) RemoveNote(ctx context.Context, agent domain.Identity, bookingID, noteID string) (err error) {
	defer func() { metrics.ObserveLifecycle("note_remove", err) }()

	if agent.AgentID == "" {
		return domain.ErrUnauthorized
	}
	return s.repo.RemoveNote(ctx, bookingID, noteID)
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context, sort domain.BookingSort) ([]*models.Booking, error) {
	return s.repo.ListBookings(ctx, sort)
}

// ExportBookings loads every booking with its timeline for spreadsheet export.
func (s *BookingService) ExportBookings(ctx context.Context) ([]*models.Booking, error) {
	rows, err := s.repo.ListBookings(ctx, domain.SortOldest)
	if err != nil {
		return nil, err
	}
	full := make([]*models.Booking, 0, len(rows))
	for _, r := range rows {
		b, err := s.repo.GetBooking(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		full = append(full, b)
	}
	return full, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, entry *models.TimelineEntry) {
	s.publish(eventType, booking.ID, events.NewBookingPayload(booking, entry))
}

func (s *BookingService) publish(eventType, bookingID string, payload events.BookingEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", bookingID).Msg("publish event error")
	}
}
