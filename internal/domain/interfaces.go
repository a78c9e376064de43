package domain

import (
	"context"
	"io"
	"time"

	"rentcrm/internal/models"
)

// Identity is the acting agent, passed explicitly into every lifecycle call.
type Identity struct {
	AgentID   string
	AgentName string
	TokenID   string
	ExpiresAt time.Time
}

// BookingSort selects the ordering of ListBookings.
type BookingSort string

const (
	SortNewest BookingSort = "newest"
	SortOldest BookingSort = "oldest"
	SortPickup BookingSort = "pickup"
	SortName   BookingSort = "name"
)

// ParseBookingSort falls back to SortNewest for unknown values.
func ParseBookingSort(s string) BookingSort {
	switch BookingSort(s) {
	case SortOldest, SortPickup, SortName:
		return BookingSort(s)
	default:
		return SortNewest
	}
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// UpdateBooking writes the patched booking and appends entry in one
	// transaction, failing with ErrConcurrentModification when the stored
	// version differs from expectedVersion.
	UpdateBooking(ctx context.Context, booking *models.Booking, expectedVersion int64, entry models.TimelineEntry) error
	AppendNote(ctx context.Context, bookingID string, note *models.Note) error
	UpdateNote(ctx context.Context, bookingID, noteID, text string, editedAt time.Time) error
	RemoveNote(ctx context.Context, bookingID, noteID string) error
	ListBookings(ctx context.Context, sort BookingSort) ([]*models.Booking, error)
}

type AgentRepository interface {
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgentByEmail(ctx context.Context, email string) (*models.Agent, error)
	GetAgentByID(ctx context.Context, id string) (*models.Agent, error)
}

type CompanyRepository interface {
	// CreateCompanyIfAbsent inserts name unless a case-insensitive match
	// exists; created reports which happened.
	CreateCompanyIfAbsent(ctx context.Context, name string) (company *models.RentalCompany, created bool, err error)
	ListCompanies(ctx context.Context) ([]*models.RentalCompany, error)
}

type UploadRepository interface {
	CreateUpload(ctx context.Context, upload *models.Upload) error
	GetUpload(ctx context.Context, key string) (*models.Upload, error)
}

type OutboxRepository interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	GetOutboxTask(ctx context.Context, id int64) (*models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error)
}

// SessionStore backs token revocation and login throttling.
type SessionStore interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, token string) (Identity, error)
}

// Notifier delivers an HTML email. Callers treat it as best effort.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, htmlBody string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TaskQueue accepts outbox work for asynchronous delivery.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType, bookingID string, payload interface{}) error
}

// FileStorage stores uploaded files by key.
type FileStorage interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
