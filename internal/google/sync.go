package google

import (
	"context"
	"errors"
	"fmt"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"
	"rentcrm/internal/worker"
)

// BookingUpserter is the part of BookingSheet the sync handler needs.
type BookingUpserter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
}

// SyncHandler returns the outbox handler that mirrors the current state of
// a booking into the sheet. The booking is re-read so late retries never
// write stale data.
func SyncHandler(repo domain.BookingRepository, sheet BookingUpserter) worker.TaskHandler {
	return func(ctx context.Context, task models.OutboxTask) error {
		booking, err := repo.GetBooking(ctx, task.BookingID)
		if errors.Is(err, domain.ErrNotFound) {
			return errors.Join(worker.ErrPermanent, err)
		}
		if err != nil {
			return fmt.Errorf("load booking %s: %w", task.BookingID, err)
		}
		return sheet.UpsertBooking(ctx, booking)
	}
}
