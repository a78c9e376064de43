package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"
)

const bookingColumns = `id, agent_id, full_name, email, phone, date_of_birth,
	rental_company, confirmation_number, vehicle_image,
	pickup_location, pickup_date, pickup_time, dropoff_location, dropoff_date, dropoff_time,
	total, mco, payable_at_pickup, refund_amount, modification_fees,
	card_last4, card_expiration, billing_address, sales_agent,
	status, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateBooking inserts the booking and its initial timeline in one transaction.
// The stored version starts at 1.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	fees, err := encodeFees(booking.ModificationFees)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		booking.ID, booking.AgentID, booking.FullName, booking.Email, booking.Phone, booking.DateOfBirth,
		booking.RentalCompany, booking.ConfirmationNumber, booking.VehicleImage,
		booking.PickupLocation, booking.PickupDate, booking.PickupTime,
		booking.DropoffLocation, booking.DropoffDate, booking.DropoffTime,
		booking.Total, booking.MCO, booking.PayableAtPickup, booking.RefundAmount, fees,
		booking.CardLast4, booking.CardExpiration, booking.BillingAddress, booking.SalesAgent,
		booking.Status, 1, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	for _, entry := range booking.Timeline {
		if err := insertTimelineEntry(ctx, tx, booking.ID, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	booking.Version = 1
	return nil
}

// GetBooking loads a booking with its timeline and notes.
func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if booking.Timeline, err = db.getTimeline(ctx, id); err != nil {
		return nil, err
	}
	if booking.Notes, err = db.getNotes(ctx, id); err != nil {
		return nil, err
	}
	return booking, nil
}

// UpdateBooking stores the patched booking and appends entry only if the row
// still carries expectedVersion. On success booking.Version is bumped and the
// entry is appended to booking.Timeline.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking, expectedVersion int64, entry models.TimelineEntry) error {
	fees, err := encodeFees(booking.ModificationFees)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE bookings SET
			full_name = ?, email = ?, phone = ?, date_of_birth = ?,
			rental_company = ?, confirmation_number = ?, vehicle_image = ?,
			pickup_location = ?, pickup_date = ?, pickup_time = ?,
			dropoff_location = ?, dropoff_date = ?, dropoff_time = ?,
			total = ?, mco = ?, payable_at_pickup = ?, refund_amount = ?, modification_fees = ?,
			card_last4 = ?, card_expiration = ?, billing_address = ?, sales_agent = ?,
			status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query,
		booking.FullName, booking.Email, booking.Phone, booking.DateOfBirth,
		booking.RentalCompany, booking.ConfirmationNumber, booking.VehicleImage,
		booking.PickupLocation, booking.PickupDate, booking.PickupTime,
		booking.DropoffLocation, booking.DropoffDate, booking.DropoffTime,
		booking.Total, booking.MCO, booking.PayableAtPickup, booking.RefundAmount, fees,
		booking.CardLast4, booking.CardExpiration, booking.BillingAddress, booking.SalesAgent,
		booking.Status, booking.UpdatedAt,
		booking.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		exists, err := bookingExists(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrBookingNotFound
		}
		return ErrConcurrentModification
	}

	if err := insertTimelineEntry(ctx, tx, booking.ID, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking update: %w", err)
	}

	booking.Version = expectedVersion + 1
	booking.Timeline = append(booking.Timeline, entry)
	return nil
}

// ListBookings returns booking rows without timeline or notes.
func (db *DB) ListBookings(ctx context.Context, sort domain.BookingSort) ([]*models.Booking, error) {
	order := "created_at DESC, id"
	switch sort {
	case domain.SortOldest:
		order = "created_at ASC, id"
	case domain.SortPickup:
		order = "pickup_date ASC, pickup_time ASC, id"
	case domain.SortName:
		order = "full_name COLLATE NOCASE ASC, id"
	}

	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY `+order)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) getTimeline(ctx context.Context, bookingID string) ([]models.TimelineEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT date, message, agent_name, changes FROM timeline_entries WHERE booking_id = ? ORDER BY seq`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}
	defer rows.Close()

	entries := []models.TimelineEntry{}
	for rows.Next() {
		var (
			e       models.TimelineEntry
			changes string
		)
		if err := rows.Scan(&e.Date, &e.Message, &e.AgentName, &changes); err != nil {
			return nil, fmt.Errorf("failed to scan timeline entry: %w", err)
		}
		if err := json.Unmarshal([]byte(changes), &e.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode timeline changes: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertTimelineEntry(ctx context.Context, ex execer, bookingID string, entry models.TimelineEntry) error {
	changes := entry.Changes
	if changes == nil {
		changes = []models.FieldChange{}
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("failed to encode timeline changes: %w", err)
	}

	query := `INSERT INTO timeline_entries (booking_id, seq, date, message, agent_name, changes)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM timeline_entries WHERE booking_id = ?), ?, ?, ?, ?)`
	if _, err := ex.ExecContext(ctx, query, bookingID, bookingID, entry.Date, entry.Message, entry.AgentName, string(raw)); err != nil {
		return fmt.Errorf("failed to insert timeline entry: %w", err)
	}
	return nil
}

func bookingExists(ctx context.Context, ex execer, id string) (bool, error) {
	var n int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check booking: %w", err)
	}
	return n > 0, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b    models.Booking
		fees string
	)
	err := row.Scan(
		&b.ID, &b.AgentID, &b.FullName, &b.Email, &b.Phone, &b.DateOfBirth,
		&b.RentalCompany, &b.ConfirmationNumber, &b.VehicleImage,
		&b.PickupLocation, &b.PickupDate, &b.PickupTime,
		&b.DropoffLocation, &b.DropoffDate, &b.DropoffTime,
		&b.Total, &b.MCO, &b.PayableAtPickup, &b.RefundAmount, &fees,
		&b.CardLast4, &b.CardExpiration, &b.BillingAddress, &b.SalesAgent,
		&b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fees), &b.ModificationFees); err != nil {
		return nil, fmt.Errorf("failed to decode modification fees: %w", err)
	}
	return &b, nil
}

func encodeFees(fees []string) (string, error) {
	if fees == nil {
		fees = []string{}
	}
	raw, err := json.Marshal(fees)
	if err != nil {
		return "", fmt.Errorf("failed to encode modification fees: %w", err)
	}
	return string(raw), nil
}

func ptrTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
