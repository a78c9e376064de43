package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"
)

// AppendNote adds a note to an existing booking. Notes do not touch the
// booking version.
func (db *DB) AppendNote(ctx context.Context, bookingID string, note *models.Note) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	exists, err := bookingExists(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrBookingNotFound
	}

	query := `INSERT INTO notes (id, booking_id, text, agent_id, agent_name, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, note.ID, bookingID, note.Text, note.AgentID, note.AgentName, note.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return tx.Commit()
}

func (db *DB) UpdateNote(ctx context.Context, bookingID, noteID, text string, editedAt time.Time) error {
	return db.changeNote(ctx, bookingID, noteID,
		`UPDATE notes SET text = ?, edited_at = ? WHERE id = ? AND booking_id = ?`,
		text, editedAt, noteID, bookingID)
}

func (db *DB) RemoveNote(ctx context.Context, bookingID, noteID string) error {
	return db.changeNote(ctx, bookingID, noteID,
		`DELETE FROM notes WHERE id = ? AND booking_id = ?`,
		noteID, bookingID)
}

func (db *DB) changeNote(ctx context.Context, bookingID, noteID, query string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to change note %s: %w", noteID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		exists, err := bookingExists(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrBookingNotFound
		}
		return domain.ErrNoteNotFound
	}
	return tx.Commit()
}

func (db *DB) getNotes(ctx context.Context, bookingID string) ([]models.Note, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, text, agent_id, agent_name, created_at, edited_at FROM notes WHERE booking_id = ? ORDER BY created_at, rowid`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var (
			n        models.Note
			editedAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.Text, &n.AgentID, &n.AgentName, &n.CreatedAt, &editedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.EditedAt = ptrTime(editedAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
