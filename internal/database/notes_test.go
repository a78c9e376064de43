package database

import (
	"context"
	"testing"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.CreateBooking(ctx, sampleBooking("b-1", now)))

	first := &models.Note{ID: "n-1", Text: "called customer", AgentID: "agent-1", AgentName: "Alex", CreatedAt: now}
	second := &models.Note{ID: "n-2", Text: "sent voucher", AgentID: "agent-2", AgentName: "Sam", CreatedAt: now.Add(time.Second)}
	require.NoError(t, db.AppendNote(ctx, "b-1", first))
	require.NoError(t, db.AppendNote(ctx, "b-1", second))

	edited := now.Add(time.Minute)
	require.NoError(t, db.UpdateNote(ctx, "b-1", "n-1", "called customer twice", edited))

	got, err := db.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, got.Notes, 2)
	assert.Equal(t, "called customer twice", got.Notes[0].Text)
	require.NotNil(t, got.Notes[0].EditedAt)
	assert.True(t, edited.Equal(*got.Notes[0].EditedAt))
	assert.Nil(t, got.Notes[1].EditedAt)
	assert.Len(t, got.Timeline, 1, "notes are not audited")
	assert.Equal(t, int64(1), got.Version)

	require.NoError(t, db.RemoveNote(ctx, "b-1", "n-2"))
	got, err = db.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Len(t, got.Notes, 1)
}

func TestNotesNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateBooking(ctx, sampleBooking("b-1", time.Now().UTC())))

	err := db.AppendNote(ctx, "missing", &models.Note{ID: "n-1", Text: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	_, err = db.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound, "appending a note must not create a booking")

	assert.ErrorIs(t, db.UpdateNote(ctx, "b-1", "nope", "x", time.Now()), domain.ErrNoteNotFound)
	assert.ErrorIs(t, db.RemoveNote(ctx, "b-1", "nope"), domain.ErrNoteNotFound)
	assert.ErrorIs(t, db.RemoveNote(ctx, "missing", "nope"), domain.ErrBookingNotFound)
}
