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

func TestCompanies(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c, created, err := db.CreateCompanyIfAbsent(ctx, "  Hertz ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Hertz", c.Name)

	again, created, err := db.CreateCompanyIfAbsent(ctx, "HERTZ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, "Hertz", again.Name, "first casing wins")

	_, _, err = db.CreateCompanyIfAbsent(ctx, "avis")
	require.NoError(t, err)

	_, _, err = db.CreateCompanyIfAbsent(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := db.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "avis", list[0].Name)
	assert.Equal(t, "Hertz", list[1].Name)
}

func TestAgents(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	agent := &models.Agent{ID: "a-1", Name: "Alex", Email: " Alex@Example.com ", PasswordHash: "hash", IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateAgent(ctx, agent))
	assert.Equal(t, "alex@example.com", agent.Email)

	got, err := db.GetAgentByEmail(ctx, "ALEX@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = db.GetAgentByID(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.Name)

	dup := &models.Agent{ID: "a-2", Name: "Other", Email: "alex@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, db.CreateAgent(ctx, dup), domain.ErrEmailTaken)

	_, err = db.GetAgentByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestUploads(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	u := &models.Upload{Key: "k1.png", OriginalName: "car.png", ContentType: "image/png", Size: 42, AgentID: "a-1", URL: "/api/v1/files/k1.png", CreatedAt: time.Now().UTC()}
	require.NoError(t, db.CreateUpload(ctx, u))

	got, err := db.GetUpload(ctx, "k1.png")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, "car.png", got.OriginalName)

	_, err = db.GetUpload(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUploadNotFound)
}
