package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"
)

// CreateAgent stores a new agent. Emails are stored lowercased and must be unique.
func (db *DB) CreateAgent(ctx context.Context, agent *models.Agent) error {
	agent.Email = strings.ToLower(strings.TrimSpace(agent.Email))

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE email = ?`, agent.Email).Scan(&n); err != nil {
		return fmt.Errorf("failed to check agent email: %w", err)
	}
	if n > 0 {
		return domain.ErrEmailTaken
	}

	query := `INSERT INTO agents (id, name, email, password_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		agent.ID, agent.Name, agent.Email, agent.PasswordHash, agent.IsActive, agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

func (db *DB) GetAgentByEmail(ctx context.Context, email string) (*models.Agent, error) {
	return db.queryAgent(ctx, `SELECT id, name, email, password_hash, is_active, created_at, updated_at
		FROM agents WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (db *DB) GetAgentByID(ctx context.Context, id string) (*models.Agent, error) {
	return db.queryAgent(ctx, `SELECT id, name, email, password_hash, is_active, created_at, updated_at
		FROM agents WHERE id = ?`, id)
}

func (db *DB) queryAgent(ctx context.Context, query string, args ...any) (*models.Agent, error) {
	var a models.Agent
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &a, nil
}
