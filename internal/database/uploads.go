package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"
)

func (db *DB) CreateUpload(ctx context.Context, upload *models.Upload) error {
	query := `INSERT INTO uploads (key, original_name, content_type, size, agent_id, url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		upload.Key, upload.OriginalName, upload.ContentType, upload.Size, upload.AgentID, upload.URL, upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

func (db *DB) GetUpload(ctx context.Context, key string) (*models.Upload, error) {
	var u models.Upload
	err := db.QueryRowContext(ctx,
		`SELECT key, original_name, content_type, size, agent_id, url, created_at FROM uploads WHERE key = ?`, key,
	).Scan(&u.Key, &u.OriginalName, &u.ContentType, &u.Size, &u.AgentID, &u.URL, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return &u, nil
}
