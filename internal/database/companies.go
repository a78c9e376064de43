package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"
)

// FoldCompanyName is the uniqueness key of a rental company.
func FoldCompanyName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateCompanyIfAbsent inserts the trimmed name unless a case-insensitive
// match exists, in which case the stored entry is returned unchanged.
func (db *DB) CreateCompanyIfAbsent(ctx context.Context, name string) (*models.RentalCompany, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, domain.Validationf("company name is required")
	}
	folded := FoldCompanyName(name)

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO rental_companies (name, name_folded, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(name_folded) DO NOTHING`,
		name, folded, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create company: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	var c models.RentalCompany
	err = db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM rental_companies WHERE name_folded = ?`, folded,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("company %q vanished after insert", name)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, rows > 0, nil
}

func (db *DB) ListCompanies(ctx context.Context) ([]*models.RentalCompany, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, created_at FROM rental_companies ORDER BY name_folded`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.RentalCompany
	for rows.Next() {
		var c models.RentalCompany
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, &c)
	}
	return companies, rows.Err()
}
