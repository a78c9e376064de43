package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rentcrm/internal/domain"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// ErrConcurrentModification is returned when a versioned update loses the race.
var ErrConcurrentModification = domain.ErrConcurrentModification

type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is a separate database
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.createTables(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// NewWithConn wraps an already opened connection without running migrations.
func NewWithConn(conn *sql.DB, logger *zerolog.Logger) *DB {
	return &DB{DB: conn, logger: logger}
}

func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			date_of_birth TEXT NOT NULL DEFAULT '',
			rental_company TEXT NOT NULL DEFAULT '',
			confirmation_number TEXT NOT NULL DEFAULT '',
			vehicle_image TEXT NOT NULL DEFAULT '',
			pickup_location TEXT NOT NULL DEFAULT '',
			pickup_date TEXT NOT NULL DEFAULT '',
			pickup_time TEXT NOT NULL DEFAULT '',
			dropoff_location TEXT NOT NULL DEFAULT '',
			dropoff_date TEXT NOT NULL DEFAULT '',
			dropoff_time TEXT NOT NULL DEFAULT '',
			total TEXT NOT NULL DEFAULT '',
			mco TEXT NOT NULL DEFAULT '',
			payable_at_pickup TEXT NOT NULL DEFAULT '',
			refund_amount TEXT NOT NULL DEFAULT '',
			modification_fees TEXT NOT NULL DEFAULT '[]',
			card_last4 TEXT NOT NULL DEFAULT '',
			card_expiration TEXT NOT NULL DEFAULT '',
			billing_address TEXT NOT NULL DEFAULT '',
			sales_agent TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS timeline_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id TEXT NOT NULL REFERENCES bookings(id),
			seq INTEGER NOT NULL,
			date DATETIME NOT NULL,
			message TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			changes TEXT NOT NULL DEFAULT '[]',
			UNIQUE (booking_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			booking_id TEXT NOT NULL REFERENCES bookings(id),
			text TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			edited_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS rental_companies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			name_folded TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS uploads (
			key TEXT PRIMARY KEY,
			original_name TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_type TEXT NOT NULL,
			booking_id TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at DATETIME NOT NULL,
			processed_at DATETIME,
			next_retry_at DATETIME
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_timeline_booking ON timeline_entries(booking_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_booking ON notes(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", firstLine(query), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
