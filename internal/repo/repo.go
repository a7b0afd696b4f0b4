// Package repo is the relational record store for documents, extractions,
// and pipeline run checkpoints.
//
// SQL sticks to the subset shared by Postgres (pgx stdlib driver, production)
// and SQLite (modernc driver, tests): $1 placeholders, TEXT timestamps in
// RFC3339 UTC (lexicographically ordered), and ON CONFLICT DO NOTHING for
// idempotent inserts.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Document lifecycle statuses. Transitions are monotonic:
// pending -> processing -> completed | failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Repository provides access to the record store.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database, verifies the connection, and applies the
// schema migration.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &Repository{db: db, logger: logger.With("component", "repo")}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return r, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error { return r.db.Close() }

// Ping verifies database connectivity (readiness checks).
func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			page_count INTEGER,
			raw_text TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT,
			bucket TEXT NOT NULL,
			object_key TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS extractions (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			model_used TEXT NOT NULL,
			clauses TEXT NOT NULL,
			confidence REAL,
			artifact_bucket TEXT NOT NULL,
			artifact_key TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_extractions_document_created
			ON extractions (document_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			result_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// nowUTC returns the current time formatted for TEXT timestamp columns.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
