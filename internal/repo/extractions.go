package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Extraction is a stored extraction result. Clauses holds the full result
// payload as JSON; the artifact columns point at the blob copy.
type Extraction struct {
	ID             string  `json:"id"`
	DocumentID     string  `json:"document_id"`
	ModelUsed      string  `json:"model_used"`
	Clauses        string  `json:"clauses"`
	Confidence     float64 `json:"confidence"`
	ArtifactBucket string  `json:"-"`
	ArtifactKey    string  `json:"-"`
	CreatedAt      string  `json:"created_at"`
}

// InsertExtraction records an extraction result. The insert is keyed on the
// extraction id, so retrying the store stage with the same id is a no-op.
// Returns false when the row already existed.
func (r *Repository) InsertExtraction(ctx context.Context, e *Extraction) (bool, error) {
	if e.CreatedAt == "" {
		e.CreatedAt = nowUTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO extractions (id, document_id, model_used, clauses, confidence, artifact_bucket, artifact_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.DocumentID, e.ModelUsed, e.Clauses, e.Confidence,
		e.ArtifactBucket, e.ArtifactKey, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert extraction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestExtraction returns the newest extraction for a document, or
// ErrNotFound when none exists.
func (r *Repository) LatestExtraction(ctx context.Context, documentID string) (*Extraction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, document_id, model_used, clauses, confidence, artifact_bucket, artifact_key, created_at
		 FROM extractions WHERE document_id = $1
		 ORDER BY created_at DESC LIMIT 1`, documentID)

	e, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query extraction: %w", err)
	}
	return e, nil
}

// ListExtractions returns a page of extractions, newest first, plus the
// total row count for pagination.
func (r *Repository) ListExtractions(ctx context.Context, limit, offset int) ([]*Extraction, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extractions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count extractions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, document_id, model_used, clauses, confidence, artifact_bucket, artifact_key, created_at
		 FROM extractions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	var out []*Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan extraction: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*Extraction, error) {
	var (
		e          Extraction
		confidence sql.NullFloat64
	)
	err := row.Scan(&e.ID, &e.DocumentID, &e.ModelUsed, &e.Clauses,
		&confidence, &e.ArtifactBucket, &e.ArtifactKey, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Confidence = confidence.Float64
	return &e, nil
}
