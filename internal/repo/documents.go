package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Document is a row in the documents table.
type Document struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	FileSize     int64  `json:"file_size"`
	PageCount    int    `json:"page_count,omitempty"`
	RawText      string `json:"-"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Bucket       string `json:"-"`
	ObjectKey    string `json:"-"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// CreateDocument inserts a new document in pending status.
func (r *Repository) CreateDocument(ctx context.Context, doc *Document) error {
	now := nowUTC()
	doc.Status = StatusPending
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, content_type, file_size, status, bucket, object_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.Filename, doc.ContentType, doc.FileSize, doc.Status,
		doc.Bucket, doc.ObjectKey, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document by id, or ErrNotFound.
func (r *Repository) GetDocument(ctx context.Context, id string) (*Document, error) {
	var (
		doc       Document
		pageCount sql.NullInt64
		rawText   sql.NullString
		errMsg    sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, filename, content_type, file_size, page_count, raw_text, status, error_message, bucket, object_key, created_at, updated_at
		 FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Filename, &doc.ContentType, &doc.FileSize,
			&pageCount, &rawText, &doc.Status, &errMsg,
			&doc.Bucket, &doc.ObjectKey, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	doc.PageCount = int(pageCount.Int64)
	doc.RawText = rawText.String
	doc.ErrorMessage = errMsg.String
	return &doc, nil
}

// SetParsed records the parse stage output and moves the document to
// processing. Any previous error message is cleared so a resumed run
// does not show stale failures.
func (r *Repository) SetParsed(ctx context.Context, id, text string, pages int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET raw_text = $1, page_count = $2, status = $3, error_message = NULL, updated_at = $4 WHERE id = $5`,
		text, pages, StatusProcessing, nowUTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update parsed document: %w", err)
	}
	return requireRow(res)
}

// MarkCompleted moves a document to completed status.
func (r *Repository) MarkCompleted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, error_message = NULL, updated_at = $2 WHERE id = $3`,
		StatusCompleted, nowUTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}
	return requireRow(res)
}

// MarkFailed moves a document to failed status and records the cause.
func (r *Repository) MarkFailed(ctx context.Context, id, cause string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		StatusFailed, cause, nowUTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
