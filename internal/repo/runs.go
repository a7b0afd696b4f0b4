package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Pipeline run stages, recorded as checkpoints after each durable step.
const (
	StageStarted        = "started"
	StageParsingDone    = "parsing_done"
	StageExtractingDone = "extracting_done"
)

// Pipeline run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is a pipeline run checkpoint. One row per document; the result id is
// fixed when the row is first written and survives restarts, so replayed
// runs store under the same identity.
type Run struct {
	DocumentID   string
	ResultID     string
	Stage        string
	Status       string
	ErrorMessage string
	UpdatedAt    string
}

// EnsureRun creates the run row for a document if it does not exist, and
// returns the durable run state. The caller's resultID is only used for a
// first-time insert; on replay the previously persisted id wins.
func (r *Repository) EnsureRun(ctx context.Context, documentID, resultID string) (*Run, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (document_id, result_id, stage, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (document_id) DO NOTHING`,
		documentID, resultID, StageStarted, RunRunning, nowUTC())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure pipeline run: %w", err)
	}
	return r.GetRun(ctx, documentID)
}

// GetRun returns the run row for a document, or ErrNotFound.
func (r *Repository) GetRun(ctx context.Context, documentID string) (*Run, error) {
	var (
		run    Run
		errMsg sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT document_id, result_id, stage, status, error_message, updated_at
		 FROM pipeline_runs WHERE document_id = $1`, documentID).
		Scan(&run.DocumentID, &run.ResultID, &run.Stage, &run.Status, &errMsg, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline run: %w", err)
	}
	run.ErrorMessage = errMsg.String
	return &run, nil
}

// AdvanceRun moves a running pipeline to the given stage checkpoint.
func (r *Repository) AdvanceRun(ctx context.Context, documentID, stage string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET stage = $1, updated_at = $2 WHERE document_id = $3`,
		stage, nowUTC(), documentID)
	if err != nil {
		return fmt.Errorf("failed to advance pipeline run: %w", err)
	}
	return requireRow(res)
}

// FinishRun records the terminal status of a run. The error message is
// stored for failed runs and cleared otherwise.
func (r *Repository) FinishRun(ctx context.Context, documentID, status, errMsg string) error {
	var msg any
	if errMsg != "" {
		msg = errMsg
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = $1, error_message = $2, updated_at = $3 WHERE document_id = $4`,
		status, msg, nowUTC(), documentID)
	if err != nil {
		return fmt.Errorf("failed to finish pipeline run: %w", err)
	}
	return requireRow(res)
}

// UnfinishedDocumentIDs returns the documents still owed a pipeline run,
// oldest first. Used to resume work on boot. This covers runs that were
// interrupted mid-stage as well as documents that were accepted but never
// picked up by a worker, which have no run row at all.
func (r *Repository) UnfinishedDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.id FROM documents d
		 LEFT JOIN pipeline_runs r ON r.document_id = d.id
		 WHERE r.status = $1
		    OR (r.document_id IS NULL AND d.status IN ($2, $3))
		 ORDER BY d.created_at ASC`,
		RunRunning, StatusPending, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
