package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "repo.db")
	r, err := Open(context.Background(), "sqlite", dsn, nil)
	if err != nil {
		t.Fatalf("failed to open test repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func seedDocument(t *testing.T, r *Repository, id string) *Document {
	t.Helper()
	doc := &Document{
		ID:          id,
		Filename:    "contract.pdf",
		ContentType: "application/pdf",
		FileSize:    2048,
		Bucket:      "uploads",
		ObjectKey:   id + ".pdf",
	}
	if err := r.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	return doc
}

func TestDocumentLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedDocument(t, r, "doc-1")

	doc, err := r.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if doc.Status != StatusPending {
		t.Errorf("expected pending status, got %q", doc.Status)
	}

	if err := r.SetParsed(ctx, "doc-1", "extracted text", 4); err != nil {
		t.Fatalf("failed to set parsed: %v", err)
	}
	doc, err = r.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if doc.Status != StatusProcessing {
		t.Errorf("expected processing status, got %q", doc.Status)
	}
	if doc.RawText != "extracted text" || doc.PageCount != 4 {
		t.Errorf("parse output not persisted: text=%q pages=%d", doc.RawText, doc.PageCount)
	}

	if err := r.MarkCompleted(ctx, "doc-1"); err != nil {
		t.Fatalf("failed to mark completed: %v", err)
	}
	doc, _ = r.GetDocument(ctx, "doc-1")
	if doc.Status != StatusCompleted {
		t.Errorf("expected completed status, got %q", doc.Status)
	}
}

func TestMarkFailedRecordsCause(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedDocument(t, r, "doc-1")

	if err := r.MarkFailed(ctx, "doc-1", "invalid input: not a PDF"); err != nil {
		t.Fatalf("failed to mark failed: %v", err)
	}
	doc, err := r.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if doc.Status != StatusFailed {
		t.Errorf("expected failed status, got %q", doc.Status)
	}
	if doc.ErrorMessage != "invalid input: not a PDF" {
		t.Errorf("unexpected error message %q", doc.ErrorMessage)
	}

	// A resumed run that succeeds at parsing clears the stale error.
	if err := r.SetParsed(ctx, "doc-1", "text", 1); err != nil {
		t.Fatalf("failed to set parsed: %v", err)
	}
	doc, _ = r.GetDocument(ctx, "doc-1")
	if doc.ErrorMessage != "" {
		t.Errorf("expected cleared error message, got %q", doc.ErrorMessage)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.GetDocument(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.MarkCompleted(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound from update, got %v", err)
	}
}

func TestInsertExtractionIdempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedDocument(t, r, "doc-1")

	e := &Extraction{
		ID:             "result-1",
		DocumentID:     "doc-1",
		ModelUsed:      "gpt-4o-mini",
		Clauses:        `{"confidence":0.9}`,
		Confidence:     0.9,
		ArtifactBucket: "extractions",
		ArtifactKey:    "doc-1.json",
	}
	inserted, err := r.InsertExtraction(ctx, e)
	if err != nil {
		t.Fatalf("failed to insert extraction: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted")
	}

	// Same result id again: the retry path must not raise or duplicate.
	inserted, err = r.InsertExtraction(ctx, e)
	if err != nil {
		t.Fatalf("repeat insert returned error: %v", err)
	}
	if inserted {
		t.Error("expected repeat insert to report not inserted")
	}

	_, total, err := r.ListExtractions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list extractions: %v", err)
	}
	if total != 1 {
		t.Errorf("expected exactly one extraction row, got %d", total)
	}
}

func TestLatestExtraction(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedDocument(t, r, "doc-1")

	for i := 0; i < 3; i++ {
		e := &Extraction{
			ID:             fmt.Sprintf("result-%d", i),
			DocumentID:     "doc-1",
			ModelUsed:      "gpt-4o-mini",
			Clauses:        "{}",
			ArtifactBucket: "extractions",
			ArtifactKey:    "doc-1.json",
			CreatedAt:      fmt.Sprintf("2026-08-29T10:0%d:00Z", i),
		}
		if _, err := r.InsertExtraction(ctx, e); err != nil {
			t.Fatalf("failed to insert extraction %d: %v", i, err)
		}
	}

	latest, err := r.LatestExtraction(ctx, "doc-1")
	if err != nil {
		t.Fatalf("failed to get latest extraction: %v", err)
	}
	if latest.ID != "result-2" {
		t.Errorf("expected result-2, got %q", latest.ID)
	}

	if _, err := r.LatestExtraction(ctx, "other"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListExtractionsPagination(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedDocument(t, r, "doc-1")

	for i := 0; i < 5; i++ {
		e := &Extraction{
			ID:             fmt.Sprintf("result-%d", i),
			DocumentID:     "doc-1",
			ModelUsed:      "gpt-4o-mini",
			Clauses:        "{}",
			ArtifactBucket: "extractions",
			ArtifactKey:    "doc-1.json",
			CreatedAt:      fmt.Sprintf("2026-08-29T10:0%d:00Z", i),
		}
		if _, err := r.InsertExtraction(ctx, e); err != nil {
			t.Fatalf("failed to insert extraction %d: %v", i, err)
		}
	}

	page, total, err := r.ListExtractions(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list extractions: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	if page[0].ID != "result-4" || page[1].ID != "result-3" {
		t.Errorf("expected newest first, got %q, %q", page[0].ID, page[1].ID)
	}

	page, _, err = r.ListExtractions(ctx, 2, 4)
	if err != nil {
		t.Fatalf("failed to list last page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "result-0" {
		t.Errorf("unexpected last page: %+v", page)
	}
}

func TestEnsureRunKeepsFirstResultID(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedDocument(t, r, "doc-1")

	run, err := r.EnsureRun(ctx, "doc-1", "result-a")
	if err != nil {
		t.Fatalf("failed to ensure run: %v", err)
	}
	if run.ResultID != "result-a" {
		t.Errorf("expected result-a, got %q", run.ResultID)
	}
	if run.Stage != StageStarted || run.Status != RunRunning {
		t.Errorf("unexpected initial run state: %+v", run)
	}

	// Replay after a crash proposes a fresh id; the durable one wins.
	run, err = r.EnsureRun(ctx, "doc-1", "result-b")
	if err != nil {
		t.Fatalf("failed to re-ensure run: %v", err)
	}
	if run.ResultID != "result-a" {
		t.Errorf("replay changed result id to %q", run.ResultID)
	}
}

func TestRunCheckpointsAndResume(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedDocument(t, r, "doc-1")
	seedDocument(t, r, "doc-2")
	seedDocument(t, r, "doc-3")

	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		if _, err := r.EnsureRun(ctx, id, "result-"+id); err != nil {
			t.Fatalf("failed to ensure run for %s: %v", id, err)
		}
	}

	if err := r.AdvanceRun(ctx, "doc-1", StageParsingDone); err != nil {
		t.Fatalf("failed to advance run: %v", err)
	}
	if err := r.FinishRun(ctx, "doc-2", RunCompleted, ""); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}
	if err := r.FinishRun(ctx, "doc-3", RunFailed, "extraction failed"); err != nil {
		t.Fatalf("failed to fail run: %v", err)
	}

	run, err := r.GetRun(ctx, "doc-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Stage != StageParsingDone {
		t.Errorf("expected parsing_done stage, got %q", run.Stage)
	}

	// Accepted but never picked up: pending document with no run row.
	seedDocument(t, r, "doc-4")

	ids, err := r.UnfinishedDocumentIDs(ctx)
	if err != nil {
		t.Fatalf("failed to list unfinished runs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "doc-1" || ids[1] != "doc-4" {
		t.Errorf("expected doc-1 and doc-4 unfinished, got %v", ids)
	}

	run, _ = r.GetRun(ctx, "doc-3")
	if run.ErrorMessage != "extraction failed" {
		t.Errorf("expected failure cause recorded, got %q", run.ErrorMessage)
	}
}
