package results

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lexpipe/lexpipe/internal/extractor"
	"github.com/lexpipe/lexpipe/internal/repo"
	"github.com/lexpipe/lexpipe/internal/storage"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) (*Store, *repo.Repository, *storage.MemoryStore) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "results.db")
	r, err := repo.Open(context.Background(), "sqlite", dsn, nil)
	if err != nil {
		t.Fatalf("failed to open repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	objects := storage.NewMemoryStore()
	return New(r, objects, "extractions", nil), r, objects
}

func sampleResult() *extractor.Result {
	return &extractor.Result{
		Parties:    extractor.Parties{PartyOne: "Acme Corp", PartyTwo: "Widget LLC"},
		Clauses:    extractor.Clauses{GoverningLaw: "Delaware"},
		Confidence: 0.92,
	}
}

func TestSaveWritesArtifactAndRow(t *testing.T) {
	s, r, objects := newTestStore(t)
	ctx := context.Background()

	doc := &repo.Document{ID: "doc-1", Filename: "contract.pdf", ContentType: "application/pdf", FileSize: 1, Bucket: "uploads", ObjectKey: "doc-1.pdf"}
	if err := r.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	if err := s.Save(ctx, "result-1", "doc-1", "gpt-4o-mini", sampleResult()); err != nil {
		t.Fatalf("failed to save result: %v", err)
	}

	data, _, err := objects.Get(ctx, "extractions", "doc-1.json")
	if err != nil {
		t.Fatalf("artifact not stored: %v", err)
	}
	var decoded extractor.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if decoded.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %v", decoded.Confidence)
	}

	e, err := r.LatestExtraction(ctx, "doc-1")
	if err != nil {
		t.Fatalf("extraction row not stored: %v", err)
	}
	if e.ID != "result-1" || e.ModelUsed != "gpt-4o-mini" {
		t.Errorf("unexpected extraction row: %+v", e)
	}
	if e.ArtifactBucket != "extractions" || e.ArtifactKey != "doc-1.json" {
		t.Errorf("unexpected artifact pointer: %s/%s", e.ArtifactBucket, e.ArtifactKey)
	}

	got, err := r.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("failed to load document: %v", err)
	}
	if got.Status != repo.StatusCompleted {
		t.Errorf("expected document completed, got %s", got.Status)
	}
}

func TestSaveCompletesDocumentAfterEarlierFailure(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()

	doc := &repo.Document{ID: "doc-1", Filename: "contract.pdf", ContentType: "application/pdf", FileSize: 1, Bucket: "uploads", ObjectKey: "doc-1.pdf"}
	if err := r.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	if err := r.MarkFailed(ctx, "doc-1", "store stage failed: connection refused"); err != nil {
		t.Fatalf("failed to mark document failed: %v", err)
	}

	if err := s.Save(ctx, "result-1", "doc-1", "gpt-4o-mini", sampleResult()); err != nil {
		t.Fatalf("failed to save result: %v", err)
	}

	got, err := r.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("failed to load document: %v", err)
	}
	if got.Status != repo.StatusCompleted {
		t.Errorf("expected document completed, got %s", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Errorf("expected error cause cleared, got %q", got.ErrorMessage)
	}
}

func TestSaveMissingDocumentStillSucceeds(t *testing.T) {
	s, _, objects := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "result-1", "ghost", "gpt-4o-mini", sampleResult()); err != nil {
		t.Fatalf("expected save to succeed without document row, got %v", err)
	}

	if _, _, err := objects.Get(ctx, "extractions", "ghost.json"); err != nil {
		t.Errorf("artifact not stored: %v", err)
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	s, r, objects := newTestStore(t)
	ctx := context.Background()

	doc := &repo.Document{ID: "doc-1", Filename: "contract.pdf", ContentType: "application/pdf", FileSize: 1, Bucket: "uploads", ObjectKey: "doc-1.pdf"}
	if err := r.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Save(ctx, "result-1", "doc-1", "gpt-4o-mini", sampleResult()); err != nil {
			t.Fatalf("save attempt %d failed: %v", i, err)
		}
	}

	_, total, err := r.ListExtractions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list extractions: %v", err)
	}
	if total != 1 {
		t.Errorf("expected exactly one extraction row, got %d", total)
	}
	if objects.PutCalls != 3 {
		t.Errorf("expected artifact overwritten each attempt, got %d puts", objects.PutCalls)
	}
}

func TestSaveBlobFailure(t *testing.T) {
	s, _, objects := newTestStore(t)
	objects.PutErr = errors.New("connection refused")

	err := s.Save(context.Background(), "result-1", "doc-1", "gpt-4o-mini", sampleResult())
	if err == nil {
		t.Fatal("expected error when blob write fails")
	}
}
