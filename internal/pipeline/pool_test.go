package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/lexpipe/lexpipe/internal/repo"
)

func waitForStatus(t *testing.T, h *harness, id, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := h.repo.GetDocument(context.Background(), id)
		if err == nil && doc.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	doc, _ := h.repo.GetDocument(context.Background(), id)
	t.Fatalf("document %s never reached %q, last status %q", id, want, doc.Status)
}

func TestPoolProcessesSubmissions(t *testing.T) {
	h := newHarness(t)
	h.seedUpload(t, "doc-1")
	h.seedUpload(t, "doc-2")

	pool := NewPool(h.orch, 2, 8, nil)
	pool.Start(context.Background())
	defer pool.Stop()

	if err := pool.Submit("doc-1"); err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	if err := pool.Submit("doc-2"); err != nil {
		t.Fatalf("failed to submit: %v", err)
	}

	waitForStatus(t, h, "doc-1", repo.StatusCompleted)
	waitForStatus(t, h, "doc-2", repo.StatusCompleted)
}

func TestPoolQueueFull(t *testing.T) {
	h := newHarness(t)

	// Workers never started, so the buffer is the only capacity.
	pool := NewPool(h.orch, 1, 1, nil)
	if err := pool.Submit("doc-1"); err != nil {
		t.Fatalf("first submit should fit the buffer: %v", err)
	}
	if err := pool.Submit("doc-2"); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPoolResumesUnfinishedRuns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUpload(t, "doc-1")

	// A run that was mid-flight when the previous process died.
	if _, err := h.repo.EnsureRun(ctx, "doc-1", "result-fixed"); err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}

	pool := NewPool(h.orch, 1, 8, nil)
	pool.Start(ctx)
	defer pool.Stop()

	if err := pool.Resume(ctx); err != nil {
		t.Fatalf("failed to resume: %v", err)
	}
	waitForStatus(t, h, "doc-1", repo.StatusCompleted)

	e, err := h.repo.LatestExtraction(ctx, "doc-1")
	if err != nil {
		t.Fatalf("expected extraction row: %v", err)
	}
	if e.ID != "result-fixed" {
		t.Errorf("resumed run stored under %q, want result-fixed", e.ID)
	}
}

func TestPoolResumesAcceptedButUnstartedDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Accepted upload that was still sitting in the old process's queue:
	// pending document row and stored bytes, but no run row yet.
	h.seedUpload(t, "doc-1")

	pool := NewPool(h.orch, 1, 8, nil)
	pool.Start(ctx)
	defer pool.Stop()

	if err := pool.Resume(ctx); err != nil {
		t.Fatalf("failed to resume: %v", err)
	}
	waitForStatus(t, h, "doc-1", repo.StatusCompleted)
}
