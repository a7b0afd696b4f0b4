// Package results persists finished extraction results. A result is written
// twice: the full payload as a JSON artifact in the object store, and a row
// in the record store for querying. Both writes are idempotent under the
// stable result id, so the store stage can be retried freely.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lexpipe/lexpipe/internal/extractor"
	"github.com/lexpipe/lexpipe/internal/repo"
	"github.com/lexpipe/lexpipe/internal/storage"
)

// Store writes extraction results to the object store and record store.
type Store struct {
	repo    *repo.Repository
	objects storage.ObjectStore
	bucket  string
	logger  *slog.Logger
}

// New creates a result store writing artifacts to the given bucket.
func New(r *repo.Repository, objects storage.ObjectStore, bucket string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:    r,
		objects: objects,
		bucket:  bucket,
		logger:  logger.With("component", "results"),
	}
}

// Save persists an extraction result under the stable result id and marks
// the document completed. The artifact key is derived from the document id,
// so a replayed save overwrites the same object rather than accumulating
// copies. A record-store row that already exists is treated as success.
func (s *Store) Save(ctx context.Context, resultID, documentID, model string, result *extractor.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	key := documentID + ".json"
	if _, err := s.objects.Put(ctx, s.bucket, key, payload, "application/json"); err != nil {
		return fmt.Errorf("failed to store result artifact: %w", err)
	}

	inserted, err := s.repo.InsertExtraction(ctx, &repo.Extraction{
		ID:             resultID,
		DocumentID:     documentID,
		ModelUsed:      model,
		Clauses:        string(payload),
		Confidence:     result.Confidence,
		ArtifactBucket: s.bucket,
		ArtifactKey:    key,
	})
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	if !inserted {
		s.logger.Info("result already recorded, skipping",
			"result_id", resultID,
			"document_id", documentID)
	} else {
		s.logger.Info("result stored",
			"result_id", resultID,
			"document_id", documentID,
			"confidence", result.Confidence)
	}

	// The result is durable at this point; completing the document is best
	// effort when its row is gone.
	if err := s.repo.MarkCompleted(ctx, documentID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("document row missing, result kept",
				"document_id", documentID)
			return nil
		}
		return fmt.Errorf("failed to complete document: %w", err)
	}
	return nil
}
