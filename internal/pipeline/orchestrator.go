// Package pipeline drives documents through parse, extract, and store
// stages with durable checkpoints. A crashed or restarted process resumes
// unfinished runs from the record store; the result identity fixed at run
// start makes replays idempotent end to end.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/lexpipe/lexpipe/internal/extractor"
	"github.com/lexpipe/lexpipe/internal/parser"
	"github.com/lexpipe/lexpipe/internal/repo"
	"github.com/lexpipe/lexpipe/internal/results"
	"github.com/lexpipe/lexpipe/internal/storage"
)

// TextParser turns raw PDF bytes into plain text.
type TextParser interface {
	Extract(data []byte) (*parser.ParseResult, error)
}

// ClauseExtractor produces structured results from contract text.
type ClauseExtractor interface {
	Extract(ctx context.Context, text string) (*extractor.Result, error)
	Model() string
}

// Config tunes stage retry behavior.
type Config struct {
	UploadsBucket string

	ParseAttempts  uint
	ParseTimeout   time.Duration
	StoreAttempts  uint
	StoreTimeout   time.Duration
	ExtractTimeout time.Duration

	RetryDelay time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns production stage policies.
func DefaultConfig() Config {
	return Config{
		UploadsBucket:  "uploads",
		ParseAttempts:  2,
		ParseTimeout:   5 * time.Minute,
		StoreAttempts:  3,
		StoreTimeout:   time.Minute,
		ExtractTimeout: 2 * time.Minute,
		RetryDelay:     2 * time.Second,
		MaxDelay:       30 * time.Second,
	}
}

// RunResult is the terminal outcome of a pipeline run.
type RunResult struct {
	DocumentID string
	ResultID   string
	Status     string
}

// Orchestrator runs the three-stage pipeline for one document at a time.
type Orchestrator struct {
	cfg       Config
	repo      *repo.Repository
	objects   storage.ObjectStore
	parser    TextParser
	extractor ClauseExtractor
	results   *results.Store
	logger    *slog.Logger
}

// New creates an orchestrator. Zero-valued config fields fall back to
// DefaultConfig values.
func New(cfg Config, r *repo.Repository, objects storage.ObjectStore, p TextParser, e ClauseExtractor, rs *results.Store, logger *slog.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.UploadsBucket == "" {
		cfg.UploadsBucket = def.UploadsBucket
	}
	if cfg.ParseAttempts == 0 {
		cfg.ParseAttempts = def.ParseAttempts
	}
	if cfg.ParseTimeout == 0 {
		cfg.ParseTimeout = def.ParseTimeout
	}
	if cfg.StoreAttempts == 0 {
		cfg.StoreAttempts = def.StoreAttempts
	}
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.ExtractTimeout == 0 {
		cfg.ExtractTimeout = def.ExtractTimeout
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		repo:      r,
		objects:   objects,
		parser:    p,
		extractor: e,
		results:   rs,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run processes a document through all stages and returns the terminal
// outcome. Stage failures are recorded durably and reported through the
// result status, not the error return; a non-nil error means the run's own
// bookkeeping could not be persisted and the run may be retried whole.
func (o *Orchestrator) Run(ctx context.Context, documentID string) (*RunResult, error) {
	// First durable side effect: fix the result identity. On replay the
	// previously stored id is returned, so retries and crash-resume write
	// results under the same key.
	run, err := o.repo.EnsureRun(ctx, documentID, uuid.New().String())
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	log := o.logger.With("document_id", documentID, "result_id", run.ResultID)

	if run.Status == repo.RunCompleted {
		log.Info("run already completed, skipping")
		return &RunResult{DocumentID: documentID, ResultID: run.ResultID, Status: repo.RunCompleted}, nil
	}

	log.Info("pipeline run starting", "stage", run.Stage)

	// Parse stage. Skipped on resume when the checkpoint shows it finished;
	// the parsed text is reloaded from the document row instead.
	var text string
	if run.Stage == repo.StageStarted {
		err := o.runActivity(ctx, log, "parse", policy{
			attempts:     o.cfg.ParseAttempts,
			timeout:      o.cfg.ParseTimeout,
			nonRetryable: parser.IsInvalidInput,
		}, func(actx context.Context) error {
			data, _, err := o.objects.Get(actx, o.cfg.UploadsBucket, documentID+".pdf")
			if err != nil {
				return err
			}
			parsed, err := o.parser.Extract(data)
			if err != nil {
				return err
			}
			text = parsed.Text
			return o.repo.SetParsed(actx, documentID, parsed.Text, parsed.PageCount)
		})
		if err != nil {
			return o.fail(ctx, log, documentID, "parse", err)
		}
		if err := o.repo.AdvanceRun(ctx, documentID, repo.StageParsingDone); err != nil {
			return nil, fmt.Errorf("failed to checkpoint parse stage: %w", err)
		}
	} else {
		doc, err := o.repo.GetDocument(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload parsed document: %w", err)
		}
		text = doc.RawText
		log.Info("resuming after parse stage")
	}

	// Extract stage. Runs a single attempt here: the extraction client owns
	// its own retry schedule and rate limiting, and stacking a second loop
	// on top would multiply attempts. A run resumed past this checkpoint
	// re-extracts, which is safe because the store stage is idempotent.
	var result *extractor.Result
	err = o.runActivity(ctx, log, "extract", policy{
		attempts: 1,
		timeout:  o.cfg.ExtractTimeout,
	}, func(actx context.Context) error {
		var err error
		result, err = o.extractor.Extract(actx, text)
		return err
	})
	if err != nil {
		return o.fail(ctx, log, documentID, "extract", err)
	}
	if run.Stage != repo.StageExtractingDone {
		if err := o.repo.AdvanceRun(ctx, documentID, repo.StageExtractingDone); err != nil {
			return nil, fmt.Errorf("failed to checkpoint extract stage: %w", err)
		}
	}

	// Store stage.
	err = o.runActivity(ctx, log, "store", policy{
		attempts: o.cfg.StoreAttempts,
		timeout:  o.cfg.StoreTimeout,
	}, func(actx context.Context) error {
		return o.results.Save(actx, run.ResultID, documentID, o.extractor.Model(), result)
	})
	if err != nil {
		return o.fail(ctx, log, documentID, "store", err)
	}

	if err := o.repo.FinishRun(ctx, documentID, repo.RunCompleted, ""); err != nil {
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}

	log.Info("pipeline run completed", "confidence", result.Confidence)
	return &RunResult{DocumentID: documentID, ResultID: run.ResultID, Status: repo.RunCompleted}, nil
}

// fail records a stage failure on both the document and the run.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, documentID, stage string, cause error) (*RunResult, error) {
	msg := fmt.Sprintf("%s stage failed: %v", stage, cause)
	log.Error("pipeline run failed", "stage", stage, "error", cause)

	if err := o.repo.MarkFailed(ctx, documentID, msg); err != nil {
		return nil, fmt.Errorf("failed to record document failure: %w", err)
	}
	if err := o.repo.FinishRun(ctx, documentID, repo.RunFailed, msg); err != nil {
		return nil, fmt.Errorf("failed to record run failure: %w", err)
	}
	return &RunResult{DocumentID: documentID, Status: repo.RunFailed}, nil
}

// policy is a per-stage retry schedule.
type policy struct {
	attempts     uint
	timeout      time.Duration
	nonRetryable func(error) bool
}

func (o *Orchestrator) runActivity(ctx context.Context, log *slog.Logger, name string, p policy, fn func(context.Context) error) error {
	return retry.Do(
		func() error {
			actx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			return fn(actx)
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(o.cfg.RetryDelay),
		retry.MaxDelay(o.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if p.nonRetryable != nil && p.nonRetryable(err) {
				return false
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("stage attempt failed, retrying",
				"stage", name,
				"attempt", n+1,
				"error", err)
		}),
	)
}
