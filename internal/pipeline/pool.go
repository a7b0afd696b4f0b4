package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned by Submit when the work queue is at capacity.
var ErrQueueFull = errors.New("pipeline queue full")

// Pool runs pipeline work on a bounded set of workers. Uploads are
// accepted immediately and processed in the background.
type Pool struct {
	orch    *Orchestrator
	queue   chan string
	workers int
	wg      sync.WaitGroup
	logger  *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a pool with the given worker count and queue capacity.
func NewPool(orch *Orchestrator, workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		orch:    orch,
		queue:   make(chan string, queueSize),
		workers: workers,
		logger:  logger.With("component", "pool"),
	}
}

// Start launches the workers. Safe to call once; workers drain the queue
// until Stop is called, then exit.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx, i)
		}
		p.logger.Info("pipeline workers started", "workers", p.workers)
	})
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for documentID := range p.queue {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.orch.Run(ctx, documentID); err != nil {
			p.logger.Error("pipeline run error",
				"worker", id,
				"document_id", documentID,
				"error", err)
		}
	}
}

// Submit queues a document for processing without blocking.
func (p *Pool) Submit(documentID string) error {
	select {
	case p.queue <- documentID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Resume re-queues documents that did not reach a terminal state before the
// last shutdown: interrupted runs as well as accepted documents that were
// still waiting in the queue when the process stopped.
func (p *Pool) Resume(ctx context.Context) error {
	ids, err := p.orch.repo.UnfinishedDocumentIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := p.Submit(id); err != nil {
			p.logger.Warn("failed to resume document", "document_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		p.logger.Info("resumed unfinished runs", "count", len(ids))
	}
	return nil
}

// Stop closes the queue and waits for in-flight runs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
		p.logger.Info("pipeline workers stopped")
	})
}
