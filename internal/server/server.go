// Package server wires the pipeline components behind an HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lexpipe/lexpipe/internal/api"
	"github.com/lexpipe/lexpipe/internal/config"
	"github.com/lexpipe/lexpipe/internal/extractor"
	"github.com/lexpipe/lexpipe/internal/parser"
	"github.com/lexpipe/lexpipe/internal/pipeline"
	"github.com/lexpipe/lexpipe/internal/repo"
	"github.com/lexpipe/lexpipe/internal/results"
	"github.com/lexpipe/lexpipe/internal/server/endpoints"
	"github.com/lexpipe/lexpipe/internal/storage"
	"github.com/lexpipe/lexpipe/internal/svcctx"
)

// Server is the main Lexpipe HTTP server. It owns the record store
// connection, object store client, and the background pipeline workers.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	logger     *slog.Logger

	repo    *repo.Repository
	objects storage.ObjectStore
	pool    *pipeline.Pool

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// New creates a new Server from resolved configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start connects the backing stores, starts the pipeline workers, and serves
// HTTP. It blocks until the context is cancelled or an error occurs.
// Unfinished runs from a previous process are re-queued before serving.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("connecting to record store", "driver", s.cfg.Database.Driver)
	r, err := repo.Open(ctx, s.cfg.Database.Driver, s.cfg.Database.DSN, s.logger)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open record store: %w", err)
	}
	s.repo = r

	objects, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  s.cfg.Storage.Endpoint,
		AccessKey: s.cfg.Storage.AccessKey,
		SecretKey: s.cfg.Storage.SecretKey,
		UseSSL:    s.cfg.Storage.UseSSL,
	})
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to create object store client: %w", err)
	}
	s.objects = objects

	for _, bucket := range []string{s.cfg.Storage.UploadsBucket, s.cfg.Storage.ExtractionsBucket} {
		if err := objects.EnsureBucket(ctx, bucket); err != nil {
			_ = s.shutdown()
			return fmt.Errorf("failed to ensure bucket %s: %w", bucket, err)
		}
	}

	textParser := parser.New(parser.Config{
		MaxSizeBytes: s.cfg.Parser.MaxSizeBytes,
		MaxPages:     s.cfg.Parser.MaxPages,
	})

	clauses, err := extractor.New(extractor.Config{
		APIKey:      s.cfg.Extractor.APIKey,
		BaseURL:     s.cfg.Extractor.BaseURL,
		Model:       s.cfg.Extractor.Model,
		MaxChars:    s.cfg.Extractor.MaxChars,
		Temperature: s.cfg.Extractor.Temperature,
		MaxRetries:  s.cfg.Extractor.MaxRetries,
		RetryDelay:  time.Duration(s.cfg.Extractor.RetryDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(s.cfg.Extractor.MaxDelaySeconds) * time.Second,
		Timeout:     time.Duration(s.cfg.Extractor.TimeoutSeconds) * time.Second,
		RateLimit:   s.cfg.Extractor.RateLimit,
	}, s.logger)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to create extraction client: %w", err)
	}

	resultStore := results.New(s.repo, s.objects, s.cfg.Storage.ExtractionsBucket, s.logger)

	orch := pipeline.New(pipeline.Config{
		UploadsBucket:  s.cfg.Storage.UploadsBucket,
		ParseAttempts:  uint(s.cfg.Pipeline.ParseAttempts),
		ParseTimeout:   time.Duration(s.cfg.Pipeline.ParseTimeoutSeconds) * time.Second,
		StoreAttempts:  uint(s.cfg.Pipeline.StoreAttempts),
		StoreTimeout:   time.Duration(s.cfg.Pipeline.StoreTimeoutSeconds) * time.Second,
		ExtractTimeout: time.Duration(s.cfg.Pipeline.ExtractTimeoutSeconds) * time.Second,
		RetryDelay:     time.Duration(s.cfg.Pipeline.RetryDelaySeconds) * time.Second,
		MaxDelay:       time.Duration(s.cfg.Pipeline.MaxDelaySeconds) * time.Second,
	}, s.repo, s.objects, textParser, clauses, resultStore, s.logger)

	s.pool = pipeline.NewPool(orch, s.cfg.Pipeline.Workers, s.cfg.Pipeline.QueueSize, s.logger)
	s.pool.Start(ctx)

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Repo:    s.repo,
		Objects: s.objects,
		Pool:    s.pool,
		Config:  s.cfg,
		Logger:  s.logger,
	}

	// Pick up work that was interrupted by the last shutdown
	if err := s.pool.Resume(ctx); err != nil {
		s.logger.Error("failed to resume unfinished runs", "error", err)
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server, pipeline workers,
// and record store connection.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Let in-flight pipeline runs finish; unfinished ones resume on next boot.
	if s.pool != nil {
		s.pool.Stop()
	}

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Error("record store close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the backing stores are connected.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
