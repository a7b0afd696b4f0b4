package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexpipe/lexpipe/internal/config"
)

func TestNewServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9999

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	if s.Addr() != "127.0.0.1:9999" {
		t.Errorf("unexpected addr %q", s.Addr())
	}
	if s.IsRunning() {
		t.Error("server should not be running before Start")
	}
}

func TestNewServerRequiresConfig(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRequireInitBeforeStart(t *testing.T) {
	s, err := New(config.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	// Before Start, initialized-only routes must refuse requests.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/extractions", nil)
	s.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before init, got %d", rec.Code)
	}

	// Health does not require initialization.
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for health, got %d", rec.Code)
	}
}
