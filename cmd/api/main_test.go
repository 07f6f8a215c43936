// Package main contains integration tests for the API server wiring.
package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecociclo/ecociclo/internal/config"
	"github.com/ecociclo/ecociclo/internal/middleware"
)

func testConfig() *config.Config {
	return &config.Config{
		Port: 0,
		Env:  "development",
	}
}

func testHandler(t *testing.T, cfg *config.Config, router http.Handler) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return buildHandler(cfg, logger, router, middleware.NewInMemoryRateLimitStore(), middleware.NewMetrics())
}

func pingRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestBuildHandler_RequestIDAssigned(t *testing.T) {
	handler := testHandler(t, testConfig(), pingRouter())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("response should carry a request ID")
	}
}

func TestBuildHandler_CORSEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://app.ecociclo.pe"}
	handler := testHandler(t, cfg, pingRouter())

	// Allowed origin passes and is echoed back.
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.ecociclo.pe")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("allowed origin: expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.ecociclo.pe" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the allowed origin", got)
	}

	// Unknown origin is rejected.
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("unknown origin: expected status 403, got %d", w.Code)
	}
}

func TestBuildHandler_CORSDisabledByDefault(t *testing.T) {
	handler := testHandler(t, testConfig(), pingRouter())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("with no allowlist configured CORS should not block, got %d", w.Code)
	}
}

func TestBuildHandler_ProfilingRefusedInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.ProfilingEnabled = true
	handler := testHandler(t, cfg, pingRouter())

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// The profiling middleware must refuse production; the request falls
	// through to the router, which has no such route.
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 (pprof not exposed), got %d", w.Code)
	}
}

func TestBuildHandler_ProfilingServedInDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.ProfilingEnabled = true
	handler := testHandler(t, cfg, pingRouter())

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected pprof index 200 in development, got %d", w.Code)
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	cfg := testConfig()

	release := make(chan struct{})
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	server := newServer(cfg, testHandler(t, cfg, mux))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go server.Serve(listener)

	base := "http://" + listener.Addr().String()

	type result struct {
		status int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := http.Get(base + "/slow")
		if err != nil {
			done <- result{err: err}
			return
		}
		resp.Body.Close()
		done <- result{status: resp.StatusCode}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request never reached the handler")
	}

	shutdownDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownDone <- server.Shutdown(ctx)
	}()

	// Shutdown must wait for the in-flight request.
	time.Sleep(50 * time.Millisecond)
	close(release)

	r := <-done
	if r.err != nil {
		t.Fatalf("in-flight request failed: %v", r.err)
	}
	if r.status != http.StatusOK {
		t.Errorf("in-flight request status = %d, want 200", r.status)
	}
	if err := <-shutdownDone; err != nil {
		t.Fatalf("graceful shutdown failed: %v", err)
	}

	// New connections are refused after shutdown.
	if _, err := http.Get(base + "/slow"); err == nil {
		t.Error("expected error connecting after shutdown")
	}
}
