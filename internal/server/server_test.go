package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"cocoa-dashboard/internal/config"
	"cocoa-dashboard/internal/middleware"
	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAnalytics() *services.Analytics {
	a := services.NewAnalytics(services.WithoutCache(), services.WithLogger(testLogger()))
	a.SetData([]models.ImportRecord{
		{Geo: models.GeoEurope, Year: 2020, Importer: "Netherlands", Tonnes: 100},
		{Geo: models.GeoEurope, Year: 2021, Importer: "Netherlands", Tonnes: 150},
		{Geo: models.GeoAsiaOceania, Year: 2020, Importer: "Malaysia", Tonnes: 40},
		{Geo: models.GeoAsiaOceania, Year: 2021, Importer: "Malaysia", Tonnes: 50},
		{Geo: models.GeoAmericas, Year: 2020, Importer: "United States", Tonnes: 60},
		{Geo: models.GeoAmericas, Year: 2021, Importer: "United States", Tonnes: 80},
	})
	return a
}

func newTestServer() *Server {
	return NewServer(newTestAnalytics(), config.Default().Dashboard, testLogger())
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		method         string
		path           string
		expectedStatus int
		contentType    string
	}{
		{http.MethodGet, "/", http.StatusOK, "text/html"},
		{http.MethodGet, "/health", http.StatusOK, "application/json"},
		{http.MethodGet, "/admin/stats", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/years", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/aggregates", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/aggregates?geo=europe", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/kpis?year=2021", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/importers?geo=americas", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/top-importers", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/importer-series?geo=europe&importer=Netherlands", http.StatusOK, "application/json"},
		{http.MethodGet, "/charts/yoy?geo=europe", http.StatusOK, "image/svg+xml"},
		{http.MethodGet, "/export/csv", http.StatusOK, "text/csv"},
		{http.MethodGet, "/sse/kpis", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/sse/yoy", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/sse/area", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/sse/treemaps", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/sse/importer-bars", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/sse/refresh-all", http.StatusOK, "text/event-stream"},
		{http.MethodPost, "/admin/reload", http.StatusServiceUnavailable, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}
			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

func TestServer_HandleHealth(t *testing.T) {
	srv := newTestServer()

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			Status    string `json:"status"`
			Timestamp string `json:"timestamp"`
			Records   int64  `json:"records"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode health JSON: %v", err)
	}
	if !response.Success {
		t.Error("expected success=true in response")
	}
	if response.Data.Status != "healthy" {
		t.Errorf("health status = %q, want 'healthy'", response.Data.Status)
	}
	if response.Data.Timestamp == "" {
		t.Error("health response should include timestamp")
	}
	if response.Data.Records != 6 {
		t.Errorf("records = %d, want 6", response.Data.Records)
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/api/kpis", http.StatusMethodNotAllowed},
		{http.MethodPut, "/", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/admin/reload", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestServer_Handler(t *testing.T) {
	sec := config.Default().Security
	sec.RateLimitRPS = 1
	sec.RateLimitBurst = 1

	srv := newTestServer()
	h := srv.Handler(sec, middleware.NewRateLimiter(sec))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/years", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", first.Code, http.StatusOK)
	}
	if first.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header from the chain")
	}
	if first.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected security headers from the chain")
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/years", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", second.Code, http.StatusTooManyRequests)
	}
}

func TestGracefulServer_ContextShutdown(t *testing.T) {
	cfg := config.Default()
	httpServer := &http.Server{Addr: "127.0.0.1:0", Handler: newTestServer()}
	gs := NewGracefulServer(httpServer, testLogger(), cfg)

	var ran atomic.Int32
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	hookErr := errors.New("flush failed")
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		ran.Add(1)
		return hookErr
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gs.ListenAndServe(ctx)
	if !errors.Is(err, hookErr) {
		t.Errorf("ListenAndServe() error = %v, want %v", err, hookErr)
	}
	if got := ran.Load(); got != 2 {
		t.Errorf("shutdown hooks ran %d times, want 2", got)
	}
}

func TestServer_MethodNotAllowed_AllowHeader(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		method    string
		path      string
		wantAllow string
	}{
		{http.MethodGet, "/admin/reload", "POST"},
		{http.MethodPost, "/", "GET"},
		{http.MethodPost, "/sse/kpis", "GET"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != http.StatusMethodNotAllowed {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
			}
			if allow := w.Header().Get("Allow"); !strings.Contains(allow, tt.wantAllow) {
				t.Errorf("Allow = %q, want it to contain %q", allow, tt.wantAllow)
			}
		})
	}
}

func TestServer_UnknownPaths(t *testing.T) {
	srv := newTestServer()

	for _, path := range []string{"/missing", "/api", "/charts/", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

			if w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
			}
			if strings.Contains(w.Body.String(), "COCOA BEAN IMPORT") {
				t.Error("unknown paths must not render the dashboard")
			}
		})
	}
}
