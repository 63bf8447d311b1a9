package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cocoa-dashboard/internal/config"
	"cocoa-dashboard/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("a"), mark("b"), mark("c"))(okHandler())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("middlewares ran in order %v, want [a b c]", order)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" || w.Header().Get("X-Request-ID") != seen {
			t.Errorf("request id %q not propagated to header %q", seen, w.Header().Get("X-Request-ID"))
		}
	})

	t.Run("forwarded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc123")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "abc123" {
			t.Errorf("request id = %q, want abc123", seen)
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if w.Header().Get("Content-Security-Policy") != ContentSecurityPolicy {
		t.Error("missing content security policy")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should only be sent over TLS")
	}
}

func TestCORS(t *testing.T) {
	cfg := config.SecurityConfig{AllowedOrigins: []string{"http://localhost:8084"}}
	h := CORS(cfg)(okHandler())

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", http.MethodGet, "http://localhost:8084", "http://localhost:8084", http.StatusOK},
		{"foreign origin", http.MethodGet, "http://evil.example", "", http.StatusOK},
		{"preflight", http.MethodOptions, "http://localhost:8084", "http://localhost:8084", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/years", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 1, RateLimitBurst: 2}
	h := RateLimit(NewRateLimiter(cfg), testLogger())(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("burst requests should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request should be limited, got %d", codes[2])
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	rl := NewRateLimiter(config.SecurityConfig{EnableRateLimit: false, RateLimitRPS: 1, RateLimitBurst: 1})
	for i := 0; i < 5; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatal("disabled limiter should allow every request")
		}
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 10, RateLimitBurst: 10})
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(2 * time.Minute)
	rl.Allow("10.0.0.2")

	if remaining := rl.Sweep(time.Minute); remaining != 1 {
		t.Errorf("Sweep() left %d visitors, want 1", remaining)
	}
}

func TestTrustedProxy(t *testing.T) {
	cfg := config.SecurityConfig{TrustedProxies: []string{"127.0.0.1"}}
	var ip string
	h := TrustedProxy(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = getClientIP(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:4000"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if ip != "192.168.1.9" {
		t.Errorf("untrusted peer: client IP = %q, want 192.168.1.9", ip)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 127.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if ip != "1.2.3.4" {
		t.Errorf("trusted proxy: client IP = %q, want 1.2.3.4", ip)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestResponseWriter_TracksStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrap(rec)
	rw.WriteHeader(http.StatusNotFound)
	rw.Write([]byte("missing"))
	rw.Flush()

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}
	if rw.written != int64(len("missing")) {
		t.Errorf("written = %d", rw.written)
	}
	if !rec.Flushed {
		t.Error("Flush should reach the underlying writer")
	}
}
