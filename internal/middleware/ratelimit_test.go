package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serveFrom(h http.Handler, method, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_Allow_AtLimit(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute, testLogger)
	defer rl.Close()

	for i := 0; i < 5; i++ {
		if !rl.Allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow("192.168.1.1") {
		t.Error("6th request should be denied")
	}
}

func TestRateLimiter_Allow_DifferentIPs(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, testLogger)
	defer rl.Close()

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.1")
	if rl.Allow("192.168.1.1") {
		t.Error("IP 1 should be rate limited")
	}

	if !rl.Allow("192.168.1.2") {
		t.Error("IP 2 should not be rate limited")
	}
}

func TestRateLimiter_Allow_WindowExpiry(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond, testLogger)
	defer rl.Close()

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.1")
	if rl.Allow("192.168.1.1") {
		t.Error("should be rate limited")
	}

	time.Sleep(60 * time.Millisecond)

	if !rl.Allow("192.168.1.1") {
		t.Error("should be allowed after window expires")
	}
}

func TestRateLimiter_RecordFailure(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, testLogger)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if rl.Exhausted("192.168.1.1") {
			t.Fatalf("should not be exhausted after %d failures", i)
		}
		rl.RecordFailure("192.168.1.1")
	}

	if !rl.Exhausted("192.168.1.1") {
		t.Error("should be exhausted after 3 failures")
	}
	if rl.Allow("192.168.1.1") {
		t.Error("should be blocked after 3 failures")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, testLogger)
	defer rl.Close()

	rl.Allow("192.168.1.1")
	if rl.Allow("192.168.1.1") {
		t.Error("should be rate limited")
	}

	rl.Reset("192.168.1.1")

	if !rl.Allow("192.168.1.1") {
		t.Error("should be allowed after reset")
	}
	if rl.TimeUntilReset("10.9.9.9") != 0 {
		t.Error("unknown key should have nothing to wait for")
	}
}

// =============================================================================
// RateLimitMiddleware Tests
// =============================================================================

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, testLogger)
	defer rl.Close()
	wrapped := NewRateLimitMiddleware(rl, testLogger).Limit(okHandler())

	if rec := serveFrom(wrapped, "POST", "/api/inspections", "192.168.1.1:12345"); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec := serveFrom(wrapped, "POST", "/api/inspections", "192.168.1.1:12345")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header to be set")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %s", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "rate_limit" {
		t.Errorf("expected code rate_limit, got %q", body["code"])
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{
			name:       "x-forwarded-for first hop",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"},
			want:       "203.0.113.195",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// DelegatedRateLimiter Tests
// =============================================================================

func TestDelegatedRateLimiter_RequestBudget(t *testing.T) {
	d := NewDelegatedRateLimiter(2, testLogger)
	defer d.Close()
	wrapped := d.Limit(okHandler())

	for i := 0; i < 2; i++ {
		if rec := serveFrom(wrapped, "GET", "/d/tok", "192.168.1.1:1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	if rec := serveFrom(wrapped, "GET", "/d/tok", "192.168.1.1:1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec := serveFrom(wrapped, "GET", "/d/tok", "192.168.1.2:1"); rec.Code != http.StatusOK {
		t.Errorf("other IP: expected 200, got %d", rec.Code)
	}
}

func TestDelegatedRateLimiter_BlocksAfterRejectedTokens(t *testing.T) {
	d := NewDelegatedRateLimiter(1000, testLogger)
	defer d.Close()
	wrapped := d.Limit(okHandler())

	for i := 0; i < 10; i++ {
		d.RecordRejectedToken("192.168.1.1")
	}

	rec := serveFrom(wrapped, "GET", "/d/guess", "192.168.1.1:1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after rejected tokens, got %d", rec.Code)
	}
	if rec := serveFrom(wrapped, "GET", "/d/tok", "192.168.1.2:1"); rec.Code != http.StatusOK {
		t.Errorf("other IP: expected 200, got %d", rec.Code)
	}
}

func TestDelegatedRateLimiter_DefaultsBudget(t *testing.T) {
	d := NewDelegatedRateLimiter(0, testLogger)
	defer d.Close()

	if d.requests.maxAttempts != 60 {
		t.Errorf("expected default budget 60, got %d", d.requests.maxAttempts)
	}
}
