package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func serveLogged(t *testing.T, handler http.Handler, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	rec := httptest.NewRecorder()
	mw.Handler(handler).ServeHTTP(rec, req)
	return buf.String(), rec
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/inspections", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("User-Agent", "Mozilla/5.0 TestBrowser")

	logOutput, _ := serveLogged(t, statusHandler(http.StatusOK), req)

	for _, want := range []string{"GET", "/api/inspections", "200", "duration_ms", "192.168.1.1", "TestBrowser"} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("log should contain %q, got: %s", want, logOutput)
		}
	}
}

func TestRequestLoggingMiddleware_LogsClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/inspections", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.195")

	logOutput, _ := serveLogged(t, statusHandler(http.StatusOK), req)

	if !strings.Contains(logOutput, "203.0.113.195") {
		t.Errorf("log should contain client IP from X-Forwarded-For, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_LogsErrorStatus(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/inspections", nil)

	logOutput, _ := serveLogged(t, statusHandler(http.StatusInternalServerError), req)

	if !strings.Contains(logOutput, "500") {
		t.Errorf("log should contain 500 status, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "level=WARN") {
		t.Errorf("5xx should log at WARN level, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_RedactsDelegatedToken(t *testing.T) {
	token := "4b7e2f3c-1d9a-4c55-9e0a-2f6b8d1c7a40"
	req := httptest.NewRequest("POST", "/d/"+token+"/captures", nil)

	logOutput, _ := serveLogged(t, statusHandler(http.StatusOK), req)

	if strings.Contains(logOutput, token) {
		t.Errorf("log should NOT contain the access token, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "/d/[REDACTED]/captures") {
		t.Errorf("log should contain the redacted path, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_DoesNotLogSensitiveQueryParams(t *testing.T) {
	req := httptest.NewRequest("GET", "/files/report.pdf?X-Amz-Signature=abc123secret&page=2", nil)

	logOutput, _ := serveLogged(t, statusHandler(http.StatusOK), req)

	if strings.Contains(logOutput, "abc123secret") {
		t.Errorf("log should NOT contain the signature, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "page=2") {
		t.Errorf("log should keep harmless params, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_PassesRequestThrough(t *testing.T) {
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("response body"))
	})

	req := httptest.NewRequest("POST", "/api/inspections", nil)
	logOutput, rec := serveLogged(t, handler, req)

	if !handlerCalled {
		t.Error("handler should have been called")
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Custom") != "value" {
		t.Error("custom header should be preserved")
	}
	if rec.Body.String() != "response body" {
		t.Errorf("response body should be preserved, got: %s", rec.Body.String())
	}
	if !strings.Contains(logOutput, "bytes=13") {
		t.Errorf("log should contain the response size, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_ExcludesNoisyPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		logOutput, _ := serveLogged(t, statusHandler(http.StatusOK), req)
		if logOutput != "" {
			t.Errorf("%s should not be logged, got: %s", path, logOutput)
		}
	}
}

func TestRedactToken(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/d/abc", "/d/[REDACTED]"},
		{"/d/abc/", "/d/[REDACTED]/"},
		{"/d/abc/photos", "/d/[REDACTED]/photos"},
		{"/d/", "/d/"},
		{"/api/inspections/abc", "/api/inspections/abc"},
	}

	for _, tt := range tests {
		if got := RedactToken(tt.path); got != tt.want {
			t.Errorf("RedactToken(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
