package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter tracks request counts per key with a fixed window.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger

	mu      sync.RWMutex
	entries map[string]*rateLimitEntry
	stop    chan struct{}
	once    sync.Once
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter. Call Close to stop its
// background cleanup.
func NewRateLimiter(maxAttempts int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
		entries:     make(map[string]*rateLimitEntry),
		stop:        make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request from the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]

	if !exists {
		rl.entries[key] = &rateLimitEntry{
			count:       1,
			windowStart: now,
		}
		return true
	}

	if now.Sub(entry.windowStart) > rl.window {
		entry.count = 1
		entry.windowStart = now
		return true
	}

	if entry.count < rl.maxAttempts {
		entry.count++
		return true
	}

	return false
}

// Exhausted reports whether key has used up its window without counting
// a new attempt.
func (rl *RateLimiter) Exhausted(key string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists || time.Since(entry.windowStart) > rl.window {
		return false
	}
	return entry.count >= rl.maxAttempts
}

// RecordFailure records a failed attempt without checking the limit.
func (rl *RateLimiter) RecordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]

	if !exists {
		rl.entries[key] = &rateLimitEntry{
			count:       1,
			windowStart: now,
		}
		return
	}

	if now.Sub(entry.windowStart) > rl.window {
		entry.count = 1
		entry.windowStart = now
		return
	}

	entry.count++
}

// Reset clears the rate limit for a key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

// TimeUntilReset returns how long until the rate limit resets for a key.
func (rl *RateLimiter) TimeUntilReset(key string) time.Duration {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists {
		return 0
	}

	elapsed := time.Since(entry.windowStart)
	if elapsed >= rl.window {
		return 0
	}

	return rl.window - elapsed
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup periodically removes expired entries to prevent memory leaks.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := time.Now()
		for key, entry := range rl.entries {
			if now.Sub(entry.windowStart) > rl.window {
				delete(rl.entries, key)
			}
		}
		rl.mu.Unlock()
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware wraps a rate limiter for use as HTTP middleware.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns middleware that rate limits requests per client IP.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := ClientIP(r)

		if !m.limiter.Allow(clientIP) {
			m.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", RedactToken(r.URL.Path),
				"method", r.Method,
			)
			tooManyRequests(w, m.limiter.TimeUntilReset(clientIP))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Delegated Rate Limiter
// =============================================================================

// DelegatedRateLimiter guards the public, token-authenticated routes.
//
// Every client IP has a request budget. IPs presenting too many unknown or
// expired tokens are refused until their failure window passes, which keeps
// tokens from being guessed.
type DelegatedRateLimiter struct {
	requests *RateLimiter
	failures *RateLimiter
	logger   *slog.Logger
}

// NewDelegatedRateLimiter creates the limiter of the delegated routes.
// - Requests: requestsPerMinute per IP
// - Rejected tokens: 10 per 15 minutes per IP
func NewDelegatedRateLimiter(requestsPerMinute int, logger *slog.Logger) *DelegatedRateLimiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 60
	}
	return &DelegatedRateLimiter{
		requests: NewRateLimiter(requestsPerMinute, time.Minute, logger),
		failures: NewRateLimiter(10, 15*time.Minute, logger),
		logger:   logger,
	}
}

// Limit returns middleware for the delegated routes.
func (d *DelegatedRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := ClientIP(r)

		if d.failures.Exhausted(clientIP) {
			d.logger.Warn("delegated access blocked after rejected tokens", "ip", clientIP)
			tooManyRequests(w, d.failures.TimeUntilReset(clientIP))
			return
		}
		if !d.requests.Allow(clientIP) {
			d.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", RedactToken(r.URL.Path),
				"method", r.Method,
			)
			tooManyRequests(w, d.requests.TimeUntilReset(clientIP))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecordRejectedToken counts a request whose token did not resolve.
func (d *DelegatedRateLimiter) RecordRejectedToken(ip string) {
	d.failures.RecordFailure(ip)
}

// Close stops the background cleanup of both limiters.
func (d *DelegatedRateLimiter) Close() {
	d.requests.Close()
	d.failures.Close()
}

// =============================================================================
// Helpers
// =============================================================================

func tooManyRequests(w http.ResponseWriter, wait time.Duration) {
	retryAfter := int(wait.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "rate_limit",
		"message": "Too many requests. Please try again later.",
	})
}

// ClientIP extracts the client IP from the request, considering proxy headers.
func ClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	// X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}

	return ip
}
