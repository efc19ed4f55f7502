// Per-IP rate limiter for the game-facing reaction endpoint.
// Fixed-window counters, swept lazily so there is no background
// goroutine to manage.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter admits up to limit requests per IP per span.
type RateLimiter struct {
	mu        sync.Mutex
	seen      map[string]*ipWindow
	limit     int
	span      time.Duration
	lastSweep time.Time

	now func() time.Time // Injectable for tests
}

type ipWindow struct {
	used     int
	openedAt time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per span.
func NewRateLimiter(limit int, span time.Duration) *RateLimiter {
	return &RateLimiter{
		seen:  make(map[string]*ipWindow),
		limit: limit,
		span:  span,
		now:   time.Now,
	}
}

// take consumes one slot for the IP. When the window is full it reports
// the whole seconds remaining until it reopens.
func (rl *RateLimiter) take(ip string) (ok bool, retryAfter int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	w, found := rl.seen[ip]
	if !found || now.Sub(w.openedAt) >= rl.span {
		rl.seen[ip] = &ipWindow{used: 1, openedAt: now}
		return true, 0
	}
	if w.used < rl.limit {
		w.used++
		return true, 0
	}
	return false, int((rl.span - now.Sub(w.openedAt)).Seconds()) + 1
}

// sweep drops windows that have sat idle past a full span, at most once
// per span. Caller holds the lock.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.span {
		return
	}
	rl.lastSweep = now
	for ip, w := range rl.seen {
		if now.Sub(w.openedAt) >= 2*rl.span {
			delete(rl.seen, ip)
		}
	}
}

// clientIP extracts the caller's IP, honoring X-Forwarded-For from proxies.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndexByte(ip, ':'); idx >= 0 {
		ip = ip[:idx]
	}
	return ip
}

// RateLimitMiddleware wraps a handler with rate limiting. Returns 429 if exceeded.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := rl.take(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
