package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// frozenLimiter pins the limiter's clock so window math is exact.
func frozenLimiter(limit int, span time.Duration) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(limit, span)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl, _ := frozenLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := rl.take("1.2.3.4")
		assert.True(t, ok)
	}
	ok, retryAfter := rl.take("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 61, retryAfter)

	// A different IP has its own window.
	ok, _ = rl.take("5.6.7.8")
	assert.True(t, ok)
}

func TestRateLimiterReopensAfterSpan(t *testing.T) {
	rl, now := frozenLimiter(1, time.Minute)

	ok, _ := rl.take("1.2.3.4")
	assert.True(t, ok)
	ok, _ = rl.take("1.2.3.4")
	assert.False(t, ok)

	*now = now.Add(30 * time.Second)
	ok, retryAfter := rl.take("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 31, retryAfter)

	*now = now.Add(31 * time.Second)
	ok, _ = rl.take("1.2.3.4")
	assert.True(t, ok)
}

func TestRateLimiterSweepsIdleWindows(t *testing.T) {
	rl, now := frozenLimiter(1, time.Minute)

	rl.take("1.2.3.4")
	rl.take("5.6.7.8")
	assert.Len(t, rl.seen, 2)

	*now = now.Add(3 * time.Minute)
	rl.take("9.9.9.9")
	assert.Len(t, rl.seen, 1)
}

func TestClientIPExtraction(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:54321"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	handler := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "1.2.3.4:1000"

	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
