package middleware

import (
	"net/http"
	"sync"
	"time"
)

// maxBodySize caps request bodies. The API is JSON only, so anything past
// 1MB is abuse.
const maxBodySize = 1 << 20

// LimitBodyMiddleware wraps request bodies with http.MaxBytesReader so
// oversized payloads fail at read time instead of buffering in memory.
func LimitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeadersMiddleware sets baseline security headers. The API serves
// only JSON, so no CSP nonce machinery is needed.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

type visitor struct {
	count    int
	windowAt time.Time
}

// RateLimiter is a fixed-window per-IP request counter.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	cleanup  time.Duration

	lastCleanup time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per window per IP.
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		cleanup:  2 * window,
	}
}

// Allow reports whether the given IP may make another request.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.maybeCleanup(now)

	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.windowAt) >= rl.window {
		rl.visitors[ip] = &visitor{count: 1, windowAt: now}
		return true
	}
	if v.count >= rl.rate {
		return false
	}
	v.count++
	return true
}

// maybeCleanup drops visitors whose window expired. Called with mu held.
func (rl *RateLimiter) maybeCleanup(now time.Time) {
	if now.Sub(rl.lastCleanup) < rl.cleanup {
		return
	}
	for ip, v := range rl.visitors {
		if now.Sub(v.windowAt) >= rl.window {
			delete(rl.visitors, ip)
		}
	}
	rl.lastCleanup = now
}

// RateLimitMiddleware rejects requests past the per-IP limit with 429.
// Limiting is by client IP, so it sits behind GetClientIP's proxy-header
// handling.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(GetClientIP(r)) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
