package server

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultRate  = 20.0
	defaultBurst = 40
)

// HTTPRateLimiter limits request throughput per client IP and endpoint.
type HTTPRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

// NewHTTPRateLimiter creates a rate limiter. Non-positive arguments fall
// back to the defaults.
func NewHTTPRateLimiter(requestsPerSecond float64, burst int) *HTTPRateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRate
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &HTTPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Allow reports whether the request fits the caller's budget.
func (rl *HTTPRateLimiter) Allow(r *http.Request) bool {
	key := r.URL.Path + ":" + clientIP(r)

	rl.mu.Lock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// RateLimitMiddleware rejects requests over the budget with 429.
func RateLimitMiddleware(limiter *HTTPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r) {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
