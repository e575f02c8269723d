package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// LoginLimiter is a per-client token bucket for credential endpoints.
type LoginLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewLoginLimiter allows perSecond requests per client with the given burst,
// tracking at most capacity clients.
func NewLoginLimiter(perSecond float64, burst, capacity int) (*LoginLimiter, error) {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	if capacity <= 0 {
		capacity = 10000
	}
	cache, err := lru.New[string, *rate.Limiter](capacity)
	if err != nil {
		return nil, fmt.Errorf("create limiter cache: %w", err)
	}
	return &LoginLimiter{limit: rate.Limit(perSecond), burst: burst, limiters: cache}, nil
}

// Allow consumes one token for key.
func (l *LoginLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects over-limit clients with 429.
func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / float64(l.limit))))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientKey(r)) {
			w.Header().Set("Retry-After", retryAfter)
			writeMessage(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey identifies the caller by IP. NewTrustedRealIP has already
// replaced RemoteAddr when a trusted proxy forwarded the request.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
