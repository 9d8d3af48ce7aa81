package api

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxLimiters bounds the number of tracked clients before the limiters are reset
const maxLimiters = 10000

// rateLimiter throttles plan requests per client IP
type rateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	logger   zerolog.Logger
}

func newRateLimiter(perSecond float64, burst int, logger zerolog.Logger) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

// allow reports whether the client of r may plan now
func (l *rateLimiter) allow(r *http.Request) bool {
	clientIP := getClientIP(r)

	l.mu.Lock()
	limiter, ok := l.limiters[clientIP]
	if !ok {
		if len(l.limiters) >= maxLimiters {
			l.logger.Info().Int("count", len(l.limiters)).Msg("Clearing rate limiters")
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[clientIP] = limiter
	}
	l.mu.Unlock()

	if !limiter.Allow() {
		l.logger.Warn().Str("client", clientIP).Msg("Rate limit exceeded")
		return false
	}
	return true
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
