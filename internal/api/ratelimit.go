package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// limiterIdle is how long a client bucket survives without requests.
const limiterIdle = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client address.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

func newRateLimiter(perSec float64, burst int, logger zerolog.Logger) *rateLimiter {
	if burst <= 0 {
		burst = int(perSec) + 1
	}
	return &rateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(perSec),
		burst:    burst,
		idle:     limiterIdle,
		now:      time.Now,
		logger:   logger,
	}
}

func (l *rateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.limiters[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = c
	}
	c.lastSeen = l.now()
	return c.limiter
}

// Cleanup drops buckets of clients idle longer than the idle period.
func (l *rateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	now := l.now()
	for ip, c := range l.limiters {
		if now.Sub(c.lastSeen) > l.idle {
			delete(l.limiters, ip)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx ends.
func (l *rateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				l.logger.Debug().Int("removed", n).Msg("idle rate limiters dropped")
			}
		}
	}
}

func (l *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.get(ip).Allow() {
			l.logger.Warn().Str("ip", ip).Msg("rate limit exceeded")
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded; try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
