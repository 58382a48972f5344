package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"chatrelay/internal/httputil"
	"chatrelay/internal/metrics"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused per-user limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserLimiter hands out one token bucket per caller.
type UserLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

// NewUserLimiter allows perMinute requests per caller with a burst of the same size.
func NewUserLimiter(perMinute int) *UserLimiter {
	return &UserLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow spends one token from key's bucket.
func (l *UserLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops idle limiters. Caller holds mu.
func (l *UserLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdleTTL {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

// RateLimit rejects callers that exceed their per-minute allowance with 429.
// Callers are keyed by principal id, or by remote address on anonymous routes.
func RateLimit(limiter *UserLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiterKey(r)
			if !limiter.Allow(key) {
				metrics.RateLimited()
				logger.Warn("rate limit exceeded", "key", key, "path", r.URL.Path)
				httputil.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func limiterKey(r *http.Request) string {
	if user := httputil.GetUser(r); user != nil {
		return "user:" + user.PrincipalID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
