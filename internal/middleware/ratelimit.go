package middleware

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/audit"
	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/httputil"
)

const (
	maxTrackedKeys  = 10000
	sweepInterval   = time.Minute
	idleKeyLifetime = 5 * time.Minute
)

// Limiter records one hit against key and reports whether it fits in the window.
// service.RateLimiter (redis) and MemoryRateLimiter both satisfy it.
type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, resetAt time.Time)
}

// hitLog holds the admitted hits of one key in ascending order.
type hitLog struct {
	hits     []time.Time
	lastSeen time.Time
}

// MemoryRateLimiter is the single-instance sliding window used when redis is not configured.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	keys      map[string]*hitLog
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		keys:      make(map[string]*hitLog),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// sweep drops idle keys and, past maxTrackedKeys, the least recently seen
// fifth of the rest.
func (rl *MemoryRateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < sweepInterval {
		return
	}
	rl.lastSweep = now

	maps.DeleteFunc(rl.keys, func(_ string, l *hitLog) bool {
		return now.Sub(l.lastSeen) > idleKeyLifetime
	})
	if len(rl.keys) <= maxTrackedKeys {
		return
	}

	byAge := slices.SortedFunc(maps.Keys(rl.keys), func(a, b string) int {
		return rl.keys[a].lastSeen.Compare(rl.keys[b].lastSeen)
	})
	for _, key := range byAge[:len(byAge)/5] {
		delete(rl.keys, key)
	}
}

func (rl *MemoryRateLimiter) CheckLimit(_ context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	l, ok := rl.keys[key]
	if !ok {
		l = &hitLog{}
		rl.keys[key] = l
	}
	l.lastSeen = now

	windowStart := now.Add(-window)
	expired, _ := slices.BinarySearchFunc(l.hits, windowStart, func(hit, start time.Time) int {
		if hit.After(start) {
			return 1
		}
		return -1
	})
	l.hits = slices.Delete(l.hits, 0, expired)

	if len(l.hits) >= limit {
		return false, l.hits[0].Add(window)
	}

	l.hits = append(l.hits, now)
	return true, l.hits[0].Add(window)
}

// keyFunc derives the limiter subject from a request; "" skips limiting.
type keyFunc func(r *http.Request) string

type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
	scope   string
	key     keyFunc
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := m.key(r)
		if subject == "" || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		allowed, resetAt := m.limiter.CheckLimit(r.Context(), m.scope+":"+subject, m.limit, m.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := max(int(time.Until(resetAt).Seconds())+1, 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			log.Warn().Str("scope", m.scope).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]any{"scope": m.scope},
			})
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
