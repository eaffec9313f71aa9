package middleware

import (
	"net/http"
	"time"

	"github.com/claude-afk/afk/internal/audit"
)

// NewIPRateLimitMiddleware limits unauthenticated endpoints per client IP.
func NewIPRateLimitMiddleware(limiter Limiter, limit int, window time.Duration, scope string) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		scope:   "ip:" + scope,
		key: func(r *http.Request) string {
			return audit.ClientIP(r)
		},
	}
}
