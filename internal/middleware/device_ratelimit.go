package middleware

import (
	"net/http"
	"time"

	"github.com/claude-afk/afk/internal/util"
)

// NewDeviceRateLimitMiddleware limits per device token. It must run after
// DeviceAuthMiddleware; the token is hashed before it becomes a limiter key.
func NewDeviceRateLimitMiddleware(limiter Limiter, limit int, window time.Duration, scope string) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		scope:   "device:" + scope,
		key: func(r *http.Request) string {
			token := GetDeviceToken(r.Context())
			if token == "" {
				return ""
			}
			return util.HashToken(token)
		},
	}
}
