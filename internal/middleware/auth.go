package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/claude-afk/afk/internal/audit"
	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/httputil"
)

type contextKey string

const DeviceTokenContextKey contextKey = "deviceToken"

func GetDeviceToken(ctx context.Context) string {
	if token, ok := ctx.Value(DeviceTokenContextKey).(string); ok {
		return token
	}
	return ""
}

// DeviceAuthMiddleware requires a bearer device token. Whether the token
// belongs to a paired device is decided by the service that consumes it.
type DeviceAuthMiddleware struct{}

func NewDeviceAuthMiddleware() *DeviceAuthMiddleware {
	return &DeviceAuthMiddleware{}
}

func (m *DeviceAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"reason": "missing bearer token", "path": r.URL.Path},
			})
			httputil.WriteError(w, apperrors.Unauthorized("Missing or invalid authorization header"))
			return
		}

		ctx := context.WithValue(r.Context(), DeviceTokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}
