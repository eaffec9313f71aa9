package middleware

import (
	"net/http"

	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/httputil"
)

// DefaultMaxBodySize bounds every request body. Notify payloads and push
// subscriptions are a few KB at most.
const DefaultMaxBodySize = 64 << 10

type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

// Handler rejects bodies whose declared length exceeds the limit and caps
// the reader for chunked or undeclared bodies, which surface as a decode
// error in the handler.
func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.maxSize {
			httputil.WriteError(w, apperrors.PayloadTooLarge(m.maxSize))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
