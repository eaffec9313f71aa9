package middleware

import (
	"net/http"
	"strings"
)

// pairingPageCSP allows the page to register its service worker and to
// reach the browser's push service, which lives on a third-party https origin.
var pairingPageCSP = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-inline'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data:",
	"connect-src 'self' https:",
	"worker-src 'self'",
	"manifest-src 'self'",
	"frame-ancestors 'none'",
	"base-uri 'self'",
	"form-action 'none'",
}, "; ")

type SecurityHeadersMiddleware struct {
	headers map[string]string
}

func NewSecurityHeadersMiddleware(isProduction bool) *SecurityHeadersMiddleware {
	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
		"Content-Security-Policy": pairingPageCSP,
	}
	if isProduction {
		headers["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains"
	}
	return &SecurityHeadersMiddleware{headers: headers}
}

// Handler sets the headers before the page is served. Pairing URLs carry the
// token in the path, so no-referrer keeps it out of outbound requests.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range m.headers {
			h.Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
