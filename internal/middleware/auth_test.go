package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceAuthMiddleware(t *testing.T) {
	var seen string
	handler := NewDeviceAuthMiddleware().Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetDeviceToken(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantToken  string
	}{
		{"valid bearer", "Bearer abc123", http.StatusOK, "abc123"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc123", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"lowercase scheme", "bearer abc123", http.StatusUnauthorized, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/decision/d1/status", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantToken, seen)
			if tc.wantStatus == http.StatusUnauthorized {
				assert.True(t, strings.Contains(rec.Body.String(), "UNAUTHORIZED"))
			}
		})
	}
}

func TestGetDeviceToken_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", GetDeviceToken(req.Context()))
}
