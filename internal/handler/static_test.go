package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func pairingAssets() fstest.MapFS {
	return fstest.MapFS{
		"index.html":    {Data: []byte("<!DOCTYPE html><html><body>Pair this device</body></html>")},
		"sw.js":         {Data: []byte("self.addEventListener('push', onPush);")},
		"icons/afk.png": {Data: []byte("png")},
	}
}

func TestPairingPage(t *testing.T) {
	page := NewPairingPage(pairingAssets())

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantBody    string
		wantCaching string
	}{
		{"root serves index", "/", http.StatusOK, "Pair this device", "no-store"},
		{"pairing link serves index", "/pair/3f9a0c", http.StatusOK, "Pair this device", "no-store"},
		{"service worker revalidates", "/sw.js", http.StatusOK, "onPush", "no-cache"},
		{"nested asset", "/icons/afk.png", http.StatusOK, "png", ""},
		{"directory falls back to index", "/icons", http.StatusOK, "Pair this device", "no-store"},
		{"api prefix is never the page", "/api/users", http.StatusNotFound, "", ""},
		{"unmatched decision route", "/decision/abc/unknown", http.StatusNotFound, "", ""},
		{"unmatched pairing route", "/pairing", http.StatusNotFound, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			page.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tc.wantBody)
			}
			assert.Equal(t, tc.wantCaching, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestPairingPage_Traversal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../../etc/passwd"
	rec := httptest.NewRecorder()

	NewPairingPage(pairingAssets()).ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), "root:")
}

func TestPairingPage_MissingIndex(t *testing.T) {
	rec := httptest.NewRecorder()
	NewPairingPage(fstest.MapFS{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pair/x", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticFileServer_ServesDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := httptest.NewRecorder()
	StaticFileServer(dir).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
