package handler

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

const indexFile = "index.html"

// PairingPage serves the browser half of pairing: index.html, the service
// worker and icons. Unknown non-API paths such as /pair/<token> get
// index.html, which reads the token from location.pathname.
type PairingPage struct {
	assets fs.FS
}

func NewPairingPage(assets fs.FS) *PairingPage {
	return &PairingPage{assets: assets}
}

// StaticFileServer serves the pairing page from a directory on disk.
func StaticFileServer(staticDir string) http.Handler {
	return NewPairingPage(os.DirFS(staticDir))
}

func (p *PairingPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := path.Clean("/" + r.URL.Path)
	if isAPIPath(urlPath) {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(urlPath, "/")
	if name != "" {
		if info, err := fs.Stat(p.assets, name); err == nil && !info.IsDir() {
			if path.Base(name) == "sw.js" {
				// devices must revalidate the worker to pick up handler changes
				w.Header().Set("Cache-Control", "no-cache")
			}
			http.ServeFileFS(w, r, p.assets, name)
			return
		}
	}

	if _, err := fs.Stat(p.assets, indexFile); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFileFS(w, r, p.assets, indexFile)
}

var apiPrefixes = []string{"/api", "/pairing", "/notify", "/decision"}

func isAPIPath(p string) bool {
	for _, prefix := range apiPrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
