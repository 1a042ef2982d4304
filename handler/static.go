package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FindStaticDir returns the first existing directory among candidates, or ""
func FindStaticDir(candidates ...string) string {
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// spaHandler serves files from a built single page app. Paths that match no
// file get index.html so client-side routes work on reload.
type spaHandler struct {
	root  string
	files http.Handler
}

func newSPAHandler(root string) spaHandler {
	return spaHandler{root: root, files: http.FileServer(http.Dir(root))}
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := path.Clean("/" + r.URL.Path)
	info, err := os.Stat(filepath.Join(h.root, filepath.FromSlash(strings.TrimPrefix(name, "/"))))
	if err == nil && !info.IsDir() {
		h.files.ServeHTTP(w, r)
		return
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.root, "index.html"))
}
