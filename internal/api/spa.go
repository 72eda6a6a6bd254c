package api

import (
	"net/http"
	"os"
	"path"
	"strings"
)

// spaFileSystem serves the built kiosk frontend. Unknown paths fall back to
// index.html so client-side routes (/docent, /mission, /admin) survive a
// reload. Missing assets and API paths still 404.
type spaFileSystem struct {
	root http.FileSystem
}

// Open opens the named file, falling back to index.html for route paths.
func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if os.IsNotExist(err) && isRoutePath(name) {
		return s.root.Open("/index.html")
	}
	return f, err
}

func isRoutePath(name string) bool {
	if strings.HasPrefix(name, "/api/") {
		return false
	}
	return path.Ext(name) == ""
}
