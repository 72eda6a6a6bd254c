// Package watcher tracks the video files the kiosk frontend can play.
package watcher

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

var videoExts = []string{".mp4", ".webm", ".mov", ".m4v"}

// Service scans video directories under the static root. Results are site
// paths ("/videos/intro.mp4") as the frontend requests them.
type Service struct {
	root string
	dirs []string

	mu     sync.Mutex
	known  map[string]time.Time
	primed bool
}

// NewService watches dirs, given relative to root. Missing directories are
// reported once and then scanned as empty.
func NewService(root string, dirs []string) *Service {
	if len(dirs) == 0 {
		dirs = []string{"videos"}
	}
	for _, d := range dirs {
		if _, err := os.Stat(filepath.Join(root, d)); os.IsNotExist(err) {
			slog.Warn("Watcher: video directory missing", "path", filepath.Join(root, d))
		}
	}
	return &Service{root: root, dirs: dirs, known: make(map[string]time.Time)}
}

func (s *Service) scan() map[string]time.Time {
	found := make(map[string]time.Time)
	for _, dir := range s.dirs {
		entries, err := os.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !slices.Contains(videoExts, strings.ToLower(filepath.Ext(entry.Name()))) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			found[path.Join("/", filepath.ToSlash(dir), entry.Name())] = info.ModTime()
		}
	}
	return found
}

// List returns every video currently on disk, sorted.
func (s *Service) List() []string {
	found := s.scan()
	out := make([]string, 0, len(found))
	for p := range found {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Has reports whether sitePath names a video on disk.
func (s *Service) Has(sitePath string) bool {
	_, ok := s.scan()[sitePath]
	return ok
}

// CheckNew returns videos added or replaced since the previous call, sorted.
// The first call only records what is there.
func (s *Service) CheckNew() []string {
	found := s.scan()

	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	if s.primed {
		for p, mod := range found {
			if prev, ok := s.known[p]; !ok || mod.After(prev) {
				changed = append(changed, p)
			}
		}
		slices.Sort(changed)
	}
	s.known = found
	s.primed = true

	for _, p := range changed {
		slog.Info("Watcher: new video detected", "path", p)
	}
	return changed
}
