// Package snapshot keeps the rendered documents captured during a run on
// disk until the run ends. Every capture is removed by Cleanup.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Store writes captures under a directory and remembers them for cleanup.
// It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	dir   string
	paths []string
}

// New creates a Store rooted at dir. The directory is created on first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes html as "<id>_<platform>-page.html" and returns its path.
func (s *Store) Save(platform, html string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s-page.html", uuid.NewString()[:8], unsafeName.ReplaceAllString(platform, "_"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("snapshot: write %s: %w", name, err)
	}

	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()

	slog.Debug("snapshot saved", "platform", platform, "path", path, "bytes", len(html))
	return path, nil
}

// Load opens a capture previously returned by Save.
func (s *Store) Load(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	return f, nil
}

// Paths returns the captures not yet cleaned up.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Cleanup removes every capture. Files already gone are not an error.
// All removals are attempted even if some fail.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(paths) > 0 {
		slog.Debug("snapshots cleaned up", "count", len(paths), "failed", len(errs))
	}
	return errors.Join(errs...)
}
