package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirSource replays JPEG files from a directory in name order, cycling back
// to the first file after the last. Useful for development and tests without
// a physical camera.
type DirSource struct {
	files []string

	mu   sync.Mutex
	next int
}

// OpenDir creates a frame source over the JPEG files in dir. An empty or
// missing directory is a terminal error, same as a failed device open.
func OpenDir(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open frame directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no JPEG files in %s", dir)
	}

	return &DirSource{files: files}, nil
}

// Frame returns the next file's contents, wrapping around at the end.
func (s *DirSource) Frame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}
	return data, nil
}

// Close is a no-op for directory sources.
func (s *DirSource) Close() error {
	return nil
}
