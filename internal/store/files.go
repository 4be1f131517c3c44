// Package store persists futurecasts: timestamped JSON files under the
// saved directory with a latest.json alias, a SQLite catalog for fast
// listing, and a watcher for external changes to the saved directory.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"futurecast/internal/forecast"
	"futurecast/internal/logging"
)

// LatestAlias is the filename the newest futurecast is mirrored to.
const LatestAlias = "latest.json"

// ErrNotFound is returned when a requested futurecast does not exist.
var ErrNotFound = errors.New("futurecast not found")

// FileStore saves and loads futurecast records in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the saved directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create saved dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the saved directory.
func (s *FileStore) Dir() string { return s.dir }

// Save writes the record as futurecast_<timestamp>.json and mirrors it to
// latest.json. Returns the timestamped path.
func (s *FileStore) Save(fc *forecast.Futurecast) (string, error) {
	data, err := fc.Marshal()
	if err != nil {
		return "", err
	}

	stamp := fc.Timestamp
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	path := filepath.Join(s.dir, fmt.Sprintf("futurecast_%s.json", stamp.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write futurecast: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, LatestAlias), data, 0644); err != nil {
		return "", fmt.Errorf("write latest alias: %w", err)
	}

	logging.Store("saved futurecast to %s", path)
	return path, nil
}

// Load reads a futurecast from path. An empty path loads the latest.
func (s *FileStore) Load(path string) (*forecast.Futurecast, error) {
	if path == "" {
		path = filepath.Join(s.dir, LatestAlias)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read futurecast: %w", err)
	}
	fc, err := forecast.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	logging.Store("loaded futurecast from %s", path)
	return fc, nil
}

// List returns the timestamped futurecast files, newest first. The latest
// alias is excluded.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read saved dir: %w", err)
	}
	var paths []string
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || name == LatestAlias {
			continue
		}
		if strings.HasPrefix(name, "futurecast_") && strings.HasSuffix(name, ".json") {
			paths = append(paths, filepath.Join(s.dir, name))
		}
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}
