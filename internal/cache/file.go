package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mrz1836/pharos-avatars/internal/fileutil"
)

const (
	cacheFilePermissions = 0o640
	cacheDirPermissions  = 0o750
)

// ErrCorruptCache indicates the cache file is malformed JSON.
var ErrCorruptCache = errors.New("cache file is corrupted")

// FileStorage persists a DocumentCache as a single JSON file.
type FileStorage struct {
	path string
}

// NewFileStorage creates a new file-based cache storage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Save writes the cache to disk atomically.
func (s *FileStorage) Save(cache *DocumentCache) error {
	if err := os.MkdirAll(filepath.Dir(s.path), cacheDirPermissions); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	cache.mu.RLock()
	data, err := json.Marshal(cache)
	cache.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	return fileutil.WriteAtomic(s.path, data, cacheFilePermissions)
}

// Load reads the cache from disk. A missing file yields an empty cache.
// A corrupt file is moved aside so the next Save starts clean.
func (s *FileStorage) Load() (*DocumentCache, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // path is derived from the configured home directory
	if os.IsNotExist(err) {
		return NewDocumentCache(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	var cache DocumentCache
	if err := json.Unmarshal(data, &cache); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", s.path, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(s.path, corruptPath); renameErr != nil {
			return NewDocumentCache(), fmt.Errorf("%w: %w (also failed to move file: %w)", ErrCorruptCache, err, renameErr)
		}
		return NewDocumentCache(), fmt.Errorf("%w: %w (moved to %s)", ErrCorruptCache, err, corruptPath)
	}

	if cache.Entries == nil {
		cache.Entries = make(map[string]Entry)
	}
	return &cache, nil
}

// Path returns the cache file path.
func (s *FileStorage) Path() string {
	return s.path
}
