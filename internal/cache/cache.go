// Package cache keeps copies of fetched remote documents, such as the
// metadata catalog, so the client can start when the source is unreachable.
package cache

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	// DefaultStaleness is how long a cached document is used without refetching.
	DefaultStaleness = time.Hour

	// DefaultMaxAge is how long an entry survives once its source is no longer fetched.
	DefaultMaxAge = 30 * 24 * time.Hour
)

// DocumentCache maps a source URL to the last body fetched from it.
type DocumentCache struct {
	mu      sync.RWMutex     `json:"-"`
	Entries map[string]Entry `json:"entries"`
}

// Entry is one cached document.
type Entry struct {
	Source    string          `json:"source"`
	Body      json.RawMessage `json:"body"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// NewDocumentCache creates a new empty cache.
func NewDocumentCache() *DocumentCache {
	return &DocumentCache{
		Entries: make(map[string]Entry),
	}
}

// Get returns the entry for source, whether it exists, and its age.
func (c *DocumentCache) Get(source string) (*Entry, bool, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.Entries[source]
	if !exists {
		return nil, false, 0
	}
	return &entry, true, time.Since(entry.FetchedAt)
}

// Set stores an entry. A zero FetchedAt is stamped with the current time.
func (c *DocumentCache) Set(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now()
	}
	c.Entries[entry.Source] = entry
}

// Prune removes entries older than maxAge and returns how many were dropped.
func (c *DocumentCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for key, entry := range c.Entries {
		if entry.FetchedAt.Before(cutoff) {
			delete(c.Entries, key)
			removed++
		}
	}
	return removed
}
