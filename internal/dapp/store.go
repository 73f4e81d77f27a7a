// Package dapp holds the state the views render: the latest gallery snapshot
// and the status banner. Refreshes are tagged with generations so a slow,
// superseded refresh can never overwrite a newer one.
package dapp

import (
	"sync"
	"time"

	"github.com/mrz1836/pharos-avatars/internal/metrics"
	"github.com/mrz1836/pharos-avatars/internal/nft"
)

// Generation identifies one refresh attempt.
type Generation uint64

// StatusKind classifies the banner.
type StatusKind string

// Banner kinds.
const (
	StatusNone    StatusKind = ""
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is the single user-visible status message.
type Status struct {
	Kind    StatusKind `json:"kind,omitempty"`
	Message string     `json:"message,omitempty"`
	At      time.Time  `json:"at,omitzero"`
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	next      Generation
	committed Generation
	snapshot  *nft.Snapshot
	status    Status
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewStore creates an empty store. m may be nil.
func NewStore(m *metrics.Metrics) *Store {
	return &Store{metrics: m, now: time.Now}
}

// Begin starts a refresh and returns its generation.
func (s *Store) Begin() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// Commit publishes snap if gen is newer than the last committed generation.
// It returns false when a later refresh already committed.
func (s *Store) Commit(gen Generation, snap *nft.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap == nil || gen <= s.committed {
		return false
	}
	stored := snap.Clone()
	stored.Generation = uint64(gen)
	s.snapshot = stored
	s.committed = gen

	minted, mintable, unknown := stored.Counts()
	s.metrics.SetGallery(uint64(gen), minted, mintable, unknown)
	return true
}

// Snapshot returns a copy of the latest committed snapshot, or nil.
func (s *Store) Snapshot() *nft.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Record returns the committed record for id.
func (s *Store) Record(id int) (nft.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nft.Record{}, false
	}
	return s.snapshot.Record(id)
}

// SetStatus replaces the banner.
func (s *Store) SetStatus(kind StatusKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{Kind: kind, Message: message, At: s.now()}
}

// Status returns the current banner.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
