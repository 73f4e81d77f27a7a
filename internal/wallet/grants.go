package wallet

import (
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/pharos-avatars/internal/fileutil"
)

// DefaultGrantTTL is how long a connection approval lasts.
const DefaultGrantTTL = 24 * time.Hour

// Grant records that the user approved connecting an account.
type Grant struct {
	Address   string    `yaml:"address"`
	GrantedAt time.Time `yaml:"granted_at"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

// IsValid returns true if the grant has not expired at now.
func (g Grant) IsValid(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// TTL returns the remaining lifetime at now, or 0 once expired.
func (g Grant) TTL(now time.Time) time.Duration {
	remaining := g.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

type grantFile struct {
	Grants []Grant `yaml:"grants"`
}

// GrantStore persists connection grants. Expired grants are dropped on write.
type GrantStore struct {
	mu     sync.Mutex
	path   string
	grants []Grant
	now    func() time.Time
}

// LoadGrants reads the grant file at path. A missing file is an empty store.
func LoadGrants(path string, now func() time.Time) (*GrantStore, error) {
	if now == nil {
		now = time.Now
	}
	var file grantFile
	if _, err := fileutil.ReadYAML(path, &file); err != nil {
		return nil, err
	}
	return &GrantStore{path: path, grants: file.Grants, now: now}, nil
}

// Active returns the addresses with a live grant, oldest first.
func (s *GrantStore) Active() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []common.Address
	for _, g := range s.grants {
		if g.IsValid(now) {
			out = append(out, common.HexToAddress(g.Address))
		}
	}
	return out
}

// Lookup returns the live grant for addr.
func (s *GrantStore) Lookup(addr common.Address) (Grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, g := range s.grants {
		if strings.EqualFold(g.Address, addr.Hex()) && g.IsValid(now) {
			return g, true
		}
	}
	return Grant{}, false
}

// Authorize grants addr for ttl, replacing any previous grant.
func (s *GrantStore) Authorize(addr common.Address, ttl time.Duration) (Grant, error) {
	if ttl <= 0 {
		ttl = DefaultGrantTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	grant := Grant{Address: addr.Hex(), GrantedAt: now, ExpiresAt: now.Add(ttl)}
	next := s.withoutLocked(addr, now)
	next = append(next, grant)
	if err := fileutil.WriteYAML(s.path, grantFile{Grants: next}); err != nil {
		return Grant{}, err
	}
	s.grants = next
	return grant, nil
}

// Revoke removes the grant for addr. Revoking an unknown address is a no-op.
func (s *GrantStore) Revoke(addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.withoutLocked(addr, s.now())
	if err := fileutil.WriteYAML(s.path, grantFile{Grants: next}); err != nil {
		return err
	}
	s.grants = next
	return nil
}

func (s *GrantStore) withoutLocked(addr common.Address, now time.Time) []Grant {
	next := make([]Grant, 0, len(s.grants))
	for _, g := range s.grants {
		if strings.EqualFold(g.Address, addr.Hex()) || !g.IsValid(now) {
			continue
		}
		next = append(next, g)
	}
	return next
}
