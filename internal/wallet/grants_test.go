package wallet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestGrantValidity(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := Grant{GrantedAt: start, ExpiresAt: start.Add(time.Hour)}

	assert.True(t, g.IsValid(start.Add(59*time.Minute)))
	assert.False(t, g.IsValid(start.Add(time.Hour)))
	assert.Equal(t, 30*time.Minute, g.TTL(start.Add(30*time.Minute)))
	assert.Zero(t, g.TTL(start.Add(2*time.Hour)))
}

func TestGrantStoreLifecycle(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "authorizations.yaml")
	addrA := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	s, err := LoadGrants(path, c.now)
	require.NoError(t, err)
	assert.Empty(t, s.Active())

	_, err = s.Authorize(addrA, time.Hour)
	require.NoError(t, err)
	_, err = s.Authorize(addrB, 3*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{addrA, addrB}, s.Active())

	reloaded, err := LoadGrants(path, c.now)
	require.NoError(t, err)
	_, ok := reloaded.Lookup(addrA)
	assert.True(t, ok)

	c.t = c.t.Add(2 * time.Hour)
	_, ok = s.Lookup(addrA)
	assert.False(t, ok)
	assert.Equal(t, []common.Address{addrB}, s.Active())

	require.NoError(t, s.Revoke(addrB))
	assert.Empty(t, s.Active())
	require.NoError(t, s.Revoke(addrB))
}

func TestGrantStoreReauthorizeReplaces(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := LoadGrants(filepath.Join(t.TempDir(), "authorizations.yaml"), c.now)
	require.NoError(t, err)

	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	_, err = s.Authorize(addr, time.Hour)
	require.NoError(t, err)
	g, err := s.Authorize(addr, 0)
	require.NoError(t, err)

	assert.Equal(t, c.t.Add(DefaultGrantTTL), g.ExpiresAt)
	assert.Len(t, s.Active(), 1)
}
