// Package catalog loads the static NFT metadata list. A descriptor's token id
// is its position in the list.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// Descriptor is one catalog entry.
type Descriptor struct {
	TokenID     int    `json:"tokenId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Catalog is an immutable, ordered list of descriptors.
type Catalog struct {
	entries []Descriptor
	source  string
	stale   bool
}

type rawEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// New builds a catalog from descriptors, renumbering token ids by position.
func New(entries []Descriptor) *Catalog {
	out := make([]Descriptor, len(entries))
	for i, e := range entries {
		e.TokenID = i
		out[i] = e
	}
	return &Catalog{entries: out}
}

// Parse decodes a JSON array of {name, description, image} objects.
func Parse(data []byte) (*Catalog, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, avatarerr.WithDetails(avatarerr.ErrCatalogInvalid, map[string]string{
			"reason": "expected a JSON array",
		})
	}

	var raw []rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, avatarerr.WithCause(avatarerr.ErrCatalogInvalid, err)
	}

	entries := make([]Descriptor, len(raw))
	for i, r := range raw {
		if strings.TrimSpace(r.Name) == "" {
			return nil, avatarerr.WithDetails(avatarerr.ErrCatalogInvalid, map[string]string{
				"index":  fmt.Sprint(i),
				"reason": "entry has no name",
			})
		}
		entries[i] = Descriptor{
			TokenID:     i,
			Name:        r.Name,
			Description: r.Description,
			Image:       r.Image,
		}
	}
	return &Catalog{entries: entries}, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entry returns the descriptor for a token id.
func (c *Catalog) Entry(id int) (Descriptor, bool) {
	if id < 0 || id >= len(c.entries) {
		return Descriptor{}, false
	}
	return c.entries[id], true
}

// Head returns the first min(n, Len()) descriptors.
func (c *Catalog) Head(n int) []Descriptor {
	n = max(0, min(n, len(c.entries)))
	out := make([]Descriptor, n)
	copy(out, c.entries[:n])
	return out
}

// Entries returns a copy of every descriptor.
func (c *Catalog) Entries() []Descriptor {
	return c.Head(len(c.entries))
}

// Source returns where the catalog was loaded from.
func (c *Catalog) Source() string {
	return c.source
}

// Stale reports whether a remote source was unreachable and a cached copy was used.
func (c *Catalog) Stale() bool {
	return c.stale
}
