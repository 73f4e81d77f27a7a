// Package nft merges the metadata catalog with on-chain token state: the
// status aggregator builds the gallery, the resolver finds an account's tokens.
package nft

import (
	"time"

	"github.com/mrz1836/pharos-avatars/internal/catalog"
	"github.com/mrz1836/pharos-avatars/internal/gateway"
)

// State is the display state of a token.
type State string

// Display states. Exactly one holds per record.
const (
	StateMinted   State = "minted"
	StateMintable State = "mintable"
	StateUnknown  State = "unknown"
)

// Record is a catalog entry with its mint state.
type Record struct {
	catalog.Descriptor

	IsMinted   bool   `json:"isMinted"`
	IsMintable bool   `json:"isMintable"`
	TokenURI   string `json:"tokenUri,omitempty"`
	Error      string `json:"error,omitempty"`
}

// State returns the record's display state.
func (r Record) State() State {
	switch {
	case r.IsMinted:
		return StateMinted
	case r.IsMintable:
		return StateMintable
	default:
		return StateUnknown
	}
}

// MintedRecord builds a record for a token known to exist.
func MintedRecord(d catalog.Descriptor, uri string) Record {
	return Record{Descriptor: d, IsMinted: true, TokenURI: uri}
}

// recordFromProbe maps a probe outcome onto a record. A failed query is
// neither minted nor mintable.
func recordFromProbe(d catalog.Descriptor, probe gateway.TokenProbe) Record {
	switch probe.Status {
	case gateway.Minted:
		return MintedRecord(d, probe.URI)
	case gateway.NotMinted:
		return Record{Descriptor: d, IsMintable: true}
	default:
		r := Record{Descriptor: d}
		if probe.Err != nil {
			r.Error = probe.Err.Error()
		}
		return r
	}
}

// Snapshot is one complete gallery refresh.
type Snapshot struct {
	Records     []Record  `json:"records"`
	Counter     int       `json:"mintCounter"`
	RefreshedAt time.Time `json:"refreshedAt"`
	Generation  uint64    `json:"generation"`
}

// Counts tallies records by state.
func (s *Snapshot) Counts() (minted, mintable, unknown int) {
	for _, r := range s.Records {
		switch r.State() {
		case StateMinted:
			minted++
		case StateMintable:
			mintable++
		default:
			unknown++
		}
	}
	return minted, mintable, unknown
}

// Record returns the record for a token id.
func (s *Snapshot) Record(id int) (Record, bool) {
	if id < 0 || id >= len(s.Records) {
		return Record{}, false
	}
	return s.Records[id], true
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Records = append([]Record(nil), s.Records...)
	return &out
}
