package dapp

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/pharos-avatars/internal/metrics"
	"github.com/mrz1836/pharos-avatars/internal/nft"
)

func snapshot(counter int, records ...nft.Record) *nft.Snapshot {
	return &nft.Snapshot{Records: records, Counter: counter}
}

func TestCommitDiscardsSuperseded(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	assert.Nil(t, s.Snapshot())

	older := s.Begin()
	newer := s.Begin()

	require.True(t, s.Commit(newer, snapshot(2)))
	assert.False(t, s.Commit(older, snapshot(1)), "stale refresh must not overwrite")

	got := s.Snapshot()
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Counter)
	assert.Equal(t, uint64(newer), got.Generation)

	assert.False(t, s.Commit(newer, snapshot(3)), "a generation commits once")
	assert.False(t, s.Commit(s.Begin(), nil))
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	in := snapshot(1, nft.Record{IsMintable: true})
	require.True(t, s.Commit(s.Begin(), in))

	in.Records[0].IsMintable = false
	r, ok := s.Record(0)
	require.True(t, ok)
	assert.True(t, r.IsMintable)

	out := s.Snapshot()
	out.Records[0].IsMinted = true
	r, _ = s.Record(0)
	assert.False(t, r.IsMinted)

	_, ok = s.Record(5)
	assert.False(t, ok)
}

func TestCommitPublishesMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	s := NewStore(m)
	require.True(t, s.Commit(s.Begin(), snapshot(1,
		nft.Record{IsMinted: true},
		nft.Record{IsMintable: true},
		nft.Record{IsMintable: true},
		nft.Record{},
	)))

	count, err := testutil.GatherAndCount(m.Registry(), "avatars_gallery_tokens")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	assert.Equal(t, StatusNone, s.Status().Kind)

	s.SetStatus(StatusError, "insufficient balance")
	st := s.Status()
	assert.Equal(t, StatusError, st.Kind)
	assert.Equal(t, "insufficient balance", st.Message)
	assert.False(t, st.At.IsZero())

	s.SetStatus(StatusSuccess, "Minted token #3")
	assert.Equal(t, StatusSuccess, s.Status().Kind)
	assert.Equal(t, "Minted token #3", s.Status().Message)
}

func TestConcurrentRefreshes(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen := s.Begin()
			s.Commit(gen, snapshot(i))
		}()
	}
	wg.Wait()

	got := s.Snapshot()
	require.NotNil(t, got)
	assert.Equal(t, uint64(20), got.Generation)
}
