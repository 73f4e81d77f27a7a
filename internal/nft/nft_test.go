package nft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/pharos-avatars/internal/catalog"
	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/gateway"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

var (
	errTimeout = errors.New("i/o timeout")
	alice      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	bob        = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type fakeGateway struct {
	mu         sync.Mutex
	uris       map[int]string
	owners     map[int]common.Address
	failing    map[int]bool
	counter    int
	counterErr error
	transfers  []int
	probed     []int
	inFlight   atomic.Int32
	maxFlight  atomic.Int32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{uris: map[int]string{}, owners: map[int]common.Address{}, failing: map[int]bool{}}
}

func (f *fakeGateway) track() func() {
	n := f.inFlight.Add(1)
	for {
		old := f.maxFlight.Load()
		if n <= old || f.maxFlight.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeGateway) ProbeToken(_ context.Context, id int) gateway.TokenProbe {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, id)
	if f.failing[id] {
		return gateway.TokenProbe{TokenID: id, Status: gateway.QueryFailed, Err: errTimeout}
	}
	if uri, ok := f.uris[id]; ok {
		return gateway.TokenProbe{TokenID: id, Status: gateway.Minted, URI: uri}
	}
	return gateway.TokenProbe{TokenID: id, Status: gateway.NotMinted}
}

func (f *fakeGateway) ProbeOwner(_ context.Context, id int) gateway.OwnerProbe {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, id)
	if f.failing[id] {
		return gateway.OwnerProbe{TokenID: id, Status: gateway.QueryFailed, Err: errTimeout}
	}
	if owner, ok := f.owners[id]; ok {
		return gateway.OwnerProbe{TokenID: id, Status: gateway.Minted, Owner: owner}
	}
	return gateway.OwnerProbe{TokenID: id, Status: gateway.NotMinted}
}

func (f *fakeGateway) MintCounter(context.Context) (int, error) {
	return f.counter, f.counterErr
}

func (f *fakeGateway) TransferredTo(context.Context, common.Address, uint64) ([]int, error) {
	return f.transfers, nil
}

func testCatalog(n int) *catalog.Catalog {
	entries := make([]catalog.Descriptor, n)
	for i := range entries {
		entries[i] = catalog.Descriptor{Name: fmt.Sprintf("Avatar #%d", i), Image: fmt.Sprintf("ipfs://img/%d.png", i)}
	}
	return catalog.New(entries)
}

func TestRefreshScenario(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.uris[0] = "ipfs://meta/0.json"
	gw.uris[2] = "ipfs://meta/2.json"
	gw.counter = 3
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	agg := NewAggregator(gw, testCatalog(3), Options{Eligible: 133, Now: func() time.Time { return now }})
	snap, err := agg.Refresh(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Records, 3)
	states := []State{snap.Records[0].State(), snap.Records[1].State(), snap.Records[2].State()}
	assert.Equal(t, []State{StateMinted, StateMintable, StateMinted}, states)
	for i, r := range snap.Records {
		assert.Equal(t, i, r.TokenID)
		assert.False(t, r.IsMinted && r.IsMintable)
	}
	assert.Equal(t, "ipfs://meta/2.json", snap.Records[2].TokenURI)
	assert.Equal(t, 3, snap.Counter)
	assert.Equal(t, now, snap.RefreshedAt)
}

func TestRefreshEligibleHead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		catalogLen int
		eligible   int
		want       int
	}{
		{200, 133, 133},
		{50, 133, 50},
		{0, 133, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.eligible, tt.catalogLen), func(t *testing.T) {
			t.Parallel()
			gw := newFakeGateway()
			agg := NewAggregator(gw, testCatalog(tt.catalogLen), Options{Eligible: tt.eligible, Concurrency: 8})
			snap, err := agg.Refresh(context.Background())
			require.NoError(t, err)
			assert.Len(t, snap.Records, tt.want)
			assert.Len(t, gw.probed, tt.want)
			assert.Equal(t, tt.want, agg.Eligible())
			for i, r := range snap.Records {
				assert.Equal(t, i, r.TokenID)
			}
		})
	}
}

func TestRefreshQueryFailedIsUnknown(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.uris[1] = "ipfs://meta/1.json"
	gw.failing[1] = true

	snap, err := NewAggregator(gw, testCatalog(2), Options{Eligible: 2}).Refresh(context.Background())
	require.NoError(t, err)

	r := snap.Records[1]
	assert.Equal(t, StateUnknown, r.State())
	assert.False(t, r.IsMintable)
	assert.Contains(t, r.Error, "i/o timeout")

	minted, mintable, unknown := snap.Counts()
	assert.Equal(t, []int{0, 1, 1}, []int{minted, mintable, unknown})
}

func TestRefreshCounterFailureAborts(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.counterErr = avatarerr.WithCause(avatarerr.ErrNetworkError, errTimeout)

	snap, err := NewAggregator(gw, testCatalog(3), Options{Eligible: 3}).Refresh(context.Background())
	require.ErrorIs(t, err, avatarerr.ErrNetworkError)
	assert.Nil(t, snap)
}

func TestRefreshBoundedConcurrency(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	_, err := NewAggregator(gw, testCatalog(40), Options{Eligible: 40, Concurrency: 4}).Refresh(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, gw.maxFlight.Load(), int32(4))
	assert.Len(t, gw.probed, 40)
}

func TestRefreshCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := newFakeGateway()
	limiter := chain.NewRateLimiter(1, 1)
	_, err := NewAggregator(gw, testCatalog(10), Options{Eligible: 10, Limiter: limiter, Endpoint: "rpc"}).Refresh(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOwnedProbe(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.owners[0] = alice
	gw.owners[1] = bob
	gw.owners[3] = alice
	gw.failing[4] = true
	gw.owners[6] = alice // beyond the counter

	r := NewResolver(gw, testCatalog(10), StrategyProbe, 0, Options{Concurrency: 3})
	records, err := r.Owned(context.Background(), alice, 6)
	require.NoError(t, err)

	ids := make([]int, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.TokenID)
		assert.True(t, rec.IsMinted)
		assert.False(t, rec.IsMintable)
		assert.Equal(t, fmt.Sprintf("Avatar #%d", rec.TokenID), rec.Name)
	}
	assert.Equal(t, []int{0, 3}, ids)
	assert.Len(t, gw.probed, 6)
}

func TestOwnedCaseInsensitive(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.owners[0] = common.HexToAddress("0xabcdef0000000000000000000000000000000001")

	r := NewResolver(gw, testCatalog(1), StrategyProbe, 0, Options{})
	records, err := r.Owned(context.Background(), common.HexToAddress("0xABCDEF0000000000000000000000000000000001"), 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestOwnedLogs(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.transfers = []int{1, 4, 9, 50}
	gw.owners[1] = alice
	gw.owners[4] = bob // transferred away since
	gw.owners[9] = alice

	r := NewResolver(gw, testCatalog(20), StrategyLogs, 0, Options{})
	records, err := r.Owned(context.Background(), alice, 12)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].TokenID)
	assert.Equal(t, 9, records[1].TokenID)
	assert.ElementsMatch(t, []int{1, 4, 9}, gw.probed)
}

func TestOwnedEmpty(t *testing.T) {
	t.Parallel()

	r := NewResolver(newFakeGateway(), testCatalog(5), StrategyProbe, 0, Options{})
	records, err := r.Owned(context.Background(), alice, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestSnapshotCloneAndRecord(t *testing.T) {
	t.Parallel()

	s := &Snapshot{Records: []Record{{IsMintable: true}}, Counter: 1}
	c := s.Clone()
	c.Records[0].IsMintable = false

	r, ok := s.Record(0)
	require.True(t, ok)
	assert.True(t, r.IsMintable)
	_, ok = s.Record(1)
	assert.False(t, ok)
	assert.Nil(t, (*Snapshot)(nil).Clone())
}
