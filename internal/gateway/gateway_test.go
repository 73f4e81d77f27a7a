package gateway

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/metrics"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

const testChainID = 688688

var (
	errTimeout = errors.New("i/o timeout")
	contract   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	alice      = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type revertError struct{}

func (revertError) Error() string  { return "execution reverted: ERC721: invalid token ID" }
func (revertError) ErrorCode() int { return 3 }

// fakeBackend serves the collection contract from in-memory maps.
type fakeBackend struct {
	chain.Backend

	mu           sync.Mutex
	uris         map[int]string
	owners       map[int]common.Address
	counter      int64
	transport    map[int]error
	callErr      error
	noCode       bool
	baseFee      *big.Int
	estimateErr  error
	sent         []*types.Transaction
	pendingPolls int
	status       uint64
	logs         []types.Log
	lastQuery    ethereum.FilterQuery
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		uris:      map[int]string{},
		owners:    map[int]common.Address{},
		transport: map[int]error{},
		status:    types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.callErr != nil {
		return nil, f.callErr
	}
	if f.noCode {
		return nil, nil
	}
	method, err := contractABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	if method.Name == methodTokenCounter {
		return method.Outputs.Pack(big.NewInt(f.counter))
	}

	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	id := int(args[0].(*big.Int).Int64())
	if err := f.transport[id]; err != nil {
		return nil, err
	}
	switch method.Name {
	case methodTokenURI:
		uri, ok := f.uris[id]
		if !ok {
			return nil, revertError{}
		}
		return method.Outputs.Pack(uri)
	default:
		owner, ok := f.owners[id]
		if !ok {
			return nil, revertError{}
		}
		return method.Outputs.Pack(owner)
	}
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(5e15), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 100000, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(10), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(50), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: f.status}, nil
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.lastQuery = q
	return f.logs, nil
}

type fakeWallet struct {
	backend *fakeBackend
	key     *ecdsa.PrivateKey
	signErr error
}

func (w *fakeWallet) Backend(context.Context) (chain.Backend, error) { return w.backend, nil }

func (w *fakeWallet) ChainID(context.Context) (int64, error) { return testChainID, nil }

func (w *fakeWallet) SignTx(_ context.Context, _ common.Address, tx *types.Transaction) (*types.Transaction, error) {
	if w.signErr != nil {
		return nil, w.signErr
	}
	return types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(testChainID)), w.key)
}

func newTestGateway(t *testing.T) (*Gateway, *fakeBackend, *fakeWallet) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := newFakeBackend()
	w := &fakeWallet{backend: backend, key: key}
	return New(contract, w, WithMetrics(metrics.New()), WithPollInterval(time.Millisecond)), backend, w
}

func TestProbeToken(t *testing.T) {
	t.Parallel()

	g, backend, _ := newTestGateway(t)
	backend.uris[0] = "ipfs://avatars/0.json"
	backend.uris[3] = ""
	backend.transport[2] = errTimeout

	tests := []struct {
		name   string
		id     int
		status ProbeStatus
		uri    string
	}{
		{"minted", 0, Minted, "ipfs://avatars/0.json"},
		{"reverted", 1, NotMinted, ""},
		{"transport failure", 2, QueryFailed, ""},
		{"empty uri", 3, NotMinted, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			probe := g.ProbeToken(context.Background(), tt.id)
			assert.Equal(t, tt.id, probe.TokenID)
			assert.Equal(t, tt.status, probe.Status)
			assert.Equal(t, tt.uri, probe.URI)
			if tt.status == QueryFailed {
				require.ErrorIs(t, probe.Err, errTimeout)
			}
		})
	}
}

func TestProbeTokenNoContract(t *testing.T) {
	t.Parallel()

	g, backend, _ := newTestGateway(t)
	backend.noCode = true

	probe := g.ProbeToken(context.Background(), 0)
	assert.Equal(t, QueryFailed, probe.Status)
	require.ErrorIs(t, probe.Err, ErrNoContract)
}

func TestProbeOwnerRecordsMetrics(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := newFakeBackend()
	backend.uris[0] = "ipfs://avatars/0.json"
	backend.owners[0] = alice
	backend.owners[1] = common.Address{}
	backend.transport[3] = errTimeout

	m := metrics.New()
	g := New(contract, &fakeWallet{backend: backend, key: key}, WithMetrics(m))

	ctx := context.Background()
	assert.Equal(t, Minted, g.ProbeOwner(ctx, 0).Status)
	assert.Equal(t, NotMinted, g.ProbeOwner(ctx, 1).Status)
	assert.Equal(t, NotMinted, g.ProbeOwner(ctx, 2).Status)
	assert.Equal(t, QueryFailed, g.ProbeOwner(ctx, 3).Status)
	assert.Equal(t, Minted, g.ProbeToken(ctx, 0).Status)

	expected := `
# HELP avatars_token_probes_total Token status probes by kind and outcome.
# TYPE avatars_token_probes_total counter
avatars_token_probes_total{kind="owner",status="minted"} 1
avatars_token_probes_total{kind="owner",status="not_minted"} 2
avatars_token_probes_total{kind="owner",status="query_failed"} 1
avatars_token_probes_total{kind="token_uri",status="minted"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "avatars_token_probes_total"))
}

func TestTokenURIAndOwnerOf(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, backend, _ := newTestGateway(t)
	backend.uris[4] = "ipfs://avatars/4.json"
	backend.owners[4] = alice
	backend.owners[6] = common.Address{}
	backend.transport[5] = errTimeout

	uri, err := g.TokenURI(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://avatars/4.json", uri)

	owner, err := g.OwnerOf(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	_, err = g.TokenURI(ctx, 9)
	require.ErrorIs(t, err, avatarerr.ErrNotMinted)
	_, err = g.OwnerOf(ctx, 6)
	require.ErrorIs(t, err, avatarerr.ErrNotMinted)

	_, err = g.TokenURI(ctx, 5)
	require.ErrorIs(t, err, avatarerr.ErrNetworkError)
	require.ErrorIs(t, err, errTimeout)
}

func TestMintCounter(t *testing.T) {
	t.Parallel()

	g, backend, _ := newTestGateway(t)
	backend.counter = 42

	n, err := g.MintCounter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	backend.callErr = errTimeout
	_, err = g.MintCounter(context.Background())
	require.ErrorIs(t, err, avatarerr.ErrNetworkError)
}

func TestNoProvider(t *testing.T) {
	t.Parallel()

	g := New(contract, nil)
	_, err := g.MintCounter(context.Background())
	require.ErrorIs(t, err, avatarerr.ErrProviderAbsent)

	probe := g.ProbeToken(context.Background(), 0)
	assert.Equal(t, QueryFailed, probe.Status)
	require.ErrorIs(t, probe.Err, avatarerr.ErrProviderAbsent)

	_, err = g.Balance(context.Background(), alice)
	require.ErrorIs(t, err, avatarerr.ErrProviderAbsent)
}

func TestSubmitMintDynamicFee(t *testing.T) {
	t.Parallel()

	g, backend, w := newTestGateway(t)
	backend.baseFee = big.NewInt(10)
	from := crypto.PubkeyToAddress(w.key.PublicKey)
	price := big.NewInt(1e16)

	tx, err := g.SubmitMint(context.Background(), from, "ipfs://avatars/7.json", price)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, tx.Hash(), backend.sent[0].Hash())

	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(120000), tx.Gas())
	assert.Equal(t, big.NewInt(2), tx.GasTipCap())
	assert.Equal(t, big.NewInt(22), tx.GasFeeCap())
	assert.Equal(t, price, tx.Value())
	assert.Equal(t, contract, *tx.To())

	args, err := contractABI.Methods[methodMint].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "ipfs://avatars/7.json", args[0])

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(testChainID)), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)
}

func TestSubmitMintLegacy(t *testing.T) {
	t.Parallel()

	g, _, w := newTestGateway(t)
	tx, err := g.SubmitMint(context.Background(), crypto.PubkeyToAddress(w.key.PublicKey), "u", big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Equal(t, big.NewInt(50), tx.GasPrice())
}

func TestSubmitMintFailures(t *testing.T) {
	t.Parallel()

	t.Run("estimate reverts", func(t *testing.T) {
		t.Parallel()
		g, backend, _ := newTestGateway(t)
		backend.estimateErr = revertError{}
		_, err := g.SubmitMint(context.Background(), alice, "u", big.NewInt(1))
		require.ErrorIs(t, err, avatarerr.ErrTxReverted)
		assert.Empty(t, backend.sent)
	})

	t.Run("signing declined", func(t *testing.T) {
		t.Parallel()
		g, backend, w := newTestGateway(t)
		w.signErr = avatarerr.ErrUserRejected
		_, err := g.SubmitMint(context.Background(), alice, "u", big.NewInt(1))
		require.ErrorIs(t, err, avatarerr.ErrUserRejected)
		assert.Empty(t, backend.sent)
	})
}

func TestWaitMined(t *testing.T) {
	t.Parallel()

	tx := types.NewTx(&types.LegacyTx{Nonce: 1, To: &contract, Gas: 1, GasPrice: big.NewInt(1)})

	t.Run("mined after polling", func(t *testing.T) {
		t.Parallel()
		g, backend, _ := newTestGateway(t)
		backend.pendingPolls = 3
		receipt, err := g.WaitMined(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, tx.Hash(), receipt.TxHash)
	})

	t.Run("reverted", func(t *testing.T) {
		t.Parallel()
		g, backend, _ := newTestGateway(t)
		backend.status = types.ReceiptStatusFailed
		receipt, err := g.WaitMined(context.Background(), tx)
		require.ErrorIs(t, err, avatarerr.ErrTxReverted)
		assert.NotNil(t, receipt)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		g, backend, _ := newTestGateway(t)
		backend.pendingPolls = 1 << 30
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := g.WaitMined(ctx, tx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func transferLog(from, to common.Address, id int64) types.Log {
	return types.Log{
		Address: contract,
		Topics: []common.Hash{
			contractABI.Events[eventTransfer].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(id)),
		},
	}
}

func TestTransferredTo(t *testing.T) {
	t.Parallel()

	g, backend, _ := newTestGateway(t)
	removed := transferLog(common.Address{}, alice, 9)
	removed.Removed = true
	backend.logs = []types.Log{
		transferLog(common.Address{}, alice, 5),
		transferLog(common.Address{}, alice, 2),
		transferLog(alice, alice, 5),
		removed,
	}

	ids, err := g.TransferredTo(context.Background(), alice, 100)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, ids)

	q := backend.lastQuery
	assert.Equal(t, big.NewInt(100), q.FromBlock)
	assert.Equal(t, []common.Address{contract}, q.Addresses)
	require.Len(t, q.Topics, 3)
	assert.Nil(t, q.Topics[1])
	assert.Equal(t, common.BytesToHash(alice.Bytes()), q.Topics[2][0])
}

func TestMintedTokenID(t *testing.T) {
	t.Parallel()

	g, _, _ := newTestGateway(t)

	id, ok := g.MintedTokenID(&types.Receipt{Logs: []*types.Log{
		ptr(transferLog(alice, alice, 3)),
		ptr(transferLog(common.Address{}, alice, 11)),
	}})
	assert.True(t, ok)
	assert.Equal(t, 11, id)

	_, ok = g.MintedTokenID(&types.Receipt{})
	assert.False(t, ok)
}

func TestIsRevert(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRevert(revertError{}))
	assert.True(t, IsRevert(errors.New("VM Exception: Revert")))
	assert.False(t, IsRevert(errTimeout))
	assert.False(t, IsRevert(nil))
}

func ptr[T any](v T) *T { return &v }
