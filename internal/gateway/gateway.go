// Package gateway is the client's view of the collection contract: existence
// probes, the mint counter, balances and mint transactions. Reads and writes
// go through the wallet's node connection for the active chain.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/metrics"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

const (
	// DefaultPollInterval is how often WaitMined checks for a receipt.
	DefaultPollInterval = 2 * time.Second

	// gasHeadroomPercent is added on top of the node's gas estimate.
	gasHeadroomPercent = 20
)

// Wallet is the provider surface the gateway needs.
type Wallet interface {
	Backend(ctx context.Context) (chain.Backend, error)
	ChainID(ctx context.Context) (int64, error)
	SignTx(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error)
}

// LogWriter is the logging surface the gateway needs.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// TokenProbe is the result of checking whether a token exists.
type TokenProbe struct {
	TokenID int
	Status  ProbeStatus
	URI     string
	Err     error
}

// OwnerProbe is the result of looking up a token's owner.
type OwnerProbe struct {
	TokenID int
	Status  ProbeStatus
	Owner   common.Address
	Err     error
}

// Gateway talks to one deployed collection contract.
type Gateway struct {
	contract     common.Address
	wallet       Wallet
	metrics      *metrics.Metrics
	logger       LogWriter
	pollInterval time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records call counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l LogWriter) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// New creates a gateway for contract. A nil wallet makes every call fail
// with ErrProviderAbsent.
func New(contract common.Address, wallet Wallet, opts ...Option) *Gateway {
	g := &Gateway{
		contract:     contract,
		wallet:       wallet,
		logger:       nopLogger{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MintCounter reads tokenCounter, the number of tokens minted so far.
func (g *Gateway) MintCounter(ctx context.Context) (int, error) {
	out, err := g.call(ctx, methodTokenCounter)
	if err != nil {
		return 0, transportError(err)
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsInt64() || n.Sign() < 0 {
		return 0, avatarerr.WithDetails(avatarerr.ErrNetworkError, map[string]string{
			"method": methodTokenCounter,
			"reason": "malformed counter",
		})
	}
	return int(n.Int64()), nil
}

// ProbeToken checks tokenURI for id. A revert or an empty URI means the
// token does not exist. Any other failure is QueryFailed.
func (g *Gateway) ProbeToken(ctx context.Context, id int) TokenProbe {
	probe := TokenProbe{TokenID: id}
	out, err := g.call(ctx, methodTokenURI, big.NewInt(int64(id)))
	switch {
	case err != nil:
		probe.Status, probe.Err = classify(err), err
	default:
		uri, _ := out[0].(string)
		probe.URI = uri
		probe.Status = Minted
		if uri == "" {
			probe.Status = NotMinted
		}
	}
	if probe.Status == QueryFailed {
		g.logger.Debug("probe token %d failed: %v", id, err)
	}
	g.metrics.RecordProbe(metrics.ProbeTokenURI, probe.Status.String())
	return probe
}

// ProbeOwner checks ownerOf for id. A revert or the zero address means the
// token does not exist.
func (g *Gateway) ProbeOwner(ctx context.Context, id int) OwnerProbe {
	probe := OwnerProbe{TokenID: id}
	out, err := g.call(ctx, methodOwnerOf, big.NewInt(int64(id)))
	switch {
	case err != nil:
		probe.Status, probe.Err = classify(err), err
	default:
		owner, _ := out[0].(common.Address)
		probe.Owner = owner
		probe.Status = Minted
		if owner == (common.Address{}) {
			probe.Status = NotMinted
		}
	}
	if probe.Status == QueryFailed {
		g.logger.Debug("probe owner of %d failed: %v", id, err)
	}
	g.metrics.RecordProbe(metrics.ProbeOwner, probe.Status.String())
	return probe
}

// TokenURI returns the metadata URI of a minted token, or ErrNotMinted.
func (g *Gateway) TokenURI(ctx context.Context, id int) (string, error) {
	probe := g.ProbeToken(ctx, id)
	switch probe.Status {
	case Minted:
		return probe.URI, nil
	case NotMinted:
		return "", notMinted(id)
	default:
		return "", transportError(probe.Err)
	}
}

// OwnerOf returns the owner of a minted token, or ErrNotMinted.
func (g *Gateway) OwnerOf(ctx context.Context, id int) (common.Address, error) {
	probe := g.ProbeOwner(ctx, id)
	switch probe.Status {
	case Minted:
		return probe.Owner, nil
	case NotMinted:
		return common.Address{}, notMinted(id)
	default:
		return common.Address{}, transportError(probe.Err)
	}
}

// Balance returns the native balance of addr in wei.
func (g *Gateway) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	backend, err := g.backend(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	balance, err := backend.BalanceAt(ctx, addr, nil)
	g.metrics.RecordRPCCall("eth_getBalance", time.Since(start), err)
	if err != nil {
		return nil, transportError(err)
	}
	return balance, nil
}

// SubmitMint builds a mintNFT(tokenURI) call paying value, has the wallet
// sign it and broadcasts it. Use WaitMined to await confirmation.
func (g *Gateway) SubmitMint(ctx context.Context, from common.Address, tokenURI string, value *big.Int) (*types.Transaction, error) {
	backend, err := g.backend(ctx)
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(methodMint, tokenURI)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", methodMint, err)
	}

	tx, err := g.buildTx(ctx, backend, from, value, data)
	if err != nil {
		return nil, err
	}

	signed, err := g.wallet.SignTx(ctx, from, tx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = backend.SendTransaction(ctx, signed)
	g.metrics.RecordRPCCall("eth_sendRawTransaction", time.Since(start), err)
	if err != nil {
		return nil, transportError(err)
	}
	g.logger.Debug("mint submitted: tx=%s uri=%s", signed.Hash().Hex(), tokenURI)
	return signed, nil
}

// buildTx fills in nonce, gas and fees. London chains get a dynamic-fee
// transaction; others a legacy one.
func (g *Gateway) buildTx(ctx context.Context, backend chain.Backend, from common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	chainID, err := g.wallet.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, transportError(fmt.Errorf("getting nonce: %w", err))
	}

	msg := ethereum.CallMsg{From: from, To: &g.contract, Value: value, Data: data}
	start := time.Now()
	gas, err := backend.EstimateGas(ctx, msg)
	g.metrics.RecordRPCCall("eth_estimateGas", time.Since(start), err)
	if err != nil {
		if IsRevert(err) {
			return nil, avatarerr.WithCause(avatarerr.ErrTxReverted, err)
		}
		return nil, transportError(fmt.Errorf("estimating gas: %w", err))
	}
	gas += gas * gasHeadroomPercent / 100

	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, transportError(fmt.Errorf("getting head: %w", err))
	}

	if head.BaseFee != nil {
		tip, err := backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, transportError(fmt.Errorf("getting tip cap: %w", err))
		}
		feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(chainID),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &g.contract,
			Value:     value,
			Data:      data,
		}), nil
	}

	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, transportError(fmt.Errorf("getting gas price: %w", err))
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &g.contract,
		Value:    value,
		Data:     data,
	}), nil
}

// WaitMined polls for the receipt of tx until it is mined or ctx ends.
// A failed receipt returns ErrTxReverted along with the receipt.
func (g *Gateway) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	backend, err := g.backend(ctx)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil && receipt.Status == types.ReceiptStatusFailed:
			return receipt, avatarerr.WithDetails(avatarerr.ErrTxReverted, map[string]string{
				"tx": tx.Hash().Hex(),
			})
		case err == nil:
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			g.logger.Debug("receipt lookup for %s failed: %v", tx.Hash().Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// MintedTokenID extracts the token id from the Transfer event in a mint receipt.
func (g *Gateway) MintedTokenID(receipt *types.Receipt) (int, bool) {
	event := contractABI.Events[eventTransfer]
	for _, l := range receipt.Logs {
		if l.Address != g.contract || len(l.Topics) != 4 || l.Topics[0] != event.ID {
			continue
		}
		if l.Topics[1] != (common.Hash{}) {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[3].Bytes())
		if id.IsInt64() {
			return int(id.Int64()), true
		}
	}
	return 0, false
}

// TransferredTo returns token ids ever transferred to addr since fromBlock,
// ascending and without duplicates. Callers confirm current ownership.
func (g *Gateway) TransferredTo(ctx context.Context, addr common.Address, fromBlock uint64) ([]int, error) {
	backend, err := g.backend(ctx)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{g.contract},
		Topics: [][]common.Hash{
			{contractABI.Events[eventTransfer].ID},
			nil,
			{common.BytesToHash(addr.Bytes())},
		},
	}

	start := time.Now()
	logs, err := backend.FilterLogs(ctx, query)
	g.metrics.RecordRPCCall("eth_getLogs", time.Since(start), err)
	if err != nil {
		return nil, transportError(err)
	}

	seen := make(map[int]struct{})
	ids := make([]int, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) != 4 || l.Removed {
			continue
		}
		n := new(big.Int).SetBytes(l.Topics[3].Bytes())
		if !n.IsInt64() {
			continue
		}
		id := int(n.Int64())
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (g *Gateway) backend(ctx context.Context) (chain.Backend, error) {
	if g.wallet == nil {
		return nil, avatarerr.ErrProviderAbsent
	}
	return g.wallet.Backend(ctx)
}

// call packs, executes and unpacks a read-only contract method.
func (g *Gateway) call(ctx context.Context, method string, args ...any) ([]any, error) {
	backend, err := g.backend(ctx)
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	start := time.Now()
	raw, err := backend.CallContract(ctx, ethereum.CallMsg{To: &g.contract, Data: data}, nil)
	g.metrics.RecordRPCCall(method, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoContract
	}

	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decoding %s: empty result", method) //nolint:err113 // carries the method name
	}
	return out, nil
}

func notMinted(id int) error {
	return avatarerr.WithDetails(avatarerr.ErrNotMinted, map[string]string{"token_id": fmt.Sprint(id)})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
