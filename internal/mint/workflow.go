// Package mint runs the mint flow: precondition checks, network switch,
// submission, confirmation and the follow-up refresh.
package mint

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/dapp"
	"github.com/mrz1836/pharos-avatars/internal/metrics"
	"github.com/mrz1836/pharos-avatars/internal/nft"
	"github.com/mrz1836/pharos-avatars/internal/session"
	"github.com/mrz1836/pharos-avatars/internal/wallet"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// Gateway submits and confirms mint transactions.
type Gateway interface {
	SubmitMint(ctx context.Context, from common.Address, tokenURI string, value *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	MintedTokenID(receipt *types.Receipt) (int, bool)
}

// Session is the wallet connection the workflow acts for.
type Session interface {
	State() session.State
	EnsureNetwork(ctx context.Context) error
	RefreshBalance(ctx context.Context) (session.State, error)
}

// Refresher rebuilds the gallery snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (*nft.Snapshot, error)
}

// LogWriter is the logging surface the workflow needs.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the fixed mint parameters.
type Config struct {
	// Price is the mint price in wei.
	Price *big.Int
	// BaseURI prefixes "<id>.json" to form a new token's URI.
	BaseURI  string
	Eligible int
}

// Result describes a confirmed mint.
type Result struct {
	TokenID  int         `json:"tokenId"`
	TokenURI string      `json:"tokenUri"`
	TxHash   common.Hash `json:"txHash"`
	// MintedTokenID is the id the contract assigned according to the receipt's
	// Transfer event. Nil when the receipt carries no mint event.
	MintedTokenID *int           `json:"mintedTokenId,omitempty"`
	Block         *big.Int       `json:"block,omitempty"`
	Balance       string         `json:"balance,omitempty"`
	Refreshed     bool           `json:"galleryRefreshed"`
	Receipt       *types.Receipt `json:"-"`
}

// IDMismatch reports whether the contract minted a different id than requested.
func (r *Result) IDMismatch() bool {
	return r.MintedTokenID != nil && *r.MintedTokenID != r.TokenID
}

// Workflow mints one token at a time.
type Workflow struct {
	gw       Gateway
	sess     Session
	agg      Refresher
	store    *dapp.Store
	cfg      Config
	metrics  *metrics.Metrics
	logger   LogWriter
	inFlight atomic.Bool
}

// NewWorkflow wires a workflow. m and logger may be nil.
func NewWorkflow(gw Gateway, sess Session, agg Refresher, store *dapp.Store, cfg Config, m *metrics.Metrics, logger LogWriter) *Workflow {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Workflow{gw: gw, sess: sess, agg: agg, store: store, cfg: cfg, metrics: m, logger: logger}
}

// TokenURI is the metadata URI a freshly minted token is given.
func TokenURI(baseURI string, tokenID int) string {
	return baseURI + strconv.Itoa(tokenID) + ".json"
}

// InFlight reports whether a mint is pending.
func (w *Workflow) InFlight() bool {
	return w.inFlight.Load()
}

// Check returns the first reason tokenID cannot be minted for state, or nil.
// It makes no remote calls.
func (w *Workflow) Check(tokenID int, state session.State) error {
	if !state.Connected {
		return avatarerr.ErrNotConnected
	}
	if tokenID < 0 || tokenID >= w.cfg.Eligible {
		return avatarerr.WithDetails(avatarerr.ErrTokenOutOfRange, map[string]string{
			"token_id": strconv.Itoa(tokenID),
			"range":    fmt.Sprintf("0-%d", w.cfg.Eligible-1),
		})
	}
	if rec, ok := w.store.Record(tokenID); ok && rec.IsMinted {
		return avatarerr.WithDetails(avatarerr.ErrAlreadyMinted, map[string]string{
			"token_id": strconv.Itoa(tokenID),
		})
	}
	if !chain.Covers(state.BalanceWei, w.cfg.Price) {
		available := state.Balance
		if state.BalanceWei == nil {
			available = "unknown"
		}
		return avatarerr.WithDetails(avatarerr.ErrInsufficientFunds, map[string]string{
			"required":  chain.FormatAmount(w.cfg.Price, chain.NativeDecimals),
			"available": available,
		})
	}
	return nil
}

// CanMint reports whether the mint action for rec is enabled.
func (w *Workflow) CanMint(rec nft.Record, state session.State) bool {
	return rec.IsMintable && !w.InFlight() && w.Check(rec.TokenID, state) == nil
}

// Mint mints tokenID for the connected account and waits for confirmation.
// Every outcome is reported on the store's status banner.
func (w *Workflow) Mint(ctx context.Context, tokenID int) (*Result, error) {
	state := w.sess.State()
	if err := w.Check(tokenID, state); err != nil {
		return nil, w.fail(tokenID, err)
	}

	if !w.inFlight.CompareAndSwap(false, true) {
		return nil, w.fail(tokenID, avatarerr.ErrMintInProgress)
	}
	defer w.inFlight.Store(false)

	w.store.SetStatus(dapp.StatusInfo, fmt.Sprintf("Minting token #%d...", tokenID))

	if err := w.sess.EnsureNetwork(ctx); err != nil {
		return nil, w.fail(tokenID, err)
	}

	uri := TokenURI(w.cfg.BaseURI, tokenID)
	tx, err := w.gw.SubmitMint(ctx, state.Address, uri, w.cfg.Price)
	if err != nil {
		return nil, w.fail(tokenID, wallet.MapError(err))
	}
	w.store.SetStatus(dapp.StatusInfo, fmt.Sprintf("Waiting for %s to be mined...", tx.Hash().Hex()))

	receipt, err := w.gw.WaitMined(ctx, tx)
	if err != nil {
		return nil, w.fail(tokenID, err)
	}

	result := &Result{TokenID: tokenID, TokenURI: uri, TxHash: tx.Hash(), Receipt: receipt, Block: receipt.BlockNumber}
	if id, ok := w.gw.MintedTokenID(receipt); ok {
		result.MintedTokenID = &id
	} else {
		w.logger.Debug("receipt %s has no mint event", tx.Hash().Hex())
	}
	w.refreshAfterMint(ctx, result)

	w.metrics.RecordMint(metrics.ResultOK)
	if result.IDMismatch() {
		// The URI names the requested id, so the new token's metadata points
		// at another avatar.
		w.logger.Error("requested token %d but the contract minted %d tx=%s", tokenID, *result.MintedTokenID, tx.Hash().Hex())
		w.store.SetStatus(dapp.StatusInfo, fmt.Sprintf("Minted token #%d in %s with the metadata of #%d",
			*result.MintedTokenID, tx.Hash().Hex(), tokenID))
		return result, nil
	}
	w.store.SetStatus(dapp.StatusSuccess, fmt.Sprintf("Minted token #%d in %s", tokenID, tx.Hash().Hex()))
	w.logger.Debug("minted token %d tx=%s", tokenID, tx.Hash().Hex())
	return result, nil
}

// refreshAfterMint reloads balance and gallery. Failures here do not undo
// a confirmed mint; they are logged and reflected in the result.
func (w *Workflow) refreshAfterMint(ctx context.Context, result *Result) {
	if state, err := w.sess.RefreshBalance(ctx); err != nil {
		w.logger.Error("balance refresh after mint failed: %v", err)
	} else {
		result.Balance = state.Balance
	}

	if w.agg == nil {
		return
	}
	gen := w.store.Begin()
	snap, err := w.agg.Refresh(ctx)
	if err != nil {
		w.logger.Error("gallery refresh after mint failed: %v", err)
		return
	}
	result.Refreshed = w.store.Commit(gen, snap)
}

func (w *Workflow) fail(tokenID int, err error) error {
	w.metrics.RecordMint(avatarerr.Code(err))
	w.store.SetStatus(dapp.StatusError, fmt.Sprintf("Mint of token #%d failed: %s", tokenID, err.Error()))
	w.logger.Error("mint of token %d failed: %v", tokenID, err)
	return err
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
