// Package session tracks the wallet connection: the connected account, the
// chain it is on and its native balance. A Session is an explicit object owned
// by the caller; it is populated on connect or restore and invalidated on
// disconnect.
package session

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/wallet"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// Phase is the connection lifecycle position.
type Phase int

// Session phases.
const (
	Disconnected Phase = iota
	Connecting
	Connected
	RefreshingBalance
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case RefreshingBalance:
		return "refreshing_balance"
	default:
		return "disconnected"
	}
}

// State is a snapshot of the session.
type State struct {
	Phase      Phase          `json:"-"`
	PhaseName  string         `json:"phase"`
	Address    common.Address `json:"address"`
	Connected  bool           `json:"connected"`
	ChainID    int64          `json:"chain_id"`
	Balance    string         `json:"balance"`
	BalanceWei *big.Int       `json:"balance_wei,omitempty"`
}

// BalanceReader reads native balances.
type BalanceReader interface {
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// LogWriter is the logging surface the session needs.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Session is the wallet connection state machine.
type Session struct {
	mu       sync.Mutex
	provider wallet.Provider
	balances BalanceReader
	target   wallet.ChainParams
	logger   LogWriter
	state    State
}

// New creates a disconnected session. target is the network the dApp
// requires; it is added to the wallet when the wallet does not know it.
// A nil provider means no wallet is installed.
func New(provider wallet.Provider, balances BalanceReader, target wallet.ChainParams, logger LogWriter) *Session {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Session{
		provider: provider,
		balances: balances,
		target:   target,
		logger:   logger,
	}
}

// Target returns the required network parameters.
func (s *Session) Target() wallet.ChainParams {
	return s.target
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Address returns the connected account or ErrNotConnected.
func (s *Session) Address() (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Connected {
		return common.Address{}, avatarerr.ErrNotConnected
	}
	return s.state.Address, nil
}

// Restore connects without prompting when the wallet already authorized an
// account. Otherwise the session stays disconnected.
func (s *Session) Restore(ctx context.Context) (State, error) {
	if s.provider == nil {
		return s.State(), avatarerr.ErrProviderAbsent
	}

	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		return s.State(), wallet.MapError(err)
	}
	if len(accounts) == 0 {
		return s.State(), nil
	}

	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		return s.State(), wallet.MapError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Phase: Connected, Address: accounts[0], Connected: true, ChainID: chainID}
	s.logger.Debug("restored session for %s on chain %d", accounts[0].Hex(), chainID)
	return s.snapshotLocked(), nil
}

// Connect requests account access. On success the session moves to the
// target network and loads the balance; those follow-up errors are returned
// with the session left connected. An already connected session (restored
// from a live authorization) skips the request but still switches and refreshes.
func (s *Session) Connect(ctx context.Context) (State, error) {
	if s.provider == nil {
		return s.State(), avatarerr.ErrProviderAbsent
	}

	s.mu.Lock()
	switch s.state.Phase {
	case Connecting:
		s.mu.Unlock()
		return s.State(), avatarerr.WithDetails(avatarerr.ErrInvalidInput, map[string]string{
			"reason": "connection request already pending",
		})
	case RefreshingBalance:
		state := s.snapshotLocked()
		s.mu.Unlock()
		return state, nil
	case Connected:
		s.mu.Unlock()
		return s.settle(ctx)
	}
	s.state.Phase = Connecting
	s.mu.Unlock()

	accounts, err := s.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = avatarerr.ErrUnauthorized
	}
	if err != nil {
		s.mu.Lock()
		s.state = State{Phase: Disconnected}
		s.mu.Unlock()
		return s.State(), wallet.MapError(err)
	}

	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = State{Phase: Disconnected}
		s.mu.Unlock()
		return s.State(), wallet.MapError(err)
	}

	s.mu.Lock()
	s.state = State{Phase: Connected, Address: accounts[0], Connected: true, ChainID: chainID}
	s.mu.Unlock()
	s.logger.Debug("connected %s on chain %d", accounts[0].Hex(), chainID)

	return s.settle(ctx)
}

// settle moves a connected session to the target network and loads its balance.
func (s *Session) settle(ctx context.Context) (State, error) {
	if err := s.EnsureNetwork(ctx); err != nil {
		return s.State(), err
	}
	return s.RefreshBalance(ctx)
}

// EnsureNetwork moves the wallet to the target chain. An unrecognized-chain
// answer leads to one add-network request followed by a second switch.
func (s *Session) EnsureNetwork(ctx context.Context) error {
	if s.provider == nil {
		return avatarerr.ErrProviderAbsent
	}

	current, err := s.provider.ChainID(ctx)
	if err != nil {
		return wallet.MapError(err)
	}
	if current == s.target.ChainID {
		s.setChain(current)
		return nil
	}

	err = s.provider.SwitchChain(ctx, s.target.ChainID)
	if wallet.IsCode(err, wallet.CodeUnrecognizedChain) {
		s.logger.Debug("chain %d unknown to wallet, adding it", s.target.ChainID)
		if err = s.provider.AddChain(ctx, s.target); err != nil {
			return switchFailed(err)
		}
		err = s.provider.SwitchChain(ctx, s.target.ChainID)
	}
	if err != nil {
		return switchFailed(err)
	}

	s.setChain(s.target.ChainID)
	return nil
}

// RefreshBalance reads the connected account's native balance. Overlapping
// refreshes fail with ErrBalanceRefreshBusy.
func (s *Session) RefreshBalance(ctx context.Context) (State, error) {
	s.mu.Lock()
	switch {
	case !s.state.Connected:
		s.mu.Unlock()
		return s.State(), avatarerr.ErrNotConnected
	case s.state.Phase == RefreshingBalance:
		s.mu.Unlock()
		return s.State(), avatarerr.ErrBalanceRefreshBusy
	}
	s.state.Phase = RefreshingBalance
	addr := s.state.Address
	s.mu.Unlock()

	if s.balances == nil {
		s.finishRefresh(addr, nil)
		return s.State(), avatarerr.ErrProviderAbsent
	}
	wei, err := s.balances.Balance(ctx, addr)
	s.finishRefresh(addr, wei)
	if err != nil {
		return s.State(), err
	}
	return s.State(), nil
}

// Disconnect revokes the wallet authorization and clears the session.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	addr, connected := s.state.Address, s.state.Connected
	s.state = State{Phase: Disconnected}
	s.mu.Unlock()

	if !connected || s.provider == nil {
		return nil
	}
	return wallet.MapError(s.provider.Revoke(ctx, addr))
}

// finishRefresh leaves the busy phase. A result for an account that is no
// longer connected is dropped.
func (s *Session) finishRefresh(addr common.Address, wei *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Connected || s.state.Address != addr {
		return
	}
	s.state.Phase = Connected
	if wei != nil {
		s.state.BalanceWei = new(big.Int).Set(wei)
		s.state.Balance = chain.FormatBalance(wei)
	}
}

func (s *Session) setChain(chainID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.ChainID != chainID {
		// A balance read on another chain no longer applies.
		s.state.Balance = ""
		s.state.BalanceWei = nil
	}
	s.state.ChainID = chainID
}

func (s *Session) snapshotLocked() State {
	out := s.state
	out.PhaseName = out.Phase.String()
	if out.BalanceWei != nil {
		out.BalanceWei = new(big.Int).Set(out.BalanceWei)
	}
	return out
}

// switchFailed keeps user rejection distinct from other switch failures.
func switchFailed(err error) error {
	if wallet.IsCode(err, wallet.CodeUserRejected) {
		return wallet.MapError(err)
	}
	return avatarerr.WithCause(avatarerr.ErrChainSwitchFailed, err)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
