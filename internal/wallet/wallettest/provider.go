// Package wallettest provides an in-memory wallet.Provider for tests.
package wallettest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/wallet"
)

// Provider answers wallet requests from fields the test controls.
// Rejections and forced errors are checked before state changes.
type Provider struct {
	mu sync.Mutex

	// Available accounts can be granted by RequestAccounts; the first one is.
	Available  []common.Address
	Authorized []common.Address

	Active int64
	Known  map[int64]wallet.ChainParams

	// Reject declines every prompt.
	Reject    bool
	SwitchErr error
	AddErr    error
	SignErr   error

	Key        *ecdsa.PrivateKey
	Chain      chain.Backend
	BackendErr error

	Calls []string
}

// Compile-time interface check
var _ wallet.Provider = (*Provider)(nil)

// New returns a provider on mainnet that knows only mainnet.
func New(available ...common.Address) *Provider {
	return &Provider{
		Available: available,
		Active:    wallet.MainnetChainID,
		Known:     map[int64]wallet.ChainParams{wallet.MainnetChainID: wallet.MainnetParams()},
	}
}

// CallCount returns how many times method was requested.
func (p *Provider) CallCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// Accounts implements wallet.Provider.
func (p *Provider) Accounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, wallet.MethodAccounts)
	return append([]common.Address(nil), p.Authorized...), nil
}

// RequestAccounts implements wallet.Provider.
func (p *Provider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, wallet.MethodRequestAccounts)

	if len(p.Authorized) > 0 {
		return append([]common.Address(nil), p.Authorized...), nil
	}
	if len(p.Available) == 0 {
		return nil, wallet.NewProviderError(wallet.CodeUnauthorized, wallet.MethodRequestAccounts, "no accounts")
	}
	if p.Reject {
		return nil, wallet.NewProviderError(wallet.CodeUserRejected, wallet.MethodRequestAccounts, "user rejected the request")
	}
	p.Authorized = []common.Address{p.Available[0]}
	return []common.Address{p.Available[0]}, nil
}

// ChainID implements wallet.Provider.
func (p *Provider) ChainID(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, wallet.MethodChainID)
	return p.Active, nil
}

// SwitchChain implements wallet.Provider.
func (p *Provider) SwitchChain(_ context.Context, chainID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, wallet.MethodSwitchChain)

	if p.SwitchErr != nil {
		return p.SwitchErr
	}
	if _, ok := p.Known[chainID]; !ok {
		return wallet.NewProviderError(wallet.CodeUnrecognizedChain, wallet.MethodSwitchChain, "unrecognized chain")
	}
	if p.Reject {
		return wallet.NewProviderError(wallet.CodeUserRejected, wallet.MethodSwitchChain, "user rejected the request")
	}
	p.Active = chainID
	return nil
}

// AddChain implements wallet.Provider.
func (p *Provider) AddChain(_ context.Context, params wallet.ChainParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, wallet.MethodAddChain)

	if p.AddErr != nil {
		return p.AddErr
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if p.Reject {
		return wallet.NewProviderError(wallet.CodeUserRejected, wallet.MethodAddChain, "user rejected the request")
	}
	p.Known[params.ChainID] = params
	return nil
}

// Backend implements wallet.Provider.
func (p *Provider) Backend(context.Context) (chain.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.BackendErr != nil {
		return nil, p.BackendErr
	}
	return p.Chain, nil
}

// SignTx implements wallet.Provider.
func (p *Provider) SignTx(_ context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, wallet.MethodSendTransaction)

	if p.SignErr != nil {
		return nil, p.SignErr
	}
	authorized := false
	for _, a := range p.Authorized {
		authorized = authorized || a == from
	}
	if !authorized {
		return nil, wallet.NewProviderError(wallet.CodeUnauthorized, wallet.MethodSendTransaction, "not authorized")
	}
	if p.Reject {
		return nil, wallet.NewProviderError(wallet.CodeUserRejected, wallet.MethodSendTransaction, "user rejected the request")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(p.Active)), p.Key)
}

// Revoke implements wallet.Provider.
func (p *Provider) Revoke(_ context.Context, addr common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, wallet.MethodRevokePermission)

	kept := p.Authorized[:0]
	for _, a := range p.Authorized {
		if a != addr {
			kept = append(kept, a)
		}
	}
	p.Authorized = kept
	return nil
}
