package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	"github.com/mrz1836/pharos-avatars/internal/metrics"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

const (
	networksFile = "networks.yaml"
	grantsFile   = "authorizations.yaml"

	keystoreDirPermissions = 0o700
)

// LogWriter is the logging surface the provider needs.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Options configures a KeystoreProvider.
type Options struct {
	// StateDir holds the network registry and grants. Defaults to the
	// keystore directory's parent.
	StateDir string
	GrantTTL time.Duration
	// ScryptN and ScryptP tune key encryption. Zero means the keystore standard.
	ScryptN int
	ScryptP int
	// Account is the address offered on connect. Defaults to the first account.
	Account string
	Dialer  chain.Dialer
	Metrics *metrics.Metrics
	Logger  LogWriter
	Now     func() time.Time
}

// KeystoreProvider is a Provider backed by a go-ethereum keystore directory.
type KeystoreProvider struct {
	dir      string
	ks       *keystore.KeyStore
	prompter Prompter
	grants   *GrantStore
	networks *NetworkRegistry
	opts     Options

	mu       sync.Mutex
	backends map[int64]chain.Backend
}

// Compile-time interface check
var _ Provider = (*KeystoreProvider)(nil)

// AccountInfo describes a keystore account for listings.
type AccountInfo struct {
	Address    common.Address `json:"address"`
	File       string         `json:"file"`
	Authorized bool           `json:"authorized"`
	ExpiresAt  *time.Time     `json:"authorized_until,omitempty"`
}

// Open attaches to an existing keystore directory.
// A missing directory means no wallet is installed.
func Open(dir string, prompter Prompter, opts Options) (*KeystoreProvider, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, avatarerr.WithDetails(avatarerr.ErrProviderAbsent, map[string]string{"keystore": dir})
	}

	if opts.StateDir == "" {
		opts.StateDir = filepath.Dir(filepath.Clean(dir))
	}
	if opts.GrantTTL <= 0 {
		opts.GrantTTL = DefaultGrantTTL
	}
	if opts.ScryptN == 0 || opts.ScryptP == 0 {
		opts.ScryptN, opts.ScryptP = keystore.StandardScryptN, keystore.StandardScryptP
	}
	if opts.Dialer == nil {
		opts.Dialer = chain.DialRPC
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	networks, err := LoadNetworks(filepath.Join(opts.StateDir, networksFile))
	if err != nil {
		return nil, fmt.Errorf("loading networks: %w", err)
	}
	grants, err := LoadGrants(filepath.Join(opts.StateDir, grantsFile), opts.Now)
	if err != nil {
		return nil, fmt.Errorf("loading authorizations: %w", err)
	}

	return &KeystoreProvider{
		dir:      dir,
		ks:       keystore.NewKeyStore(dir, opts.ScryptN, opts.ScryptP),
		prompter: prompter,
		grants:   grants,
		networks: networks,
		opts:     opts,
		backends: make(map[int64]chain.Backend),
	}, nil
}

// Create makes the keystore directory if needed and opens it.
func Create(dir string, prompter Prompter, opts Options) (*KeystoreProvider, error) {
	if err := os.MkdirAll(dir, keystoreDirPermissions); err != nil {
		return nil, fmt.Errorf("creating keystore: %w", err)
	}
	return Open(dir, prompter, opts)
}

// Dir returns the keystore directory.
func (p *KeystoreProvider) Dir() string {
	return p.dir
}

// Networks exposes the network registry.
func (p *KeystoreProvider) Networks() *NetworkRegistry {
	return p.networks
}

// Accounts returns keystore accounts that hold a live grant.
func (p *KeystoreProvider) Accounts(_ context.Context) ([]common.Address, error) {
	var out []common.Address
	for _, addr := range p.grants.Active() {
		if p.ks.HasAddress(addr) {
			out = append(out, addr)
		}
	}
	p.opts.Metrics.RecordWalletOp(MethodAccounts, nil)
	return out, nil
}

// RequestAccounts returns authorized accounts, prompting for approval when there are none.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) (addrs []common.Address, err error) {
	defer func() { p.opts.Metrics.RecordWalletOp(MethodRequestAccounts, err) }()

	if authorized, _ := p.Accounts(ctx); len(authorized) > 0 {
		return authorized, nil
	}

	candidates := p.ks.Accounts()
	if len(candidates) == 0 {
		return nil, NewProviderError(CodeUnauthorized, MethodRequestAccounts, "keystore has no accounts")
	}

	account := candidates[0].Address
	if p.opts.Account != "" {
		preferred := common.HexToAddress(p.opts.Account)
		if !p.ks.HasAddress(preferred) {
			return nil, NewProviderError(CodeUnauthorized, MethodRequestAccounts,
				"configured account "+preferred.Hex()+" is not in the keystore")
		}
		account = preferred
	}

	ok, err := p.prompter.Confirm(fmt.Sprintf("Connect account %s to Pharos Avatars?", account.Hex()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewProviderError(CodeUserRejected, MethodRequestAccounts, "user rejected the request")
	}

	if _, err := p.grants.Authorize(account, p.opts.GrantTTL); err != nil {
		return nil, fmt.Errorf("saving authorization: %w", err)
	}
	p.opts.Logger.Debug("authorized %s for %s", account.Hex(), p.opts.GrantTTL)
	return []common.Address{account}, nil
}

// ChainID returns the active chain id.
func (p *KeystoreProvider) ChainID(_ context.Context) (int64, error) {
	p.opts.Metrics.RecordWalletOp(MethodChainID, nil)
	return p.networks.Active(), nil
}

// SwitchChain activates a known chain after user approval.
func (p *KeystoreProvider) SwitchChain(_ context.Context, chainID int64) (err error) {
	defer func() { p.opts.Metrics.RecordWalletOp(MethodSwitchChain, err) }()

	if p.networks.Active() == chainID {
		return nil
	}
	params, ok := p.networks.Get(chainID)
	if !ok {
		return NewProviderError(CodeUnrecognizedChain, MethodSwitchChain,
			fmt.Sprintf("unrecognized chain id %d", chainID))
	}

	approved, err := p.prompter.Confirm(fmt.Sprintf("Switch network to %s (chain %d)?", params.ChainName, chainID))
	if err != nil {
		return err
	}
	if !approved {
		return NewProviderError(CodeUserRejected, MethodSwitchChain, "user rejected the request")
	}
	return p.networks.SetActive(chainID)
}

// AddChain registers a network after user approval. It does not switch to it.
func (p *KeystoreProvider) AddChain(_ context.Context, params ChainParams) (err error) {
	defer func() { p.opts.Metrics.RecordWalletOp(MethodAddChain, err) }()

	if err := params.Validate(); err != nil {
		return err
	}

	approved, err := p.prompter.Confirm(fmt.Sprintf("Add network %s (chain %d, RPC %s)?",
		params.ChainName, params.ChainID, strings.Join(params.RPCURLs, ", ")))
	if err != nil {
		return err
	}
	if !approved {
		return NewProviderError(CodeUserRejected, MethodAddChain, "user rejected the request")
	}

	if err := p.networks.Add(params); err != nil {
		return err
	}

	// Drop any connection made with the old parameters.
	p.mu.Lock()
	if b, ok := p.backends[params.ChainID]; ok {
		b.Close()
		delete(p.backends, params.ChainID)
	}
	p.mu.Unlock()
	return nil
}

// Backend returns a connection to the active chain. Candidate RPC URLs are
// tried in order; an endpoint is accepted only if it reports the expected chain id.
func (p *KeystoreProvider) Backend(ctx context.Context) (chain.Backend, error) {
	chainID := p.networks.Active()

	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.backends[chainID]; ok {
		return b, nil
	}

	params, _ := p.networks.Get(chainID)
	var errs []error
	for _, url := range params.RPCURLs {
		b, err := p.opts.Dialer(ctx, url)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		got, err := b.ChainID(ctx)
		if err != nil {
			b.Close()
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		if got.Int64() != chainID {
			b.Close()
			errs = append(errs, fmt.Errorf("%s: reports chain %s, want %d", url, got, chainID)) //nolint:err113 // diagnostic only
			continue
		}
		p.opts.Logger.Debug("connected to chain %d via %s", chainID, url)
		p.backends[chainID] = b
		return b, nil
	}

	return nil, avatarerr.WithDetails(
		avatarerr.WithCause(avatarerr.ErrNetworkError, errors.Join(errs...)),
		map[string]string{"chain_id": fmt.Sprint(chainID), "endpoints": fmt.Sprint(len(params.RPCURLs))},
	)
}

// SignTx signs with the keystore key for from after prompting for its passphrase.
// An empty passphrase is treated as the user declining.
func (p *KeystoreProvider) SignTx(_ context.Context, from common.Address, tx *types.Transaction) (_ *types.Transaction, err error) {
	defer func() { p.opts.Metrics.RecordWalletOp(MethodSendTransaction, err) }()

	if _, ok := p.grants.Lookup(from); !ok {
		return nil, NewProviderError(CodeUnauthorized, MethodSendTransaction, "account "+from.Hex()+" is not authorized")
	}
	account, err := p.ks.Find(accounts.Account{Address: from})
	if err != nil {
		return nil, NewProviderError(CodeUnauthorized, MethodSendTransaction, "account "+from.Hex()+" is not in the keystore")
	}

	prompt := fmt.Sprintf("Passphrase for %s to sign a transaction to %s paying %s",
		from.Hex(), txTo(tx), chain.FormatAmount(tx.Value(), chain.NativeDecimals))
	passphrase, err := p.prompter.Passphrase(prompt)
	if err != nil {
		return nil, err
	}
	if passphrase == "" {
		return nil, NewProviderError(CodeUserRejected, MethodSendTransaction, "user rejected the request")
	}

	signed, err := p.ks.SignTxWithPassphrase(account, passphrase, tx, big.NewInt(p.networks.Active()))
	if errors.Is(err, keystore.ErrDecrypt) {
		return nil, NewProviderError(CodeUnauthorized, MethodSendTransaction, "incorrect passphrase")
	}
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}

// Revoke drops the connection grant for addr.
func (p *KeystoreProvider) Revoke(_ context.Context, addr common.Address) (err error) {
	defer func() { p.opts.Metrics.RecordWalletOp(MethodRevokePermission, err) }()
	return p.grants.Revoke(addr)
}

// Close releases node connections.
func (p *KeystoreProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, b := range p.backends {
		b.Close()
		delete(p.backends, id)
	}
}

// CreateAccount generates a mnemonic, stores its first account encrypted with
// passphrase, and returns the mnemonic for the user to back up.
func (p *KeystoreProvider) CreateAccount(wordCount int, passphrase string) (common.Address, string, error) {
	mnemonic, err := GenerateMnemonic(wordCount)
	if err != nil {
		return common.Address{}, "", err
	}
	addr, err := p.ImportMnemonic(mnemonic, passphrase, 0)
	if err != nil {
		return common.Address{}, "", err
	}
	return addr, mnemonic, nil
}

// ImportMnemonic derives the account at index and stores it encrypted with passphrase.
// Importing an account that already exists returns its address.
func (p *KeystoreProvider) ImportMnemonic(mnemonic, passphrase string, index uint32) (common.Address, error) {
	if passphrase == "" {
		return common.Address{}, avatarerr.WithDetails(avatarerr.ErrInvalidInput, map[string]string{
			"field":  "passphrase",
			"reason": "must not be empty",
		})
	}

	key, err := DeriveKey(mnemonic, "", index)
	if err != nil {
		return common.Address{}, err
	}
	defer key.D.SetInt64(0)

	account, err := p.ks.ImportECDSA(key, passphrase)
	if errors.Is(err, keystore.ErrAccountAlreadyExists) {
		return account.Address, nil
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("importing key: %w", err)
	}
	return account.Address, nil
}

// ListAccounts returns every keystore account with its grant state.
func (p *KeystoreProvider) ListAccounts() []AccountInfo {
	accts := p.ks.Accounts()
	out := make([]AccountInfo, 0, len(accts))
	for _, a := range accts {
		info := AccountInfo{Address: a.Address, File: a.URL.Path}
		if g, ok := p.grants.Lookup(a.Address); ok {
			expires := g.ExpiresAt
			info.Authorized = true
			info.ExpiresAt = &expires
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Hex() < out[j].Address.Hex() })
	return out
}

func txTo(tx *types.Transaction) string {
	if tx.To() == nil {
		return "a new contract"
	}
	return tx.To().Hex()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
