// Package wallet implements the local wallet provider: encrypted keystore
// accounts, connection grants, the known-network registry and transaction
// signing. It answers the same requests a browser wallet does and reports
// failures with EIP-1193 provider error codes.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
)

// Request method names, used for metrics and error context.
const (
	MethodAccounts         = "eth_accounts"
	MethodRequestAccounts  = "eth_requestAccounts"
	MethodChainID          = "eth_chainId"
	MethodSwitchChain      = "wallet_switchEthereumChain"
	MethodAddChain         = "wallet_addEthereumChain"
	MethodSendTransaction  = "eth_sendTransaction"
	MethodRevokePermission = "wallet_revokePermissions"
)

// Provider is the wallet surface the session and workflows talk to.
type Provider interface {
	// Accounts returns accounts already authorized for this client, without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)

	// RequestAccounts asks the user to authorize an account.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID returns the wallet's active chain.
	ChainID(ctx context.Context) (int64, error)

	// SwitchChain makes chainID active. Unknown chains fail with CodeUnrecognizedChain.
	SwitchChain(ctx context.Context, chainID int64) error

	// AddChain registers a network with the wallet.
	AddChain(ctx context.Context, params ChainParams) error

	// Backend returns a node connection for the active chain.
	Backend(ctx context.Context) (chain.Backend, error)

	// SignTx signs tx for from on the active chain.
	SignTx(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error)

	// Revoke drops the authorization for addr.
	Revoke(ctx context.Context, addr common.Address) error
}

// ChainParams are the wallet_addEthereumChain parameters.
type ChainParams struct {
	ChainID     int64    `yaml:"chain_id" json:"chainId"`
	ChainName   string   `yaml:"chain_name" json:"chainName"`
	RPCURLs     []string `yaml:"rpc_urls" json:"rpcUrls"`
	Currency    Currency `yaml:"currency" json:"nativeCurrency"`
	ExplorerURL string   `yaml:"explorer_url,omitempty" json:"blockExplorerUrl,omitempty"`
}

// Currency describes a chain's native currency.
type Currency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals int    `yaml:"decimals" json:"decimals"`
}

// Validate checks the parameters a wallet requires before adding a network.
func (p ChainParams) Validate() error {
	invalid := func(field, reason string) error {
		return avatarerr.WithDetails(avatarerr.ErrInvalidInput, map[string]string{
			"field":  field,
			"reason": reason,
		})
	}
	switch {
	case p.ChainID <= 0:
		return invalid("chainId", "must be positive")
	case strings.TrimSpace(p.ChainName) == "":
		return invalid("chainName", "must not be empty")
	case len(p.RPCURLs) == 0:
		return invalid("rpcUrls", "at least one RPC URL is required")
	case strings.TrimSpace(p.Currency.Symbol) == "":
		return invalid("nativeCurrency.symbol", "must not be empty")
	case p.Currency.Decimals != chain.NativeDecimals:
		return invalid("nativeCurrency.decimals", "must be 18")
	}
	for _, u := range p.RPCURLs {
		lower := strings.ToLower(u)
		if !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "http://") &&
			!strings.HasPrefix(lower, "wss://") && !strings.HasPrefix(lower, "ws://") {
			return invalid("rpcUrls", fmt.Sprintf("unsupported scheme in %q", u))
		}
	}
	return nil
}

// ProviderError is a wallet request failure carrying an EIP-1193 code.
type ProviderError struct {
	Code    int
	Message string
	Method  string
}

func (e *ProviderError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// NewProviderError creates a ProviderError.
func NewProviderError(code int, method, message string) *ProviderError {
	return &ProviderError{Code: code, Method: method, Message: message}
}

// ErrorCode returns the provider code in err's chain, or 0.
func ErrorCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// IsCode reports whether err carries the given provider code.
func IsCode(err error, code int) bool {
	return err != nil && ErrorCode(err) == code
}

// MapError converts provider failures into the client's error taxonomy.
// Errors without a provider code are returned unchanged.
func MapError(err error) error {
	switch ErrorCode(err) {
	case 0:
		return err
	case CodeUserRejected:
		return avatarerr.WithCause(avatarerr.ErrUserRejected, err)
	case CodeUnauthorized:
		return avatarerr.WithCause(avatarerr.ErrUnauthorized, err)
	case CodeUnrecognizedChain:
		return avatarerr.WithCause(avatarerr.ErrNetworkMismatch, err)
	case CodeDisconnected:
		return avatarerr.WithCause(avatarerr.ErrNetworkError, err)
	default:
		return avatarerr.WithCause(avatarerr.ErrGeneral, err)
	}
}

// Prompter asks the user to approve wallet requests.
type Prompter interface {
	Confirm(prompt string) (bool, error)
	Passphrase(prompt string) (string, error)
}
