// Package chain holds EVM primitives shared by the wallet, gateway and workflows:
// native amounts, addresses, derivation paths and endpoint rate limiting.
package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// NativeDecimals is the precision of every EVM native currency we accept.
const NativeDecimals = 18

// CoinTypeETH is the BIP44 coin type used by EVM wallets.
const CoinTypeETH uint32 = 60

// DerivationPath is the default account path (first external address).
const DerivationPath = "m/44'/60'/0'/0/0"

// ParseAddress validates a 0x-prefixed hex address.
// Mixed-case input must carry a valid EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, invalidAddress(s, "missing 0x prefix")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, invalidAddress(s, "not a 20-byte hex address")
	}

	addr := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != s {
		return common.Address{}, invalidAddress(s, "checksum mismatch")
	}
	return addr, nil
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ShortAddress abbreviates an address for display, 0x1234...abcd.
func ShortAddress(s string) string {
	if len(s) < 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

func invalidAddress(addr, reason string) error {
	return avatarerr.WithDetails(avatarerr.ErrInvalidAddress, map[string]string{
		"address": addr,
		"reason":  reason,
	})
}
