package chain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// BalancePlaces is the number of decimals shown for native balances.
const BalancePlaces = 4

// ParseAmount converts a decimal string in whole units into base units.
// "0.01" with 18 decimals is 10000000000000000. Precision beyond the
// currency's decimals is rejected rather than silently truncated.
func ParseAmount(amount string, decimals int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, avatarerr.WithDetails(avatarerr.ErrInvalidAmount, map[string]string{"amount": amount})
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, avatarerr.WithCause(avatarerr.ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return nil, avatarerr.WithDetails(avatarerr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "negative",
		})
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, avatarerr.WithDetails(avatarerr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "too many decimal places",
		})
	}
	return scaled.BigInt(), nil
}

// ToDecimal converts base units into a whole-unit decimal.
func ToDecimal(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// FormatAmount renders base units in whole units without trailing zeros.
func FormatAmount(amount *big.Int, decimals int32) string {
	return ToDecimal(amount, decimals).String()
}

// FormatFixed renders base units with exactly places decimals.
// Extra precision is truncated so a displayed balance never overstates funds.
func FormatFixed(amount *big.Int, decimals, places int32) string {
	return ToDecimal(amount, decimals).Truncate(places).StringFixed(places)
}

// FormatBalance renders a native balance the way the wallet panel shows it.
func FormatBalance(wei *big.Int) string {
	return FormatFixed(wei, NativeDecimals, BalancePlaces)
}

// Covers reports whether balance is at least price. Both are base units,
// so the comparison is exact.
func Covers(balance, price *big.Int) bool {
	if balance == nil {
		return false
	}
	if price == nil {
		return true
	}
	return balance.Cmp(price) >= 0
}
