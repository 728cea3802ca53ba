package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a quantity in ledger base units (wei-like). It is kept in
// arbitrary-precision decimal form and serialized as a decimal string.
type Amount = decimal.Decimal

// ErrInvalidAmount is returned for amounts that are negative, fractional or unparsable.
var ErrInvalidAmount = errors.New("invalid amount")

// Zero is the zero amount.
var Zero = decimal.Zero

// ParseAmount parses a base-unit decimal string. Fractional base units are
// rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !d.IsInteger() {
		return Zero, fmt.Errorf("%w: %s has a fractional part", ErrInvalidAmount, s)
	}
	return d, nil
}

// MustAmount parses s and panics on error. Intended for constants and tests.
func MustAmount(s string) Amount {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// AmountFromUint64 converts a uint64 to an Amount.
func AmountFromUint64(v uint64) Amount {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// AmountFromBig converts a big.Int to an Amount. A nil value is zero.
func AmountFromBig(v *big.Int) Amount {
	if v == nil {
		return Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

// BigInt converts an integral Amount to a big.Int, truncating any fraction.
func BigInt(a Amount) *big.Int {
	return a.BigInt()
}

// MinAmount returns the smaller of a and b (a on ties).
func MinAmount(a, b Amount) Amount {
	if b.LessThan(a) {
		return b
	}
	return a
}

// MaxAmount returns the larger of a and b (a on ties).
func MaxAmount(a, b Amount) Amount {
	if b.GreaterThan(a) {
		return b
	}
	return a
}

// ParseUnits converts a human-readable amount ("1.5") to base units using
// the given number of decimals.
func ParseUnits(s string, decimals int32) (Amount, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return Zero, fmt.Errorf("%w: negative amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	units := d.Shift(decimals)
	if !units.IsInteger() {
		return Zero, fmt.Errorf("%w: too many decimal places (max %d)", ErrInvalidAmount, decimals)
	}
	return units, nil
}

// FormatUnits renders base units as a fixed-point string with the given
// number of decimals.
func FormatUnits(a Amount, decimals int32) string {
	return a.Shift(-decimals).StringFixed(decimals)
}
