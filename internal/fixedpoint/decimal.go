package fixedpoint

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
)

// Parse reads a raw fixed-point integer in base 10.
func Parse(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("parse amount: empty: %w", ammerr.ErrInvalidAmount)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %v: %w", s, err, ammerr.ErrInvalidAmount)
	}
	return v, nil
}

// ParseUnits converts a human-readable amount ("1.5") into raw units at scale.
// Digits beyond the scale are rejected instead of being rounded away.
func ParseUnits(s string) (*uint256.Int, error) {
	return parseScaled(s, Decimals)
}

// ParseWAD converts a decimal ratio ("1.25") into WAD.
func ParseWAD(s string) (*uint256.Int, error) {
	return parseScaled(s, 18)
}

func parseScaled(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse units %q: %v: %w", s, err, ammerr.ErrInvalidAmount)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse units %q: negative: %w", s, ammerr.ErrInvalidAmount)
	}
	raw := d.Shift(decimals)
	if !raw.IsInteger() {
		return nil, fmt.Errorf("parse units %q: more than %d decimals: %w", s, decimals, ammerr.ErrInvalidAmount)
	}
	v, overflow := uint256.FromBig(raw.BigInt())
	if overflow {
		return nil, fmt.Errorf("parse units %q: %w", s, ammerr.ErrOverflow)
	}
	return v, nil
}

// ToDecimal renders a raw amount with the given number of implied decimals.
// It is a display helper only; engine math never goes through decimal.
func ToDecimal(a *uint256.Int, decimals int32) decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.ToBig(), -decimals)
}

// FormatUnits renders a raw amount at the system scale.
func FormatUnits(a *uint256.Int) string {
	return ToDecimal(a, Decimals).String()
}

// FormatWAD renders a WAD-scaled ratio.
func FormatWAD(a *uint256.Int) string {
	return ToDecimal(a, 18).String()
}

// FormatBpsPercent renders basis points as a percentage with two decimals ("0.30").
func FormatBpsPercent(bps uint64) string {
	return decimal.NewFromUint64(bps).Shift(-2).StringFixed(2)
}
