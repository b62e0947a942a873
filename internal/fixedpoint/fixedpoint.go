// Package fixedpoint holds the overflow-checked integer arithmetic every ledger
// computation routes through.
//
// Amounts are raw unsigned integers with an implied scale of 10^Decimals.
// Prices and ratios use WAD (10^18) scaling. Nothing here uses floating point.
package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
)

// Decimals is the system-wide amount scale exponent.
const Decimals = 9

// Bps is the basis-point denominator.
const Bps = 10_000

var (
	// Scale is one whole token unit.
	Scale = uint256.NewInt(1_000_000_000)
	// WAD is the precision of prices, ratios and fee growth.
	WAD = uint256.NewInt(1_000_000_000_000_000_000)
	// BpsDenominator is Bps as a 256-bit value.
	BpsDenominator = uint256.NewInt(Bps)
)

// Zero returns a fresh zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// FromUint64 returns a fresh value holding v.
func FromUint64(v uint64) *uint256.Int { return uint256.NewInt(v) }

// Clone copies a, treating nil as zero.
func Clone(a *uint256.Int) *uint256.Int {
	if a == nil {
		return Zero()
	}
	return new(uint256.Int).Set(a)
}

// Add returns a+b or ErrOverflow on wraparound.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("add %s + %s: %w", a.Dec(), b.Dec(), ammerr.ErrOverflow)
	}
	return z, nil
}

// Sub returns a-b or ErrUnderflow on wraparound.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("sub %s - %s: %w", a.Dec(), b.Dec(), ammerr.ErrUnderflow)
	}
	return z, nil
}

// Debit removes amount from balance. A negative result is a rejected request,
// not a broken invariant, so it reports ErrInsufficientBalance.
func Debit(balance, amount *uint256.Int) (*uint256.Int, error) {
	if balance.Lt(amount) {
		return nil, fmt.Errorf("debit %s from %s: %w", amount.Dec(), balance.Dec(), ammerr.ErrInsufficientBalance)
	}
	return new(uint256.Int).Sub(balance, amount), nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("mul %s * %s: %w", a.Dec(), b.Dec(), ammerr.ErrOverflow)
	}
	return z, nil
}

// Div returns floor(a/b).
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, fmt.Errorf("div %s / 0: %w", a.Dec(), ammerr.ErrDivisionByZero)
	}
	return new(uint256.Int).Div(a, b), nil
}

// MulDiv returns floor(a*b/d) with a 512-bit intermediate product.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("muldiv %s * %s / 0: %w", a.Dec(), b.Dec(), ammerr.ErrDivisionByZero)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, fmt.Errorf("muldiv %s * %s / %s: %w", a.Dec(), b.Dec(), d.Dec(), ammerr.ErrOverflow)
	}
	return z, nil
}

// MulDivUp returns ceil(a*b/d).
func MulDivUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, d).IsZero() {
		return z, nil
	}
	return Add(z, uint256.NewInt(1))
}

// Sqrt returns floor(sqrt(a)).
func Sqrt(a *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(a)
}

// Min returns a copy of the smaller operand.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return Clone(a)
	}
	return Clone(b)
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Sub(b, a)
	}
	return new(uint256.Int).Sub(a, b)
}

// ApplyBps returns floor(amount * bps / 10000).
func ApplyBps(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	return MulDiv(amount, uint256.NewInt(bps), BpsDenominator)
}
