// Package fees distributes trading fees to liquidity shares with a
// cumulative fee-per-share accumulator. Accrual is O(1) per swap and never
// walks the set of positions; each position settles lazily against the
// accumulator when it is touched.
package fees

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
)

// Tier describes a supported fee tier.
type Tier struct {
	Bps   uint64 `json:"bps"`
	Label string `json:"label"`
	Use   string `json:"use"`
}

var tiers = []Tier{
	{Bps: 1, Label: "0.01%", Use: "Stablecoins, ultra-low slippage"},
	{Bps: 5, Label: "0.05%", Use: "Stable pairs"},
	{Bps: 30, Label: "0.30%", Use: "Standard, balanced returns"},
	{Bps: 100, Label: "1.00%", Use: "High volatility, maximum rewards"},
}

// Tiers returns the supported fee tiers in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// IsSupported reports whether bps is one of the enumerated tiers.
func IsSupported(bps uint64) bool {
	for _, t := range tiers {
		if t.Bps == bps {
			return true
		}
	}
	return false
}

// Label renders a tier as a percentage, e.g. "0.30%".
func Label(bps uint64) string {
	return fixedpoint.FormatBpsPercent(bps) + "%"
}

// Growth is the fee earned per share since pool creation, per token, WAD scaled.
type Growth struct {
	Token0 *uint256.Int
	Token1 *uint256.Int
}

// NewGrowth returns a zeroed accumulator.
func NewGrowth() Growth {
	return Growth{Token0: fixedpoint.Zero(), Token1: fixedpoint.Zero()}
}

// Clone deep-copies the accumulator.
func (g Growth) Clone() Growth {
	return Growth{Token0: fixedpoint.Clone(g.Token0), Token1: fixedpoint.Clone(g.Token1)}
}

// Get returns the accumulator for token index 0 or 1.
func (g Growth) Get(tokenIndex int) *uint256.Int {
	if tokenIndex == 0 {
		return g.Token0
	}
	return g.Token1
}

// Accrue returns growth advanced by fee spread over totalShares. The pool must
// have outstanding shares; fees without shareholders have nobody to go to.
func Accrue(growth, fee, totalShares *uint256.Int) (*uint256.Int, error) {
	if fee.IsZero() {
		return fixedpoint.Clone(growth), nil
	}
	if totalShares.IsZero() {
		return nil, fmt.Errorf("accrue fee %s: %w", fee.Dec(), ammerr.ErrInsufficientLiquidity)
	}
	delta, err := fixedpoint.MulDiv(fee, fixedpoint.WAD, totalShares)
	if err != nil {
		return nil, fmt.Errorf("accrue fee: %w", err)
	}
	return fixedpoint.Add(growth, delta)
}

// Owed returns the fees earned by shares between debt and growth.
func Owed(shares, growth, debt *uint256.Int) (*uint256.Int, error) {
	delta, err := fixedpoint.Sub(growth, debt)
	if err != nil {
		return nil, fmt.Errorf("fee debt ahead of growth: %w", err)
	}
	if delta.IsZero() || shares.IsZero() {
		return fixedpoint.Zero(), nil
	}
	return fixedpoint.MulDiv(shares, delta, fixedpoint.WAD)
}
