package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
)

// ImpermanentLoss compares holding a position against holding its entry
// amounts, for price ratio r = current / entry:
//
//	IL = 2*sqrt(r) / (1+r) - 1
//
// IL is never positive, so it is reported as a loss magnitude.
type ImpermanentLoss struct {
	PriceRatio *uint256.Int // WAD
	LossWAD    *uint256.Int
	LossBps    uint64
}

// Percent renders the loss as a signed percentage, e.g. "-20.00".
func (il ImpermanentLoss) Percent() string {
	if il.LossWAD == nil || il.LossWAD.IsZero() {
		return "0.00"
	}
	return "-" + fixedpoint.ToDecimal(il.LossWAD, 16).StringFixed(2)
}

// ComputeImpermanentLoss is read-only and recomputed on demand; it is never
// stored on a position.
func ComputeImpermanentLoss(entryPrice, currentPrice *uint256.Int) (ImpermanentLoss, error) {
	if entryPrice == nil || entryPrice.IsZero() {
		return ImpermanentLoss{}, fmt.Errorf("entry price is zero: %w", ammerr.ErrDivisionByZero)
	}
	ratio, err := fixedpoint.MulDiv(currentPrice, fixedpoint.WAD, entryPrice)
	if err != nil {
		return ImpermanentLoss{}, err
	}
	// sqrt(r) at WAD scale is sqrt(r * 1e18)
	scaled, err := fixedpoint.Mul(ratio, fixedpoint.WAD)
	if err != nil {
		return ImpermanentLoss{}, err
	}
	sqrtR := fixedpoint.Sqrt(scaled)

	onePlusR, err := fixedpoint.Add(fixedpoint.WAD, ratio)
	if err != nil {
		return ImpermanentLoss{}, err
	}
	twoSqrt, err := fixedpoint.Mul(sqrtR, uint256.NewInt(2))
	if err != nil {
		return ImpermanentLoss{}, err
	}
	held, err := fixedpoint.MulDiv(twoSqrt, fixedpoint.WAD, onePlusR)
	if err != nil {
		return ImpermanentLoss{}, err
	}

	loss := fixedpoint.Zero()
	if held.Lt(fixedpoint.WAD) {
		loss.Sub(fixedpoint.WAD, held)
	}
	bps, err := fixedpoint.MulDiv(loss, fixedpoint.BpsDenominator, fixedpoint.WAD)
	if err != nil {
		return ImpermanentLoss{}, err
	}
	return ImpermanentLoss{PriceRatio: ratio, LossWAD: loss, LossBps: bps.Uint64()}, nil
}
