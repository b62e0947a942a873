package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

// View is a position joined with the current state of its pool.
type View struct {
	Position     Position
	Handle       string
	Amount0      *uint256.Int // underlying share of reserve0
	Amount1      *uint256.Int
	Pending0     *uint256.Int
	Pending1     *uint256.Int
	CurrentPrice *uint256.Int // zero when the pool is empty
	ValueToken1  *uint256.Int // underlying plus pending, priced in token1
	IL           ImpermanentLoss
	Metadata     string
}

// NewView derives everything a position viewer shows. pair is the display
// label of the pool, e.g. "SOL/USDC"; spot may be nil for an empty pool.
func NewView(pos Position, s pool.State, spot *uint256.Int, pair string) (View, error) {
	v := View{
		Position:     pos,
		Handle:       pos.Handle(),
		Amount0:      fixedpoint.Zero(),
		Amount1:      fixedpoint.Zero(),
		CurrentPrice: fixedpoint.Clone(spot),
		IL:           ImpermanentLoss{PriceRatio: fixedpoint.Zero(), LossWAD: fixedpoint.Zero()},
	}
	var err error
	if !s.TotalShares.IsZero() {
		if v.Amount0, err = fixedpoint.MulDiv(pos.Shares, s.Reserve0, s.TotalShares); err != nil {
			return View{}, err
		}
		if v.Amount1, err = fixedpoint.MulDiv(pos.Shares, s.Reserve1, s.TotalShares); err != nil {
			return View{}, err
		}
	}
	if v.Pending0, v.Pending1, err = pos.pending(s.FeeGrowth); err != nil {
		return View{}, err
	}

	total0, err := fixedpoint.Add(v.Amount0, v.Pending0)
	if err != nil {
		return View{}, err
	}
	total1, err := fixedpoint.Add(v.Amount1, v.Pending1)
	if err != nil {
		return View{}, err
	}
	if v.ValueToken1, err = pool.ValueInToken1(total0, total1, v.CurrentPrice); err != nil {
		return View{}, err
	}
	if !v.CurrentPrice.IsZero() && !pos.EntryPrice.IsZero() {
		if v.IL, err = ComputeImpermanentLoss(pos.EntryPrice, v.CurrentPrice); err != nil {
			return View{}, err
		}
	}

	v.Metadata = fmt.Sprintf("Pool: %s | Fee: %s%% | Shares: %s | Value: %s",
		pair, fixedpoint.FormatBpsPercent(s.FeeTierBps), fixedpoint.FormatUnits(pos.Shares), fixedpoint.FormatUnits(v.ValueToken1))
	return v, nil
}
