package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
)

// ConstantProduct is the x * y = k curve.
type ConstantProduct struct{}

func (ConstantProduct) Kind() Kind { return Volatile }

// Quote applies the fee to the input, then
// out = (amountInNet * reserveOut) / (reserveIn + amountInNet), floored so the
// product never shrinks.
func (ConstantProduct) Quote(r Reserves, amountIn *uint256.Int, feeTierBps uint64, d Direction) (SwapQuote, error) {
	if err := checkSwap(r, amountIn); err != nil {
		return SwapQuote{}, err
	}
	net, fee, err := SplitFee(amountIn, feeTierBps)
	if err != nil {
		return SwapQuote{}, err
	}
	reserveIn, reserveOut := r.InOut(d)
	denom, err := fixedpoint.Add(reserveIn, net)
	if err != nil {
		return SwapQuote{}, err
	}
	out, err := fixedpoint.MulDiv(net, reserveOut, denom)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("constant product output: %w", err)
	}
	spot, err := fixedpoint.MulDiv(reserveOut, fixedpoint.WAD, reserveIn)
	if err != nil {
		return SwapQuote{}, err
	}
	return finish(d, amountIn, net, fee, out, reserveOut, spot)
}

// SpotPrice is reserve1 / reserve0 in WAD.
func (ConstantProduct) SpotPrice(r Reserves) (*uint256.Int, error) {
	return fixedpoint.MulDiv(r.Reserve1, fixedpoint.WAD, r.Reserve0)
}

// Invariant is reserve0 * reserve1.
func (ConstantProduct) Invariant(r Reserves) (*uint256.Int, error) {
	return fixedpoint.Mul(r.Reserve0, r.Reserve1)
}
