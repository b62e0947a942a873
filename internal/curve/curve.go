// Package curve prices swaps against pool reserves. Every function is pure:
// the same reserves, amount, fee tier and direction always produce the same
// quote, and nothing here mutates its inputs.
package curve

import (
	"fmt"
	"math"
	"strings"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
)

// Kind selects the bonding curve of a pool.
type Kind string

const (
	Volatile Kind = "volatile"
	Stable   Kind = "stable"
)

// ParseKind accepts "volatile" or "stable" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Volatile, "":
		return Volatile, nil
	case Stable:
		return Stable, nil
	}
	return "", fmt.Errorf("unknown curve %q", s)
}

// Direction is the side of the pool a swap sells into.
type Direction uint8

const (
	ZeroForOne Direction = iota
	OneForZero
)

// DirectionFromIndex maps the index of the input token to a direction.
func DirectionFromIndex(tokenInIndex int) (Direction, error) {
	switch tokenInIndex {
	case 0:
		return ZeroForOne, nil
	case 1:
		return OneForZero, nil
	}
	return 0, fmt.Errorf("token index %d: %w", tokenInIndex, ammerr.ErrInvalidAmount)
}

// InIndex is the index of the token sold.
func (d Direction) InIndex() int {
	if d == OneForZero {
		return 1
	}
	return 0
}

// OutIndex is the index of the token bought.
func (d Direction) OutIndex() int { return 1 - d.InIndex() }

func (d Direction) String() string {
	if d == OneForZero {
		return "one_for_zero"
	}
	return "zero_for_one"
}

// Reserves is a pair of pool balances.
type Reserves struct {
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

// InOut returns the reserves ordered as (input side, output side).
func (r Reserves) InOut(d Direction) (*uint256.Int, *uint256.Int) {
	if d == OneForZero {
		return r.Reserve1, r.Reserve0
	}
	return r.Reserve0, r.Reserve1
}

func (r Reserves) empty() bool {
	return r.Reserve0 == nil || r.Reserve1 == nil || r.Reserve0.IsZero() || r.Reserve1.IsZero()
}

// SwapQuote is the outcome of pricing a swap. It carries no identity and is
// never persisted.
type SwapQuote struct {
	Direction      Direction
	AmountIn       *uint256.Int
	AmountInNet    *uint256.Int
	FeeAmount      *uint256.Int
	AmountOut      *uint256.Int
	SpotPrice      *uint256.Int // output per input before the swap, WAD
	PriceImpactBps uint64
}

// Curve prices swaps for one invariant family.
type Curve interface {
	Kind() Kind
	// Quote prices selling amountIn in direction d. Pure.
	Quote(r Reserves, amountIn *uint256.Int, feeTierBps uint64, d Direction) (SwapQuote, error)
	// SpotPrice is the marginal price of token0 in token1, WAD.
	SpotPrice(r Reserves) (*uint256.Int, error)
	// Invariant returns k for constant product or D for stable pools.
	Invariant(r Reserves) (*uint256.Int, error)
}

// New builds the curve for kind. amplification is only read by stable curves.
func New(kind Kind, amplification uint64) (Curve, error) {
	switch kind {
	case Volatile:
		return ConstantProduct{}, nil
	case Stable:
		return NewStableSwap(amplification)
	}
	return nil, fmt.Errorf("unknown curve %q", kind)
}

// SplitFee deducts the fee tier from amountIn first:
// net = amountIn * (10000 - f) / 10000, fee = amountIn - net.
func SplitFee(amountIn *uint256.Int, feeTierBps uint64) (*uint256.Int, *uint256.Int, error) {
	if feeTierBps >= fixedpoint.Bps {
		return nil, nil, fmt.Errorf("fee %d bps: %w", feeTierBps, ammerr.ErrInvalidFeeTier)
	}
	net, err := fixedpoint.ApplyBps(amountIn, fixedpoint.Bps-feeTierBps)
	if err != nil {
		return nil, nil, err
	}
	fee, err := fixedpoint.Sub(amountIn, net)
	if err != nil {
		return nil, nil, err
	}
	return net, fee, nil
}

// PriceImpactBps is |quotedRate - spotRate| * 10000 / spotRate where
// quotedRate = amountOut / amountIn. Results past uint64 saturate.
func PriceImpactBps(amountIn, amountOut, spot *uint256.Int) (uint64, error) {
	if spot.IsZero() {
		return 0, fmt.Errorf("price impact: %w", ammerr.ErrDivisionByZero)
	}
	quoted, err := fixedpoint.MulDiv(amountOut, fixedpoint.WAD, amountIn)
	if err != nil {
		return 0, err
	}
	impact, err := fixedpoint.MulDiv(fixedpoint.AbsDiff(quoted, spot), fixedpoint.BpsDenominator, spot)
	if err != nil {
		return 0, err
	}
	if !impact.IsUint64() {
		return math.MaxUint64, nil
	}
	return impact.Uint64(), nil
}

// checkSwap rejects the inputs no curve can price.
func checkSwap(r Reserves, amountIn *uint256.Int) error {
	if amountIn == nil || amountIn.IsZero() {
		return fmt.Errorf("amount in is zero: %w", ammerr.ErrInvalidAmount)
	}
	if r.empty() {
		return fmt.Errorf("pool has no reserves: %w", ammerr.ErrInsufficientLiquidity)
	}
	return nil
}

// finish assembles the quote once the output is known.
func finish(d Direction, amountIn, net, fee, out, reserveOut, spot *uint256.Int) (SwapQuote, error) {
	if out.IsZero() {
		return SwapQuote{}, fmt.Errorf("amount in %s too small to buy anything: %w", amountIn.Dec(), ammerr.ErrInvalidAmount)
	}
	if !out.Lt(reserveOut) {
		return SwapQuote{}, fmt.Errorf("output %s drains reserve %s: %w", out.Dec(), reserveOut.Dec(), ammerr.ErrInsufficientLiquidity)
	}
	impact, err := PriceImpactBps(amountIn, out, spot)
	if err != nil {
		return SwapQuote{}, err
	}
	return SwapQuote{
		Direction:      d,
		AmountIn:       fixedpoint.Clone(amountIn),
		AmountInNet:    net,
		FeeAmount:      fee,
		AmountOut:      out,
		SpotPrice:      spot,
		PriceImpactBps: impact,
	}, nil
}
