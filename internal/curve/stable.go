package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
)

const (
	// MaxIterations caps every Newton solve.
	MaxIterations    = 255
	MinAmplification = 1
	MaxAmplification = 10_000

	nCoins = 2
)

var (
	two   = uint256.NewInt(2)
	three = uint256.NewInt(3)
	four  = uint256.NewInt(4)
	one   = uint256.NewInt(1)
)

// StableSwap is the amplified two-coin invariant
//
//	A·n^n·(x+y) + D = A·D·n^n + D^(n+1) / (n^n·x·y),  n = 2
//
// which stays close to a constant sum near the peg and degrades to constant
// product away from it.
type StableSwap struct {
	amp      uint64
	maxIters int
}

// NewStableSwap validates the amplification coefficient.
func NewStableSwap(amplification uint64) (StableSwap, error) {
	if amplification < MinAmplification || amplification > MaxAmplification {
		return StableSwap{}, fmt.Errorf("amplification %d outside [%d, %d]: %w",
			amplification, MinAmplification, MaxAmplification, ammerr.ErrInvalidAmplification)
	}
	return StableSwap{amp: amplification, maxIters: MaxIterations}, nil
}

func (StableSwap) Kind() Kind { return Stable }

// Amplification returns A.
func (s StableSwap) Amplification() uint64 { return s.amp }

// ann is A·n^n.
func (s StableSwap) ann() *uint256.Int {
	return uint256.NewInt(s.amp * nCoins * nCoins)
}

// Quote charges the fee on the input, holds D fixed and solves for the new
// output balance. One unit is kept back from the output against rounding.
func (s StableSwap) Quote(r Reserves, amountIn *uint256.Int, feeTierBps uint64, d Direction) (SwapQuote, error) {
	if err := checkSwap(r, amountIn); err != nil {
		return SwapQuote{}, err
	}
	net, fee, err := SplitFee(amountIn, feeTierBps)
	if err != nil {
		return SwapQuote{}, err
	}
	reserveIn, reserveOut := r.InOut(d)
	D, err := s.computeD(reserveIn, reserveOut)
	if err != nil {
		return SwapQuote{}, err
	}
	spot, err := s.marginal(reserveIn, reserveOut, D)
	if err != nil {
		return SwapQuote{}, err
	}
	newIn, err := fixedpoint.Add(reserveIn, net)
	if err != nil {
		return SwapQuote{}, err
	}
	y, err := s.computeY(newIn, D)
	if err != nil {
		return SwapQuote{}, err
	}
	keep, err := fixedpoint.Add(y, one)
	if err != nil {
		return SwapQuote{}, err
	}
	out := fixedpoint.Zero()
	if keep.Lt(reserveOut) {
		out.Sub(reserveOut, keep)
	}
	return finish(d, amountIn, net, fee, out, reserveOut, spot)
}

// SpotPrice is the marginal rate -dy/dx of token0 in token1:
//
//	(4·Ann·x·y/D + D²/x) / (4·Ann·x·y/D + D²/y)
func (s StableSwap) SpotPrice(r Reserves) (*uint256.Int, error) {
	if r.empty() {
		return nil, fmt.Errorf("spot price: %w", ammerr.ErrInsufficientLiquidity)
	}
	D, err := s.computeD(r.Reserve0, r.Reserve1)
	if err != nil {
		return nil, err
	}
	return s.marginal(r.Reserve0, r.Reserve1, D)
}

// Invariant returns D.
func (s StableSwap) Invariant(r Reserves) (*uint256.Int, error) {
	if r.empty() {
		return fixedpoint.Zero(), nil
	}
	return s.computeD(r.Reserve0, r.Reserve1)
}

// marginal prices the output token per unit of input at balances (x, y).
func (s StableSwap) marginal(x, y, D *uint256.Int) (*uint256.Int, error) {
	xy, err := fixedpoint.Mul(x, y)
	if err != nil {
		return nil, err
	}
	annx4, err := fixedpoint.Mul(s.ann(), four)
	if err != nil {
		return nil, err
	}
	t, err := fixedpoint.MulDiv(annx4, xy, D)
	if err != nil {
		return nil, err
	}
	dx, err := fixedpoint.MulDiv(D, D, x)
	if err != nil {
		return nil, err
	}
	dy, err := fixedpoint.MulDiv(D, D, y)
	if err != nil {
		return nil, err
	}
	num, err := fixedpoint.Add(t, dx)
	if err != nil {
		return nil, err
	}
	den, err := fixedpoint.Add(t, dy)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(num, fixedpoint.WAD, den)
}

// computeD solves the invariant for D by Newton iteration:
//
//	D_P = D^3 / (4xy)
//	D'  = (Ann·S + 2·D_P)·D / ((Ann-1)·D + 3·D_P)
func (s StableSwap) computeD(x, y *uint256.Int) (*uint256.Int, error) {
	S, err := fixedpoint.Add(x, y)
	if err != nil {
		return nil, err
	}
	if S.IsZero() {
		return fixedpoint.Zero(), nil
	}
	if x.IsZero() || y.IsZero() {
		return nil, fmt.Errorf("stable invariant on one-sided reserves: %w", ammerr.ErrInsufficientLiquidity)
	}
	ann := s.ann()
	annMinusOne := new(uint256.Int).Sub(ann, one)
	x2 := new(uint256.Int).Mul(x, two)
	y2 := new(uint256.Int).Mul(y, two)
	annS, err := fixedpoint.Mul(ann, S)
	if err != nil {
		return nil, err
	}

	D := fixedpoint.Clone(S)
	for i := 0; i < s.maxIters; i++ {
		dp, err := fixedpoint.MulDiv(D, D, x2)
		if err != nil {
			return nil, err
		}
		if dp, err = fixedpoint.MulDiv(dp, D, y2); err != nil {
			return nil, err
		}
		prev := D

		// numerator: (Ann·S + 2·D_P)·D
		dp2, err := fixedpoint.Mul(dp, two)
		if err != nil {
			return nil, err
		}
		numL, err := fixedpoint.Add(annS, dp2)
		if err != nil {
			return nil, err
		}
		// denominator: (Ann-1)·D + 3·D_P
		denL, err := fixedpoint.Mul(annMinusOne, D)
		if err != nil {
			return nil, err
		}
		dp3, err := fixedpoint.Mul(dp, three)
		if err != nil {
			return nil, err
		}
		den, err := fixedpoint.Add(denL, dp3)
		if err != nil {
			return nil, err
		}
		if D, err = fixedpoint.MulDiv(numL, D, den); err != nil {
			return nil, err
		}
		if !fixedpoint.AbsDiff(D, prev).Gt(one) {
			return D, nil
		}
	}
	return nil, fmt.Errorf("invariant D after %d iterations (x=%s y=%s): %w",
		s.maxIters, x.Dec(), y.Dec(), ammerr.ErrConvergence)
}

// computeY solves for the output balance y given the new input balance x and
// a fixed D:
//
//	c  = D^3 / (4·x·Ann)
//	b  = x + D/Ann
//	y' = (y² + c) / (2y + b - D)
func (s StableSwap) computeY(x, D *uint256.Int) (*uint256.Int, error) {
	ann := s.ann()
	c, err := fixedpoint.MulDiv(D, D, new(uint256.Int).Mul(x, two))
	if err != nil {
		return nil, err
	}
	annx2, err := fixedpoint.Mul(ann, two)
	if err != nil {
		return nil, err
	}
	if c, err = fixedpoint.MulDiv(c, D, annx2); err != nil {
		return nil, err
	}
	dOverAnn, err := fixedpoint.Div(D, ann)
	if err != nil {
		return nil, err
	}
	b, err := fixedpoint.Add(x, dOverAnn)
	if err != nil {
		return nil, err
	}

	y := fixedpoint.Clone(D)
	for i := 0; i < s.maxIters; i++ {
		prev := y
		yy, err := fixedpoint.Mul(y, y)
		if err != nil {
			return nil, err
		}
		num, err := fixedpoint.Add(yy, c)
		if err != nil {
			return nil, err
		}
		y2, err := fixedpoint.Mul(y, two)
		if err != nil {
			return nil, err
		}
		sum, err := fixedpoint.Add(y2, b)
		if err != nil {
			return nil, err
		}
		den, err := fixedpoint.Sub(sum, D)
		if err != nil {
			return nil, err
		}
		if y, err = fixedpoint.Div(num, den); err != nil {
			return nil, err
		}
		if !fixedpoint.AbsDiff(y, prev).Gt(one) {
			return y, nil
		}
	}
	return nil, fmt.Errorf("output balance after %d iterations (x=%s D=%s): %w",
		s.maxIters, x.Dec(), D.Dec(), ammerr.ErrConvergence)
}
